// Package gitprovider contains the provider independent representation of
// push events, references and pull requests and the interface of the client
// that is used to interact with the git hosting service.
package gitprovider

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

// Repository identifies a repository at the git hosting service.
type Repository struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// URL is the API url of the repository, it is passed to all Client
	// methods.
	URL string `json:"url"`
}

func (r *Repository) LogFields() []zap.Field {
	return []zap.Field{
		logfields.RepositoryID(r.ID),
		logfields.Repository(r.Name),
	}
}

// PushUpdate is a single reference that was changed by a push.
type PushUpdate struct {
	Name        string `json:"name"`
	OldObjectID string `json:"oldObjectId"`
	NewObjectID string `json:"newObjectId"`
}

// IsBranchCreation returns true if the previous object id of the update
// consists only of zeros.
func (u *PushUpdate) IsBranchCreation() bool {
	for _, c := range u.OldObjectID {
		if c != '0' {
			return false
		}
	}

	return true
}

// PushEvent is a push to a repository.
// It is not modified after it was created.
type PushEvent struct {
	Repository Repository
	RefUpdates []*PushUpdate
}

func (e *PushEvent) String() string {
	return fmt.Sprintf("push to %s (%d ref updates)", e.Repository.Name, len(e.RefUpdates))
}

// Ref is a git reference.
type Ref struct {
	Name     string `json:"name"`
	ObjectID string `json:"objectId"`
}

// Status is the lifecycle status of a pull request.
type Status string

const (
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
	StatusAbandoned Status = "abandoned"
)

// MergeStatus describes if a pull request can be merged.
type MergeStatus string

const (
	// MergeStatusQueued means the mergeability was not evaluated yet.
	MergeStatusQueued           MergeStatus = "queued"
	MergeStatusSucceeded        MergeStatus = "succeeded"
	MergeStatusConflicts        MergeStatus = "conflicts"
	MergeStatusFailure          MergeStatus = "failure"
	MergeStatusRejectedByPolicy MergeStatus = "rejectedByPolicy"
	MergeStatusNotSet           MergeStatus = "notSet"
)

// Commit is a reference to a commit.
type Commit struct {
	CommitID string `json:"commitId"`
}

// PullRequest is the state of a pull request as reported by the git hosting
// service.
type PullRequest struct {
	Repository            Repository  `json:"repository"`
	ID                    int         `json:"pullRequestId"`
	CodeReviewID          int         `json:"codeReviewId"`
	Status                Status      `json:"status"`
	MergeStatus           MergeStatus `json:"mergeStatus"`
	Title                 string      `json:"title"`
	SourceRefName         string      `json:"sourceRefName"`
	TargetRefName         string      `json:"targetRefName"`
	LastMergeSourceCommit *Commit     `json:"lastMergeSourceCommit"`
}

// LastSourceCommitID returns the id of the last merged source commit or an
// empty string when it is unknown.
func (p *PullRequest) LastSourceCommitID() string {
	if p.LastMergeSourceCommit == nil {
		return ""
	}

	return p.LastMergeSourceCommit.CommitID
}

func (p *PullRequest) LogFields() []zap.Field {
	return []zap.Field{
		logfields.PullRequest(p.ID),
		logfields.RepositoryID(p.Repository.ID),
		logfields.RepositoryURL(p.Repository.URL),
	}
}
