package gitprovider

import "context"

// Client is an API client for a git hosting service.
// All methods expect the API url of the repository as first argument after
// the context.
// Branch names are passed and returned in their canonical form
// (refs/heads/<name>).
type Client interface {
	GetRefs(ctx context.Context, repoURL string) ([]*Ref, error)
	GetOpenPullRequests(ctx context.Context, repoURL, sourceBranch, targetBranch string) ([]*PullRequest, error)
	CreatePullRequest(ctx context.Context, repoURL, sourceBranch, targetBranch string) (*PullRequest, error)
	GetPullRequest(ctx context.Context, repoURL string, id int) (*PullRequest, error)
	CompletePullRequest(ctx context.Context, repoURL string, id int, lastMergeSourceCommit string) (*PullRequest, error)
}

//go:generate mockgen -package mocks -destination mocks/mock_client.go github.com/simplesurance/mergebot/internal/gitprovider Client
