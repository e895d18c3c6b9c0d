package gitprovider

import (
	"context"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

// DryClient is a client that does not do any changes at the git hosting
// service.
// All operations that could cause a change are simulated and always succeed.
// All other operations are forwarded to the wrapped Client.
type DryClient struct {
	clt    Client
	logger *zap.Logger
}

func NewDryClient(clt Client, logger *zap.Logger) *DryClient {
	return &DryClient{
		clt:    clt,
		logger: logger.Named("dry_client"),
	}
}

func (c *DryClient) GetRefs(ctx context.Context, repoURL string) ([]*Ref, error) {
	return c.clt.GetRefs(ctx, repoURL)
}

func (c *DryClient) GetOpenPullRequests(ctx context.Context, repoURL, sourceBranch, targetBranch string) ([]*PullRequest, error) {
	return c.clt.GetOpenPullRequests(ctx, repoURL, sourceBranch, targetBranch)
}

// CreatePullRequest returns a pull request with id 0 in abandoned state,
// no pull request is created.
func (c *DryClient) CreatePullRequest(_ context.Context, repoURL, sourceBranch, targetBranch string) (*PullRequest, error) {
	c.logger.Info(
		"simulated creating pull request, no pull request created",
		logfields.Event("dry_run_pull_request_created"),
		logfields.RepositoryURL(repoURL),
		logfields.SourceBranch(sourceBranch),
		logfields.TargetBranch(targetBranch),
	)

	return &PullRequest{
		Repository:    Repository{URL: repoURL},
		Status:        StatusAbandoned,
		MergeStatus:   MergeStatusNotSet,
		SourceRefName: sourceBranch,
		TargetRefName: targetBranch,
	}, nil
}

// GetPullRequest forwards the call to the wrapped client, except for
// pull requests with id 0 that were simulated by CreatePullRequest.
func (c *DryClient) GetPullRequest(ctx context.Context, repoURL string, id int) (*PullRequest, error) {
	if id == 0 {
		return &PullRequest{
			Repository:  Repository{URL: repoURL},
			Status:      StatusAbandoned,
			MergeStatus: MergeStatusNotSet,
		}, nil
	}

	return c.clt.GetPullRequest(ctx, repoURL, id)
}

func (c *DryClient) CompletePullRequest(_ context.Context, repoURL string, id int, lastMergeSourceCommit string) (*PullRequest, error) {
	c.logger.Info(
		"simulated completing pull request, pull request unchanged",
		logfields.Event("dry_run_pull_request_completed"),
		logfields.RepositoryURL(repoURL),
		logfields.PullRequest(id),
		logfields.Commit(lastMergeSourceCommit),
	)

	return &PullRequest{
		Repository:            Repository{URL: repoURL},
		ID:                    id,
		Status:                StatusCompleted,
		MergeStatus:           MergeStatusSucceeded,
		LastMergeSourceCommit: &Commit{CommitID: lastMergeSourceCommit},
	}, nil
}
