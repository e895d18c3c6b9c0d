// Package policy evaluates merge policies for push events.
//
// A Policy decides on a branch update if a pull request should be created
// and between which branches. Created pull requests are handed over to a
// PullRequestMonitor that completes them when they become mergeable.
// The policies of a repository are executed by a Runner, Runners are built
// from stored configurations and cached by the Factory.
package policy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

const loggerName = "policy"

// PullRequestMonitor tracks created pull requests until they can be
// completed.
type PullRequestMonitor interface {
	Track(clt gitprovider.Client, pr *gitprovider.PullRequest)
}

// Policy is a merge policy variant.
// Configure must be called successfully before Handle is called.
type Policy interface {
	Name() string
	Configure(cfg *Config) error
	Handle(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent, upd *gitprovider.PushUpdate) error
}

// repositoryMatches returns true if the policy is not restricted to a
// repository or the event belongs to it.
func repositoryMatches(repositoryID string, ev *gitprovider.PushEvent) bool {
	return repositoryID == "" || repositoryID == ev.Repository.ID
}

// createPullRequestIfNotExist creates a pull request from sourceBranch to
// targetBranch and hands it to the monitor, if no open pull request for the
// branches exists.
func createPullRequestIfNotExist(
	ctx context.Context,
	logger *zap.Logger,
	clt gitprovider.Client,
	mon PullRequestMonitor,
	strategy Strategy,
	ev *gitprovider.PushEvent,
	sourceBranch, targetBranch string,
) error {
	logger = logger.With(
		logfields.SourceBranch(sourceBranch),
		logfields.TargetBranch(targetBranch),
	)

	openPRs, err := clt.GetOpenPullRequests(ctx, ev.Repository.URL, sourceBranch, targetBranch)
	if err != nil {
		return fmt.Errorf("retrieving open pull requests from %s to %s failed: %w", sourceBranch, targetBranch, err)
	}

	if len(openPRs) > 0 {
		logger.Debug(
			"skipping update, pull request is already open",
			logfields.Event("pull_request_already_open"),
			logfields.PullRequest(openPRs[0].ID),
		)
		return nil
	}

	logger.Info("creating pull request", logfields.Event("creating_pull_request"))

	pr, err := clt.CreatePullRequest(ctx, ev.Repository.URL, sourceBranch, targetBranch)
	if err != nil {
		return fmt.Errorf("creating pull request from %s to %s failed: %w", sourceBranch, targetBranch, err)
	}

	metrics.PullRequestCreatedInc(strategy)

	logger.Info(
		"created pull request",
		logfields.Event("pull_request_created"),
		logfields.PullRequest(pr.ID),
	)

	mon.Track(clt, pr)

	return nil
}
