package policy

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/boterr"
	"github.com/simplesurance/mergebot/internal/branch"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

// CascadingReleasePolicy merges an updated release branch into its
// successor. Release branches are ordered by their version, the successor
// of the highest release branch is the default branch.
type CascadingReleasePolicy struct {
	logger  *zap.Logger
	monitor PullRequestMonitor

	repositoryID  string
	defaultBranch string
	comparator    *branch.Comparator
}

func NewCascadingReleasePolicy(mon PullRequestMonitor) *CascadingReleasePolicy {
	return &CascadingReleasePolicy{
		logger:  zap.L().Named(loggerName).Named("cascading_release"),
		monitor: mon,
	}
}

func (p *CascadingReleasePolicy) Name() string {
	return StrategyCascadingRelease.String()
}

// Configure sets the default branch to cfg.Target.
func (p *CascadingReleasePolicy) Configure(cfg *Config) error {
	if cfg.Target == "" {
		return boterr.NewConfigError("target", errors.New("default branch must be set"))
	}

	p.defaultBranch = branch.Canonize(cfg.Target)
	p.comparator = branch.NewComparator(p.defaultBranch)
	p.repositoryID = cfg.RepositoryID

	return nil
}

func (p *CascadingReleasePolicy) Handle(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent, upd *gitprovider.PushUpdate) error {
	logger := p.logger.With(ev.Repository.LogFields()...).With(logfields.Branch(upd.Name))

	if !repositoryMatches(p.repositoryID, ev) {
		logger.Debug(
			"skipping update, repository does not match policy",
			logfields.Event("policy_repository_mismatch"),
		)
		return nil
	}

	if !branch.IsRelease(upd.Name) {
		logger.Debug(
			"skipping update, branch is not a release branch",
			logfields.Event("policy_not_release_branch"),
		)
		return nil
	}

	refs, err := clt.GetRefs(ctx, ev.Repository.URL)
	if err != nil {
		return fmt.Errorf("retrieving refs failed: %w", err)
	}

	branches := make([]*branch.Branch, 0, len(refs))
	for _, ref := range refs {
		if ref == nil || !branch.IsReleaseOrDefault(ref.Name, p.defaultBranch) {
			continue
		}

		branches = append(branches, branch.New(*ref))
	}

	p.comparator.Sort(branches)

	idx := -1
	for i, b := range branches {
		if branch.IsEqual(b.Name(), upd.Name) {
			idx = i
			break
		}
	}

	if idx == -1 {
		logger.Debug(
			"skipping update, branch does not exist in the repository",
			logfields.Event("policy_branch_not_found"),
		)
		return nil
	}

	if idx == len(branches)-1 {
		logger.Debug(
			"skipping update, no target branch found",
			logfields.Event("policy_target_branch_not_found"),
		)
		return nil
	}

	return createPullRequestIfNotExist(
		ctx, logger, clt, p.monitor, StrategyCascadingRelease, ev,
		branches[idx].Name(), branches[idx+1].Name(),
	)
}
