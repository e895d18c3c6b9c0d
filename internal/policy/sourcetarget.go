package policy

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/boterr"
	"github.com/simplesurance/mergebot/internal/branch"
	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

// SourceToTargetPolicy merges a configured source branch into a configured
// target branch when the source branch was updated.
type SourceToTargetPolicy struct {
	logger  *zap.Logger
	monitor PullRequestMonitor

	repositoryID string
	sourceBranch string
	targetBranch string
}

func NewSourceToTargetPolicy(mon PullRequestMonitor) *SourceToTargetPolicy {
	return &SourceToTargetPolicy{
		logger:  zap.L().Named(loggerName).Named("source_to_target"),
		monitor: mon,
	}
}

func (p *SourceToTargetPolicy) Name() string {
	return StrategySourceToTarget.String()
}

func (p *SourceToTargetPolicy) Configure(cfg *Config) error {
	if cfg.Source == "" {
		return boterr.NewConfigError("source", errors.New("source branch must be set"))
	}

	if cfg.Target == "" {
		return boterr.NewConfigError("target", errors.New("target branch must be set"))
	}

	p.repositoryID = cfg.RepositoryID
	p.sourceBranch = branch.Canonize(cfg.Source)
	p.targetBranch = branch.Canonize(cfg.Target)

	return nil
}

func (p *SourceToTargetPolicy) Handle(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent, upd *gitprovider.PushUpdate) error {
	logger := p.logger.With(ev.Repository.LogFields()...).With(logfields.Branch(upd.Name))

	if !repositoryMatches(p.repositoryID, ev) {
		logger.Debug(
			"skipping update, repository does not match policy",
			logfields.Event("policy_repository_mismatch"),
		)
		return nil
	}

	if !branch.IsEqual(upd.Name, p.sourceBranch) {
		logger.Debug(
			"skipping update, branch is not the source branch",
			logfields.Event("policy_not_source_branch"),
			logfields.SourceBranch(p.sourceBranch),
		)
		return nil
	}

	return createPullRequestIfNotExist(
		ctx, logger, clt, p.monitor, StrategySourceToTarget, ev,
		p.sourceBranch, p.targetBranch,
	)
}
