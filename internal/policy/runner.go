package policy

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

// Runner executes the policies of a repository for a push event.
type Runner interface {
	Run(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent) error
}

// PolicyRunner runs policies serially in the order they were passed to
// NewRunner.
// Running them concurrently could create duplicate pull requests, the
// open-pull-request check and the creation are not atomic.
type PolicyRunner struct {
	logger   *zap.Logger
	policies []Policy
}

func NewRunner(policies ...Policy) *PolicyRunner {
	return &PolicyRunner{
		logger:   zap.L().Named(loggerName).Named("runner"),
		policies: policies,
	}
}

// Run invokes for every policy the handler for each ref update of ev.
// Updates that created a branch are skipped.
// The first error returned by a policy aborts the run.
func (r *PolicyRunner) Run(ctx context.Context, clt gitprovider.Client, ev *gitprovider.PushEvent) error {
	logger := r.logger.With(ev.Repository.LogFields()...)

	logger.Info(
		"running policies",
		logfields.Event("running_policies"),
		zap.Int("policy_count", len(r.policies)),
		zap.Int("ref_update_count", len(ev.RefUpdates)),
	)

	for _, p := range r.policies {
		logger.Debug("running policy", logfields.Event("running_policy"), logfields.Policy(p.Name()))

		for _, upd := range ev.RefUpdates {
			if upd.IsBranchCreation() {
				logger.Info(
					"skipping update, branch was created",
					logfields.Event("policy_skipping_new_branch"),
					logfields.Branch(upd.Name),
				)
				continue
			}

			if err := p.Handle(ctx, clt, ev, upd); err != nil {
				return fmt.Errorf("policy %s failed to handle update of %s: %w", p.Name(), upd.Name, err)
			}
		}
	}

	return nil
}

type noopRunner struct{}

func (*noopRunner) Run(context.Context, gitprovider.Client, *gitprovider.PushEvent) error {
	return nil
}

// Noop is a Runner that does nothing.
var Noop Runner = &noopRunner{}
