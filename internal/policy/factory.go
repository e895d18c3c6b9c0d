package policy

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/logfields"
)

// CacheKey identifies the policies of a repository.
type CacheKey struct {
	Organization string
	RepositoryID string
}

func (k CacheKey) String() string {
	return k.Organization + "/" + k.RepositoryID
}

// Store provides the stored policy configurations of a repository.
type Store interface {
	MergePolicies(ctx context.Context, organization, repositoryID string) ([]*Config, error)
}

// DefaultBuildTimeout is the maximum duration for retrieving the policy
// configurations of a repository and building its Runner.
const DefaultBuildTimeout = time.Minute

type buildEntry struct {
	done   chan struct{}
	result *BuildResult
	err    error
}

// Factory builds Runners from policy configurations and caches them per
// CacheKey.
// Cached Runners are not modified, to apply configuration changes the
// entry must be removed via Invalidate.
type Factory struct {
	logger       *zap.Logger
	monitor      PullRequestMonitor
	buildTimeout time.Duration

	lock    sync.Mutex
	entries map[CacheKey]*buildEntry
}

func NewFactory(mon PullRequestMonitor) *Factory {
	return &Factory{
		logger:       zap.L().Named(loggerName).Named("factory"),
		monitor:      mon,
		buildTimeout: DefaultBuildTimeout,
		entries:      map[CacheKey]*buildEntry{},
	}
}

// GetOrCreate returns the cached Runner for key.
// If none is cached, it is built from the configurations provided by store.
// Concurrent calls for the same key wait for the same build.
// When the build fails, the error is returned to all waiting callers and the
// result is not cached.
// The build does not use the cancellation of ctx, a caller whose ctx is done
// returns ctx.Err() while the build continues for the other callers.
func (f *Factory) GetOrCreate(ctx context.Context, key CacheKey, store Store) (Runner, error) {
	f.lock.Lock()
	entry, exist := f.entries[key]
	if !exist {
		entry = &buildEntry{done: make(chan struct{})}
		f.entries[key] = entry
	}
	f.lock.Unlock()

	if !exist {
		go f.buildEntry(context.WithoutCancel(ctx), key, store, entry)
	}

	select {
	case <-entry.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if entry.err != nil {
		return nil, entry.err
	}

	return entry.result.Runner(), nil
}

func (f *Factory) buildEntry(ctx context.Context, key CacheKey, store Store, entry *buildEntry) {
	ctx, cancel := context.WithTimeout(ctx, f.buildTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			entry.err = fmt.Errorf("building runner panicked: %v", r)
		}

		if entry.err != nil {
			f.lock.Lock()
			if f.entries[key] == entry {
				delete(f.entries, key)
			}
			f.lock.Unlock()
		}

		close(entry.done)
	}()

	entry.result, entry.err = f.Build(ctx, key, store)
}

// Invalidate removes the cached Runner for key.
func (f *Factory) Invalidate(key CacheKey) {
	f.lock.Lock()
	delete(f.entries, key)
	f.lock.Unlock()

	f.logger.Info(
		"cached policies invalidated",
		logfields.Event("policy_cache_invalidated"),
		logfields.Organization(key.Organization),
		logfields.RepositoryID(key.RepositoryID),
	)
}

// Build creates a Runner from the policy configurations for key, ordered by
// their creation date.
// Configurations with an unknown strategy are skipped. If any policy can not
// be configured, the automation for the whole repository is disabled.
// An error is only returned when the configurations can not be retrieved.
func (f *Factory) Build(ctx context.Context, key CacheKey, store Store) (*BuildResult, error) {
	logger := f.logger.With(
		logfields.Organization(key.Organization),
		logfields.RepositoryID(key.RepositoryID),
	)

	cfgs, err := store.MergePolicies(ctx, key.Organization, key.RepositoryID)
	if err != nil {
		return nil, fmt.Errorf("retrieving merge policies for %s failed: %w", key, err)
	}

	if len(cfgs) == 0 {
		logger.Debug("no policies configured", logfields.Event("policies_not_configured"))
		return disabledResult("no policies configured"), nil
	}

	sorted := make([]*Config, 0, len(cfgs))
	for _, cfg := range cfgs {
		if cfg != nil {
			sorted = append(sorted, cfg)
		}
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].CreateDate.Before(sorted[j].CreateDate)
	})

	policies := make([]Policy, 0, len(sorted))
	for _, cfg := range sorted {
		strategy, ok := ParseStrategy(cfg.Strategy)
		if !ok {
			logger.Debug(
				"skipping policy with unknown strategy",
				logfields.Event("policy_unknown_strategy"),
				logfields.Strategy(cfg.Strategy),
			)
			continue
		}

		p := f.newPolicy(strategy)
		if err := p.Configure(cfg); err != nil {
			logger.Warn(
				"configuring policy failed, disabling all policies of the repository",
				logfields.Event("policy_configuration_failed"),
				logfields.Strategy(cfg.Strategy),
				zap.Error(err),
			)

			return disabledResult(fmt.Sprintf("configuring %s policy failed: %s", strategy, err)), nil
		}

		policies = append(policies, p)
	}

	logger.Info(
		"policies configured",
		logfields.Event("policies_configured"),
		zap.Int("policy_count", len(policies)),
	)

	return &BuildResult{
		State:  BuildStateActive,
		runner: NewRunner(policies...),
	}, nil
}

func (f *Factory) newPolicy(strategy Strategy) Policy {
	switch strategy {
	case StrategyCascadingRelease:
		return NewCascadingReleasePolicy(f.monitor)
	case StrategySourceToTarget:
		return NewSourceToTargetPolicy(f.monitor)
	default:
		panic(fmt.Sprintf("unsupported strategy: %q", strategy))
	}
}
