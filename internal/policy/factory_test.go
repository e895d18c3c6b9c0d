package policy

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

var testKey = CacheKey{Organization: "org", RepositoryID: repoID}

func TestGetOrCreateReturnsCachedRunner(t *testing.T) {
	initLogger(t)

	var calls atomic.Int32
	store := storeFunc(func(context.Context, string, string) ([]*Config, error) {
		calls.Add(1)
		return []*Config{{Strategy: string(StrategyCascadingRelease), Target: "main"}}, nil
	})

	f := NewFactory(&trackingMonitor{})

	r1, err := f.GetOrCreate(context.Background(), testKey, store)
	require.NoError(t, err)
	r2, err := f.GetOrCreate(context.Background(), CacheKey{Organization: "org", RepositoryID: repoID}, store)
	require.NoError(t, err)

	assert.Same(t, r1, r2)
	assert.EqualValues(t, 1, calls.Load())

	f.Invalidate(CacheKey{Organization: "org", RepositoryID: repoID})

	r3, err := f.GetOrCreate(context.Background(), testKey, store)
	require.NoError(t, err)
	assert.NotSame(t, r1, r3)
	assert.EqualValues(t, 2, calls.Load())
}

func TestGetOrCreateDifferentKeys(t *testing.T) {
	initLogger(t)

	store := staticStore(&Config{Strategy: string(StrategySourceToTarget), Source: "a", Target: "b"})
	f := NewFactory(&trackingMonitor{})

	r1, err := f.GetOrCreate(context.Background(), CacheKey{Organization: "org", RepositoryID: "1"}, store)
	require.NoError(t, err)
	r2, err := f.GetOrCreate(context.Background(), CacheKey{Organization: "org", RepositoryID: "2"}, store)
	require.NoError(t, err)

	assert.NotSame(t, r1, r2)
}

func TestBuildWithoutPoliciesIsDisabled(t *testing.T) {
	initLogger(t)

	f := NewFactory(&trackingMonitor{})

	res, err := f.Build(context.Background(), testKey, staticStore())
	require.NoError(t, err)
	assert.Equal(t, BuildStateDisabled, res.State)
	assert.NotEmpty(t, res.Reason)
	assert.Same(t, Noop, res.Runner())

	r, err := f.GetOrCreate(context.Background(), testKey, staticStore())
	require.NoError(t, err)
	assert.Same(t, Noop, r)
}

func TestBuildDisablesRepositoryOnConfigurationError(t *testing.T) {
	initLogger(t)

	f := NewFactory(&trackingMonitor{})
	store := staticStore(
		&Config{Strategy: string(StrategySourceToTarget), Source: "develop", Target: "main"},
		&Config{Strategy: string(StrategyCascadingRelease)},
	)

	res, err := f.Build(context.Background(), testKey, store)
	require.NoError(t, err)
	assert.Equal(t, BuildStateDisabled, res.State)
	assert.Contains(t, res.Reason, string(StrategyCascadingRelease))
	assert.Same(t, Noop, res.Runner())
}

func TestBuildOrdersPoliciesByCreateDate(t *testing.T) {
	initLogger(t)

	now := time.Now()
	f := NewFactory(&trackingMonitor{})
	store := staticStore(
		&Config{CreateDate: now, Strategy: "source-to-target", Source: "develop", Target: "main"},
		&Config{CreateDate: now.Add(-time.Hour), Strategy: "unknown"},
		&Config{CreateDate: now.Add(-time.Minute), Strategy: "cascading-release", Target: "main"},
	)

	res, err := f.Build(context.Background(), testKey, store)
	require.NoError(t, err)
	require.Equal(t, BuildStateActive, res.State)

	runner, ok := res.Runner().(*PolicyRunner)
	require.True(t, ok)
	require.Len(t, runner.policies, 2)
	assert.Equal(t, StrategyCascadingRelease.String(), runner.policies[0].Name())
	assert.Equal(t, StrategySourceToTarget.String(), runner.policies[1].Name())
}

func TestGetOrCreateStoreErrorIsNotCached(t *testing.T) {
	initLogger(t)

	f := NewFactory(&trackingMonitor{})
	failing := storeFunc(func(context.Context, string, string) ([]*Config, error) {
		return nil, errors.New("service unavailable")
	})

	_, err := f.GetOrCreate(context.Background(), testKey, failing)
	require.Error(t, err)

	r, err := f.GetOrCreate(context.Background(), testKey, staticStore(&Config{Strategy: string(StrategyCascadingRelease), Target: "main"}))
	require.NoError(t, err)
	assert.NotSame(t, Noop, r)
}

func TestGetOrCreateBuildsOnceForConcurrentCallers(t *testing.T) {
	initLogger(t)

	const callers = 10

	var calls atomic.Int32
	release := make(chan struct{})
	store := storeFunc(func(context.Context, string, string) ([]*Config, error) {
		calls.Add(1)
		<-release
		return []*Config{{Strategy: string(StrategyCascadingRelease), Target: "main"}}, nil
	})

	f := NewFactory(&trackingMonitor{})

	var wg sync.WaitGroup
	runners := make([]Runner, callers)
	errs := make([]error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			runners[i], errs[i] = f.GetOrCreate(context.Background(), testKey, store)
		}(i)
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 10*time.Millisecond)
	close(release)
	wg.Wait()

	assert.EqualValues(t, 1, calls.Load())
	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, runners[0], runners[i])
	}
}

func TestGetOrCreateCancelledCallerDoesNotFailWaiters(t *testing.T) {
	initLogger(t)

	entered := make(chan struct{})
	release := make(chan struct{})
	store := storeFunc(func(ctx context.Context, _, _ string) ([]*Config, error) {
		close(entered)

		select {
		case <-release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}

		return []*Config{{Strategy: string(StrategyCascadingRelease), Target: "main"}}, nil
	})

	f := NewFactory(&trackingMonitor{})

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := f.GetOrCreate(ctx, testKey, store)
		firstErr <- err
	}()

	<-entered

	type result struct {
		runner Runner
		err    error
	}
	second := make(chan result, 1)
	go func() {
		r, err := f.GetOrCreate(context.Background(), testKey, store)
		second <- result{runner: r, err: err}
	}()

	cancel()
	select {
	case err := <-firstErr:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled caller did not return")
	}

	close(release)

	select {
	case res := <-second:
		require.NoError(t, res.err)
		assert.NotNil(t, res.runner)
	case <-time.After(5 * time.Second):
		t.Fatal("waiting caller did not return")
	}

	r, err := f.GetOrCreate(context.Background(), testKey, store)
	require.NoError(t, err)
	assert.NotNil(t, r)
}

func TestGetOrCreateBuildTimeout(t *testing.T) {
	initLogger(t)

	store := storeFunc(func(ctx context.Context, _, _ string) ([]*Config, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	f := NewFactory(&trackingMonitor{})
	f.buildTimeout = 10 * time.Millisecond

	_, err := f.GetOrCreate(context.Background(), testKey, store)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvalidateLogsOnce(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	t.Cleanup(zap.ReplaceGlobals(zap.New(core)))

	f := NewFactory(&trackingMonitor{})
	f.Invalidate(testKey)

	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "policy_cache_invalidated", entries[0].ContextMap()["event"])
	assert.Equal(t, "org", entries[0].ContextMap()["git.organization"])
}

func TestParseStrategy(t *testing.T) {
	s, ok := ParseStrategy("ReleaseBranchCascadingPolicy")
	assert.True(t, ok)
	assert.Equal(t, StrategyCascadingRelease, s)

	s, ok = ParseStrategy("source-to-target")
	assert.True(t, ok)
	assert.Equal(t, StrategySourceToTarget, s)

	_, ok = ParseStrategy("merge-everything")
	assert.False(t, ok)
}
