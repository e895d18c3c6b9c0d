// Package prmonitor completes pull requests when the git hosting service
// reports them as mergeable.
//
// Tracked pull requests are polled periodically. A pull request that is
// not evaluated yet is requeued and polled again on the next tick, all
// other outcomes remove it from the queue. The queue is not persisted,
// tracked pull requests are lost when the process terminates.
package prmonitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/simplesurance/mergebot/internal/gitprovider"
	"github.com/simplesurance/mergebot/internal/logfields"
)

const loggerName = "prmonitor"

const (
	DefaultInitialDelay = time.Minute
	DefaultInterval     = 30 * time.Second
	DefaultItemTimeout  = time.Minute
)

// Item is a pull request that is tracked by the monitor, together with the
// client of the hosting service it belongs to.
type Item struct {
	Client      gitprovider.Client
	PullRequest *gitprovider.PullRequest
}

type result int

const (
	resultCompleted result = iota
	resultRequeued
	resultInactive
	resultNotMergeable
	resultFailed
)

func (r result) String() string {
	switch r {
	case resultCompleted:
		return "completed"
	case resultRequeued:
		return "requeued"
	case resultInactive:
		return "inactive"
	case resultNotMergeable:
		return "not_mergeable"
	case resultFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Monitor polls tracked pull requests and completes them when they are
// mergeable.
type Monitor struct {
	logger *zap.Logger

	initialDelay    time.Duration
	interval        time.Duration
	itemTimeout     time.Duration
	maxItemsPerTick int

	queue *queue
	// tickSem allows only a single tick to run at a time.
	tickSem chan struct{}

	lock   sync.Mutex
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type Option func(*Monitor)

// WithInitialDelay sets the duration after Start when the first tick runs.
func WithInitialDelay(d time.Duration) Option {
	return func(m *Monitor) {
		m.initialDelay = d
	}
}

// WithInterval sets the duration between ticks.
func WithInterval(d time.Duration) Option {
	return func(m *Monitor) {
		m.interval = d
	}
}

// WithMaxItemsPerTick limits the number of items that are processed per
// tick. The remaining items are processed on following ticks. If n is 0,
// all queued items are processed.
func WithMaxItemsPerTick(n int) Option {
	return func(m *Monitor) {
		m.maxItemsPerTick = n
	}
}

// WithItemTimeout sets the timeout for processing a single item.
func WithItemTimeout(d time.Duration) Option {
	return func(m *Monitor) {
		m.itemTimeout = d
	}
}

func New(opts ...Option) *Monitor {
	m := Monitor{
		logger:       zap.L().Named(loggerName),
		initialDelay: DefaultInitialDelay,
		interval:     DefaultInterval,
		itemTimeout:  DefaultItemTimeout,
		queue:        newQueue(),
		tickSem:      make(chan struct{}, 1),
	}

	for _, opt := range opts {
		opt(&m)
	}

	return &m
}

// Track enqueues a pull request for monitoring.
// If the pull request is already tracked, the call is a noop.
func (m *Monitor) Track(clt gitprovider.Client, pr *gitprovider.PullRequest) {
	logger := m.logger.With(pr.LogFields()...)

	if !m.queue.Enqueue(&Item{Client: clt, PullRequest: pr}) {
		logger.Debug("pull request is already monitored", logfields.Event("monitor_pull_request_already_tracked"))
		return
	}

	logger.Info("monitoring pull request", logfields.Event("monitor_pull_request_tracked"))
}

// Len returns the number of tracked pull requests.
func (m *Monitor) Len() int {
	return m.queue.Len()
}

// Items returns the tracked pull requests in queue order.
func (m *Monitor) Items() []*Item {
	return m.queue.AsSlice()
}

// Start starts the periodic processing of the queue in a go-routine.
func (m *Monitor) Start() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if m.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	m.wg.Add(1)
	go m.run(ctx)

	m.logger.Info(
		"monitor started",
		logfields.Event("monitor_started"),
		zap.Duration("initial_delay", m.initialDelay),
		zap.Duration("interval", m.interval),
	)
}

// Stop stops the periodic processing and waits until a running tick
// terminated. Queued items remain in the queue.
func (m *Monitor) Stop() {
	m.lock.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.lock.Unlock()

	if cancel == nil {
		return
	}

	m.logger.Debug("monitor terminating", logfields.Event("monitor_terminating"))

	cancel()
	m.wg.Wait()

	m.logger.Debug(
		"monitor terminated",
		logfields.Event("monitor_terminated"),
		zap.Int("dropped_items", m.queue.Len()),
	)
}

func (m *Monitor) run(ctx context.Context) {
	defer m.wg.Done()

	timer := time.NewTimer(m.initialDelay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return
	case <-timer.C:
	}

	m.spawnTick(ctx)

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.spawnTick(ctx)
		}
	}
}

func (m *Monitor) spawnTick(ctx context.Context) {
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.tick(ctx)
	}()
}

// tick processes the items that are queued when it starts.
// If another tick is still running, it returns immediately.
func (m *Monitor) tick(ctx context.Context) {
	select {
	case m.tickSem <- struct{}{}:
	default:
		metrics.SkippedTicksInc()
		m.logger.Debug(
			"skipping tick, previous tick is still running",
			logfields.Event("monitor_tick_skipped"),
		)
		return
	}
	defer func() { <-m.tickSem }()

	cnt := m.queue.Len()
	if m.maxItemsPerTick > 0 && cnt > m.maxItemsPerTick {
		cnt = m.maxItemsPerTick
	}

	for i := 0; i < cnt; i++ {
		if ctx.Err() != nil {
			return
		}

		item, ok := m.queue.Dequeue()
		if !ok {
			return
		}

		res := m.processItem(ctx, item)
		metrics.ProcessedInc(res)

		if res == resultRequeued {
			m.queue.Enqueue(item)
		}
	}
}

func (m *Monitor) processItem(ctx context.Context, item *Item) (res result) {
	logger := m.logger.With(item.PullRequest.LogFields()...)

	defer func() {
		if r := recover(); r != nil {
			logger.Error(
				"processing monitored pull request panicked, removed it from queue",
				logfields.Event("monitor_processing_panicked"),
				zap.String("panic", fmt.Sprint(r)),
				zap.Stack("stacktrace"),
			)
			res = resultFailed
		}
	}()

	if m.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.itemTimeout)
		defer cancel()
	}

	res, err := m.evaluate(ctx, logger, item)
	if err != nil {
		logger.Error(
			"processing monitored pull request failed, removed it from queue",
			logfields.Event("monitor_processing_failed"),
			zap.Error(err),
		)
		return resultFailed
	}

	return res
}

func (m *Monitor) evaluate(ctx context.Context, logger *zap.Logger, item *Item) (result, error) {
	repoURL := item.PullRequest.Repository.URL

	pr, err := item.Client.GetPullRequest(ctx, repoURL, item.PullRequest.ID)
	if err != nil {
		return resultFailed, fmt.Errorf("retrieving pull request failed: %w", err)
	}

	logger = logger.With(
		logfields.PullRequestStatus(string(pr.Status)),
		logfields.MergeStatus(string(pr.MergeStatus)),
	)

	if pr.Status != gitprovider.StatusActive {
		logger.Info(
			"pull request is not active anymore, removed it from queue",
			logfields.Event("monitor_pull_request_inactive"),
		)
		return resultInactive, nil
	}

	switch pr.MergeStatus {
	case gitprovider.MergeStatusQueued:
		logger.Debug(
			"merge status of pull request not evaluated yet, requeued",
			logfields.Event("monitor_pull_request_requeued"),
		)
		return resultRequeued, nil

	case gitprovider.MergeStatusSucceeded:
		commit := pr.LastSourceCommitID()
		logger = logger.With(logfields.Commit(commit))

		if _, err := item.Client.CompletePullRequest(ctx, repoURL, item.PullRequest.ID, commit); err != nil {
			return resultFailed, fmt.Errorf("completing pull request failed: %w", err)
		}

		logger.Info("pull request completed", logfields.Event("monitor_pull_request_completed"))
		return resultCompleted, nil

	default:
		logger.Warn(
			"pull request can not be merged automatically, removed it from queue",
			logfields.Event("pull_request_not_mergeable"),
		)
		return resultNotMergeable, nil
	}
}
