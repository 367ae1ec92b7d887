package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

type mockJob struct {
	mu     sync.Mutex
	closed bool
}

func (j *mockJob) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.closed = true
	return nil
}

func (j *mockJob) isClosed() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.closed
}

// mockScheduler records the scheduled callback so tests can fire it by hand
type mockScheduler struct {
	mu       sync.Mutex
	jobID    string
	interval time.Duration
	callback func()
	job      *mockJob
	err      error
}

func (s *mockScheduler) Schedule(jobID string, interval time.Duration, callback func()) (Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	s.jobID = jobID
	s.interval = interval
	s.callback = callback
	s.job = &mockJob{}
	return s.job, nil
}

func (s *mockScheduler) fire() {
	s.mu.Lock()
	cb := s.callback
	s.mu.Unlock()
	cb()
}

type publishRecorder struct {
	mu        sync.Mutex
	snapshots []*backend.Snapshot
}

func (r *publishRecorder) record(_ string, s *backend.Snapshot) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.snapshots = append(r.snapshots, s)
}

func (r *publishRecorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.snapshots)
}

type pollerFixture struct {
	poller    *Poller
	fetcher   *StaticFetcher
	resolver  *StaticResolver
	state     *StateStore
	scheduler *mockScheduler
	published *publishRecorder
}

func newPollerFixture(t *testing.T) *pollerFixture {
	t.Helper()
	store, _ := newTestKV(t)
	logger := zap.NewNop().Sugar()

	f := &pollerFixture{
		fetcher:   &StaticFetcher{},
		resolver:  &StaticResolver{URLs: map[string]string{}},
		state:     NewStateStore(store, "backend-1"),
		scheduler: &mockScheduler{},
		published: &publishRecorder{},
	}
	f.poller = NewPoller(
		logger,
		"backend-1",
		"Detector 2",
		30*time.Second,
		f.fetcher,
		NewEnricher(f.resolver, "Detector 2", time.UTC, logger),
		nil,
		f.state,
		f.published.record,
	)
	f.poller.SetScheduler(f.scheduler)
	return f
}

func (f *pollerFixture) records(n int) []Record {
	records := make([]Record, n)
	for i := range records {
		id := fmt.Sprintf("a-%d", i)
		f.resolver.URLs[id] = "https://example/" + id
		records[i] = Record{
			AlertID:   id,
			Latitude:  17.5,
			Longitude: 78.4,
			Timestamp: time.Date(2024, 3, 1, i, 0, 0, 0, time.UTC).Format(time.RFC3339),
		}
	}
	return records
}

func TestPoller_InitialSnapshot(t *testing.T) {
	f := newPollerFixture(t)
	snap := f.poller.Snapshot()
	require.NotNil(t, snap)
	assert.Empty(t, snap.Alerts)
	assert.False(t, snap.NoAlerts)
	assert.Equal(t, StateIdle, f.poller.State())
}

func TestPoller_Cycle_Success(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(3), nil)

	require.NoError(t, f.poller.Cycle(context.Background()))

	snap := f.poller.Snapshot()
	assert.Equal(t, []string{"a-2", "a-1", "a-0"}, ids(snap.Alerts))
	assert.Empty(t, snap.Err)
	assert.False(t, snap.NoAlerts)
	assert.Equal(t, int64(1), snap.Cycle)
	assert.Equal(t, StateReady, f.poller.State())
	assert.Equal(t, 1, f.published.count())

	ctx := context.Background()
	lastSuccess, err := f.state.GetLastSuccess(ctx)
	require.NoError(t, err)
	assert.False(t, lastSuccess.IsZero())
	failures, err := f.state.GetFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, failures)
}

// flakyResolver fails every resolution after the first for the same ID.
type flakyResolver struct {
	mu    sync.Mutex
	calls map[string]int
}

func (r *flakyResolver) ResolveImage(_ context.Context, alertID string) (Image, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls[alertID]++
	if r.calls[alertID] > 1 {
		return Image{}, &backend.ResolutionError{AlertID: alertID, Err: errors.New("throttled")}
	}
	return Image{URL: "https://example/" + alertID}, nil
}

func TestPoller_Cycle_DuplicatesResolvedOnce(t *testing.T) {
	f := newPollerFixture(t)
	resolver := &flakyResolver{calls: map[string]int{}}
	f.poller.enricher = NewEnricher(resolver, "Detector 2", time.UTC, zap.NewNop().Sugar())

	f.fetcher.Set([]Record{
		{AlertID: "a", CameraID: "cam_1", Timestamp: "2024-03-01T01:00:00Z"},
		{AlertID: "b", CameraID: "cam_3", Timestamp: "2024-03-01T02:00:00Z"},
		{AlertID: "a", CameraID: "cam_2", Timestamp: "2024-03-01T03:00:00Z"},
	}, nil)

	require.NoError(t, f.poller.Cycle(context.Background()))

	assert.Equal(t, map[string]int{"a": 1, "b": 1}, resolver.calls)
	snap := f.poller.Snapshot()
	require.Equal(t, []string{"a", "b"}, ids(snap.Alerts))
	assert.Equal(t, "cam_2", snap.Alerts[0].CameraID)
}

func TestPoller_Cycle_EmptyScan(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set([]Record{}, nil)

	require.NoError(t, f.poller.Cycle(context.Background()))

	snap := f.poller.Snapshot()
	assert.Empty(t, snap.Alerts)
	assert.True(t, snap.NoAlerts)
	assert.Empty(t, snap.Err)
}

func TestPoller_Cycle_AllResolutionsFail(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set([]Record{{AlertID: "missing-image"}}, nil)

	require.NoError(t, f.poller.Cycle(context.Background()))

	snap := f.poller.Snapshot()
	assert.Empty(t, snap.Alerts)
	assert.False(t, snap.NoAlerts, "records existed even though none resolved")
	assert.Empty(t, snap.Err)
}

func TestPoller_Cycle_StoreUnavailableKeepsPreviousAlerts(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(3), nil)
	require.NoError(t, f.poller.Cycle(context.Background()))
	before := f.poller.Snapshot()

	storeErr := fmt.Errorf("%w: scan: connection refused", backend.ErrStoreUnavailable)
	f.fetcher.Set(nil, storeErr)
	err := f.poller.Cycle(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, backend.ErrStoreUnavailable)

	after := f.poller.Snapshot()
	assert.Equal(t, before.Alerts, after.Alerts)
	assert.Len(t, after.Alerts, 3)
	assert.Equal(t, FetchFailedMessage, after.Err)
	assert.Equal(t, int64(2), after.Cycle)
	assert.Equal(t, StateReady, f.poller.State())

	ctx := context.Background()
	failures, err := f.state.GetFailures(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, failures)
	lastError, err := f.state.GetLastError(ctx)
	require.NoError(t, err)
	assert.Contains(t, lastError, "connection refused")

	t.Run("failures keep counting without disabling", func(t *testing.T) {
		for i := 0; i < 5; i++ {
			_ = f.poller.Cycle(ctx)
		}
		failures, err := f.state.GetFailures(ctx)
		require.NoError(t, err)
		assert.Equal(t, 6, failures)
		assert.Len(t, f.poller.Snapshot().Alerts, 3)
	})

	t.Run("next success clears the error", func(t *testing.T) {
		f.fetcher.Set(f.records(1), nil)
		require.NoError(t, f.poller.Cycle(ctx))

		snap := f.poller.Snapshot()
		assert.Empty(t, snap.Err)
		assert.Len(t, snap.Alerts, 1)

		failures, err := f.state.GetFailures(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, failures)
		lastError, err := f.state.GetLastError(ctx)
		require.NoError(t, err)
		assert.Empty(t, lastError)
	})
}

func TestPoller_Cycle_CanceledContextPublishesNothing(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(nil, errors.New("context canceled"))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.poller.Cycle(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, f.published.count())
	assert.Empty(t, f.poller.Snapshot().Err)
}

func TestPoller_SnapshotsAreNotMutated(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(2), nil)
	require.NoError(t, f.poller.Cycle(context.Background()))
	first := f.poller.Snapshot()
	firstIDs := ids(first.Alerts)

	f.fetcher.Set(f.records(4), nil)
	require.NoError(t, f.poller.Cycle(context.Background()))

	assert.Equal(t, firstIDs, ids(first.Alerts))
	assert.Len(t, f.poller.Snapshot().Alerts, 4)
}

func TestPoller_StartStop(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(1), nil)

	require.NoError(t, f.poller.Start())
	assert.Equal(t, "alert_poll_backend-1", f.scheduler.jobID)
	assert.Equal(t, 30*time.Second, f.scheduler.interval)

	assert.ErrorContains(t, f.poller.Start(), "already running")

	f.scheduler.fire()
	assert.Equal(t, 1, f.fetcher.CallCount())

	require.NoError(t, f.poller.Stop())
	assert.True(t, f.scheduler.job.isClosed())

	f.scheduler.fire()
	assert.Equal(t, 1, f.fetcher.CallCount(), "no cycles after stop")

	require.NoError(t, f.poller.Stop(), "stop is idempotent")
}

// blockingFetcher holds its first fetch until released.
type blockingFetcher struct {
	records []Record
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (f *blockingFetcher) FetchAll(context.Context) ([]Record, error) {
	f.once.Do(func() {
		close(f.started)
		<-f.release
	})
	return f.records, nil
}

func TestPoller_StopWaitsForFirstRun(t *testing.T) {
	f := newPollerFixture(t)
	fetcher := &blockingFetcher{
		records: f.records(2),
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	f.poller.fetcher = fetcher
	f.poller.SetScheduler(NewCronJobScheduler(zap.NewNop().Sugar()))

	require.NoError(t, f.poller.Start())
	<-fetcher.started

	stopped := make(chan struct{})
	go func() {
		_ = f.poller.Stop()
		close(stopped)
	}()

	select {
	case <-stopped:
		t.Fatal("Stop returned while the first cycle was running")
	case <-time.After(100 * time.Millisecond):
	}

	close(fetcher.release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not return")
	}

	published := f.published.count()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, published, f.published.count(), "nothing is published after Stop returns")
	assert.Equal(t, 0, published, "a canceled cycle does not publish")
}

func TestPoller_StartScheduleFailure(t *testing.T) {
	f := newPollerFixture(t)
	f.scheduler.err = errors.New("cron unavailable")

	assert.ErrorContains(t, f.poller.Start(), "cron unavailable")
	assert.NoError(t, f.poller.Stop())
}

func TestPoller_RequestRefresh(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(1), nil)

	require.NoError(t, f.poller.Start())
	defer func() { _ = f.poller.Stop() }()

	f.poller.RequestRefresh()
	require.Eventually(t, func() bool {
		return f.fetcher.CallCount() >= 1
	}, time.Second, 5*time.Millisecond)

	t.Run("pending requests coalesce", func(t *testing.T) {
		f.poller.cycleMu.Lock()
		before := f.fetcher.CallCount()
		for i := 0; i < 10; i++ {
			f.poller.RequestRefresh()
		}
		f.poller.cycleMu.Unlock()

		require.Eventually(t, func() bool {
			return f.fetcher.CallCount() > before
		}, time.Second, 5*time.Millisecond)
		time.Sleep(50 * time.Millisecond)
		assert.LessOrEqual(t, f.fetcher.CallCount()-before, 2)
	})
}

func TestPoller_ConcurrentReaders(t *testing.T) {
	f := newPollerFixture(t)
	f.fetcher.Set(f.records(5), nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for ctx.Err() == nil {
				snap := f.poller.Snapshot()
				n := len(snap.Alerts)
				assert.True(t, n == 0 || n == 5, "readers never see partial results")
			}
		}()
	}

	for i := 0; i < 10; i++ {
		require.NoError(t, f.poller.Cycle(context.Background()))
	}
	cancel()
	wg.Wait()
}
