package dynamo

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// FetchFailedMessage is shown with stale alerts when the alert store cannot be read.
const FetchFailedMessage = "Failed to fetch alerts. Please check your AWS credentials and permissions."

// State is the phase of the poll pipeline.
type State int32

const (
	StateIdle State = iota
	StateFetching
	StateEnriching
	StateReady
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateFetching:
		return "fetching"
	case StateEnriching:
		return "enriching"
	case StateReady:
		return "ready"
	default:
		return "unknown"
	}
}

// AlertFetcher is an interface for reading every record from the alert store
type AlertFetcher interface {
	FetchAll(ctx context.Context) ([]Record, error)
}

// Poller runs the fetch, enrich and publish cycle for one backend on a schedule and on demand.
type Poller struct {
	logger      *zap.SugaredLogger
	backendID   string
	backendName string
	interval    time.Duration
	fetcher     AlertFetcher
	enricher    *Enricher
	processor   *AlertProcessor
	stateStore  *StateStore
	scheduler   JobScheduler
	onPublish   backend.PublishCallback
	now         func() time.Time

	snapshot atomic.Pointer[backend.Snapshot]
	state    atomic.Int32
	cycles   atomic.Int64
	cycleMu  sync.Mutex

	mu        sync.Mutex
	job       Job
	cancel    context.CancelFunc
	refreshCh chan struct{}
	done      chan struct{}
}

// NewPoller creates a new poller instance
func NewPoller(
	logger *zap.SugaredLogger,
	backendID string,
	backendName string,
	interval time.Duration,
	fetcher AlertFetcher,
	enricher *Enricher,
	processor *AlertProcessor,
	stateStore *StateStore,
	onPublish backend.PublishCallback,
) *Poller {
	p := &Poller{
		logger:      logger,
		backendID:   backendID,
		backendName: backendName,
		interval:    interval,
		fetcher:     fetcher,
		enricher:    enricher,
		processor:   processor,
		stateStore:  stateStore,
		scheduler:   NewCronJobScheduler(logger),
		onPublish:   onPublish,
		now:         time.Now,
		refreshCh:   make(chan struct{}, 1),
	}
	p.snapshot.Store(&backend.Snapshot{Alerts: []backend.Alert{}})
	return p
}

// SetScheduler sets a custom job scheduler (useful for testing)
func (p *Poller) SetScheduler(scheduler JobScheduler) {
	p.scheduler = scheduler
}

// Start schedules the recurring poll job and the on-demand refresh loop.
// The first cycle runs immediately.
func (p *Poller) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.job != nil {
		return fmt.Errorf("poller already running")
	}

	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.done = make(chan struct{})
	go p.refreshLoop(ctx, p.done)

	jobID := fmt.Sprintf("alert_poll_%s", p.backendID)
	job, err := p.scheduler.Schedule(jobID, p.interval, func() { p.run(ctx) })
	if err != nil {
		cancel()
		<-p.done
		return fmt.Errorf("failed to schedule poll job: %w", err)
	}

	p.job = job
	p.logger.Infow("Poller started", "backendId", p.backendID, "backendName", p.backendName, "interval", p.interval.String())
	return nil
}

// Stop removes the poll job, cancels any cycle in flight and waits for the refresh loop.
func (p *Poller) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.job == nil {
		return nil
	}

	p.cancel()
	err := p.job.Close()
	p.job = nil
	<-p.done

	if err != nil {
		p.logger.Errorw("Failed to close poll job", "backendId", p.backendID, "error", err.Error())
		return fmt.Errorf("failed to close poll job: %w", err)
	}

	p.logger.Infow("Poller stopped", "backendId", p.backendID, "backendName", p.backendName)
	return nil
}

// RequestRefresh asks the refresh loop for a cycle. At most one request is kept pending.
func (p *Poller) RequestRefresh() {
	select {
	case p.refreshCh <- struct{}{}:
	default:
	}
}

func (p *Poller) refreshLoop(ctx context.Context, done chan struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case <-p.refreshCh:
			_ = p.Cycle(ctx)
		}
	}
}

// run is called by the scheduler to execute a poll cycle
func (p *Poller) run(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	_ = p.Cycle(ctx)
}

// Snapshot returns the most recently published snapshot
func (p *Poller) Snapshot() *backend.Snapshot {
	return p.snapshot.Load()
}

// State returns the current pipeline phase
func (p *Poller) State() State {
	return State(p.state.Load())
}

func (p *Poller) setState(s State) {
	p.state.Store(int32(s))
}

// Cycle runs one fetch, enrich and publish pass. Cycles never overlap.
// A fetch failure keeps the previous alerts, flags the error and is returned; image
// resolution failures only drop the affected alerts.
func (p *Poller) Cycle(ctx context.Context) error {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	cycle := p.cycles.Add(1)
	p.logger.Debugw("Starting poll cycle", "backendId", p.backendID, "backendName", p.backendName, "cycle", cycle)

	p.setState(StateFetching)
	if err := p.stateStore.SaveLastPoll(ctx, p.now()); err != nil {
		p.logger.Errorw("Failed to save last poll time", "backendId", p.backendID, "error", err.Error())
	}

	records, err := p.fetcher.FetchAll(ctx)
	if err != nil && ctx.Err() != nil {
		p.setState(StateIdle)
		return ctx.Err()
	}
	if err != nil {
		prev := p.Snapshot()
		p.publish(&backend.Snapshot{
			Alerts:    prev.Alerts,
			Err:       FetchFailedMessage,
			NoAlerts:  prev.NoAlerts,
			UpdatedAt: p.now(),
			Cycle:     cycle,
		})
		p.setState(StateReady)
		p.handlePollError(ctx, fmt.Errorf("failed to fetch alerts: %w", err))
		return err
	}

	p.setState(StateEnriching)
	unique := DedupRecords(records)
	enriched := p.enricher.Enrich(ctx, unique)
	if ctx.Err() != nil {
		p.setState(StateIdle)
		return ctx.Err()
	}
	alerts := MergeAlerts(enriched)

	p.publish(&backend.Snapshot{
		Alerts:    alerts,
		NoAlerts:  len(records) == 0,
		UpdatedAt: p.now(),
		Cycle:     cycle,
	})
	p.setState(StateReady)

	posted := 0
	if p.processor != nil {
		posted = p.processor.ProcessAlerts(alerts)
	}

	if err := p.stateStore.SaveLastSuccess(ctx, p.now()); err != nil {
		p.logger.Errorw("Failed to save last success time", "backendId", p.backendID, "error", err.Error())
	}
	if err := p.stateStore.ResetFailures(ctx); err != nil {
		p.logger.Errorw("Failed to reset failure counter", "backendId", p.backendID, "error", err.Error())
	}
	if err := p.stateStore.SaveLastError(ctx, ""); err != nil {
		p.logger.Errorw("Failed to clear last error", "backendId", p.backendID, "error", err.Error())
	}

	p.logger.Debugw("Poll cycle completed",
		"backendId", p.backendID,
		"backendName", p.backendName,
		"cycle", cycle,
		"records", len(records),
		"alerts", len(alerts),
		"duplicates", len(records)-len(unique),
		"dropped", len(unique)-len(enriched),
		"posted", posted)
	return nil
}

func (p *Poller) publish(snapshot *backend.Snapshot) {
	p.snapshot.Store(snapshot)
	if p.onPublish != nil {
		p.onPublish(p.backendID, snapshot)
	}
}

// handlePollError records the failure for status display. The backend keeps polling no
// matter how many cycles fail in a row.
func (p *Poller) handlePollError(ctx context.Context, err error) {
	errMsg := err.Error()

	p.logger.Errorw("Poll cycle failed",
		"backendId", p.backendID,
		"backendName", p.backendName,
		"error", errMsg)

	if saveErr := p.stateStore.SaveLastError(ctx, errMsg); saveErr != nil {
		p.logger.Errorw("Failed to save last error",
			"backendId", p.backendID,
			"error", saveErr.Error())
	}

	failureCount, incrementErr := p.stateStore.IncrementFailures(ctx)
	if incrementErr != nil {
		p.logger.Errorw("Failed to increment failure counter",
			"backendId", p.backendID,
			"error", incrementErr.Error())
		return
	}

	if failureCount > 1 {
		p.logger.Warnw("Backend failing repeatedly",
			"backendId", p.backendID,
			"backendName", p.backendName,
			"consecutiveFailures", failureCount)
	}
}
