package dynamo

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/kvstore"
)

// Keys of the shared clients this backend expects in backend.Dependencies.Clients.
const (
	ClientDynamoDB  = "dynamodb"
	ClientS3Presign = "s3_presign"
	ClientKVStore   = "kvstore"
)

// init registers the DynamoDB backend factory
func init() {
	backend.RegisterBackendFactory("dynamodb", func(config backend.Config, deps backend.Dependencies) (backend.Backend, error) {
		return New(config, deps)
	})
}

// Backend implements backend.Backend for detector alerts stored in DynamoDB with images in S3.
type Backend struct {
	config     backend.Config
	logger     *zap.SugaredLogger
	client     *StoreClient
	resolver   *Resolver
	processor  *AlertProcessor
	stateStore *StateStore
	poller     *Poller
	mu         sync.RWMutex
	running    bool
}

// New creates a new DynamoDB backend instance
func New(config backend.Config, deps backend.Dependencies) (*Backend, error) {
	if config.Type != "dynamodb" {
		return nil, fmt.Errorf("invalid backend type: %s (expected: dynamodb)", config.Type)
	}
	if config.ID == "" {
		return nil, fmt.Errorf("backend ID is required")
	}
	if config.Table == "" {
		return nil, fmt.Errorf("table is required")
	}
	if config.Bucket == "" {
		return nil, fmt.Errorf("bucket is required")
	}

	scanAPI, ok := deps.Clients[ClientDynamoDB].(ScanAPI)
	if !ok {
		return nil, fmt.Errorf("missing %s client", ClientDynamoDB)
	}
	presignAPI, ok := deps.Clients[ClientS3Presign].(PresignAPI)
	if !ok {
		return nil, fmt.Errorf("missing %s client", ClientS3Presign)
	}
	store, ok := deps.Clients[ClientKVStore].(kvstore.Store)
	if !ok {
		return nil, fmt.Errorf("missing %s client", ClientKVStore)
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	logger = logger.With("backendId", config.ID)

	prefix := config.ImagePrefix
	if prefix == "" {
		prefix = backend.DefaultImagePrefix
	}
	interval := config.PollIntervalSeconds
	if interval <= 0 {
		interval = backend.DefaultPollIntervalSeconds
	}

	var cache *URLCache
	if config.CacheImageURLs {
		cache = NewURLCache(store, config.ID)
	}

	b := &Backend{
		config:     config,
		logger:     logger,
		client:     NewStoreClient(scanAPI, config.Table, logger),
		resolver:   NewResolver(presignAPI, config.Bucket, prefix, cache),
		stateStore: NewStateStore(store, config.ID),
	}

	b.processor = NewAlertProcessor(logger, config.ID, config.Name, deps.Poster, config.ChannelID, deps.Deduplicator)
	enricher := NewEnricher(b.resolver, config.Name, deps.Location, logger)

	b.poller = NewPoller(
		logger,
		config.ID,
		config.Name,
		time.Duration(interval)*time.Second,
		b.client,
		enricher,
		b.processor,
		b.stateStore,
		deps.OnPublish,
	)

	return b, nil
}

// Start begins the backend's polling lifecycle
func (b *Backend) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.running {
		return fmt.Errorf("backend already running")
	}

	if !b.config.Enabled {
		return fmt.Errorf("backend is disabled")
	}

	if err := b.poller.Start(); err != nil {
		return fmt.Errorf("failed to start poller: %w", err)
	}

	b.running = true
	b.logger.Infow("DynamoDB backend started", "name", b.config.Name, "table", b.config.Table)
	return nil
}

// Stop gracefully shuts down the backend
func (b *Backend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.running {
		return nil
	}

	if err := b.poller.Stop(); err != nil {
		b.logger.Errorw("Failed to stop poller", "error", err.Error())
		return fmt.Errorf("failed to stop poller: %w", err)
	}

	b.running = false
	b.logger.Infow("DynamoDB backend stopped", "name", b.config.Name)
	return nil
}

// Refresh runs one poll cycle and waits for it
func (b *Backend) Refresh(ctx context.Context) error {
	return b.poller.Cycle(ctx)
}

// RequestRefresh queues a poll cycle on a running backend
func (b *Backend) RequestRefresh() {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	if running {
		b.poller.RequestRefresh()
	}
}

// Snapshot returns the currently published alerts
func (b *Backend) Snapshot() *backend.Snapshot {
	return b.poller.Snapshot()
}

// ClearState removes the persisted poll status of this backend
func (b *Backend) ClearState(ctx context.Context) error {
	return b.stateStore.ClearAll(ctx)
}

// GetID returns the unique identifier for this backend
func (b *Backend) GetID() string {
	return b.config.ID
}

// GetName returns the display name for this backend
func (b *Backend) GetName() string {
	return b.config.Name
}

// GetType returns the backend type
func (b *Backend) GetType() string {
	return b.config.Type
}

// GetStatus returns the current operational status of the backend
func (b *Backend) GetStatus() backend.Status {
	b.mu.RLock()
	running := b.running
	b.mu.RUnlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	status := backend.Status{
		ID:         b.config.ID,
		Name:       b.config.Name,
		Enabled:    b.config.Enabled && running,
		State:      b.poller.State().String(),
		AlertCount: len(b.poller.Snapshot().Alerts),
	}

	lastPoll, err := b.stateStore.GetLastPoll(ctx)
	if err != nil {
		b.logger.Warnw("Failed to get last poll time", "error", err.Error())
	} else {
		status.LastPollTime = lastPoll
	}

	lastSuccess, err := b.stateStore.GetLastSuccess(ctx)
	if err != nil {
		b.logger.Warnw("Failed to get last success time", "error", err.Error())
	} else {
		status.LastSuccessTime = lastSuccess
	}

	failures, err := b.stateStore.GetFailures(ctx)
	if err != nil {
		b.logger.Warnw("Failed to get failure count", "error", err.Error())
	} else {
		status.ConsecutiveFailures = failures
	}

	lastError, err := b.stateStore.GetLastError(ctx)
	if err != nil {
		b.logger.Warnw("Failed to get last error", "error", err.Error())
	} else {
		status.LastError = lastError
	}

	return status
}
