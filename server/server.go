package main

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/auth"
	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/backend/dynamo" // Register dynamodb backend factory
	"github.com/borderwatch/alert-dashboard/server/hub"
	"github.com/borderwatch/alert-dashboard/server/kvstore"
	"github.com/borderwatch/alert-dashboard/server/notify"
	"github.com/borderwatch/alert-dashboard/server/poster"
)

const shutdownTimeout = 15 * time.Second

// routeSetter receives the topic routing table. *notify.Watcher satisfies it.
type routeSetter interface {
	SetRoutes(routes map[string][]notify.Refresher) error
}

// stateClearer is implemented by backends that persist operational state.
type stateClearer interface {
	ClearState(ctx context.Context) error
}

// serverDeps are the external collaborators the server is built from.
type serverDeps struct {
	Store    kvstore.Store
	Clients  map[string]any
	Provider auth.Provider
	Poster   backend.AlertPoster
	Watcher  routeSetter
}

// Server wires the backends, the session layer and the HTTP API together.
type Server struct {
	logger *zap.SugaredLogger

	// configurationLock synchronizes access to the configuration.
	configurationLock sync.RWMutex

	// configuration is the active configuration. Consult getConfiguration and
	// setConfiguration for usage.
	configuration *configuration

	// registry manages all active backend instances.
	registry *backend.Registry

	// poster posts new alerts to Mattermost channels (nil when not configured).
	poster backend.AlertPoster

	// deduplicator is shared across all backends to prevent duplicate posts
	deduplicator *Deduplicator

	store    kvstore.Store
	clients  map[string]any
	sessions *auth.SessionManager
	hub      *hub.Hub
	watcher  routeSetter
	location *time.Location
	now      func() time.Time

	hubCancel context.CancelFunc
	router    http.Handler
}

// newServer builds a server from a validated configuration. Backends are not created
// until Activate.
func newServer(cfg *configuration, logger *zap.SugaredLogger, deps serverDeps) (*Server, error) {
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:       logger,
		registry:     backend.NewRegistry(),
		poster:       deps.Poster,
		deduplicator: NewDeduplicator(logger.With("component", "deduplicator")),
		store:        deps.Store,
		clients:      deps.Clients,
		sessions: auth.NewSessionManager(deps.Provider, auth.NewSessionStore(deps.Store),
			cfg.SessionTTL(), logger.With("component", "auth")),
		hub:      hub.New(logger.With("component", "hub"), originChecker(cfg.AllowedOrigins)),
		watcher:  deps.Watcher,
		location: loc,
		now:      time.Now,
	}
	s.setConfiguration(cfg)
	s.router = s.initRouter()

	return s, nil
}

// Activate starts the hub and every enabled backend.
func (s *Server) Activate() {
	ctx, cancel := context.WithCancel(context.Background())
	s.hubCancel = cancel
	go s.hub.Run(ctx)

	for _, backendConfig := range s.getConfiguration().Backends {
		s.createAndStartBackend(backendConfig)
	}
	s.updateNotifyRoutes()
}

// Deactivate stops every backend and background loop.
func (s *Server) Deactivate() error {
	var result error
	if s.registry != nil {
		if err := s.registry.UnregisterAll(); err != nil {
			s.logger.Errorw("Failed to unregister all backends during shutdown", "error", err.Error())
			result = err
		}
	}

	if s.deduplicator != nil {
		s.deduplicator.Stop()
	}

	if s.hubCancel != nil {
		s.hubCancel()
	}

	return result
}

// createAndStartBackend creates a backend instance and registers it.
// If the backend is enabled, it also starts the backend.
// Logs errors but does not fail - errors are non-fatal for individual backends.
func (s *Server) createAndStartBackend(config backend.Config) {
	var alertPoster backend.AlertPoster
	if s.poster != nil && config.ChannelID != "" {
		alertPoster = s.poster
	}

	b, err := backend.Create(config, backend.Dependencies{
		Logger:       s.logger,
		Location:     s.location,
		Clients:      s.clients,
		Poster:       alertPoster,
		Deduplicator: s.deduplicator,
		OnPublish:    s.hub.Publish,
	})
	if err != nil {
		s.logger.Errorw("Failed to create backend", "id", config.ID, "name", config.Name, "error", err.Error())
		return
	}

	// Register backend (always register, even if disabled)
	if err := s.registry.Register(b); err != nil {
		s.logger.Errorw("Failed to register backend", "id", config.ID, "name", config.Name, "error", err.Error())
		return
	}

	if !config.Enabled {
		// Clear poll bookkeeping so a re-enabled backend starts fresh
		if clearer, ok := b.(stateClearer); ok {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			if err := clearer.ClearState(ctx); err != nil {
				s.logger.Warnw("Failed to clear state for disabled backend", "id", config.ID, "name", config.Name, "error", err.Error())
			}
			cancel()
		}
		s.logger.Infow("Backend registered but not started (disabled)", "id", config.ID, "name", config.Name)
		return
	}

	if err := b.Start(); err != nil {
		s.logger.Errorw("Failed to start backend", "id", config.ID, "name", config.Name, "error", err.Error())
		// Keep backend registered even if start fails - it will show error state in status
		return
	}

	s.logger.Infow("Backend started successfully", "id", config.ID, "name", config.Name, "type", config.Type)
}

// notifyRoutes maps each notify topic to the enabled backends that watch it.
func (s *Server) notifyRoutes() map[string][]notify.Refresher {
	routes := make(map[string][]notify.Refresher)
	for _, cfg := range s.getConfiguration().Backends {
		if !cfg.Enabled {
			continue
		}
		b, ok := s.registry.Get(cfg.ID)
		if !ok {
			continue
		}
		for _, topic := range cfg.NotifyTopics {
			routes[topic] = append(routes[topic], b)
		}
	}
	return routes
}

func (s *Server) updateNotifyRoutes() {
	if s.watcher == nil {
		return
	}
	if err := s.watcher.SetRoutes(s.notifyRoutes()); err != nil {
		s.logger.Errorw("Failed to update notification routes", "error", err.Error())
	}
}

// originChecker allows same-origin WebSocket upgrades plus the configured origins.
func originChecker(allowed []string) func(r *http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	set := make(map[string]bool, len(allowed))
	for _, o := range allowed {
		set[o] = true
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || set["*"] || set[origin] {
			return true
		}
		return origin == "http://"+r.Host || origin == "https://"+r.Host
	}
}

// connections holds the connections opened by run so they can be closed on exit.
type connections struct {
	store   *kvstore.RedisStore
	watcher *notify.Watcher
}

func (r *connections) Close() {
	if r.watcher != nil {
		r.watcher.Close()
	}
	if r.store != nil {
		_ = r.store.Close()
	}
}

// connect opens the redis, AWS, Mattermost and MQTT connections described by cfg.
func connect(ctx context.Context, cfg *configuration, logger *zap.SugaredLogger) (serverDeps, *connections, error) {
	rt := &connections{}

	rt.store = kvstore.NewRedisStore(cfg.Redis)
	if err := rt.store.Ping(ctx); err != nil {
		rt.Close()
		return serverDeps{}, nil, errors.Wrap(err, "failed to connect to redis")
	}

	awsCfg, err := loadAWSConfig(ctx, cfg.AWS)
	if err != nil {
		rt.Close()
		return serverDeps{}, nil, err
	}
	clients := newAWSClients(awsCfg, cfg.AWS.Endpoint)

	deps := serverDeps{
		Store: rt.store,
		Clients: map[string]any{
			dynamo.ClientDynamoDB:  clients.DynamoDB,
			dynamo.ClientS3Presign: clients.Presign,
			dynamo.ClientKVStore:   rt.store,
		},
		Provider: auth.NewCognitoProvider(clients.Cognito, cfg.Cognito.ClientID),
	}

	if cfg.Mattermost.Enabled() {
		deps.Poster = poster.NewClient(cfg.Mattermost.URL, cfg.Mattermost.Token, cfg.Mattermost.BotUserID)
		logger.Infow("Mattermost posting enabled", "url", cfg.Mattermost.URL)
	}

	if cfg.MQTT.Enabled() {
		watcher, err := notify.NewWatcher(cfg.MQTT, logger.With("component", "notify"))
		if err != nil {
			rt.Close()
			return serverDeps{}, nil, errors.Wrap(err, "failed to configure MQTT")
		}
		if err := watcher.Connect(); err != nil {
			// Polling covers the gap until the client connects.
			logger.Warnw("MQTT unavailable at startup", "broker", cfg.MQTT.Broker, "error", err.Error())
		}
		rt.watcher = watcher
		deps.Watcher = watcher
	}

	return deps, rt, nil
}

// shutdownHTTP drains the HTTP server.
func shutdownHTTP(srv *http.Server) error {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(ctx)
}
