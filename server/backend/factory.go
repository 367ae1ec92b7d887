package backend

import (
	"fmt"
	"time"

	"go.uber.org/zap"
)

// AlertPoster is an interface for posting alerts to chat channels.
// This abstraction allows backends to post alerts without directly depending on the poster package.
type AlertPoster interface {
	PostAlert(alert Alert, channelID string) error
}

// Deduplicator records which alerts have already been announced.
type Deduplicator interface {
	// RecordAlert returns true if the alert was not seen before and records it.
	RecordAlert(backendType, alertID string) bool
}

// PublishCallback is invoked after a backend publishes a new snapshot.
type PublishCallback func(backendID string, snapshot *Snapshot)

// Dependencies are the shared collaborators handed to every backend factory.
// Factories type-assert the clients they need.
type Dependencies struct {
	Logger       *zap.SugaredLogger
	Location     *time.Location
	Clients      map[string]any
	Poster       AlertPoster
	Deduplicator Deduplicator
	OnPublish    PublishCallback
}

// Factory is a function type that creates a backend instance
type Factory func(config Config, deps Dependencies) (Backend, error)

// factoryRegistry maps backend types to their factory functions
var factoryRegistry = make(map[string]Factory)

// RegisterBackendFactory registers a backend factory for a given type.
// This allows backends to register themselves for creation.
func RegisterBackendFactory(backendType string, factory Factory) {
	factoryRegistry[backendType] = factory
}

// Create creates a new backend instance based on the provided configuration.
// Returns an error if the backend type is unknown or if creation fails.
func Create(config Config, deps Dependencies) (Backend, error) {
	if config.Type == "" {
		return nil, fmt.Errorf("backend type is required")
	}

	factory, exists := factoryRegistry[config.Type]
	if !exists {
		return nil, fmt.Errorf("unknown backend type: %s", config.Type)
	}

	return factory(config, deps)
}
