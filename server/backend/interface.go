package backend

import "context"

// Backend defines the interface that all backend implementations must satisfy.
// Each backend type (e.g., DynamoDB) implements this interface to provide
// standardized alert polling and publication.
type Backend interface {
	// Start begins the backend's polling lifecycle.
	// The first poll cycle runs immediately; later cycles follow the poll interval.
	Start() error

	// Stop halts the recurring poll job and any pending on-demand refresh.
	// After Stop returns no further poll cycles are started.
	Stop() error

	// Refresh runs one poll cycle now and waits for it to finish.
	Refresh(ctx context.Context) error

	// RequestRefresh asks for a poll cycle without waiting for it. Requests made while a
	// cycle is already pending are coalesced.
	RequestRefresh()

	// Snapshot returns the currently published alert collection. It never returns nil.
	Snapshot() *Snapshot

	// GetID returns the unique identifier for this backend (UUID v4).
	GetID() string

	// GetName returns the display name for this backend.
	GetName() string

	// GetType returns the backend type (e.g., "dynamodb").
	GetType() string

	// GetStatus returns the current operational status of the backend.
	GetStatus() Status
}
