package dynamo

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/borderwatch/alert-dashboard/server/kvstore"
)

// StateStore persists poll status in the key-value store.
// All keys are scoped to the specific backend ID for isolation.
type StateStore struct {
	store     kvstore.Store
	backendID string
}

// NewStateStore creates a new state store for a specific backend
func NewStateStore(store kvstore.Store, backendID string) *StateStore {
	return &StateStore{
		store:     store,
		backendID: backendID,
	}
}

func (s *StateStore) key(name string) string {
	return fmt.Sprintf("backend_%s_%s", s.backendID, name)
}

func (s *StateStore) saveTime(ctx context.Context, name string, t time.Time) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal %s time: %w", name, err)
	}
	if err := s.store.KVSet(ctx, s.key(name), data); err != nil {
		return fmt.Errorf("failed to save %s time: %w", name, err)
	}
	return nil
}

func (s *StateStore) getTime(ctx context.Context, name string) (time.Time, error) {
	data, err := s.store.KVGet(ctx, s.key(name))
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to get %s time: %w", name, err)
	}
	if data == nil {
		return time.Time{}, nil
	}

	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return time.Time{}, fmt.Errorf("failed to unmarshal %s time: %w", name, err)
	}
	return t, nil
}

// SaveLastPoll stores the timestamp of the last poll attempt
func (s *StateStore) SaveLastPoll(ctx context.Context, t time.Time) error {
	return s.saveTime(ctx, "last_poll", t)
}

// GetLastPoll retrieves the timestamp of the last poll attempt.
// Returns zero time if no poll time is stored.
func (s *StateStore) GetLastPoll(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, "last_poll")
}

// SaveLastSuccess stores the timestamp of the last successful poll
func (s *StateStore) SaveLastSuccess(ctx context.Context, t time.Time) error {
	return s.saveTime(ctx, "last_success", t)
}

// GetLastSuccess retrieves the timestamp of the last successful poll
func (s *StateStore) GetLastSuccess(ctx context.Context) (time.Time, error) {
	return s.getTime(ctx, "last_success")
}

// IncrementFailures increments the consecutive failures counter and returns the new count
func (s *StateStore) IncrementFailures(ctx context.Context) (int, error) {
	count, err := s.GetFailures(ctx)
	if err != nil {
		return 0, err
	}
	count++

	if err := s.setFailures(ctx, count); err != nil {
		return 0, err
	}
	return count, nil
}

// ResetFailures resets the consecutive failures counter to zero
func (s *StateStore) ResetFailures(ctx context.Context) error {
	return s.setFailures(ctx, 0)
}

func (s *StateStore) setFailures(ctx context.Context, count int) error {
	data, err := json.Marshal(count)
	if err != nil {
		return fmt.Errorf("failed to marshal failures count: %w", err)
	}
	if err := s.store.KVSet(ctx, s.key("failures"), data); err != nil {
		return fmt.Errorf("failed to save failures count: %w", err)
	}
	return nil
}

// GetFailures retrieves the current consecutive failures count.
// Returns 0 if no count is stored.
func (s *StateStore) GetFailures(ctx context.Context) (int, error) {
	data, err := s.store.KVGet(ctx, s.key("failures"))
	if err != nil {
		return 0, fmt.Errorf("failed to get failures count: %w", err)
	}
	if data == nil {
		return 0, nil
	}

	var count int
	if err := json.Unmarshal(data, &count); err != nil {
		return 0, fmt.Errorf("failed to unmarshal failures count: %w", err)
	}
	return count, nil
}

// SaveLastError stores the error message from the most recent failure
func (s *StateStore) SaveLastError(ctx context.Context, errMsg string) error {
	if err := s.store.KVSet(ctx, s.key("last_error"), []byte(errMsg)); err != nil {
		return fmt.Errorf("failed to save last error: %w", err)
	}
	return nil
}

// GetLastError retrieves the error message from the most recent failure
func (s *StateStore) GetLastError(ctx context.Context) (string, error) {
	data, err := s.store.KVGet(ctx, s.key("last_error"))
	if err != nil {
		return "", fmt.Errorf("failed to get last error: %w", err)
	}
	return string(data), nil
}

// ClearAll removes all state for this backend from the KV store.
// Used when a backend is removed from the configuration.
func (s *StateStore) ClearAll(ctx context.Context) error {
	for _, name := range []string{"last_poll", "last_success", "failures", "last_error"} {
		if err := s.store.KVDelete(ctx, s.key(name)); err != nil {
			return fmt.Errorf("failed to delete key %s: %w", s.key(name), err)
		}
	}
	return nil
}
