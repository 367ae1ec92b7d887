package dynamo

import (
	"context"
	"errors"
	"sync"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// MockPoster is a mock poster implementation for testing
type MockPoster struct {
	PostAlertFn func(alert backend.Alert, channelID string) error
}

// PostAlert calls the mock function
func (m *MockPoster) PostAlert(alert backend.Alert, channelID string) error {
	if m.PostAlertFn != nil {
		return m.PostAlertFn(alert, channelID)
	}
	return nil
}

// MockDeduplicator is a mock implementation of backend.Deduplicator for testing
type MockDeduplicator struct {
	RecordAlertFn func(backendType, alertID string) bool
	seenAlerts    map[string]bool
	mu            sync.Mutex
}

// NewMockDeduplicator creates a new mock deduplicator with default behavior
func NewMockDeduplicator() *MockDeduplicator {
	return &MockDeduplicator{
		seenAlerts: make(map[string]bool),
	}
}

// RecordAlert calls the mock function or uses default behavior
func (m *MockDeduplicator) RecordAlert(backendType, alertID string) bool {
	if m.RecordAlertFn != nil {
		return m.RecordAlertFn(backendType, alertID)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := backendType + ":" + alertID
	if m.seenAlerts[key] {
		return false
	}
	m.seenAlerts[key] = true
	return true
}

// StaticResolver resolves images from a fixed map. IDs missing from URLs fail to resolve.
type StaticResolver struct {
	URLs map[string]string
}

// ResolveImage implements ImageResolver
func (r *StaticResolver) ResolveImage(_ context.Context, alertID string) (Image, error) {
	url, ok := r.URLs[alertID]
	if !ok {
		return Image{}, &backend.ResolutionError{AlertID: alertID, Err: errors.New("no such object")}
	}
	return Image{URL: url}, nil
}

// StaticFetcher returns fixed records, or Err when set.
type StaticFetcher struct {
	mu      sync.Mutex
	Records []Record
	Err     error
	Calls   int
}

// FetchAll implements AlertFetcher
func (f *StaticFetcher) FetchAll(context.Context) ([]Record, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	if f.Err != nil {
		return nil, f.Err
	}
	return append([]Record(nil), f.Records...), nil
}

// Set replaces the records and error returned by later calls
func (f *StaticFetcher) Set(records []Record, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Records = records
	f.Err = err
}

// CallCount returns how many times FetchAll was called
func (f *StaticFetcher) CallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Calls
}
