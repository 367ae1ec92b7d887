package main

import (
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	// announcedTTL bounds how long an announced alert ID is remembered.
	announcedTTL = 24 * time.Hour

	// sweepInterval is how often expired IDs are dropped.
	sweepInterval = 10 * time.Minute
)

// Deduplicator remembers which alerts were already announced to chat, per backend.
// An alert ID is announced at most once within announcedTTL.
type Deduplicator struct {
	logger *zap.SugaredLogger
	now    func() time.Time

	mu        sync.RWMutex
	announced map[string]map[string]time.Time // backend ID -> alert ID -> first seen

	stop     chan struct{}
	stopped  chan struct{}
	stopOnce sync.Once
}

// NewDeduplicator returns an empty deduplicator with its sweeper running.
func NewDeduplicator(logger *zap.SugaredLogger) *Deduplicator {
	d := &Deduplicator{
		logger:    logger,
		now:       time.Now,
		announced: make(map[string]map[string]time.Time),
		stop:      make(chan struct{}),
		stopped:   make(chan struct{}),
	}
	go d.sweepLoop()
	return d
}

// RecordAlert marks alertID as announced for backendID. It returns false when the pair was
// already recorded.
func (d *Deduplicator) RecordAlert(backendID, alertID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	ids, ok := d.announced[backendID]
	if !ok {
		ids = make(map[string]time.Time)
		d.announced[backendID] = ids
	}
	if _, seen := ids[alertID]; seen {
		return false
	}
	ids[alertID] = d.now()
	return true
}

// Forget drops every ID recorded for backendID. A backend that is started again seeds
// itself on its first cycle.
func (d *Deduplicator) Forget(backendID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.announced, backendID)
}

// Size returns the number of remembered IDs across all backends.
func (d *Deduplicator) Size() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	n := 0
	for _, ids := range d.announced {
		n += len(ids)
	}
	return n
}

func (d *Deduplicator) sweepLoop() {
	defer close(d.stopped)

	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stop:
			return
		case <-ticker.C:
			d.sweep()
		}
	}
}

func (d *Deduplicator) sweep() {
	cutoff := d.now().Add(-announcedTTL)

	d.mu.Lock()
	defer d.mu.Unlock()

	expired, remaining := 0, 0
	for backendID, ids := range d.announced {
		for alertID, seen := range ids {
			if seen.Before(cutoff) {
				delete(ids, alertID)
				expired++
			}
		}
		if len(ids) == 0 {
			delete(d.announced, backendID)
		}
		remaining += len(ids)
	}

	if expired > 0 {
		d.logger.Debugw("Expired announced alert IDs", "expired", expired, "remaining", remaining)
	}
}

// Stop ends the sweeper. It is safe to call more than once.
func (d *Deduplicator) Stop() {
	d.stopOnce.Do(func() { close(d.stop) })
	<-d.stopped
}
