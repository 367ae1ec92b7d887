package dynamo

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// Enricher turns raw records into display-ready alerts.
type Enricher struct {
	resolver    ImageResolver
	backendName string
	location    *time.Location
	logger      *zap.SugaredLogger
}

// NewEnricher creates a new enricher. Timestamps without a zone are read in loc.
func NewEnricher(resolver ImageResolver, backendName string, loc *time.Location, logger *zap.SugaredLogger) *Enricher {
	if loc == nil {
		loc = time.UTC
	}
	return &Enricher{
		resolver:    resolver,
		backendName: backendName,
		location:    loc,
		logger:      logger,
	}
}

// Enrich resolves every record concurrently, one goroutine per record, and waits for all of
// them. Records whose image cannot be resolved are dropped. The result keeps scan order.
func (e *Enricher) Enrich(ctx context.Context, records []Record) []backend.Alert {
	results := make([]*backend.Alert, len(records))

	var wg sync.WaitGroup
	for i := range records {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			alert, err := e.enrichOne(ctx, records[i])
			if err != nil {
				e.logger.Warnw("Dropping alert",
					"backendName", e.backendName,
					"alertId", records[i].AlertID,
					"error", err.Error())
				return
			}
			results[i] = alert
		}(i)
	}
	wg.Wait()

	alerts := make([]backend.Alert, 0, len(records))
	for _, alert := range results {
		if alert != nil {
			alerts = append(alerts, *alert)
		}
	}
	return alerts
}

func (e *Enricher) enrichOne(ctx context.Context, record Record) (*backend.Alert, error) {
	img, err := e.resolver.ResolveImage(ctx, record.AlertID)
	if err != nil {
		var resErr *backend.ResolutionError
		if !errors.As(err, &resErr) {
			err = &backend.ResolutionError{AlertID: record.AlertID, Err: err}
		}
		return nil, err
	}

	alert := NormalizeRecord(record, e.backendName, e.location)
	alert.ImageURL = img.URL
	alert.ImageURLExpiresAt = img.ExpiresAt
	return &alert, nil
}

// DedupRecords keeps the last record for each alert ID, at that record's position.
// Duplicates are removed before enrichment so a later copy always replaces an earlier one,
// even when the later copy's image fails to resolve.
func DedupRecords(records []Record) []Record {
	last := make(map[string]int, len(records))
	for i, r := range records {
		last[r.AlertID] = i
	}
	if len(last) == len(records) {
		return records
	}

	unique := make([]Record, 0, len(last))
	for i, r := range records {
		if last[r.AlertID] == i {
			unique = append(unique, r)
		}
	}
	return unique
}

// MergeAlerts deduplicates by alert ID and sorts most recent first.
// When an ID repeats, the last occurrence wins and keeps its own position. Alerts with equal
// timestamps stay in arrival order; alerts without a parsable timestamp sort last.
func MergeAlerts(alerts []backend.Alert) []backend.Alert {
	last := make(map[string]int, len(alerts))
	for i, alert := range alerts {
		last[alert.AlertID] = i
	}

	merged := make([]backend.Alert, 0, len(last))
	for i, alert := range alerts {
		if last[alert.AlertID] == i {
			merged = append(merged, alert)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		a, b := merged[i].EventTime, merged[j].EventTime
		if a.IsZero() || b.IsZero() {
			return !a.IsZero() && b.IsZero()
		}
		return a.After(b)
	})
	return merged
}

// AlertProcessor announces alerts that have not been seen before.
// The first batch it sees only seeds the deduplicator, so restarting the service does not
// repost the whole table.
type AlertProcessor struct {
	logger       *zap.SugaredLogger
	backendID    string
	backendName  string
	poster       backend.AlertPoster
	channelID    string
	deduplicator backend.Deduplicator
	seeded       bool
	mu           sync.Mutex
}

// NewAlertProcessor creates a new alert processor. Alerts are announced only when both a
// poster and a channel are configured.
func NewAlertProcessor(logger *zap.SugaredLogger, backendID, backendName string, poster backend.AlertPoster, channelID string, deduplicator backend.Deduplicator) *AlertProcessor {
	return &AlertProcessor{
		logger:       logger,
		backendID:    backendID,
		backendName:  backendName,
		poster:       poster,
		channelID:    channelID,
		deduplicator: deduplicator,
	}
}

// ProcessAlerts records every alert and posts the new ones.
// Returns the number of alerts posted.
func (p *AlertProcessor) ProcessAlerts(alerts []backend.Alert) int {
	if p.deduplicator == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.seeded {
		for _, alert := range alerts {
			p.deduplicator.RecordAlert(p.backendID, alert.AlertID)
		}
		p.seeded = true
		p.logger.Infow("Seeded alert deduplication",
			"backendId", p.backendID,
			"backendName", p.backendName,
			"alerts", len(alerts))
		return 0
	}

	posted := 0
	// Oldest first so the channel reads chronologically.
	for i := len(alerts) - 1; i >= 0; i-- {
		alert := alerts[i]
		if !p.deduplicator.RecordAlert(p.backendID, alert.AlertID) {
			continue
		}
		if p.poster == nil || p.channelID == "" {
			continue
		}
		if err := p.poster.PostAlert(alert, p.channelID); err != nil {
			p.logger.Errorw("Failed to post alert",
				"backendId", p.backendID,
				"alertId", alert.AlertID,
				"error", err.Error())
			continue
		}
		posted++
	}

	return posted
}
