package dynamo

import (
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// timestampLayouts are tried in order after RFC 3339. Layouts without a zone are read in the
// configured location.
var timestampLayouts = []string{
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseTimestamp parses a stored alert timestamp. It returns the zero time when the value
// cannot be parsed.
func ParseTimestamp(value string, loc *time.Location) time.Time {
	value = strings.TrimSpace(value)
	if value == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return t
	}
	if loc == nil {
		loc = time.UTC
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, value, loc); err == nil {
			return t
		}
	}
	return time.Time{}
}

// coerceFloat converts a stored coordinate to a float. Numbers pass through; strings are
// parsed. Anything else, and non-finite values, are rejected.
func coerceFloat(v any) (float64, bool) {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case float32:
		f = float64(n)
	case int:
		f = float64(n)
	case int64:
		f = float64(n)
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// NormalizeRecord converts a raw record into a backend.Alert without its image URL.
// The location is left nil when either coordinate cannot be coerced.
func NormalizeRecord(record Record, backendName string, loc *time.Location) backend.Alert {
	alert := backend.Alert{
		BackendName: backendName,
		AlertID:     record.AlertID,
		CameraID:    record.CameraID,
		ObjectType:  record.ObjectType,
		Status:      record.AlertStatus,
		Timestamp:   record.Timestamp,
		EventTime:   ParseTimestamp(record.Timestamp, loc),
	}

	lat, latOK := coerceFloat(record.Latitude)
	lon, lonOK := coerceFloat(record.Longitude)
	if latOK && lonOK {
		alert.Location = &backend.Location{Latitude: lat, Longitude: lon}
	}

	return alert
}
