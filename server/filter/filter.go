// Package filter selects the alerts shown by the dashboard for a time window.
package filter

import (
	"fmt"
	"time"

	"github.com/borderwatch/alert-dashboard/server/backend"
)

// Day is the length of a preset day.
const Day = 24 * time.Hour

// Preset is a named window ending now.
type Preset string

const (
	PresetAll     Preset = "all"
	PresetWeek    Preset = "week"
	PresetMonth   Preset = "month"
	Preset3Months Preset = "3months"
	Preset6Months Preset = "6months"
	PresetYear    Preset = "year"
	Preset2Years  Preset = "2years"
)

// DateLayout is the format of range bounds in requests and labels.
const DateLayout = "2006-01-02"

var presets = map[Preset]struct {
	window time.Duration
	label  string
}{
	PresetAll:     {0, "All time"},
	PresetWeek:    {7 * Day, "Past week"},
	PresetMonth:   {30 * Day, "Past month"},
	Preset3Months: {90 * Day, "Past 3 months"},
	Preset6Months: {180 * Day, "Past 6 months"},
	PresetYear:    {365 * Day, "Past year"},
	Preset2Years:  {730 * Day, "Past 2 years"},
}

// Presets lists the presets in menu order.
var Presets = []Preset{PresetWeek, PresetMonth, Preset3Months, Preset6Months, PresetYear, Preset2Years, PresetAll}

// ParsePreset validates a preset name. The empty string means PresetAll.
func ParsePreset(s string) (Preset, error) {
	if s == "" {
		return PresetAll, nil
	}
	p := Preset(s)
	if _, ok := presets[p]; !ok {
		return "", fmt.Errorf("unknown preset %q", s)
	}
	return p, nil
}

// Window returns how far back the preset reaches. ok is false for PresetAll.
func (p Preset) Window() (time.Duration, bool) {
	info, known := presets[p]
	if !known || info.window == 0 {
		return 0, false
	}
	return info.window, true
}

// Label returns the menu text for the preset.
func (p Preset) Label() string {
	if info, ok := presets[p]; ok {
		return info.label
	}
	return presets[PresetAll].label
}

// Spec selects the visible alerts. When Custom is set and both bounds are present the range
// [Start, end of End's day] applies; otherwise Preset does.
type Spec struct {
	Preset Preset     `json:"preset"`
	Custom bool       `json:"custom"`
	Start  *time.Time `json:"start,omitempty"`
	End    *time.Time `json:"end,omitempty"`
}

// Default is the filter a new session starts with.
func Default() Spec {
	return Spec{Preset: PresetAll}
}

// RangeActive reports whether the explicit range is in force.
func (s Spec) RangeActive() bool {
	return s.Custom && s.Start != nil && s.End != nil
}

// WithPreset switches to preset mode, dropping any explicit range.
func (s Spec) WithPreset(p Preset) Spec {
	return Spec{Preset: p}
}

// WithCustomRange switches to range mode. The preset resets to PresetAll, which stays in
// effect until both bounds are set.
func (s Spec) WithCustomRange() Spec {
	s.Custom = true
	s.Preset = PresetAll
	return s
}

// WithRange sets the explicit bounds and switches to range mode. Either bound may be nil.
func (s Spec) WithRange(start, end *time.Time) Spec {
	s = s.WithCustomRange()
	s.Start = start
	s.End = end
	return s
}

// Label describes the active filter, e.g. "Past month" or "2024-01-01 - 2024-01-31".
func (s Spec) Label() string {
	if s.RangeActive() {
		return s.Start.Format(DateLayout) + " - " + s.End.Format(DateLayout)
	}
	return s.Preset.Label()
}

// EndOfDay returns the last millisecond of t's calendar day in t's location.
func EndOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 23, 59, 59, int(999*time.Millisecond), t.Location())
}

// Match reports whether one event time passes the filter at now. A zero time only passes
// PresetAll.
func (s Spec) Match(ts time.Time, now time.Time) bool {
	if s.RangeActive() {
		if ts.IsZero() {
			return false
		}
		return !ts.Before(*s.Start) && !ts.After(EndOfDay(*s.End))
	}

	window, ok := s.Preset.Window()
	if !ok {
		return true
	}
	if ts.IsZero() {
		return false
	}
	return now.Sub(ts) <= window
}

// Apply returns the alerts that pass the filter, in their original order. It does not modify
// alerts, and the same inputs always give the same result.
func Apply(alerts []backend.Alert, spec Spec, now time.Time) []backend.Alert {
	if !spec.RangeActive() {
		if _, ok := spec.Preset.Window(); !ok {
			out := make([]backend.Alert, len(alerts))
			copy(out, alerts)
			return out
		}
	}

	out := make([]backend.Alert, 0, len(alerts))
	for _, alert := range alerts {
		if spec.Match(alert.EventTime, now) {
			out = append(out, alert)
		}
	}
	return out
}
