// Package dashboard builds the table and map views of the alert dashboard.
package dashboard

import (
	"time"

	"github.com/borderwatch/alert-dashboard/server/backend"
	"github.com/borderwatch/alert-dashboard/server/filter"
)

// NoAlertsMessage is shown when the alert store holds no records.
const NoAlertsMessage = "No alerts found"

// TimeLayout is how alert times are displayed.
const TimeLayout = "2006-01-02 15:04:05"

// MapConfig is the initial map viewport.
type MapConfig struct {
	Center [2]float64 `json:"center" toml:"center"`
	Zoom   int        `json:"zoom" toml:"zoom"`
}

// DefaultMapConfig centres the map on the monitored region.
func DefaultMapConfig() MapConfig {
	return MapConfig{Center: [2]float64{17.5987567, 78.4172736}, Zoom: 8}
}

// Row is one line of the alert table.
type Row struct {
	AlertID    string    `json:"alertId"`
	Backend    string    `json:"backend"`
	CameraID   string    `json:"cameraId"`
	ObjectType string    `json:"objectType"`
	Status     string    `json:"status,omitempty"`
	Time       string    `json:"time"`
	EventTime  time.Time `json:"eventTime"`
	ImageURL   string    `json:"imageUrl"`
	Latitude   *float64  `json:"latitude,omitempty"`
	Longitude  *float64  `json:"longitude,omitempty"`
}

// Marker is one map pin with its popup details.
type Marker struct {
	AlertID    string  `json:"alertId"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	CameraID   string  `json:"cameraId"`
	ObjectType string  `json:"objectType"`
	Time       string  `json:"time"`
	ImageURL   string  `json:"imageUrl"`
}

// View is everything the dashboard renders for one backend and filter.
type View struct {
	BackendID string      `json:"backendId"`
	Backend   string      `json:"backend"`
	Filter    filter.Spec `json:"filter"`
	Label     string      `json:"label"`
	Rows      []Row       `json:"rows"`
	Markers   []Marker    `json:"markers"`
	Map       MapConfig   `json:"map"`
	Total     int         `json:"total"`
	Error     string      `json:"error,omitempty"`
	Message   string      `json:"message,omitempty"`
	UpdatedAt time.Time   `json:"updatedAt"`
	Cycle     int64       `json:"cycle"`
}

// Options control how views are rendered.
type Options struct {
	Map      MapConfig
	Location *time.Location
}

// Build filters the snapshot once and derives both the table rows and the map markers from
// that single result. Alerts without a location appear in the table only.
func Build(backendID, backendName string, snapshot *backend.Snapshot, spec filter.Spec, now time.Time, opts Options) View {
	loc := opts.Location
	if loc == nil {
		loc = time.UTC
	}

	visible := filter.Apply(snapshot.Alerts, spec, now)

	view := View{
		BackendID: backendID,
		Backend:   backendName,
		Filter:    spec,
		Label:     spec.Label(),
		Rows:      make([]Row, 0, len(visible)),
		Markers:   make([]Marker, 0, len(visible)),
		Map:       opts.Map,
		Total:     len(snapshot.Alerts),
		Error:     snapshot.Err,
		UpdatedAt: snapshot.UpdatedAt,
		Cycle:     snapshot.Cycle,
	}
	if snapshot.NoAlerts {
		view.Message = NoAlertsMessage
	}

	for _, alert := range visible {
		displayTime := formatTime(alert, loc)
		row := Row{
			AlertID:    alert.AlertID,
			Backend:    alert.BackendName,
			CameraID:   alert.CameraID,
			ObjectType: alert.ObjectType,
			Status:     alert.Status,
			Time:       displayTime,
			EventTime:  alert.EventTime,
			ImageURL:   alert.ImageURL,
		}
		if alert.Location != nil {
			lat, lon := alert.Location.Latitude, alert.Location.Longitude
			row.Latitude, row.Longitude = &lat, &lon
			view.Markers = append(view.Markers, Marker{
				AlertID:    alert.AlertID,
				Latitude:   lat,
				Longitude:  lon,
				CameraID:   alert.CameraID,
				ObjectType: alert.ObjectType,
				Time:       displayTime,
				ImageURL:   alert.ImageURL,
			})
		}
		view.Rows = append(view.Rows, row)
	}

	return view
}

func formatTime(alert backend.Alert, loc *time.Location) string {
	if alert.EventTime.IsZero() {
		return alert.Timestamp
	}
	return alert.EventTime.In(loc).Format(TimeLayout)
}
