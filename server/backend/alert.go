package backend

import "time"

// Location represents the coordinates of the camera that raised an alert.
type Location struct {
	// Latitude is the geographic latitude coordinate
	Latitude float64 `json:"latitude"`

	// Longitude is the geographic longitude coordinate
	Longitude float64 `json:"longitude"`
}

// Alert represents an enriched detection alert ready for display.
// Alerts are created once per poll cycle and replaced, never mutated, by the next cycle.
type Alert struct {
	// BackendName is the name of the backend that produced this alert
	BackendName string `json:"backendName"`

	// AlertID is the unique identifier of the alert record
	AlertID string `json:"alertId"`

	// CameraID identifies the camera that captured the detection
	CameraID string `json:"cameraId"`

	// ObjectType is the detected object label (e.g., "person", "car")
	ObjectType string `json:"objectType"`

	// Status is the producer-side alert status (e.g., "New"), if recorded
	Status string `json:"status,omitempty"`

	// Timestamp is the raw ISO-8601 timestamp as stored
	Timestamp string `json:"timestamp"`

	// EventTime is the parsed Timestamp. Zero when the timestamp could not be parsed.
	EventTime time.Time `json:"eventTime"`

	// Location is nil when latitude/longitude could not be coerced to numbers
	Location *Location `json:"location,omitempty"`

	// ImageURL is a presigned URL for the alert image
	ImageURL string `json:"imageUrl"`

	// ImageURLExpiresAt is when ImageURL stops being valid
	ImageURLExpiresAt time.Time `json:"imageUrlExpiresAt"`
}

// Snapshot is one published alert collection. A Snapshot is never modified after it is
// published; each poll cycle publishes a new one.
type Snapshot struct {
	// Alerts is sorted by EventTime, most recent first
	Alerts []Alert `json:"alerts"`

	// Err is the message of the fetch failure that left Alerts stale (empty if none)
	Err string `json:"error,omitempty"`

	// NoAlerts is set when the store holds no alert records at all
	NoAlerts bool `json:"noAlerts"`

	// UpdatedAt is when the snapshot was published
	UpdatedAt time.Time `json:"updatedAt"`

	// Cycle counts the poll cycles that produced or preserved this snapshot
	Cycle int64 `json:"cycle"`
}
