package backend

import (
	"slices"
	"time"
)

// Config represents the configuration for a backend instance.
// Each backend is uniquely identified by its ID (UUID v4).
type Config struct {
	// ID is the unique stable identifier for this backend (UUID v4, immutable)
	ID string `toml:"id" json:"id"`

	// Name is the display name for this backend (mutable, must be unique)
	Name string `toml:"name" json:"name"`

	// Type is the backend type (e.g., "dynamodb")
	Type string `toml:"type" json:"type"`

	// Enabled indicates whether this backend should be actively polling
	Enabled bool `toml:"enabled" json:"enabled"`

	// Table is the alert record table to scan
	Table string `toml:"table" json:"table"`

	// Bucket is the object store bucket holding the alert images
	Bucket string `toml:"bucket" json:"bucket"`

	// ImagePrefix is the key prefix of alert images inside Bucket (default: "alerts/")
	ImagePrefix string `toml:"image_prefix" json:"imagePrefix"`

	// ChannelID is the Mattermost channel to notify about new alerts (optional)
	ChannelID string `toml:"channel_id" json:"channelId"`

	// NotifyTopics are the MQTT topics whose messages trigger an immediate poll (optional)
	NotifyTopics []string `toml:"notify_topics" json:"notifyTopics"`

	// CacheImageURLs keeps presigned URLs until shortly before they expire instead of
	// re-resolving them every cycle
	CacheImageURLs bool `toml:"cache_image_urls" json:"cacheImageUrls"`

	// PollIntervalSeconds is how often to poll this backend (minimum: MinPollIntervalSeconds)
	PollIntervalSeconds int `toml:"poll_interval_seconds" json:"pollIntervalSeconds"`
}

// Equal reports whether two configurations are identical.
func (c Config) Equal(other Config) bool {
	return c.ID == other.ID &&
		c.Name == other.Name &&
		c.Type == other.Type &&
		c.Enabled == other.Enabled &&
		c.Table == other.Table &&
		c.Bucket == other.Bucket &&
		c.ImagePrefix == other.ImagePrefix &&
		c.ChannelID == other.ChannelID &&
		slices.Equal(c.NotifyTopics, other.NotifyTopics) &&
		c.CacheImageURLs == other.CacheImageURLs &&
		c.PollIntervalSeconds == other.PollIntervalSeconds
}

// Status represents the current operational status of a backend instance.
type Status struct {
	// ID is the backend identifier
	ID string `json:"id"`

	// Name is the backend display name
	Name string `json:"name"`

	// Enabled indicates whether the backend is enabled in configuration
	Enabled bool `json:"enabled"`

	// State is the current pipeline state (idle, fetching, enriching, ready)
	State string `json:"state"`

	// AlertCount is the number of alerts in the published snapshot
	AlertCount int `json:"alertCount"`

	// LastPollTime is the timestamp of the last poll attempt
	LastPollTime time.Time `json:"lastPollTime"`

	// LastSuccessTime is the timestamp of the last successful poll
	LastSuccessTime time.Time `json:"lastSuccessTime"`

	// ConsecutiveFailures is the count of consecutive polling failures
	ConsecutiveFailures int `json:"consecutiveFailures"`

	// LastError contains the error message from the most recent failure (empty if no error)
	LastError string `json:"lastError"`
}
