package backend

import "time"

// Constants for backend behavior and thresholds
const (
	// MinPollIntervalSeconds is the minimum allowed poll interval
	MinPollIntervalSeconds = 10

	// DefaultPollIntervalSeconds is the recommended default poll interval
	DefaultPollIntervalSeconds = 30

	// DefaultImagePrefix is the key prefix under which detectors upload alert images
	DefaultImagePrefix = "alerts/"

	// ImageExtension is appended to the alert ID to build the image key
	ImageExtension = ".jpeg"

	// ImageURLTTL is how long a presigned image URL stays valid
	ImageURLTTL = 1 * time.Hour

	// ImageURLRefreshBuffer is how long before expiry a cached image URL is re-resolved
	ImageURLRefreshBuffer = 5 * time.Minute
)
