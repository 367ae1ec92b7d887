package backend

import (
	"errors"
	"fmt"
)

var (
	// ErrStoreUnavailable is returned when the alert store cannot be reached or rejects the
	// request. The pipeline keeps its previous snapshot when it sees this error.
	ErrStoreUnavailable = errors.New("alert store unavailable")

	// ErrResolutionFailure marks a single alert whose image could not be resolved.
	ErrResolutionFailure = errors.New("image resolution failed")
)

// ResolutionError reports a failed image resolution for one alert.
type ResolutionError struct {
	AlertID string
	Err     error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve image for alert %s: %v", e.AlertID, e.Err)
}

func (e *ResolutionError) Unwrap() error {
	return e.Err
}

// Is lets errors.Is(err, ErrResolutionFailure) match any ResolutionError.
func (e *ResolutionError) Is(target error) bool {
	return target == ErrResolutionFailure
}
