package domain

import (
	"errors"
	"fmt"
	"time"
)

// ErrPlaybackRejected is returned by a surface when the platform refuses to
// start audible playback. Engines recover from it with a muted retry.
var ErrPlaybackRejected = errors.New("playback rejected by platform")

// LoadFailure categorizes why a media source could not be loaded
type LoadFailure string

const (
	FailureInterrupted LoadFailure = "interrupted"
	FailureNetwork     LoadFailure = "network"
	FailureDecode      LoadFailure = "decode"
	FailureNotFound    LoadFailure = "not found or unsupported"
)

// LoadError reports a failed load of a media asset
type LoadError struct {
	Media  MediaID
	Path   string
	Reason LoadFailure
	Err    error
}

func (e *LoadError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (check %s): %v", e.Media, e.Reason, e.Path, e.Err)
	}
	return fmt.Sprintf("%s: %s (check %s)", e.Media, e.Reason, e.Path)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadTimeoutError reports an asset that did not become ready in time
type LoadTimeoutError struct {
	Media   MediaID
	Path    string
	Timeout time.Duration
}

func (e *LoadTimeoutError) Error() string {
	return fmt.Sprintf("%s: not ready after %s, check that %s exists", e.Media, e.Timeout, e.Path)
}

// CriticalError is raised once the retry budget is exhausted
type CriticalError struct {
	Attempts int
	Last     error
}

func (e *CriticalError) Error() string {
	return fmt.Sprintf("critical error: %v, giving up after %d attempts", e.Last, e.Attempts)
}

func (e *CriticalError) Unwrap() error {
	return e.Last
}
