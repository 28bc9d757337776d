package audio

import "errors"

var (
	// ErrDeviceUnavailable is returned by Open when no capture stream can be
	// acquired for the requested layout.
	ErrDeviceUnavailable = errors.New("audio device unavailable")

	// ErrCaptureFailure is returned by ReadFrame when an open stream fails.
	// It is fatal for the run.
	ErrCaptureFailure = errors.New("audio capture failed")

	// ErrSourceDrained is returned by ReadFrame when a finite source has no
	// more samples to deliver.
	ErrSourceDrained = errors.New("audio source drained")
)
