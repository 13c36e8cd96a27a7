package render

import "errors"

// Sentinel errors for renderer operations.
var (
	// ErrDeviceUnavailable is returned by Init when no compatible device exists.
	ErrDeviceUnavailable = errors.New("no compatible graphics device found")

	// ErrRenderFailure is returned when the device rejects or fails a render submission.
	ErrRenderFailure = errors.New("render failed")

	// ErrReadbackFailure is returned when mapping or copying the readback buffer fails.
	ErrReadbackFailure = errors.New("readback failed")
)
