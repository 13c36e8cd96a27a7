package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// Sentinel errors returned to callers. Renderer failures are reported with
// the render package's sentinels (render.ErrDeviceUnavailable,
// render.ErrRenderFailure, render.ErrReadbackFailure).
var (
	// ErrWorkerUnreachable is returned when no worker is registered for a key
	// or the worker has stopped.
	ErrWorkerUnreachable = errors.New("render worker unreachable")

	// ErrTooManyWorkers is returned when starting a worker for a new key
	// would exceed the configured worker limit.
	ErrTooManyWorkers = errors.New("render worker limit reached")

	// ErrChannelClosed is returned when a reply channel is closed without a response.
	ErrChannelClosed = errors.New("reply channel closed")

	// ErrTimeout is returned when the caller's deadline passes before a response arrives.
	ErrTimeout = errors.New("timed out waiting for render")

	// ErrNotInitialized is returned by RenderScene before Init has succeeded.
	ErrNotInitialized = errors.New("render service not initialized")

	// ErrUnknownCommand is returned for a command the worker cannot interpret.
	ErrUnknownCommand = errors.New("unknown render command")
)

// RequestError describes a failed render request.
type RequestError struct {
	Key string
	ID  uuid.UUID
	Err error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("render %q (request %s): %v", e.Key, e.ID, e.Err)
}

// Unwrap returns the underlying error.
func (e *RequestError) Unwrap() error { return e.Err }

// waitErr converts a finished caller context into the error reported to that caller.
func waitErr(ctx context.Context) error {
	err := ctx.Err()
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}
	return err
}
