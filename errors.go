//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"errors"

	"github.com/obinnaokechukwu/napigo/internal/bindings"
)

// Common errors
var (
	// ErrNotLoaded indicates the node runtime library is not loaded.
	ErrNotLoaded = bindings.ErrNotLoaded

	// ErrUnsupported indicates the loaded runtime does not export the
	// requested function. Callers should feature-detect with Supports
	// rather than treating this as fatal.
	ErrUnsupported = errors.New("napigo: operation not supported by loaded runtime")

	// ErrEnvInvalid indicates the environment handle does not refer to a
	// live runtime instance.
	ErrEnvInvalid = errors.New("napigo: environment is not attached or has been torn down")

	// ErrQueueFull indicates a nonblocking threadsafe-function call was
	// rejected because the queue is at capacity. The caller may retry or
	// switch to blocking mode.
	ErrQueueFull = errors.New("napigo: threadsafe function queue is full")

	// ErrClosing indicates the threadsafe function has begun finalization
	// and accepts no further calls.
	ErrClosing = errors.New("napigo: threadsafe function is closing")

	// ErrWorkDeleted indicates the async work handle was already deleted.
	ErrWorkDeleted = errors.New("napigo: async work already deleted")

	// ErrHookRan indicates the cleanup hook already executed and can no
	// longer be removed.
	ErrHookRan = errors.New("napigo: cleanup hook already ran")
)

// Code returns the native status code from an error, or StatusOK if the
// error does not carry one.
func Code(err error) Status {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return StatusOK
}

// IsQueueFull returns true if the error indicates a rejected nonblocking
// threadsafe-function call.
func IsQueueFull(err error) bool {
	return errors.Is(err, ErrQueueFull) || Code(err) == StatusQueueFull
}

// IsClosing returns true if the error indicates the threadsafe function is
// finalizing.
func IsClosing(err error) bool {
	return errors.Is(err, ErrClosing) || Code(err) == StatusClosing
}

// IsCancelled returns true if the error carries the cancelled status.
func IsCancelled(err error) bool {
	return Code(err) == StatusCancelled
}
