//go:build !ios && !android && (amd64 || arm64)

package napigo

import "fmt"

// Status is a native status code returned by every interop call. Zero means
// the call succeeded and its out-parameters are valid; any other value means
// they must not be read.
type Status int32

// Status codes matching the native runtime's napi_status enumeration.
const (
	StatusOK                    Status = 0
	StatusInvalidArg            Status = 1
	StatusObjectExpected        Status = 2
	StatusStringExpected        Status = 3
	StatusNameExpected          Status = 4
	StatusFunctionExpected      Status = 5
	StatusNumberExpected        Status = 6
	StatusBooleanExpected       Status = 7
	StatusArrayExpected         Status = 8
	StatusGenericFailure        Status = 9
	StatusPendingException      Status = 10
	StatusCancelled             Status = 11
	StatusEscapeCalledTwice     Status = 12
	StatusHandleScopeMismatch   Status = 13
	StatusCallbackScopeMismatch Status = 14
	StatusQueueFull             Status = 15
	StatusClosing               Status = 16
	StatusBigintExpected        Status = 17
	StatusDateExpected          Status = 18
	StatusArrayBufferExpected   Status = 19
	StatusDetachableExpected    Status = 20
	StatusWouldDeadlock         Status = 21
	StatusNoExternalBuffers     Status = 22
	StatusCannotRunJS           Status = 23
)

var statusNames = map[Status]string{
	StatusOK:                    "ok",
	StatusInvalidArg:            "invalid argument",
	StatusObjectExpected:        "object expected",
	StatusStringExpected:        "string expected",
	StatusNameExpected:          "name expected",
	StatusFunctionExpected:      "function expected",
	StatusNumberExpected:        "number expected",
	StatusBooleanExpected:       "boolean expected",
	StatusArrayExpected:         "array expected",
	StatusGenericFailure:        "generic failure",
	StatusPendingException:      "pending exception",
	StatusCancelled:             "cancelled",
	StatusEscapeCalledTwice:     "escape called twice",
	StatusHandleScopeMismatch:   "handle scope mismatch",
	StatusCallbackScopeMismatch: "callback scope mismatch",
	StatusQueueFull:             "queue full",
	StatusClosing:               "closing",
	StatusBigintExpected:        "bigint expected",
	StatusDateExpected:          "date expected",
	StatusArrayBufferExpected:   "arraybuffer expected",
	StatusDetachableExpected:    "detachable arraybuffer expected",
	StatusWouldDeadlock:         "would deadlock",
	StatusNoExternalBuffers:     "external buffers not allowed",
	StatusCannotRunJS:           "cannot run js",
}

// String returns the human-readable name of the status code.
func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown status %d", int32(s))
}

// StatusError is an error carrying a non-OK native status code and the
// operation that produced it.
type StatusError struct {
	Status Status // Raw native status code
	Op     string // Operation that failed
}

// Error implements the error interface.
func (e *StatusError) Error() string {
	return fmt.Sprintf("napi %s: %s (status %d)", e.Op, e.Status, int32(e.Status))
}

// NewStatusError creates an error from a native status code.
// Returns nil if the status indicates success.
func NewStatusError(status Status, op string) error {
	if status == StatusOK {
		return nil
	}
	return &StatusError{Status: status, Op: op}
}
