//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/napigo/internal/handles"
)

// CallMode selects admission behavior for ThreadsafeFunction.Call.
type CallMode int32

const (
	// CallNonBlocking fails immediately with ErrQueueFull when the queue
	// is at capacity.
	CallNonBlocking CallMode = 0
	// CallBlocking suspends the caller until there is queue room. The
	// only operation in this layer that may block.
	CallBlocking CallMode = 1
)

// ReleaseMode selects how a thread gives up its reference.
type ReleaseMode int32

const (
	// ReleaseDefault finalizes once the reference count reaches zero and
	// the queue drains.
	ReleaseDefault ReleaseMode = 0
	// ReleaseAbort immediately rejects pending and future calls and
	// accelerates finalization.
	ReleaseAbort ReleaseMode = 1
)

// ThreadsafeFunction is a callable the environment's own thread eventually
// invokes, safely callable from any thread. Calls enqueued by one thread are
// delivered in enqueue order; ordering across threads is unspecified by the
// runtime.
type ThreadsafeFunction struct {
	env    Env
	image  uintptr // captured at creation; calls may outlive env validity
	handle uintptr // native napi_threadsafe_function
	ctxID  uintptr // handle-registry ID used as the ABI context pointer

	context  any
	callJS   func(Env, Value, any)
	finalize func(Env)

	closed atomic.Bool
}

// CreateThreadsafeFunction establishes a threadsafe function around fn with
// the given queue capacity (0 = unbounded) and initial thread count. callJS
// is invoked on the environment thread for each delivered call with the
// payload passed to Call; finalize runs exactly once, strictly after the
// last queued call is delivered or discarded. resource and resourceName are
// opaque values supplied by the higher-level value API.
func CreateThreadsafeFunction(env Env, fn, resource, resourceName Value,
	maxQueueSize, initialThreadCount uint, context any,
	callJS func(Env, Value, any), finalize func(Env)) (*ThreadsafeFunction, error) {

	if initialThreadCount == 0 {
		return nil, NewStatusError(StatusInvalidArg, "napi_create_threadsafe_function")
	}
	image, err := imageOf(env)
	if err != nil {
		return nil, err
	}

	tf := &ThreadsafeFunction{
		env:      env,
		image:    image,
		context:  context,
		callJS:   callJS,
		finalize: finalize,
	}
	tf.ctxID = handles.Register(tf)

	var out uintptr
	status, err := nativeCall(env, FuncCreateThreadsafeFunction,
		uintptr(fn),
		uintptr(resource),
		uintptr(resourceName),
		uintptr(maxQueueSize),
		uintptr(initialThreadCount),
		tf.ctxID, // thread_finalize_data
		tsfnFinalizeCallback(),
		tf.ctxID, // context
		tsfnCallCallback(),
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		handles.Unregister(tf.ctxID)
		return nil, err
	}
	if status != StatusOK {
		handles.Unregister(tf.ctxID)
		return nil, NewStatusError(status, "napi_create_threadsafe_function")
	}
	tf.handle = out
	return tf, nil
}

// Call enqueues one invocation with an arbitrary payload. Safe to call from
// any thread. Only this method and the queue-capacity suspension of
// CallBlocking may block; CallNonBlocking returns ErrQueueFull instead.
func (tf *ThreadsafeFunction) Call(data any, mode CallMode) error {
	if tf.closed.Load() {
		return ErrClosing
	}

	// The payload rides through the ABI as a registry ID; a rejected call
	// must take it back out so nothing leaks.
	id := handles.Register(payload{data})
	status, err := nativeCallImage(tf.image, FuncCallThreadsafeFunction,
		tf.handle, id, uintptr(mode))
	if err != nil {
		handles.Unregister(id)
		return err
	}
	switch status {
	case StatusOK:
		return nil
	case StatusQueueFull:
		handles.Unregister(id)
		return ErrQueueFull
	case StatusClosing:
		handles.Unregister(id)
		tf.closed.Store(true)
		return ErrClosing
	default:
		handles.Unregister(id)
		return NewStatusError(status, "napi_call_threadsafe_function")
	}
}

// Acquire adds a reference for a thread that will make calls. Fails with
// ErrClosing once finalization has begun.
func (tf *ThreadsafeFunction) Acquire() error {
	status, err := nativeCallImage(tf.image, FuncAcquireThreadsafeFunction, tf.handle)
	if err != nil {
		return err
	}
	if status == StatusClosing {
		tf.closed.Store(true)
		return ErrClosing
	}
	return NewStatusError(status, "napi_acquire_threadsafe_function")
}

// Release gives up one reference. ReleaseAbort rejects all pending and
// future calls immediately; ReleaseDefault finalizes once the count reaches
// zero and the queue drains. Further calls after either path report
// ErrClosing.
func (tf *ThreadsafeFunction) Release(mode ReleaseMode) error {
	if mode == ReleaseAbort {
		tf.closed.Store(true)
	}
	status, err := nativeCallImage(tf.image, FuncReleaseThreadsafeFunction,
		tf.handle, uintptr(mode))
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_release_threadsafe_function")
}

// Ref keeps the environment's event loop alive while the function is
// outstanding. Affects loop liveness only, never call admission. Must be
// called from the environment thread.
func (tf *ThreadsafeFunction) Ref() error {
	status, err := nativeCall(tf.env, FuncRefThreadsafeFunction, tf.handle)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_ref_threadsafe_function")
}

// Unref allows the event loop to exit with the function still outstanding.
// Must be called from the environment thread.
func (tf *ThreadsafeFunction) Unref() error {
	status, err := nativeCall(tf.env, FuncUnrefThreadsafeFunction, tf.handle)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_unref_threadsafe_function")
}

// Context returns the context value supplied at creation, fetched back
// through the native handle.
func (tf *ThreadsafeFunction) Context() (any, error) {
	var out uintptr
	status, err := nativeCallImage(tf.image, FuncGetThreadsafeFunctionContext,
		tf.handle, uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return nil, err
	}
	if status != StatusOK {
		return nil, NewStatusError(status, "napi_get_threadsafe_function_context")
	}
	other, ok := handles.Lookup(out).(*ThreadsafeFunction)
	if !ok {
		return nil, NewStatusError(StatusGenericFailure, "napi_get_threadsafe_function_context")
	}
	return other.context, nil
}

// Closing reports whether the handle has begun finalization.
func (tf *ThreadsafeFunction) Closing() bool {
	return tf.closed.Load()
}

// payload wraps a per-call datum so nil payloads still occupy a registry slot.
type payload struct{ data any }

func (tf *ThreadsafeFunction) runCall(env Env, jsCallback Value, v any) {
	if tf.callJS == nil {
		return
	}
	data := any(nil)
	if p, ok := v.(payload); ok {
		data = p.data
	}
	tf.callJS(env, jsCallback, data)
}

func (tf *ThreadsafeFunction) runFinalize(env Env) {
	tf.closed.Store(true)
	if tf.finalize != nil {
		tf.finalize(env)
	}
	Logger().Debug("threadsafe function finalized",
		zap.Uintptr("handle", tf.handle))
}
