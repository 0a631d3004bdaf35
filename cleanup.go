//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/obinnaokechukwu/napigo/internal/handles"
)

// CleanupHook is a registration token for a synchronous teardown hook. Hooks
// run during environment teardown in unspecified order relative to each
// other.
type CleanupHook struct {
	env   Env
	fn    func()
	argID uintptr
	ran   atomic.Bool
}

// AddCleanupHook registers fn to run synchronously during environment
// teardown. The returned token deregisters it with Remove before teardown
// starts.
func AddCleanupHook(env Env, fn func()) (*CleanupHook, error) {
	if fn == nil {
		return nil, NewStatusError(StatusInvalidArg, "napi_add_env_cleanup_hook")
	}
	h := &CleanupHook{env: env, fn: fn}
	h.argID = handles.Register(h)

	status, err := nativeCall(env, FuncAddEnvCleanupHook,
		cleanupCallback(), h.argID)
	if err != nil {
		handles.Unregister(h.argID)
		return nil, err
	}
	if status != StatusOK {
		handles.Unregister(h.argID)
		return nil, NewStatusError(status, "napi_add_env_cleanup_hook")
	}
	return h, nil
}

// Remove deregisters the hook so it never executes. Fails with ErrHookRan if
// teardown already ran it.
func (h *CleanupHook) Remove() error {
	if h.ran.Load() {
		return ErrHookRan
	}
	status, err := nativeCall(h.env, FuncRemoveEnvCleanupHook,
		cleanupCallback(), h.argID)
	handles.Unregister(h.argID)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_remove_env_cleanup_hook")
}

func (h *CleanupHook) run() {
	h.ran.Store(true)
	h.fn()
}

// AsyncCleanupHook is a registration token for an asynchronous teardown
// hook. Teardown does not proceed past the hook until it signals its
// completion handle, so hooks can drain asynchronous state first.
type AsyncCleanupHook struct {
	env    Env
	image  uintptr
	fn     func(done func())
	argID  uintptr
	handle uintptr // native napi_async_cleanup_hook_handle
}

// AddAsyncCleanupHook registers fn to run during environment teardown. fn
// receives a done func it must call exactly once when its asynchronous work
// has drained; teardown blocks until then.
func AddAsyncCleanupHook(env Env, fn func(done func())) (*AsyncCleanupHook, error) {
	if fn == nil {
		return nil, NewStatusError(StatusInvalidArg, "napi_add_async_cleanup_hook")
	}
	image, err := imageOf(env)
	if err != nil {
		return nil, err
	}
	h := &AsyncCleanupHook{env: env, image: image, fn: fn}
	h.argID = handles.Register(h)

	var out uintptr
	status, err := nativeCall(env, FuncAddAsyncCleanupHook,
		asyncCleanupCallback(), h.argID, uintptr(unsafe.Pointer(&out)))
	if err != nil {
		handles.Unregister(h.argID)
		return nil, err
	}
	if status != StatusOK {
		handles.Unregister(h.argID)
		return nil, NewStatusError(status, "napi_add_async_cleanup_hook")
	}
	h.handle = out
	return h, nil
}

// Remove deregisters the hook before teardown. Must not be called once the
// hook has started; the hook's own done func signals completion instead.
func (h *AsyncCleanupHook) Remove() error {
	status, err := nativeCallImage(h.image, FuncRemoveAsyncCleanupHook, h.handle)
	handles.Unregister(h.argID)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_remove_async_cleanup_hook")
}

// start runs the hook with a once-guarded completion signal. handle is the
// completion handle the runtime passed to the trampoline; signaling it
// unblocks teardown.
func (h *AsyncCleanupHook) start(handle uintptr) {
	var once sync.Once
	done := func() {
		once.Do(func() {
			nativeCallImage(h.image, FuncRemoveAsyncCleanupHook, handle)
		})
	}
	h.fn(done)
}
