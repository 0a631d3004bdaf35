//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"sync"

	"github.com/ebitengine/purego"

	"github.com/obinnaokechukwu/napigo/internal/handles"
)

// Native-to-Go callback plumbing. Each callback kind gets exactly one native
// trampoline (purego.NewCallback addresses are a limited resource), created
// lazily, which forwards to the Go core function for that kind. The opaque
// data pointer the ABI carries is always a handle-registry ID, never a Go
// pointer.

var (
	executeCBOnce sync.Once
	executeCBAddr uintptr

	completeCBOnce sync.Once
	completeCBAddr uintptr

	tsfnCallCBOnce sync.Once
	tsfnCallCBAddr uintptr

	tsfnFinalizeCBOnce sync.Once
	tsfnFinalizeCBAddr uintptr

	cleanupCBOnce sync.Once
	cleanupCBAddr uintptr

	asyncCleanupCBOnce sync.Once
	asyncCleanupCBAddr uintptr

	bufferFinalizeCBOnce sync.Once
	bufferFinalizeCBAddr uintptr
)

// executeCallback returns the native address for the async-work execute
// callback, signature void(napi_env, void*).
func executeCallback() uintptr {
	executeCBOnce.Do(func() {
		executeCBAddr = purego.NewCallback(asyncExecute)
	})
	return executeCBAddr
}

// completeCallback returns the native address for the async-work complete
// callback, signature void(napi_env, napi_status, void*).
func completeCallback() uintptr {
	completeCBOnce.Do(func() {
		completeCBAddr = purego.NewCallback(asyncComplete)
	})
	return completeCBAddr
}

// tsfnCallCallback returns the native address for the threadsafe-function
// call-into-JS callback, signature void(napi_env, napi_value, void*, void*).
func tsfnCallCallback() uintptr {
	tsfnCallCBOnce.Do(func() {
		tsfnCallCBAddr = purego.NewCallback(tsfnCallJS)
	})
	return tsfnCallCBAddr
}

// tsfnFinalizeCallback returns the native address for the threadsafe-function
// finalizer, signature void(napi_env, void*, void*).
func tsfnFinalizeCallback() uintptr {
	tsfnFinalizeCBOnce.Do(func() {
		tsfnFinalizeCBAddr = purego.NewCallback(tsfnFinalize)
	})
	return tsfnFinalizeCBAddr
}

// cleanupCallback returns the native address for the synchronous env cleanup
// hook, signature void(void*).
func cleanupCallback() uintptr {
	cleanupCBOnce.Do(func() {
		cleanupCBAddr = purego.NewCallback(cleanupRun)
	})
	return cleanupCBAddr
}

// asyncCleanupCallback returns the native address for the async cleanup
// hook, signature void(napi_async_cleanup_hook_handle, void*).
func asyncCleanupCallback() uintptr {
	asyncCleanupCBOnce.Do(func() {
		asyncCleanupCBAddr = purego.NewCallback(asyncCleanupRun)
	})
	return asyncCleanupCBAddr
}

// bufferFinalizeCallback returns the native address for external-buffer
// finalization, signature void(napi_env, void*, void*).
func bufferFinalizeCallback() uintptr {
	bufferFinalizeCBOnce.Do(func() {
		bufferFinalizeCBAddr = purego.NewCallback(bufferFinalize)
	})
	return bufferFinalizeCBAddr
}

// asyncExecute runs an async work item's execute callback on a runtime
// worker thread. It must not touch environment-bound operations.
func asyncExecute(env, data uintptr) {
	w, ok := handles.Lookup(data).(*AsyncWork)
	if !ok {
		return
	}
	w.runExecute(Env(env))
}

// asyncComplete delivers an async work item's completion on the environment
// thread with its final status.
func asyncComplete(env, status, data uintptr) {
	w, ok := handles.Lookup(data).(*AsyncWork)
	if !ok {
		return
	}
	w.runComplete(Env(env), Status(int32(uint32(status))))
}

// tsfnCallJS delivers one queued threadsafe-function call on the environment
// thread. During teardown the runtime replays undelivered items with a null
// environment so their payloads can be released; those are discarded without
// invoking the user callback.
func tsfnCallJS(env, jsCallback, context, data uintptr) {
	tf, ok := handles.Lookup(context).(*ThreadsafeFunction)
	if !ok {
		handles.Unregister(data)
		return
	}
	payload := handles.Take(data)
	if env == 0 {
		return
	}
	tf.runCall(Env(env), Value(jsCallback), payload)
}

// tsfnFinalize runs a threadsafe function's finalizer exactly once, strictly
// after the last queued call has been delivered or discarded.
func tsfnFinalize(env, data, hint uintptr) {
	tf, ok := handles.Take(data).(*ThreadsafeFunction)
	if !ok {
		return
	}
	tf.runFinalize(Env(env))
}

// cleanupRun executes a synchronous env cleanup hook during teardown.
func cleanupRun(arg uintptr) {
	h, ok := handles.Take(arg).(*CleanupHook)
	if !ok {
		return
	}
	h.run()
}

// asyncCleanupRun starts an asynchronous cleanup hook. Teardown does not
// proceed until the hook signals its completion handle.
func asyncCleanupRun(handle, arg uintptr) {
	h, ok := handles.Take(arg).(*AsyncCleanupHook)
	if !ok {
		return
	}
	h.start(handle)
}

// bufferFinalize releases an external buffer's backing memory exactly once,
// after the wrapping value is no longer referenced.
func bufferFinalize(env, data, hint uintptr) {
	b, ok := handles.Take(hint).(*externalBuffer)
	if !ok {
		return
	}
	b.finalizeOnce()
}
