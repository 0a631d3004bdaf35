//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"sync/atomic"
	"unsafe"

	"github.com/obinnaokechukwu/napigo/internal/handles"
)

// Async work states tracked on the Go side. Execution itself happens on a
// runtime worker thread the coordinator never sees.
const (
	workCreated int32 = iota
	workQueued
	workCompleted
	workDeleted
)

// AsyncWork is one scheduled unit of off-thread work plus its on-thread
// completion callback. It has a single logical owner: the caller that
// created it, who must Delete it exactly once after observing completion.
type AsyncWork struct {
	env    Env
	handle uintptr // native napi_async_work
	dataID uintptr // handle-registry ID carried as the ABI data pointer

	execute  func(Env)
	complete func(Env, Status)

	state atomic.Int32
}

// CreateAsyncWork creates an async work item. The execute callback runs on a
// worker thread chosen by the runtime and must not call environment-bound
// operations; the complete callback runs on the environment's own thread
// with the final status (StatusCancelled if cancellation won the race).
// resource and resourceName are opaque values supplied by the higher-level
// value API for async tracking.
func CreateAsyncWork(env Env, resource, resourceName Value, execute func(Env), complete func(Env, Status)) (*AsyncWork, error) {
	if execute == nil {
		return nil, NewStatusError(StatusInvalidArg, "napi_create_async_work")
	}

	w := &AsyncWork{env: env, execute: execute, complete: complete}
	w.dataID = handles.Register(w)

	var out uintptr
	status, err := nativeCall(env, FuncCreateAsyncWork,
		uintptr(resource),
		uintptr(resourceName),
		executeCallback(),
		completeCallback(),
		w.dataID,
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		handles.Unregister(w.dataID)
		return nil, err
	}
	if status != StatusOK {
		handles.Unregister(w.dataID)
		return nil, NewStatusError(status, "napi_create_async_work")
	}
	w.handle = out
	return w, nil
}

// Queue schedules the work for execution.
func (w *AsyncWork) Queue() error {
	if w.state.Load() == workDeleted {
		return ErrWorkDeleted
	}
	if !w.state.CompareAndSwap(workCreated, workQueued) {
		return NewStatusError(StatusGenericFailure, "napi_queue_async_work")
	}
	status, err := nativeCall(w.env, FuncQueueAsyncWork, w.handle)
	if err != nil {
		w.state.CompareAndSwap(workQueued, workCreated)
		return err
	}
	if status != StatusOK {
		w.state.CompareAndSwap(workQueued, workCreated)
		return NewStatusError(status, "napi_queue_async_work")
	}
	return nil
}

// Cancel requests cancellation. Best-effort: it fails once execution has
// started and the work then runs to completion anyway. A successful cancel
// still delivers the completion callback, with StatusCancelled.
func (w *AsyncWork) Cancel() error {
	if w.state.Load() == workDeleted {
		return ErrWorkDeleted
	}
	status, err := nativeCall(w.env, FuncCancelAsyncWork, w.handle)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_cancel_async_work")
}

// Delete releases the native work handle. Must be called exactly once, after
// completion is observed; the coordinator rejects a second delete rather
// than forwarding it to the native side.
func (w *AsyncWork) Delete() error {
	prev := w.state.Swap(workDeleted)
	if prev == workDeleted {
		return ErrWorkDeleted
	}
	status, err := nativeCall(w.env, FuncDeleteAsyncWork, w.handle)
	handles.Unregister(w.dataID)
	if err != nil {
		return err
	}
	return NewStatusError(status, "napi_delete_async_work")
}

// Completed reports whether the completion callback has been delivered.
func (w *AsyncWork) Completed() bool {
	return w.state.Load() == workCompleted
}

func (w *AsyncWork) runExecute(env Env) {
	w.execute(env)
}

func (w *AsyncWork) runComplete(env Env, status Status) {
	w.state.CompareAndSwap(workQueued, workCompleted)
	if w.complete != nil {
		w.complete(env, status)
	}
}
