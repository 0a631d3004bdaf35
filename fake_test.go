//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"fmt"
	"sync"
	"testing"
	"unsafe"
)

// fakeRuntime emulates the native runtime's observable semantics behind the
// Strategy interface so the dispatch and lifecycle layers can be tested
// hermetically. It delivers callbacks by invoking the Go-side callback cores
// directly, exactly where the native trampolines would land.
type fakeRuntime struct {
	mu    sync.Mutex
	image uintptr

	missing  map[Func]bool // symbols the "loaded runtime" does not export
	resolved map[Func]int  // strategy resolution count per identifier

	envs   map[uintptr]*fakeEnv
	works  map[uintptr]*fakeWork
	tsfns  map[uintptr]*fakeTSFN
	hooks  map[uintptr]*fakeAsyncHook // async cleanup hooks by completion handle
	values map[uintptr]*fakeBuffer

	// deferWork holds queued async work until drainWork, so cancellation
	// races can be tested deterministically.
	deferWork   bool
	pendingWork []uintptr

	fatals [][2]string

	next uintptr
}

type fakeEnv struct {
	raw        uintptr
	cleanups   []fakeCleanup
	asyncHooks []*fakeAsyncHook
	tearing    bool
	tornDown   bool
}

type fakeCleanup struct {
	cb, arg uintptr
}

type fakeWork struct {
	env       uintptr
	data      uintptr
	queued    bool
	started   bool
	done      bool
	cancelled bool
}

type fakeTSFN struct {
	env       uintptr
	fn        uintptr
	maxQueue  int
	threads   int
	ctx       uintptr
	finData   uintptr
	queue     []uintptr
	aborted   bool
	finalized bool
	refed     bool
}

type fakeBuffer struct {
	data    []byte
	hint    uintptr // external buffers: finalize hint
	isExt   bool
	modName []byte
}

func newFakeRuntime(t *testing.T) *fakeRuntime {
	t.Helper()
	f := &fakeRuntime{
		image:    0x10000,
		missing:  make(map[Func]bool),
		resolved: make(map[Func]int),
		envs:     make(map[uintptr]*fakeEnv),
		works:    make(map[uintptr]*fakeWork),
		tsfns:    make(map[uintptr]*fakeTSFN),
		hooks:    make(map[uintptr]*fakeAsyncHook),
		values:   make(map[uintptr]*fakeBuffer),
		next:     0x20000,
	}

	oldDisp := disp
	disp = newDispatcher(f, f.image)
	t.Cleanup(func() {
		disp = oldDisp
		envMu.Lock()
		envs = make(map[Env]*envState)
		envMu.Unlock()
	})
	return f
}

// Resolve implements Strategy.
func (f *fakeRuntime) Resolve(image uintptr, fn Func) (Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if image != f.image || f.missing[fn] {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnsupported, fn.symbol())
	}
	f.resolved[fn]++
	return Entry{
		Addr: 0xA0000 + uintptr(fn),
		invoke: func(args []uintptr) Status {
			return f.call(fn, args)
		},
	}, nil
}

func (f *fakeRuntime) id() uintptr {
	f.next++
	return f.next
}

// newEnv creates a raw environment handle and attaches it.
func (f *fakeRuntime) newEnv(t *testing.T) Env {
	t.Helper()
	f.mu.Lock()
	raw := f.id()
	f.envs[raw] = &fakeEnv{raw: raw}
	f.mu.Unlock()

	env, err := Attach(raw)
	if err != nil {
		t.Fatalf("Attach: %v", err)
	}
	return env
}

// teardown simulates environment teardown: sync hooks run LIFO, then async
// hooks start; the environment is fully torn down only once every async
// hook has signaled its completion handle.
func (f *fakeRuntime) teardown(raw uintptr) {
	f.mu.Lock()
	fe := f.envs[raw]
	if fe == nil || fe.tearing {
		f.mu.Unlock()
		return
	}
	fe.tearing = true
	sync := make([]fakeCleanup, len(fe.cleanups))
	copy(sync, fe.cleanups)
	async := make([]*fakeAsyncHook, len(fe.asyncHooks))
	copy(async, fe.asyncHooks)
	f.mu.Unlock()

	for i := len(sync) - 1; i >= 0; i-- {
		cleanupRun(sync[i].arg)
	}
	for _, h := range async {
		if h.removed {
			continue
		}
		h.started = true
		asyncCleanupRun(h.handle, h.arg)
	}
	f.finishTeardownIfDrained(raw)
}

func (f *fakeRuntime) finishTeardownIfDrained(raw uintptr) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fe := f.envs[raw]
	if fe == nil || !fe.tearing {
		return
	}
	for _, h := range fe.asyncHooks {
		if !h.removed {
			return
		}
	}
	fe.tornDown = true
}

func (f *fakeRuntime) envTornDown(raw uintptr) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	fe := f.envs[raw]
	return fe != nil && fe.tornDown
}

// drainWork runs all deferred async work items.
func (f *fakeRuntime) drainWork() {
	f.mu.Lock()
	pending := f.pendingWork
	f.pendingWork = nil
	f.mu.Unlock()
	for _, h := range pending {
		f.runWork(h)
	}
}

func (f *fakeRuntime) runWork(h uintptr) {
	f.mu.Lock()
	w := f.works[h]
	if w == nil || w.done {
		f.mu.Unlock()
		return
	}
	cancelled := w.cancelled
	if !cancelled {
		w.started = true
	}
	env, data := w.env, w.data
	f.mu.Unlock()

	if !cancelled {
		asyncExecute(env, data)
	}

	f.mu.Lock()
	w.done = true
	f.mu.Unlock()

	status := uintptr(uint32(StatusOK))
	if cancelled {
		status = uintptr(uint32(StatusCancelled))
	}
	asyncComplete(env, status, data)
}

// drainTSFN delivers every queued threadsafe-function call on the
// "environment thread".
func (f *fakeRuntime) drainTSFN(h uintptr) {
	for {
		f.mu.Lock()
		tf := f.tsfns[h]
		if tf == nil || len(tf.queue) == 0 {
			f.mu.Unlock()
			return
		}
		data := tf.queue[0]
		tf.queue = tf.queue[1:]
		env, fn, ctx := tf.env, tf.fn, tf.ctx
		f.mu.Unlock()

		tsfnCallJS(env, fn, ctx, data)
	}
}

func (f *fakeRuntime) finalizeTSFN(h uintptr) {
	f.mu.Lock()
	tf := f.tsfns[h]
	if tf == nil || tf.finalized {
		f.mu.Unlock()
		return
	}
	tf.finalized = true
	env, finData := tf.env, tf.finData
	f.mu.Unlock()

	tsfnFinalize(env, finData, 0)
}

// releaseValue simulates the runtime collecting a wrapping value, firing the
// external-buffer finalizer.
func (f *fakeRuntime) releaseValue(v Value) {
	f.mu.Lock()
	b := f.values[uintptr(v)]
	if b == nil || !b.isExt {
		f.mu.Unlock()
		return
	}
	hint := b.hint
	delete(f.values, uintptr(v))
	f.mu.Unlock()

	bufferFinalize(0, 0, hint)
}

// call implements the native side of every identifier.
func (f *fakeRuntime) call(fn Func, args []uintptr) Status {
	switch fn {
	case FuncGetVersion:
		storeU32(args[1], 9)
		return StatusOK

	case FuncCreateAsyncWork:
		f.mu.Lock()
		h := f.id()
		f.works[h] = &fakeWork{env: args[0], data: args[5]}
		f.mu.Unlock()
		storeUintptr(args[6], h)
		return StatusOK

	case FuncQueueAsyncWork:
		f.mu.Lock()
		w := f.works[args[1]]
		if w == nil {
			f.mu.Unlock()
			return StatusInvalidArg
		}
		w.queued = true
		deferred := f.deferWork
		if deferred {
			f.pendingWork = append(f.pendingWork, args[1])
		}
		f.mu.Unlock()
		if !deferred {
			f.runWork(args[1])
		}
		return StatusOK

	case FuncCancelAsyncWork:
		f.mu.Lock()
		defer f.mu.Unlock()
		w := f.works[args[1]]
		if w == nil {
			return StatusInvalidArg
		}
		if w.started || w.done {
			return StatusGenericFailure
		}
		w.cancelled = true
		return StatusOK

	case FuncDeleteAsyncWork:
		f.mu.Lock()
		defer f.mu.Unlock()
		if f.works[args[1]] == nil {
			return StatusInvalidArg
		}
		delete(f.works, args[1])
		return StatusOK

	case FuncCreateThreadsafeFunction:
		f.mu.Lock()
		h := f.id()
		f.tsfns[h] = &fakeTSFN{
			env:      args[0],
			fn:       args[1],
			maxQueue: int(args[4]),
			threads:  int(args[5]),
			finData:  args[6],
			ctx:      args[8],
		}
		f.mu.Unlock()
		storeUintptr(args[10], h)
		return StatusOK

	case FuncCallThreadsafeFunction:
		f.mu.Lock()
		tf := f.tsfns[args[0]]
		if tf == nil {
			f.mu.Unlock()
			return StatusInvalidArg
		}
		if tf.aborted {
			f.mu.Unlock()
			return StatusClosing
		}
		if tf.maxQueue > 0 && len(tf.queue) >= tf.maxQueue {
			if CallMode(args[2]) == CallNonBlocking {
				f.mu.Unlock()
				return StatusQueueFull
			}
			// Blocking admission: deliver the head inline to make room,
			// the way a suspended producer would observe it.
			data := tf.queue[0]
			tf.queue = tf.queue[1:]
			env, jsfn, ctx := tf.env, tf.fn, tf.ctx
			tf.queue = append(tf.queue, args[1])
			f.mu.Unlock()
			tsfnCallJS(env, jsfn, ctx, data)
			return StatusOK
		}
		tf.queue = append(tf.queue, args[1])
		f.mu.Unlock()
		return StatusOK

	case FuncAcquireThreadsafeFunction:
		f.mu.Lock()
		defer f.mu.Unlock()
		tf := f.tsfns[args[0]]
		if tf == nil {
			return StatusInvalidArg
		}
		if tf.aborted {
			return StatusClosing
		}
		tf.threads++
		return StatusOK

	case FuncReleaseThreadsafeFunction:
		f.mu.Lock()
		tf := f.tsfns[args[0]]
		if tf == nil {
			f.mu.Unlock()
			return StatusInvalidArg
		}
		tf.threads--
		abort := ReleaseMode(args[1]) == ReleaseAbort
		finalize := abort || tf.threads <= 0
		var discard []uintptr
		ctx := tf.ctx
		if abort {
			tf.aborted = true
			discard = tf.queue
			tf.queue = nil
		}
		f.mu.Unlock()

		// Discarded items are replayed with a null environment so their
		// payloads can be released.
		for _, data := range discard {
			tsfnCallJS(0, 0, ctx, data)
		}
		if finalize {
			if !abort {
				f.drainTSFN(args[0])
			}
			f.finalizeTSFN(args[0])
		}
		return StatusOK

	case FuncRefThreadsafeFunction, FuncUnrefThreadsafeFunction:
		f.mu.Lock()
		defer f.mu.Unlock()
		tf := f.tsfns[args[1]]
		if tf == nil {
			return StatusInvalidArg
		}
		tf.refed = fn == FuncRefThreadsafeFunction
		return StatusOK

	case FuncGetThreadsafeFunctionContext:
		f.mu.Lock()
		defer f.mu.Unlock()
		tf := f.tsfns[args[0]]
		if tf == nil {
			return StatusInvalidArg
		}
		storeUintptr(args[1], tf.ctx)
		return StatusOK

	case FuncAddEnvCleanupHook:
		f.mu.Lock()
		defer f.mu.Unlock()
		fe := f.envs[args[0]]
		if fe == nil || fe.tearing {
			return StatusGenericFailure
		}
		fe.cleanups = append(fe.cleanups, fakeCleanup{cb: args[1], arg: args[2]})
		return StatusOK

	case FuncRemoveEnvCleanupHook:
		f.mu.Lock()
		defer f.mu.Unlock()
		fe := f.envs[args[0]]
		if fe == nil {
			return StatusGenericFailure
		}
		for i, c := range fe.cleanups {
			if c.cb == args[1] && c.arg == args[2] {
				fe.cleanups = append(fe.cleanups[:i], fe.cleanups[i+1:]...)
				return StatusOK
			}
		}
		return StatusGenericFailure

	case FuncAddAsyncCleanupHook:
		f.mu.Lock()
		defer f.mu.Unlock()
		fe := f.envs[args[0]]
		if fe == nil || fe.tearing {
			return StatusGenericFailure
		}
		h := &fakeAsyncHook{env: args[0], handle: f.id(), cb: args[1], arg: args[2]}
		fe.asyncHooks = append(fe.asyncHooks, h)
		f.hooks[h.handle] = h
		storeUintptr(args[3], h.handle)
		return StatusOK

	case FuncRemoveAsyncCleanupHook:
		f.mu.Lock()
		h := f.hooks[args[0]]
		if h == nil {
			f.mu.Unlock()
			return StatusInvalidArg
		}
		h.removed = true
		raw := h.env
		f.mu.Unlock()
		f.finishTeardownIfDrained(raw)
		return StatusOK

	case FuncCreateBuffer:
		n := int(args[1])
		buf := &fakeBuffer{data: make([]byte, n)}
		f.mu.Lock()
		v := f.id()
		f.values[v] = buf
		f.mu.Unlock()
		if n > 0 {
			storeUintptr(args[2], uintptr(unsafe.Pointer(&buf.data[0])))
		} else {
			storeUintptr(args[2], 0)
		}
		storeUintptr(args[3], v)
		return StatusOK

	case FuncCreateBufferCopy:
		n := int(args[1])
		buf := &fakeBuffer{data: make([]byte, n)}
		copy(buf.data, nativeBytes(args[2], n))
		f.mu.Lock()
		v := f.id()
		f.values[v] = buf
		f.mu.Unlock()
		if n > 0 {
			storeUintptr(args[3], uintptr(unsafe.Pointer(&buf.data[0])))
		} else {
			storeUintptr(args[3], 0)
		}
		storeUintptr(args[4], v)
		return StatusOK

	case FuncCreateExternalBuffer:
		buf := &fakeBuffer{
			data:  nativeBytes(args[2], int(args[1])),
			hint:  args[4],
			isExt: true,
		}
		f.mu.Lock()
		v := f.id()
		f.values[v] = buf
		f.mu.Unlock()
		storeUintptr(args[5], v)
		return StatusOK

	case FuncGetBufferInfo:
		f.mu.Lock()
		defer f.mu.Unlock()
		buf := f.values[args[1]]
		if buf == nil {
			return StatusInvalidArg
		}
		if len(buf.data) > 0 {
			storeUintptr(args[2], uintptr(unsafe.Pointer(&buf.data[0])))
		} else {
			storeUintptr(args[2], 0)
		}
		storeUintptr(args[3], uintptr(len(buf.data)))
		return StatusOK

	case FuncIsBuffer:
		f.mu.Lock()
		defer f.mu.Unlock()
		_, ok := f.values[args[1]]
		storeBool(args[2], ok)
		return StatusOK

	case FuncFatalError:
		loc := string(nativeBytes(args[0], int(args[1])))
		msg := string(nativeBytes(args[2], int(args[3])))
		f.mu.Lock()
		f.fatals = append(f.fatals, [2]string{loc, msg})
		f.mu.Unlock()
		return StatusOK

	case FuncGetModuleFileName:
		f.mu.Lock()
		defer f.mu.Unlock()
		fe := f.envs[args[0]]
		if fe == nil {
			return StatusInvalidArg
		}
		buf := &fakeBuffer{modName: append([]byte("file:///opt/host/addon.node"), 0)}
		v := f.id()
		f.values[v] = buf
		storeUintptr(args[1], uintptr(unsafe.Pointer(&buf.modName[0])))
		return StatusOK

	default:
		return StatusGenericFailure
	}
}

type fakeAsyncHook struct {
	env     uintptr
	handle  uintptr
	cb, arg uintptr
	started bool
	removed bool
}

func storeUintptr(p, v uintptr) {
	*(*uintptr)(unsafe.Pointer(p)) = v
}

func storeU32(p uintptr, v uint32) {
	*(*uint32)(unsafe.Pointer(p)) = v
}

func storeBool(p uintptr, v bool) {
	*(*bool)(unsafe.Pointer(p)) = v
}
