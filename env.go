//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Env is a non-owning reference to one native runtime instance. It is
// created by the embedding runtime and must be attached before use; it
// outlives every interop call made against it and becomes invalid when the
// runtime tears the environment down.
type Env uintptr

// Value is an opaque handle to a JS value owned by the runtime. Values are
// produced and consumed by the higher-level value API; this layer only
// marshals them.
type Value uintptr

type envState struct {
	image uintptr
	valid atomic.Bool
}

var (
	envMu sync.RWMutex
	envs  = make(map[Env]*envState)
)

// Attach registers an environment handle received from the embedding runtime
// and binds it to the loaded module image. A cleanup hook is installed so
// the handle is invalidated automatically at environment teardown. Safe to
// call once per environment; attaching an already-attached handle returns it
// unchanged.
func Attach(raw uintptr) (Env, error) {
	d, err := active()
	if err != nil {
		return 0, err
	}
	return attach(raw, d.image)
}

func attach(raw, image uintptr) (Env, error) {
	if raw == 0 {
		return 0, ErrEnvInvalid
	}
	env := Env(raw)

	envMu.Lock()
	if st, ok := envs[env]; ok {
		envMu.Unlock()
		if !st.valid.Load() {
			return 0, ErrEnvInvalid
		}
		return env, nil
	}
	st := &envState{image: image}
	st.valid.Store(true)
	envs[env] = st
	envMu.Unlock()

	// Invalidate the handle when the runtime tears the environment down;
	// from then on every operation against it fails ErrEnvInvalid.
	if _, err := AddCleanupHook(env, func() {
		invalidate(env)
	}); err != nil {
		envMu.Lock()
		delete(envs, env)
		envMu.Unlock()
		return 0, err
	}

	Logger().Debug("environment attached", zap.Uintptr("env", raw))
	return env, nil
}

func invalidate(env Env) {
	envMu.RLock()
	st, ok := envs[env]
	envMu.RUnlock()
	if ok {
		st.valid.Store(false)
		Logger().Debug("environment invalidated", zap.Uintptr("env", uintptr(env)))
	}
}

// Valid reports whether the handle refers to a live, attached environment.
func (e Env) Valid() bool {
	envMu.RLock()
	st, ok := envs[e]
	envMu.RUnlock()
	return ok && st.valid.Load()
}

// imageOf returns the module image an environment resolves against.
func imageOf(e Env) (uintptr, error) {
	envMu.RLock()
	st, ok := envs[e]
	envMu.RUnlock()
	if !ok || !st.valid.Load() {
		return 0, ErrEnvInvalid
	}
	return st.image, nil
}
