//go:build !ios && !android && (amd64 || arm64)

// Package napigo is the dispatch and lifecycle-coordination core for hosting
// an embedded Node-API JavaScript runtime from Go, without CGO, using purego.
//
// It resolves symbolic function identifiers to native entry points at
// runtime, marshals calls across the Go/native boundary, and coordinates the
// asynchronous primitives of the native ABI: async work items, threadsafe
// function handles, and environment cleanup hooks. The higher-level value
// API (creating and inspecting JS values) consumes this core through the
// uniform Call and Resolve entry points and is deliberately out of scope
// here.
//
// Typical setup:
//
//	if err := napigo.Init(); err != nil { ... }
//	env, err := napigo.Attach(rawEnv) // rawEnv handed over by the runtime
package napigo

import (
	"sync"
	"unsafe"

	"go.uber.org/zap"

	"github.com/obinnaokechukwu/napigo/internal/bindings"
)

type config struct {
	strategy StrategyKind
}

// Option configures Init. The resolution strategy is the only build/load
// time knob this core exposes; it is interchangeable without affecting
// callers.
type Option func(*config)

// WithStrategy selects the resolution strategy. The default is StrategyLazy.
func WithStrategy(k StrategyKind) Option {
	return func(c *config) {
		c.strategy = k
	}
}

var initOnce sync.Once

// Init locates and loads the node runtime library and installs the
// dispatcher. Safe to call multiple times; the first call's options win.
func Init(opts ...Option) error {
	var err error
	initOnce.Do(func() {
		cfg := config{strategy: StrategyLazy}
		for _, opt := range opts {
			opt(&cfg)
		}
		if err = bindings.Load(); err != nil {
			return
		}

		var strategy Strategy
		switch cfg.strategy {
		case StrategyEager:
			strategy = NewEagerStrategy()
		case StrategyDirect:
			strategy = NewDirectStrategy()
		default:
			strategy = NewLazyStrategy()
		}
		disp = newDispatcher(strategy, bindings.Lib())

		Logger().Info("node runtime loaded",
			zap.String("path", bindings.Path()),
			zap.Stringer("strategy", cfg.strategy))
	})
	if err != nil {
		return err
	}
	if disp == nil {
		return ErrNotLoaded
	}
	return nil
}

// IsLoaded returns true if the node runtime library has been successfully
// loaded.
func IsLoaded() bool {
	return bindings.IsLoaded()
}

// LibraryPath returns the path the runtime library was loaded from, or empty
// string if not loaded.
func LibraryPath() string {
	return bindings.Path()
}

// Version returns the Node-API version supported by the environment's
// runtime. Higher layers gate optional features on it.
func Version(env Env) (uint32, error) {
	var out uint32
	status, err := nativeCall(env, FuncGetVersion,
		uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return 0, err
	}
	if status != StatusOK {
		return 0, NewStatusError(status, "napi_get_version")
	}
	return out, nil
}

// ModuleFileName returns the add-on module's file URL. Only newer runtimes
// export it, so feature-detect first; older runtimes report ErrUnsupported.
func ModuleFileName(env Env) (string, error) {
	if !Supports(env, FuncGetModuleFileName) {
		return "", ErrUnsupported
	}
	var out uintptr
	status, err := nativeCall(env, FuncGetModuleFileName,
		uintptr(unsafe.Pointer(&out)))
	if err != nil {
		return "", err
	}
	if status != StatusOK {
		return "", NewStatusError(status, "node_api_get_module_file_name")
	}
	// The native side owns the string; copy it out before returning.
	return goString(out), nil
}
