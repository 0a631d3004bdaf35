//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"fmt"

	"go.uber.org/zap"
)

// maxCallArgs is the most arguments the generic caller can marshal, bounded
// by purego.SyscallN. The widest identifier in the ABI takes 11.
const maxCallArgs = 15

// dispatcher is the invocation shim: it resolves identifiers through the
// configured strategy, marshals a bounded argument list into a native call,
// and reports the status code back without interpretation.
type dispatcher struct {
	strategy Strategy
	image    uintptr // module image new environments bind to
	table    *symtab
}

func newDispatcher(s Strategy, image uintptr) *dispatcher {
	return &dispatcher{strategy: s, image: image, table: newSymtab()}
}

func (d *dispatcher) resolveImage(image uintptr, fn Func) (Entry, error) {
	return d.table.resolve(d.strategy, image, fn)
}

// callImage invokes fn against a module image directly, for the few
// identifiers whose ABI takes no environment handle (threadsafe-function
// calls from worker threads, fatal error).
func (d *dispatcher) callImage(image uintptr, fn Func, args []uintptr) (Status, error) {
	entry, err := d.resolveImage(image, fn)
	if err != nil {
		return StatusGenericFailure, err
	}
	checkArity(fn, len(args))
	return entry.call(args), nil
}

// call invokes fn against env. For identifiers whose ABI takes an
// environment handle it is marshaled as the first native argument and args
// supply the rest; env-less identifiers receive args as-is, with env
// supplying only the image to resolve against. The status is returned
// verbatim; out-parameter slots in args are valid only on StatusOK.
func (d *dispatcher) call(env Env, fn Func, args []uintptr) (Status, error) {
	image, err := imageOf(env)
	if err != nil {
		return StatusGenericFailure, err
	}
	entry, err := d.resolveImage(image, fn)
	if err != nil {
		return StatusGenericFailure, err
	}
	if !fn.takesEnv() {
		checkArity(fn, len(args))
		return entry.call(args), nil
	}
	full := make([]uintptr, 0, len(args)+1)
	full = append(full, uintptr(env))
	full = append(full, args...)
	checkArity(fn, len(full))
	return entry.call(full), nil
}

// checkArity panics on an argument-count mismatch: the identifier set is
// closed, so a wrong count is a programming error, not a runtime condition.
func checkArity(fn Func, n int) {
	if n != fn.arity() || n > maxCallArgs {
		panic(fmt.Sprintf("napigo: %s takes %d arguments, got %d", fn, fn.arity(), n))
	}
}

// disp is the process-wide dispatcher, set by Init.
var disp *dispatcher

func active() (*dispatcher, error) {
	if disp == nil {
		return nil, ErrNotLoaded
	}
	return disp, nil
}

// Call invokes a native operation by identifier against an environment.
// The environment handle is marshaled as the first native argument, except
// for the identifiers whose ABI takes none (threadsafe-function calls,
// async-cleanup removal, fatal error); those receive args unchanged and use
// env only to select the module image. The returned status is the native
// code, uninterpreted; callers must not read out-parameters unless it is
// StatusOK. The error reports resolution and environment failures only.
func Call(env Env, fn Func, args ...uintptr) (Status, error) {
	d, err := active()
	if err != nil {
		return StatusGenericFailure, err
	}
	return d.call(env, fn, args)
}

// Resolve returns the entry point for an identifier under an environment.
// Resolution is idempotent: repeated calls yield the same address.
func Resolve(env Env, fn Func) (Entry, error) {
	d, err := active()
	if err != nil {
		return Entry{}, err
	}
	image, err := imageOf(env)
	if err != nil {
		return Entry{}, err
	}
	return d.resolveImage(image, fn)
}

// Supports reports whether the loaded runtime exports the identifier for the
// given environment. Higher layers use this to feature-detect optional
// operations on older runtimes instead of hard-failing.
func Supports(env Env, fn Func) bool {
	entry, err := Resolve(env, fn)
	if err != nil {
		Logger().Debug("capability probe miss",
			zap.Stringer("func", fn))
		return false
	}
	return entry.Addr != 0
}

// nativeCall is the internal form of Call used by the lifecycle coordinator.
func nativeCall(env Env, fn Func, args ...uintptr) (Status, error) {
	return Call(env, fn, args...)
}

// nativeCallImage invokes an environment-less identifier against an image.
func nativeCallImage(image uintptr, fn Func, args ...uintptr) (Status, error) {
	d, err := active()
	if err != nil {
		return StatusGenericFailure, err
	}
	return d.callImage(image, fn, args)
}
