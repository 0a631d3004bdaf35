//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// directStrategy binds each symbol to a typed Go function ahead of use via
// purego.RegisterLibFunc, the moral equivalent of generated direct calls for
// a build-time-known ABI surface. The typed call replaces the generic
// syscall path; callers observe no difference.
type directStrategy struct {
	mu     sync.Mutex
	images map[uintptr]map[Func]Entry
}

// NewDirectStrategy returns the ahead-of-time typed binding strategy.
func NewDirectStrategy() Strategy {
	return &directStrategy{images: make(map[uintptr]map[Func]Entry)}
}

func (s *directStrategy) Resolve(image uintptr, fn Func) (Entry, error) {
	if !fn.Valid() {
		return Entry{}, fmt.Errorf("%w: %v", ErrUnsupported, fn)
	}

	s.mu.Lock()
	table, ok := s.images[image]
	if !ok {
		table = buildDirectTable(image)
		s.images[image] = table
	}
	s.mu.Unlock()

	entry, ok := table[fn]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnsupported, fn.symbol())
	}
	return entry, nil
}

// registerLibFunc binds a typed function pointer to a symbol. A variable so
// tests can supply a stub binder.
var registerLibFunc = purego.RegisterLibFunc

func buildDirectTable(image uintptr) map[Func]Entry {
	table := make(map[Func]Entry, funcCount)
	for f := Func(0); f < funcCount; f++ {
		addr, err := dlsym(image, f.symbol())
		if err != nil || addr == 0 {
			continue
		}
		entry, ok := bindDirect(image, f, addr)
		if !ok {
			continue
		}
		table[f] = entry
	}
	return table
}

// bindDirect registers a typed binding for one symbol. All parameters are
// machine words by ABI definition (handles, pointers, sizes), so the typed
// signatures differ only in arity and return.
func bindDirect(image uintptr, fn Func, addr uintptr) (entry Entry, ok bool) {
	// RegisterLibFunc panics if the symbol vanished between Dlsym and
	// registration; treat that as unsupported rather than crashing.
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()

	sym := fn.symbol()

	if fn == FuncFatalError {
		// The one void-returning identifier; it also never returns
		// control at runtime.
		var f func(a, b, c, d uintptr)
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			f(args[0], args[1], args[2], args[3])
			return StatusOK
		}}, true
	}

	switch fn.arity() {
	case 1:
		var f func(a uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0])
		}}, true
	case 2:
		var f func(a, b uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1])
		}}, true
	case 3:
		var f func(a, b, c uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2])
		}}, true
	case 4:
		var f func(a, b, c, d uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2], args[3])
		}}, true
	case 5:
		var f func(a, b, c, d, e uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2], args[3], args[4])
		}}, true
	case 6:
		var f func(a, b, c, d, e, g uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2], args[3], args[4], args[5])
		}}, true
	case 7:
		var f func(a, b, c, d, e, g, h uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2], args[3], args[4], args[5], args[6])
		}}, true
	case 11:
		var f func(a, b, c, d, e, g, h, i, j, k, l uintptr) Status
		registerLibFunc(&f, image, sym)
		return Entry{Addr: addr, invoke: func(args []uintptr) Status {
			return f(args[0], args[1], args[2], args[3], args[4],
				args[5], args[6], args[7], args[8], args[9], args[10])
		}}, true
	default:
		return Entry{}, false
	}
}
