//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"fmt"
	"sync"

	"github.com/ebitengine/purego"
)

// Entry is a resolved native entry point: the symbol address plus a caller
// bound to its calling convention. Entries are immutable once published and
// remain valid for the rest of the process lifetime.
type Entry struct {
	Addr   uintptr
	invoke func(args []uintptr) Status
}

func (e Entry) call(args []uintptr) Status {
	return e.invoke(args)
}

// Strategy resolves a function identifier to an entry point within one
// loaded module image. Implementations differ only in when and how symbols
// are bound; the external contract is identical and never observable to
// callers. A missing symbol resolves to ErrUnsupported.
type Strategy interface {
	Resolve(image uintptr, fn Func) (Entry, error)
}

// StrategyKind selects the resolution strategy at initialization time.
type StrategyKind int

const (
	// StrategyLazy looks each symbol up on first use and caches it.
	StrategyLazy StrategyKind = iota
	// StrategyEager resolves the entire identifier set when an image is
	// first seen, so later resolution is a map lookup.
	StrategyEager
	// StrategyDirect binds each symbol to a typed call ahead of use,
	// avoiding per-call marshaling through the generic caller.
	StrategyDirect
)

func (k StrategyKind) String() string {
	switch k {
	case StrategyLazy:
		return "lazy"
	case StrategyEager:
		return "eager"
	case StrategyDirect:
		return "direct"
	default:
		return fmt.Sprintf("unknown strategy %d", int(k))
	}
}

// dlsym looks a symbol up in a loaded module image. A variable so tests can
// back the strategies with a stub symbol set.
var dlsym = purego.Dlsym

// syscallEntry wraps a raw symbol address in the generic C caller.
func syscallEntry(addr uintptr) Entry {
	return Entry{
		Addr: addr,
		invoke: func(args []uintptr) Status {
			r1, _, _ := purego.SyscallN(addr, args...)
			// Status is a 32-bit return; the upper register half is
			// not specified by the ABI.
			return Status(int32(uint32(r1)))
		},
	}
}

// lazyStrategy resolves symbols on demand with Dlsym. Caching is the symbol
// table's concern, not the strategy's.
type lazyStrategy struct{}

// NewLazyStrategy returns the on-demand symbol lookup strategy.
func NewLazyStrategy() Strategy {
	return lazyStrategy{}
}

func (lazyStrategy) Resolve(image uintptr, fn Func) (Entry, error) {
	if !fn.Valid() {
		return Entry{}, fmt.Errorf("%w: %v", ErrUnsupported, fn)
	}
	addr, err := dlsym(image, fn.symbol())
	if err != nil || addr == 0 {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnsupported, fn.symbol())
	}
	return syscallEntry(addr), nil
}

// eagerStrategy resolves the whole identifier set the first time an image is
// seen, the moral equivalent of static linkage at load time.
type eagerStrategy struct {
	mu     sync.Mutex
	images map[uintptr]map[Func]Entry
}

// NewEagerStrategy returns the resolve-everything-up-front strategy.
func NewEagerStrategy() Strategy {
	return &eagerStrategy{images: make(map[uintptr]map[Func]Entry)}
}

func (s *eagerStrategy) Resolve(image uintptr, fn Func) (Entry, error) {
	if !fn.Valid() {
		return Entry{}, fmt.Errorf("%w: %v", ErrUnsupported, fn)
	}

	s.mu.Lock()
	table, ok := s.images[image]
	if !ok {
		table = make(map[Func]Entry, funcCount)
		for f := Func(0); f < funcCount; f++ {
			addr, err := dlsym(image, f.symbol())
			if err != nil || addr == 0 {
				continue // older runtime; absent symbols stay unsupported
			}
			table[f] = syscallEntry(addr)
		}
		s.images[image] = table
	}
	s.mu.Unlock()

	entry, ok := table[fn]
	if !ok {
		return Entry{}, fmt.Errorf("%w: %s", ErrUnsupported, fn.symbol())
	}
	return entry, nil
}
