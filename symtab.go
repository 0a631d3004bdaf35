//go:build !ios && !android && (amd64 || arm64)

package napigo

import "sync"

type symkey struct {
	image uintptr
	fn    Func
}

// symtab caches resolved entry points keyed by (module image, identifier).
// Entries are immutable once published; resolution is idempotent, and racing
// first-resolutions converge on a single cached value. Negative results are
// cached too, so probing an unsupported identifier stays cheap.
type symtab struct {
	mu      sync.RWMutex
	entries map[symkey]Entry
	misses  map[symkey]error
}

func newSymtab() *symtab {
	return &symtab{
		entries: make(map[symkey]Entry),
		misses:  make(map[symkey]error),
	}
}

// resolve returns the cached entry for (image, fn), consulting the strategy
// on a miss. Double-checked under the write lock so concurrent first
// resolutions publish exactly one entry.
func (t *symtab) resolve(s Strategy, image uintptr, fn Func) (Entry, error) {
	key := symkey{image: image, fn: fn}

	t.mu.RLock()
	entry, ok := t.entries[key]
	if !ok {
		err, missed := t.misses[key]
		t.mu.RUnlock()
		if missed {
			return Entry{}, err
		}
	} else {
		t.mu.RUnlock()
		return entry, nil
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if entry, ok := t.entries[key]; ok {
		return entry, nil
	}
	if err, ok := t.misses[key]; ok {
		return Entry{}, err
	}

	entry, err := s.Resolve(image, fn)
	if err != nil {
		t.misses[key] = err
		return Entry{}, err
	}
	t.entries[key] = entry
	return entry, nil
}

func (t *symtab) len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.entries)
}
