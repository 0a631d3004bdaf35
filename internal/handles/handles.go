// Package handles provides a thread-safe handle system for storing Go objects
// that need to be referenced from native callbacks.
//
// When native code needs to reference a Go object (callback data pointers,
// threadsafe-function contexts, buffer finalizer state), we cannot store Go
// pointers directly in native memory. Instead, we register the Go object and
// get back a uintptr handle that can be safely stored in native memory.
package handles

import (
	"sync"
)

var (
	mu      sync.RWMutex
	handles = make(map[uintptr]any)
	nextID  uintptr = 1
)

// Register stores a Go object and returns a handle ID.
// The handle can be safely stored in native memory (as uintptr or void*).
// The object will remain accessible until Unregister is called.
//
// Thread-safe.
func Register(v any) uintptr {
	mu.Lock()
	defer mu.Unlock()
	id := nextID
	nextID++
	handles[id] = v
	return id
}

// Lookup retrieves a Go object by its handle ID.
// Returns nil if the handle is not registered.
//
// Thread-safe.
func Lookup(id uintptr) any {
	mu.RLock()
	defer mu.RUnlock()
	return handles[id]
}

// Take retrieves a Go object and unregisters it in one step. Returns nil if
// the handle is not registered. Used by exactly-once callback paths
// (finalizers, one-shot payloads) so a racing duplicate delivery observes nil
// instead of running twice.
//
// Thread-safe.
func Take(id uintptr) any {
	mu.Lock()
	defer mu.Unlock()
	v, ok := handles[id]
	if !ok {
		return nil
	}
	delete(handles, id)
	return v
}

// Unregister removes a handle and allows the Go object to be garbage collected.
// Should be called when the native code no longer needs the reference.
//
// Thread-safe.
func Unregister(id uintptr) {
	mu.Lock()
	defer mu.Unlock()
	delete(handles, id)
}

// Count returns the number of currently registered handles.
// Useful for debugging and testing memory leaks.
//
// Thread-safe.
func Count() int {
	mu.RLock()
	defer mu.RUnlock()
	return len(handles)
}
