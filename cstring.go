//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"runtime"
	"unsafe"
)

// cstrings owns NUL-terminated UTF-8 buffers handed to native calls whose
// ABI keeps the caller responsible for the memory. release must run on every
// exit path, normal or not, which is why callers hold it in a defer.
type cstrings struct {
	bufs [][]byte
}

// add converts s to a NUL-terminated buffer owned by the arena and returns
// its address.
func (c *cstrings) add(s string) uintptr {
	buf := make([]byte, len(s)+1)
	copy(buf, s)
	c.bufs = append(c.bufs, buf)
	return uintptr(unsafe.Pointer(&buf[0]))
}

// release drops every buffer after guaranteeing the native side can no
// longer be mid-read of them.
func (c *cstrings) release() {
	for _, buf := range c.bufs {
		runtime.KeepAlive(buf)
	}
	c.bufs = nil
}

// goString copies a NUL-terminated native string into Go memory. A null
// pointer yields the empty string.
func goString(ptr uintptr) string {
	if ptr == 0 {
		return ""
	}
	p := (*byte)(unsafe.Pointer(ptr))
	n := 0
	for *(*byte)(unsafe.Pointer(ptr + uintptr(n))) != 0 {
		n++
	}
	if n == 0 {
		return ""
	}
	return string(unsafe.Slice(p, n))
}
