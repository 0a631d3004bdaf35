//go:build !ios && !android && (amd64 || arm64)

package napigo

import (
	"errors"
	"runtime"
	"unsafe"

	"github.com/obinnaokechukwu/napigo/internal/handles"
)

// ErrNilFinalizer indicates an external buffer was created without the
// required finalizer. Embedder-owned memory with no finalizer is a leak by
// construction, so the coordinator refuses it up front.
var ErrNilFinalizer = errors.New("napigo: external buffer requires a finalizer")

// CreateBuffer creates a runtime-owned buffer of the given length and
// returns the wrapping value plus a writable view of the backing memory.
// The view is valid as long as the value is referenced.
func CreateBuffer(env Env, length int) (Value, []byte, error) {
	var data, out uintptr
	status, err := nativeCall(env, FuncCreateBuffer,
		uintptr(length),
		uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return 0, nil, err
	}
	if status != StatusOK {
		return 0, nil, NewStatusError(status, "napi_create_buffer")
	}
	return Value(out), nativeBytes(data, length), nil
}

// CreateBufferCopy creates a runtime-owned buffer initialized with a copy of
// data. The runtime owns the copy; the returned view aliases it, not the
// input slice.
func CreateBufferCopy(env Env, data []byte) (Value, []byte, error) {
	var src uintptr
	if len(data) > 0 {
		src = uintptr(unsafe.Pointer(&data[0]))
	}
	var copied, out uintptr
	status, err := nativeCall(env, FuncCreateBufferCopy,
		uintptr(len(data)),
		src,
		uintptr(unsafe.Pointer(&copied)),
		uintptr(unsafe.Pointer(&out)),
	)
	runtime.KeepAlive(data)
	if err != nil {
		return 0, nil, err
	}
	if status != StatusOK {
		return 0, nil, NewStatusError(status, "napi_create_buffer_copy")
	}
	return Value(out), nativeBytes(copied, len(data)), nil
}

// externalBuffer pins embedder-owned backing memory until the runtime
// collects the wrapping value and runs the finalizer.
type externalBuffer struct {
	data     []byte
	finalize func()
}

func (b *externalBuffer) finalizeOnce() {
	b.finalize()
	b.data = nil
}

// CreateExternalBuffer wraps embedder-owned memory in a buffer value without
// copying. finalize is required and runs exactly once, when the runtime no
// longer references the wrapping value; the memory must stay valid until
// then (the coordinator pins it).
func CreateExternalBuffer(env Env, data []byte, finalize func()) (Value, error) {
	if finalize == nil {
		return 0, ErrNilFinalizer
	}
	var src uintptr
	if len(data) > 0 {
		src = uintptr(unsafe.Pointer(&data[0]))
	}

	b := &externalBuffer{data: data, finalize: finalize}
	hint := handles.Register(b)

	var out uintptr
	status, err := nativeCall(env, FuncCreateExternalBuffer,
		uintptr(len(data)),
		src,
		bufferFinalizeCallback(),
		hint,
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		handles.Unregister(hint)
		return 0, err
	}
	if status != StatusOK {
		handles.Unregister(hint)
		return 0, NewStatusError(status, "napi_create_external_buffer")
	}
	return Value(out), nil
}

// GetBufferInfo returns a zero-copy view of a buffer value's backing memory.
func GetBufferInfo(env Env, value Value) ([]byte, error) {
	var data, length uintptr
	status, err := nativeCall(env, FuncGetBufferInfo,
		uintptr(value),
		uintptr(unsafe.Pointer(&data)),
		uintptr(unsafe.Pointer(&length)),
	)
	if err != nil {
		return nil, err
	}
	if status != StatusOK {
		return nil, NewStatusError(status, "napi_get_buffer_info")
	}
	return nativeBytes(data, int(length)), nil
}

// IsBuffer reports whether a value is a buffer.
func IsBuffer(env Env, value Value) (bool, error) {
	var out bool
	status, err := nativeCall(env, FuncIsBuffer,
		uintptr(value),
		uintptr(unsafe.Pointer(&out)),
	)
	if err != nil {
		return false, err
	}
	if status != StatusOK {
		return false, NewStatusError(status, "napi_is_buffer")
	}
	return out, nil
}

// nativeBytes views native memory as a byte slice. Length zero or a null
// pointer yields nil.
func nativeBytes(ptr uintptr, length int) []byte {
	if ptr == 0 || length <= 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(ptr)), length)
}
