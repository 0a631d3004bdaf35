//go:build !ios && !android && (amd64 || arm64)

package napigo

// fatalArgs marshals the optional location and message into the four native
// arguments of the fatal-error call. Absent text is encoded as a null
// pointer with zero length, never dereferenced. The arena owns the buffers;
// the caller must release it after the native call can no longer read them.
func fatalArgs(cs *cstrings, location, message string) [4]uintptr {
	var args [4]uintptr
	if location != "" {
		args[0] = cs.add(location)
		args[1] = uintptr(len(location))
	}
	if message != "" {
		args[2] = cs.add(message)
		args[3] = uintptr(len(message))
	}
	return args
}

// FatalError reports an unrecoverable error to the embedded runtime and
// terminates the process. It never returns: on the native side the call
// aborts the process, and if control ever comes back this panics. The
// marshaled buffers are released through the deferred guard on every exit
// path, including an unexpected native unwind.
func FatalError(location, message string) {
	d, err := active()
	if err != nil {
		panic("napigo: fatal error before runtime load: " + location + ": " + message)
	}
	entry, err := d.resolveImage(d.image, FuncFatalError)
	if err != nil {
		panic("napigo: fatal error unsupported by runtime: " + location + ": " + message)
	}

	var cs cstrings
	defer cs.release()

	args := fatalArgs(&cs, location, message)
	entry.call(args[:])

	panic("napigo: napi_fatal_error returned")
}
