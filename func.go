//go:build !ios && !android && (amd64 || arm64)

package napigo

// Func identifies one native entry point in the interop ABI. The set is
// closed and versioned with the runtime; identifiers never change meaning
// across process lifetime.
type Func int

const (
	FuncGetVersion Func = iota
	FuncCreateAsyncWork
	FuncDeleteAsyncWork
	FuncQueueAsyncWork
	FuncCancelAsyncWork
	FuncCreateThreadsafeFunction
	FuncGetThreadsafeFunctionContext
	FuncCallThreadsafeFunction
	FuncAcquireThreadsafeFunction
	FuncReleaseThreadsafeFunction
	FuncRefThreadsafeFunction
	FuncUnrefThreadsafeFunction
	FuncAddEnvCleanupHook
	FuncRemoveEnvCleanupHook
	FuncAddAsyncCleanupHook
	FuncRemoveAsyncCleanupHook
	FuncCreateBuffer
	FuncCreateExternalBuffer
	FuncCreateBufferCopy
	FuncGetBufferInfo
	FuncIsBuffer
	FuncFatalError
	FuncGetModuleFileName

	funcCount
)

// funcInfo maps each identifier to its C symbol name and argument count.
// The arity includes every native parameter, environment handle included
// where the ABI takes one; noEnv marks the identifiers whose ABI takes no
// environment handle (callable from worker threads or during teardown).
var funcInfo = [funcCount]struct {
	symbol string
	arity  int
	noEnv  bool
}{
	FuncGetVersion:                   {symbol: "napi_get_version", arity: 2},
	FuncCreateAsyncWork:              {symbol: "napi_create_async_work", arity: 7},
	FuncDeleteAsyncWork:              {symbol: "napi_delete_async_work", arity: 2},
	FuncQueueAsyncWork:               {symbol: "napi_queue_async_work", arity: 2},
	FuncCancelAsyncWork:              {symbol: "napi_cancel_async_work", arity: 2},
	FuncCreateThreadsafeFunction:     {symbol: "napi_create_threadsafe_function", arity: 11},
	FuncGetThreadsafeFunctionContext: {symbol: "napi_get_threadsafe_function_context", arity: 2, noEnv: true},
	FuncCallThreadsafeFunction:       {symbol: "napi_call_threadsafe_function", arity: 3, noEnv: true},
	FuncAcquireThreadsafeFunction:    {symbol: "napi_acquire_threadsafe_function", arity: 1, noEnv: true},
	FuncReleaseThreadsafeFunction:    {symbol: "napi_release_threadsafe_function", arity: 2, noEnv: true},
	FuncRefThreadsafeFunction:        {symbol: "napi_ref_threadsafe_function", arity: 2},
	FuncUnrefThreadsafeFunction:      {symbol: "napi_unref_threadsafe_function", arity: 2},
	FuncAddEnvCleanupHook:            {symbol: "napi_add_env_cleanup_hook", arity: 3},
	FuncRemoveEnvCleanupHook:         {symbol: "napi_remove_env_cleanup_hook", arity: 3},
	FuncAddAsyncCleanupHook:          {symbol: "napi_add_async_cleanup_hook", arity: 4},
	FuncRemoveAsyncCleanupHook:       {symbol: "napi_remove_async_cleanup_hook", arity: 1, noEnv: true},
	FuncCreateBuffer:                 {symbol: "napi_create_buffer", arity: 4},
	FuncCreateExternalBuffer:         {symbol: "napi_create_external_buffer", arity: 6},
	FuncCreateBufferCopy:             {symbol: "napi_create_buffer_copy", arity: 5},
	FuncGetBufferInfo:                {symbol: "napi_get_buffer_info", arity: 4},
	FuncIsBuffer:                     {symbol: "napi_is_buffer", arity: 3},
	FuncFatalError:                   {symbol: "napi_fatal_error", arity: 4, noEnv: true},
	FuncGetModuleFileName:            {symbol: "node_api_get_module_file_name", arity: 2},
}

// Valid reports whether f is a member of the closed identifier set.
func (f Func) Valid() bool {
	return f >= 0 && f < funcCount
}

func (f Func) symbol() string {
	if !f.Valid() {
		return ""
	}
	return funcInfo[f].symbol
}

func (f Func) arity() int {
	if !f.Valid() {
		return 0
	}
	return funcInfo[f].arity
}

// takesEnv reports whether the identifier's ABI takes an environment handle
// as its first parameter.
func (f Func) takesEnv() bool {
	return f.Valid() && !funcInfo[f].noEnv
}

// String returns the C symbol name of the identifier.
func (f Func) String() string {
	if !f.Valid() {
		return "invalid func"
	}
	return funcInfo[f].symbol
}
