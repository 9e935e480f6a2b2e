package core

// JSRuntime abstracts the JavaScript engine (V8 or QuickJS) behind a
// common interface used by the shared event loop, module system, and
// native op modules. Exactly one backend is linked in per build, chosen
// by the "v8" build tag (see backend_v8.go / backend_quickjs.go).
type JSRuntime interface {
	// Eval evaluates JavaScript source and discards the result.
	Eval(js string) error

	// EvalString evaluates JavaScript and returns the result as a Go string.
	EvalString(js string) (string, error)

	// EvalBool evaluates JavaScript and returns the result as a Go bool.
	EvalBool(js string) (bool, error)

	// EvalInt evaluates JavaScript and returns the result as a Go int.
	EvalInt(js string) (int, error)

	// RegisterFunc registers a Go function as a global JavaScript function.
	// The function's Go types are automatically marshaled to/from JS types.
	// On error return, the JS wrapper throws instead of returning an array.
	RegisterFunc(name string, fn any) error

	// SetGlobal sets a global variable on the JS context. Basic Go types
	// (string, int, float64, bool) are auto-converted to JS types.
	SetGlobal(name string, value any) error

	// RunMicrotasks pumps the microtask queue (Promise callbacks, etc.).
	// V8: PerformMicrotaskCheckpoint. QuickJS: ExecutePendingJob loop.
	RunMicrotasks()

	// EvaluateModule evaluates the ES module at path as the program's
	// entry module, returning once top-level evaluation (not the event
	// loop) completes.
	EvaluateModule(path string) error

	// EvaluateModuleFromSource evaluates source as an ES module whose
	// resolved specifier is name, used by synthetic/source module
	// providers that do not read from the filesystem.
	EvaluateModuleFromSource(name, source string) error

	// Close releases engine resources (isolate/runtime teardown).
	Close()
}

// BinaryTransferer is implemented by runtimes with a fast path for
// moving raw bytes across the Go/engine boundary, avoiding a base64
// round-trip through Eval. V8 uses a SharedArrayBuffer; QuickJS uses the
// C API directly when its internal layout can be extracted, falling back
// to chunked base64 otherwise (see internal/quickjs/runtime.go).
type BinaryTransferer interface {
	BinaryMode() string
	WriteBinaryToJS(globalName string, data []byte) error
	ReadBinaryFromJS(globalName string) ([]byte, error)
}

// Protector is implemented by runtimes that can keep an engine-side
// handle reachable across event-loop ticks by parking it in a
// runtime-global table, mirroring the Rust original's explicit
// protect()/unprotect() pinning (see ProtectedCallable).
type Protector interface {
	// Protect stores value under globalThis.__kedo_protected[key] so the
	// engine's own GC treats it as reachable.
	Protect(key string, value any) error
	// Unprotect removes the entry, allowing the engine to collect it.
	Unprotect(key string)
}
