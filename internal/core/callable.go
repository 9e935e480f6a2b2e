package core

import (
	"fmt"
	"strings"
	"sync/atomic"
)

var callableSeq int64

// callbackTableInit creates the engine-global table that keeps every
// protected callable reachable, mirroring the pattern already used by
// the teacher's timer polyfill (globalThis.__timerCallbacks).
const callbackTableInit = `globalThis.__kedo_callbacks = globalThis.__kedo_callbacks || {};`

// ProtectedCallable pins a JS function (plus any bound arguments) so it
// survives across event-loop ticks, the Go rendition of the Rust
// original's JsProctectedCallable (callback.rs), whose Drop impl calls
// unprotect(). Go has no destructor, so Release must be called exactly
// once the callable is no longer needed (the event loop does this after
// a one-shot timer fires, or ClearTimer does it for a cancelled one).
type ProtectedCallable struct {
	rt          JSRuntime
	key         string
	callExpr    string
	releaseExpr string
}

// NewProtectedCallable stores fnExpr (a JS expression yielding the
// function to protect, typically a reference already held by a global
// table entry the caller just created) under a fresh key in
// globalThis.__kedo_callbacks, and returns a handle used to invoke or
// release it later.
func NewProtectedCallable(rt JSRuntime, fnExpr string) (*ProtectedCallable, error) {
	id := atomic.AddInt64(&callableSeq, 1)
	key := fmt.Sprintf("cb%d", id)
	if err := rt.Eval(callbackTableInit); err != nil {
		return nil, Wrap(KindEngine, "init callback table", err)
	}
	expr := "globalThis.__kedo_callbacks[" + quoteJS(key) + "] = " + fnExpr + ";"
	if err := rt.Eval(expr); err != nil {
		return nil, Wrap(KindEngine, "protect callable", err)
	}
	return &ProtectedCallable{rt: rt, key: key}, nil
}

// WrapProtectedCallable adapts a value a caller has already parked under
// a reachable engine-global table (e.g. the timers polyfill's own
// globalThis.__timerCallbacks[id]) into a ProtectedCallable, without
// performing a second protect step. callExpr is the JS expression
// (using the literal substring "%ARGS%" where the argument list goes)
// evaluated by Call; releaseExpr is evaluated by Release.
func WrapProtectedCallable(rt JSRuntime, callExpr, releaseExpr string) *ProtectedCallable {
	return &ProtectedCallable{rt: rt, key: "", callExpr: callExpr, releaseExpr: releaseExpr}
}

// Key is the engine-global table key the callable is stored under;
// native op modules read it back via globalThis.__kedo_callbacks[key].
func (c *ProtectedCallable) Key() string { return c.key }

// Call invokes the protected function with argsJS, a raw JS argument
// list expression (e.g. "1, 2" or "").
func (c *ProtectedCallable) Call(argsJS string) error {
	if c.rt == nil {
		return nil
	}
	if c.callExpr != "" {
		return c.rt.Eval(strings.ReplaceAll(c.callExpr, "%ARGS%", argsJS))
	}
	expr := "globalThis.__kedo_callbacks[" + quoteJS(c.key) + "](" + argsJS + ");"
	return c.rt.Eval(expr)
}

// Release unprotects the callable. Safe to call more than once.
func (c *ProtectedCallable) Release() {
	if c.rt == nil {
		return
	}
	if c.releaseExpr != "" {
		_ = c.rt.Eval(c.releaseExpr)
		c.rt = nil
		return
	}
	_ = c.rt.Eval("delete globalThis.__kedo_callbacks[" + quoteJS(c.key) + "];")
	c.rt = nil
}
