package core

import "context"

// NativeJob is a unit of background work enqueued by a native op (fetch,
// websocket connect, ...). Run executes on an executor-plane goroutine;
// its returned closure is the only code allowed to re-enter the engine
// plane, and the event loop calls it exactly once per job, in FIFO order
// relative to other completed jobs in the same pass. Grounded on
// original_source/packages/kedo_web/stream_codec.rs's native_job!/
// enqueue_job! macro pattern: "do work off-thread, then hand back a
// closure that touches the engine".
type NativeJob struct {
	// Run performs the (possibly blocking/slow) work. ctx is cancelled if
	// the runtime shuts down before Run completes.
	Run func(ctx context.Context) Completion
}

// Completion is the closure a NativeJob's Run produces; calling it is
// the only engine re-entry a background goroutine may trigger, and the
// event loop calls it on the engine-plane goroutine.
type Completion func(rt JSRuntime)
