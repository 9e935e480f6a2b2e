package eventloop

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

// recordingRuntime is a minimal core.JSRuntime fake that just records
// every Eval call, enough to drive the event loop without a real engine.
type recordingRuntime struct {
	mu    sync.Mutex
	evals []string
}

func (r *recordingRuntime) Eval(js string) error {
	r.mu.Lock()
	r.evals = append(r.evals, js)
	r.mu.Unlock()
	return nil
}
func (r *recordingRuntime) EvalString(string) (string, error)             { return "", nil }
func (r *recordingRuntime) EvalBool(string) (bool, error)                 { return false, nil }
func (r *recordingRuntime) EvalInt(string) (int, error)                   { return 0, nil }
func (r *recordingRuntime) RegisterFunc(string, any) error                { return nil }
func (r *recordingRuntime) SetGlobal(string, any) error                  { return nil }
func (r *recordingRuntime) RunMicrotasks()                                {}
func (r *recordingRuntime) EvaluateModule(string) error                   { return nil }
func (r *recordingRuntime) EvaluateModuleFromSource(string, string) error { return nil }
func (r *recordingRuntime) Close()                                        {}

func (r *recordingRuntime) Evals() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.evals))
	copy(out, r.evals)
	return out
}

var _ core.JSRuntime = (*recordingRuntime)(nil)

func TestEventLoopRunDrainsJobsAndTimersThenExits(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}

	var order []string
	var mu sync.Mutex
	record := func(name string) func(core.JSRuntime) { return func(core.JSRuntime) {
		mu.Lock()
		order = append(order, name)
		mu.Unlock()
	} }

	el.Spawn("job", func(ctx context.Context) core.Completion {
		return record("job")
	})
	el.RegisterTimer(rt, time.Millisecond, false,
		func(id int) string { return "" },
		func(id int) string { return "" })

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	el.Run(ctx, rt)

	if !el.IsIdle() {
		t.Fatal("expected loop to return only once idle")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(order) != 1 || order[0] != "job" {
		t.Fatalf("expected the spawned job's completion to run, got %v", order)
	}
}

func TestEventLoopTrackPromiseBlocksIdleness(t *testing.T) {
	el := New()
	if !el.IsIdle() {
		t.Fatal("expected fresh loop to be idle")
	}
	el.TrackPromise()
	if el.IsIdle() {
		t.Fatal("expected a tracked promise to block idleness")
	}
	el.UntrackPromise()
	if !el.IsIdle() {
		t.Fatal("expected untracking the promise to restore idleness")
	}
}

func TestEventLoopRunStopsOnContextCancellation(t *testing.T) {
	el := New()
	rt := &recordingRuntime{}
	el.TrackPromise() // never settles, so Run would otherwise block forever

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		el.Run(ctx, rt)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("expected Run to return promptly after context cancellation")
	}
}
