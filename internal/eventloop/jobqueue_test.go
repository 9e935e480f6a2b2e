package eventloop

import (
	"context"
	"testing"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

func TestJobQueueDeliversCompletionExactlyOnce(t *testing.T) {
	q := NewJobQueue()
	defer q.Close()

	delivered := 0
	q.Spawn(core.NativeJob{Run: func(ctx context.Context) core.Completion {
		return func(core.JSRuntime) { delivered++ }
	}})

	completion, ok := q.WaitReady(context.Background())
	if !ok {
		t.Fatal("expected a ready completion")
	}
	completion(nil)
	if delivered != 1 {
		t.Fatalf("expected completion invoked once, got %d", delivered)
	}

	if _, ok := q.PollReady(); ok {
		t.Fatal("expected no second completion for a single Spawn")
	}
}

func TestJobQueueNilCompletionIsNotDelivered(t *testing.T) {
	q := NewJobQueue()
	defer q.Close()

	done := make(chan struct{})
	q.Spawn(core.NativeJob{Run: func(ctx context.Context) core.Completion {
		close(done)
		return nil
	}})
	<-done

	// Give the Spawn goroutine a moment to decrement inFlight before checking.
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if q.IsEmpty() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("expected queue to become empty after a nil-completion job finishes")
}

func TestJobQueueIsEmptyNeverFalsePositiveDuringDelivery(t *testing.T) {
	// Regression: IsEmpty must not report true in the gap between a
	// job's completion being enqueued and inFlight being decremented,
	// or the event loop could exit before draining it.
	q := NewJobQueue()
	defer q.Close()

	const n = 200
	for i := 0; i < n; i++ {
		q.Spawn(core.NativeJob{Run: func(ctx context.Context) core.Completion {
			return func(core.JSRuntime) {}
		}})
	}

	drained := 0
	deadline := time.Now().Add(2 * time.Second)
	for drained < n && time.Now().Before(deadline) {
		if c, ok := q.PollReady(); ok {
			c(nil)
			drained++
			continue
		}
		if q.IsEmpty() {
			t.Fatalf("IsEmpty reported true after draining only %d/%d completions", drained, n)
		}
	}
	if drained != n {
		t.Fatalf("expected to drain %d completions, got %d", n, drained)
	}
}

func TestJobQueueIsEmptyTracksInFlight(t *testing.T) {
	q := NewJobQueue()
	defer q.Close()

	if !q.IsEmpty() {
		t.Fatal("expected freshly constructed queue to be empty")
	}

	release := make(chan struct{})
	q.Spawn(core.NativeJob{Run: func(ctx context.Context) core.Completion {
		<-release
		return func(core.JSRuntime) {}
	}})

	if q.IsEmpty() {
		t.Fatal("expected queue to report non-empty while a job is in flight")
	}
	close(release)

	if _, ok := q.WaitReady(context.Background()); !ok {
		t.Fatal("expected the released job to complete")
	}
}
