package eventloop

import (
	"testing"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

func externalTimer(deadline time.Time, interval time.Duration) *core.Timer {
	return &core.Timer{Deadline: deadline, Interval: interval, External: true}
}

func TestTimerQueueFiresInDeadlineOrder(t *testing.T) {
	q := NewTimerQueue()
	now := time.Now()
	idB := q.Add(externalTimer(now.Add(20*time.Millisecond), 0))
	idA := q.Add(externalTimer(now.Add(10*time.Millisecond), 0))

	due := q.PollDue(now.Add(30 * time.Millisecond))
	if len(due) != 2 {
		t.Fatalf("expected 2 due timers, got %d", len(due))
	}
	if due[0].ID != idA || due[1].ID != idB {
		t.Fatalf("expected firing order [%d %d], got [%d %d]", idA, idB, due[0].ID, due[1].ID)
	}
}

func TestTimerQueueTiesBreakByID(t *testing.T) {
	q := NewTimerQueue()
	deadline := time.Now().Add(10 * time.Millisecond)
	idA := q.Add(externalTimer(deadline, 0))
	idB := q.Add(externalTimer(deadline, 0))

	due := q.PollDue(deadline)
	if len(due) != 2 || due[0].ID != idA || due[1].ID != idB {
		t.Fatalf("expected tie-break by id [%d %d], got %v", idA, idB, due)
	}
}

func TestTimerQueueClearIsBestEffort(t *testing.T) {
	q := NewTimerQueue()
	now := time.Now()
	id := q.Add(externalTimer(now.Add(5*time.Millisecond), 0))

	q.Clear(id)
	q.Clear(id)       // already cleared, must be a no-op
	q.Clear(id + 999) // unknown id, must be a no-op

	due := q.PollDue(now.Add(time.Second))
	if len(due) != 0 {
		t.Fatalf("expected cleared timer to never fire, got %v", due)
	}
}

func TestTimerQueueIntervalReinsertsAtBasePlusKT(t *testing.T) {
	q := NewTimerQueue()
	base := time.Now()
	period := 5 * time.Millisecond
	id := q.Add(externalTimer(base.Add(period), period))

	for k := 1; k <= 3; k++ {
		due := q.PollDue(base.Add(time.Duration(k) * period))
		if len(due) != 1 || due[0].ID != id {
			t.Fatalf("firing %d: expected exactly timer %d due, got %v", k, id, due)
		}
		want := base.Add(time.Duration(k+1) * period)
		if !due[0].Deadline.Equal(want) {
			t.Fatalf("firing %d: expected next deadline %v, got %v", k, want, due[0].Deadline)
		}
	}
}

func TestTimerQueueIsEmptyExternal(t *testing.T) {
	q := NewTimerQueue()
	if !q.IsEmptyExternal() {
		t.Fatal("expected empty queue to report IsEmptyExternal")
	}
	id := q.Add(externalTimer(time.Now().Add(time.Hour), 0))
	if q.IsEmptyExternal() {
		t.Fatal("expected pending external timer to report not empty")
	}
	// Clear must evict the entry immediately, with no PollDue required to
	// flush it out: spec.md's idleness law cannot wait for the timer's
	// original (long, possibly hours-away) deadline to elapse.
	q.Clear(id)
	if !q.IsEmptyExternal() {
		t.Fatal("expected cleared timer to leave queue empty immediately, without polling")
	}
}

func TestTimerQueueClearEvictsFromHeapImmediately(t *testing.T) {
	// Regression: clearing a long-delay external timer (e.g. an abort
	// timeout cleared on early completion) must let the queue report
	// idle right away, not only once the timer's original deadline
	// would have elapsed. Previously Clear only removed the bookkeeping
	// entry in byID and left the stale timer sitting in the heap, so
	// EarliestExternalDeadline/IsEmptyExternal kept observing it.
	q := NewTimerQueue()
	now := time.Now()
	farFuture := now.Add(24 * time.Hour)
	id := q.Add(externalTimer(farFuture, 0))

	q.Clear(id)

	if !q.IsEmptyExternal() {
		t.Fatal("expected clearing the only pending external timer to report empty")
	}
	if _, ok := q.EarliestExternalDeadline(); ok {
		t.Fatal("expected no earliest external deadline after clearing the only pending timer")
	}
	if n := q.heap.Len(); n != 0 {
		t.Fatalf("expected the heap itself to be empty after Clear, got %d stale entries", n)
	}
}

func TestTimerQueueEarliestExternalDeadlineScansWholeHeap(t *testing.T) {
	// Regression: EarliestExternalDeadline must not stop at the first
	// External entry it encounters while scanning the heap's backing
	// array — container/heap only guarantees the root is globally
	// minimal, not that a filtered subset appears in sorted order.
	q := NewTimerQueue()
	now := time.Now()
	q.Add(&core.Timer{Deadline: now.Add(time.Hour), External: false})
	q.Add(externalTimer(now.Add(50*time.Millisecond), 0))
	want := now.Add(5 * time.Millisecond)
	q.Add(externalTimer(want, 0))
	q.Add(externalTimer(now.Add(90*time.Millisecond), 0))

	got, ok := q.EarliestExternalDeadline()
	if !ok {
		t.Fatal("expected an external deadline")
	}
	if !got.Equal(want) {
		t.Fatalf("expected earliest external deadline %v, got %v", want, got)
	}
}

func TestTimerQueueInternalTimersExcludedFromIdleness(t *testing.T) {
	q := NewTimerQueue()
	q.Add(&core.Timer{Deadline: time.Now().Add(time.Hour), External: false})
	if !q.IsEmptyExternal() {
		t.Fatal("internal-only timer must not count toward external idleness")
	}
	if _, ok := q.EarliestExternalDeadline(); ok {
		t.Fatal("expected no external deadline when only internal timers are pending")
	}
}
