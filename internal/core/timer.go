package core

import "time"

// Timer is the payload stored in the TimerQueue, the Go rendition of
// spec.md's Timer data-model entry. External timers are user-visible
// (setTimeout/setInterval); internal timers back host machinery (e.g. a
// fetch deadline) and are excluded from the event loop's idleness check
// (EarliestExternalDeadline/IsEmptyExternal only ever see External==true
// entries).
type Timer struct {
	ID       int
	Deadline time.Time
	Interval time.Duration // zero for one-shot timers
	External bool
	Callable *ProtectedCallable
	Args     string // raw JS argument-list expression passed to Callable.Call

	// HeapIndex is maintained by eventloop.TimerQueue's container/heap
	// implementation so Clear can evict a timer in O(log n) via
	// heap.Remove instead of leaving a stale entry in the heap.
	HeapIndex int
}

// IsRepeating reports whether firing the timer should reinsert it at
// Deadline+Interval rather than dropping it.
func (t *Timer) IsRepeating() bool { return t.Interval > 0 }
