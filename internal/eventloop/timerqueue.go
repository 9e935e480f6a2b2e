package eventloop

import (
	"container/heap"
	"sync"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

// TimerQueue is a mutex-guarded min-heap of pending timers keyed by
// deadline, generalized from the teacher's eventloop.go timerEntry map
// (which finds the earliest deadline with a linear scan) into a real
// priority queue so Add and PollDue stay O(log n) per timer
// (EarliestExternalDeadline and IsEmptyExternal still scan every entry).
// Timers come in two flavors per spec.md §4.2: external (user-visible
// setTimeout/setInterval, counted toward idleness) and internal (host
// machinery, never counted).
type TimerQueue struct {
	mu     sync.Mutex
	heap   timerHeap
	byID   map[int]*core.Timer
	nextID int
}

func NewTimerQueue() *TimerQueue {
	return &TimerQueue{byID: make(map[int]*core.Timer)}
}

// Add inserts t (Deadline/Interval/External/Callable/Args must already be
// set) and assigns it an id, returning that id.
func (q *TimerQueue) Add(t *core.Timer) int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	t.ID = q.nextID
	q.byID[t.ID] = t
	heap.Push(&q.heap, t)
	return t.ID
}

// ReserveID hands out a timer id before the timer itself is constructed,
// for callers whose Callable expression needs to embed the id (the
// timers polyfill keys its callback table by id).
func (q *TimerQueue) ReserveID() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.nextID++
	return q.nextID
}

// AddWithID inserts t under a previously reserved id (see ReserveID).
func (q *TimerQueue) AddWithID(id int, t *core.Timer) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t.ID = id
	q.byID[id] = t
	heap.Push(&q.heap, t)
}

// Clear cancels id, evicting it from the heap immediately via
// heap.Remove rather than merely marking it dead, so a cleared timer's
// original deadline never again counts toward EarliestExternalDeadline
// or IsEmptyExternal. Clearing an unknown or already-fired id is a
// no-op, matching spec.md's documented "best effort" clear semantics.
func (q *TimerQueue) Clear(id int) {
	q.mu.Lock()
	defer q.mu.Unlock()
	t, ok := q.byID[id]
	if !ok {
		return
	}
	delete(q.byID, id)
	heap.Remove(&q.heap, t.HeapIndex)
	if t.Callable != nil {
		t.Callable.Release()
	}
}

// PollDue pops and returns every timer whose deadline is <= now, in
// deadline order, reinserting repeating timers at Deadline+Interval.
func (q *TimerQueue) PollDue(now time.Time) []*core.Timer {
	q.mu.Lock()
	defer q.mu.Unlock()
	var due []*core.Timer
	for q.heap.Len() > 0 {
		top := q.heap[0]
		if top.Deadline.After(now) {
			break
		}
		t := heap.Pop(&q.heap).(*core.Timer)
		if t.IsRepeating() {
			t.Deadline = t.Deadline.Add(t.Interval)
			heap.Push(&q.heap, t)
		} else {
			delete(q.byID, t.ID)
		}
		due = append(due, t)
	}
	return due
}

// EarliestExternalDeadline returns the soonest deadline among External
// timers only, used by the event loop to compute how long it may sleep
// without missing user-visible work. The heap invariant only guarantees
// the root (heap[0]) is globally minimal; a filtered subset (External
// only) is not necessarily in heap order, so this scans every entry
// rather than returning the first match.
func (q *TimerQueue) EarliestExternalDeadline() (time.Time, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	var best time.Time
	found := false
	for _, t := range q.heap {
		if !t.External {
			continue
		}
		if !found || t.Deadline.Before(best) {
			best = t.Deadline
			found = true
		}
	}
	return best, found
}

// IsEmptyExternal reports whether there are no pending External timers,
// one half of the event loop's idleness test (spec.md §4.3).
func (q *TimerQueue) IsEmptyExternal() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.heap {
		if t.External {
			return false
		}
	}
	return true
}

func (q *TimerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.byID)
}

// timerHeap implements container/heap.Interface over *core.Timer ordered
// by Deadline, breaking ties by ID for deterministic firing order (law:
// "two timers with equal deadlines fire in the order they were added").
type timerHeap []*core.Timer

func (h timerHeap) Len() int { return len(h) }
func (h timerHeap) Less(i, j int) bool {
	if h[i].Deadline.Equal(h[j].Deadline) {
		return h[i].ID < h[j].ID
	}
	return h[i].Deadline.Before(h[j].Deadline)
}
func (h timerHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].HeapIndex = i
	h[j].HeapIndex = j
}
func (h *timerHeap) Push(x any) {
	t := x.(*core.Timer)
	t.HeapIndex = len(*h)
	*h = append(*h, t)
}
func (h *timerHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.HeapIndex = -1
	*h = old[:n-1]
	return item
}
