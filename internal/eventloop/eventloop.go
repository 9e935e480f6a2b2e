package eventloop

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	"github.com/kedoruntime/kedo/internal/core"
)

// EventLoop drives the single-threaded engine plane: it alternates
// draining ready NativeJob completions, firing due timers, and
// suspending until the next wakeup, exactly the four-step pass from
// spec.md §4.3. Grounded on the teacher's eventloop.go Drain loop,
// restructured from "poll fetches whenever, timers before sleep" into
// the spec's explicit jobs-then-timers-within-a-pass ordering, and with
// the per-request execution deadline removed (the CLI's run command has
// no deadline — it runs until idle, per original_source/cli/main.rs's
// `runtime.idle().await`).
type EventLoop struct {
	Timers *TimerQueue
	Jobs   *JobQueue

	pendingPromises int64
}

func New() *EventLoop {
	return &EventLoop{
		Timers: NewTimerQueue(),
		Jobs:   NewJobQueue(),
	}
}

// TrackPromise/UntrackPromise let native ops participate in the
// idleness check for promises the host created but that have not yet
// settled (e.g. an open WebSocket connection awaiting its messages).
func (el *EventLoop) TrackPromise()   { atomic.AddInt64(&el.pendingPromises, 1) }
func (el *EventLoop) UntrackPromise() { atomic.AddInt64(&el.pendingPromises, -1) }

// IsIdle implements spec.md §4.3's idleness law: no external timers, no
// pending/in-flight jobs, and no unsettled promises.
func (el *EventLoop) IsIdle() bool {
	return el.Timers.IsEmptyExternal() &&
		el.Jobs.IsEmpty() &&
		atomic.LoadInt64(&el.pendingPromises) == 0
}

// Run drives the loop to completion: it returns once IsIdle holds after
// a full pass finds no ready work. Must be called on the engine's own
// goroutine, since every Completion and fired timer callback touches rt.
func (el *EventLoop) Run(ctx context.Context, rt core.JSRuntime) {
	for {
		if ctx.Err() != nil {
			return
		}

		didWork := el.drainReadyJobs(rt)
		didWork = el.fireDueTimers(rt) || didWork
		if didWork {
			continue
		}

		if el.IsIdle() {
			return
		}

		wait := el.nextWakeup()
		if wait <= 0 {
			continue
		}
		// Cap the sleep so a job that becomes ready mid-wait is noticed
		// promptly by the next pass's drainReadyJobs, without the event
		// loop reaching into the job channel itself (that would require
		// running the completion off the engine goroutine).
		const maxPoll = 20 * time.Millisecond
		if wait > maxPoll {
			wait = maxPoll
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(wait):
		}
	}
}

func (el *EventLoop) drainReadyJobs(rt core.JSRuntime) bool {
	didWork := false
	for {
		completion, ok := el.Jobs.PollReady()
		if !ok {
			return didWork
		}
		func() {
			defer func() {
				if r := recover(); r != nil {
					log.Printf("kedo: native job completion panicked: %v", r)
				}
			}()
			completion(rt)
		}()
		rt.RunMicrotasks()
		didWork = true
	}
}

func (el *EventLoop) fireDueTimers(rt core.JSRuntime) bool {
	due := el.Timers.PollDue(time.Now())
	for _, t := range due {
		el.fireTimer(rt, t)
	}
	return len(due) > 0
}

func (el *EventLoop) fireTimer(rt core.JSRuntime, t *core.Timer) {
	func() {
		defer func() {
			if r := recover(); r != nil {
				log.Printf("kedo: timer %d callback panicked: %v", t.ID, r)
			}
		}()
		if err := t.Callable.Call(t.Args); err != nil {
			log.Printf("kedo: timer %d callback error: %v", t.ID, err)
		}
	}()
	if !t.IsRepeating() {
		t.Callable.Release()
	}
	rt.RunMicrotasks()
}

// nextWakeup returns how long Run may sleep before it must re-check for
// due timers. Zero or negative means "a timer is already due, loop now".
func (el *EventLoop) nextWakeup() time.Duration {
	deadline, ok := el.Timers.EarliestExternalDeadline()
	if !ok {
		// No external timers; internal timers (if any) still bound the
		// wait so we never sleep past host-machinery work.
		if d, ok := el.earliestInternalDeadline(); ok {
			return time.Until(d)
		}
		return 10 * time.Millisecond
	}
	return time.Until(deadline)
}

func (el *EventLoop) earliestInternalDeadline() (time.Time, bool) {
	el.Timers.mu.Lock()
	defer el.Timers.mu.Unlock()
	var best time.Time
	found := false
	for _, t := range el.Timers.heap {
		if t.External {
			continue
		}
		if !found || t.Deadline.Before(best) {
			best = t.Deadline
			found = true
		}
	}
	return best, found
}

// RegisterTimer wires a globalThis.__timerCallbacks[id]-style JS callback
// entry into the timer queue. makeCallExpr/makeReleaseExpr build the JS
// expressions evaluated when the timer fires or is cleared, given the
// id the timer is assigned (the timers polyfill keys its own callback
// table by that same id, so the expression must be built after the id
// is known). The polyfill's callback table is itself the reachability
// anchor the engine's GC sees (see SPEC_FULL.md §3 on ProtectedCallable),
// so no separate protect step runs here.
func (el *EventLoop) RegisterTimer(rt core.JSRuntime, delay time.Duration, isInterval bool, makeCallExpr, makeReleaseExpr func(id int) string) int {
	id := el.Timers.ReserveID()
	callable := core.WrapProtectedCallable(rt, makeCallExpr(id), makeReleaseExpr(id))
	t := &core.Timer{
		Deadline: time.Now().Add(delay),
		Interval: delay,
		External: true,
		Callable: callable,
	}
	if !isInterval {
		t.Interval = 0
	}
	el.Timers.AddWithID(id, t)
	return id
}

// ClearTimer cancels a timer previously returned by RegisterTimer.
func (el *EventLoop) ClearTimer(id int) {
	el.Timers.Clear(id)
}

// Spawn is a convenience wrapper over Jobs.Spawn; name identifies the job
// in the log message written if its completion panics.
func (el *EventLoop) Spawn(name string, run func(ctx context.Context) core.Completion) {
	el.Jobs.Spawn(core.NativeJob{Run: func(ctx context.Context) core.Completion {
		completion := run(ctx)
		return func(rt core.JSRuntime) {
			if completion == nil {
				return
			}
			defer func() {
				if r := recover(); r != nil {
					log.Printf("kedo: job %q completion panicked: %v", name, r)
				}
			}()
			completion(rt)
		}
	}})
}

// fmtErr renders err's message as a double-quoted string literal (Go %q
// quoting). It has no callers; the native op modules in internal/webapi
// quote error messages with their own jsString helper.
func fmtErr(err error) string {
	return fmt.Sprintf("%q", err.Error())
}
