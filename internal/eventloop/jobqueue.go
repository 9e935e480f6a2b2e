package eventloop

import (
	"context"
	"sync"

	"github.com/kedoruntime/kedo/internal/core"
)

// JobQueue accepts background work from native ops (fetch, websocket
// connect, ...) and delivers completed jobs' engine-reentry closures to
// the event loop in completion order. Generalized from the teacher's
// eventloop.go pendingFetches ([]*PendingFetch of a single hardcoded
// FetchResult shape) into a channel of arbitrary core.NativeJob results,
// so any native op can produce one rather than only fetch.
type JobQueue struct {
	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	ready   chan core.Completion
	inFlight int
}

func NewJobQueue() *JobQueue {
	ctx, cancel := context.WithCancel(context.Background())
	return &JobQueue{
		ctx:    ctx,
		cancel: cancel,
		ready:  make(chan core.Completion, 64),
	}
}

// Spawn runs job.Run on a new goroutine; when it completes, the returned
// Completion closure is pushed onto the ready channel for the event loop
// to invoke on the engine-plane goroutine.
func (q *JobQueue) Spawn(job core.NativeJob) {
	q.mu.Lock()
	q.inFlight++
	q.mu.Unlock()
	go func() {
		completion := job.Run(q.ctx)
		// Push before decrementing inFlight: IsEmpty() must never observe
		// inFlight==0 with no ready completion and a delivery still
		// in-flight between these two statements, or the event loop could
		// conclude it's idle and exit just before this job's completion
		// would have been drained.
		if completion != nil {
			q.ready <- completion
		}
		q.mu.Lock()
		q.inFlight--
		q.mu.Unlock()
	}()
}

// PollReady returns the next ready completion without blocking, or
// ok=false if none is currently available.
func (q *JobQueue) PollReady() (core.Completion, bool) {
	select {
	case c := <-q.ready:
		return c, true
	default:
		return nil, false
	}
}

// WaitReady blocks until a completion is ready or ctx is done.
func (q *JobQueue) WaitReady(ctx context.Context) (core.Completion, bool) {
	select {
	case c := <-q.ready:
		return c, true
	case <-ctx.Done():
		return nil, false
	}
}

// IsEmpty reports whether there are no in-flight jobs and none waiting
// to be delivered, the other half of the event loop's idleness test.
func (q *JobQueue) IsEmpty() bool {
	q.mu.Lock()
	inFlight := q.inFlight
	q.mu.Unlock()
	return inFlight == 0 && len(q.ready) == 0
}

// Close cancels the context passed to any still-running jobs.
func (q *JobQueue) Close() { q.cancel() }
