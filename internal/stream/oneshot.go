package stream

import "context"

// OneShotSignal is a single-producer/single-consumer cancellation
// signal: closed exactly once by the sender, observed by any number of
// concurrent Wait callers. Grounded directly on
// original_source/src/signals.rs / packages/kedo_web/signals.rs's
// OneshotSignal/OneshotSignalNotifier, which wrap futures::channel::
// oneshot; Go has no async/await, so "send" becomes "close the channel"
// here, which every waiter observes identically. Only Send closes the
// channel: a sender that is discarded without calling Send does not
// release waiters, which keep blocking until their own ctx ends.
type OneShotSignal struct {
	ch chan struct{}
}

// OneShotSender is the write half; Send closes the channel for every
// waiter. Discarding the sender without calling Send leaves it open.
type OneShotSender struct {
	ch   chan struct{}
	sent bool
}

// NewOneShot creates a connected signal/sender pair.
func NewOneShot() (*OneShotSignal, *OneShotSender) {
	ch := make(chan struct{})
	return &OneShotSignal{ch: ch}, &OneShotSender{ch: ch}
}

// Send fires the signal. Safe to call more than once; only the first
// call has an effect.
func (s *OneShotSender) Send() {
	if s.sent {
		return
	}
	s.sent = true
	close(s.ch)
}

// Wait blocks until the signal fires or ctx is cancelled.
func (sig *OneShotSignal) Wait(ctx context.Context) error {
	select {
	case <-sig.ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Fired reports whether the signal has already fired, without blocking.
func (sig *OneShotSignal) Fired() bool {
	select {
	case <-sig.ch:
		return true
	default:
		return false
	}
}
