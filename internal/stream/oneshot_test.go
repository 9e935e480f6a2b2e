package stream

import (
	"context"
	"testing"
	"time"
)

func TestOneShotSignalWaitUnblocksOnSend(t *testing.T) {
	sig, sender := NewOneShot()
	if sig.Fired() {
		t.Fatal("expected a fresh signal to report not fired")
	}

	waitErr := make(chan error, 1)
	go func() { waitErr <- sig.Wait(context.Background()) }()

	select {
	case <-waitErr:
		t.Fatal("expected Wait to block until Send")
	case <-time.After(30 * time.Millisecond):
	}

	sender.Send()

	select {
	case err := <-waitErr:
		if err != nil {
			t.Fatalf("unexpected error from Wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected Wait to unblock after Send")
	}
	if !sig.Fired() {
		t.Fatal("expected signal to report fired after Send")
	}
}

func TestOneShotSenderSendIsIdempotent(t *testing.T) {
	sig, sender := NewOneShot()
	sender.Send()
	sender.Send() // must not panic on double-close
	if !sig.Fired() {
		t.Fatal("expected signal to be fired")
	}
}

func TestOneShotSignalWaitCancelledByContext(t *testing.T) {
	sig, _ := NewOneShot()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := sig.Wait(ctx); err == nil {
		t.Fatal("expected Wait to return an error when its context expires first")
	}
}

func TestOneShotMultipleWaitersAllObserveSend(t *testing.T) {
	sig, sender := NewOneShot()
	const n = 5
	done := make(chan error, n)
	for i := 0; i < n; i++ {
		go func() { done <- sig.Wait(context.Background()) }()
	}
	time.Sleep(20 * time.Millisecond)
	sender.Send()
	for i := 0; i < n; i++ {
		select {
		case err := <-done:
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		case <-time.After(time.Second):
			t.Fatal("expected every waiter to observe the send")
		}
	}
}
