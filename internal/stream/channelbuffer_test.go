package stream

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"
)

func TestChannelBufferDeliversChunksInOrder(t *testing.T) {
	buf := NewChannelBuffer(4)
	ctx := context.Background()

	if !buf.AcquireReader() {
		t.Fatal("expected first AcquireReader call to succeed")
	}

	go func() {
		_ = buf.Write(ctx, []byte("a"))
		_ = buf.Write(ctx, []byte("b"))
		buf.Close(nil)
	}()

	first, err := buf.Read(ctx)
	if err != nil || string(first) != "a" {
		t.Fatalf("expected chunk 'a', got %q err %v", first, err)
	}
	second, err := buf.Read(ctx)
	if err != nil || string(second) != "b" {
		t.Fatalf("expected chunk 'b', got %q err %v", second, err)
	}
	if _, err := buf.Read(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF after clean close, got %v", err)
	}
	// EOF is sticky: every subsequent Read keeps returning it.
	if _, err := buf.Read(ctx); err != io.EOF {
		t.Fatalf("expected sticky io.EOF on repeated read, got %v", err)
	}
}

func TestChannelBufferClosePropagatesError(t *testing.T) {
	buf := NewChannelBuffer(1)
	ctx := context.Background()
	buf.AcquireReader()

	wantErr := errors.New("boom")
	buf.Close(wantErr)

	if _, err := buf.Read(ctx); !errors.Is(err, wantErr) {
		t.Fatalf("expected the close error, got %v", err)
	}
	// The error is delivered exactly once; later reads see io.EOF, same
	// as a clean close.
	if _, err := buf.Read(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF after the close error was already delivered once, got %v", err)
	}
	if _, err := buf.Read(ctx); err != io.EOF {
		t.Fatalf("expected io.EOF to stay sticky on further reads, got %v", err)
	}
}

func TestChannelBufferWriteAfterCloseFails(t *testing.T) {
	buf := NewChannelBuffer(1)
	buf.Close(nil)
	if err := buf.Write(context.Background(), []byte("x")); err == nil {
		t.Fatal("expected writing to a closed buffer to fail")
	}
}

func TestChannelBufferAcquireReaderIsOnce(t *testing.T) {
	buf := NewChannelBuffer(1)
	if !buf.AcquireReader() {
		t.Fatal("expected first acquire to succeed")
	}
	if buf.AcquireReader() {
		t.Fatal("expected second acquire to fail")
	}
}

func TestChannelBufferWriteBackpressures(t *testing.T) {
	buf := NewChannelBuffer(1)
	ctx := context.Background()
	buf.AcquireReader()

	if err := buf.Write(ctx, []byte("1")); err != nil {
		t.Fatalf("unexpected error filling capacity: %v", err)
	}

	wroteSecond := make(chan error, 1)
	go func() { wroteSecond <- buf.Write(ctx, []byte("2")) }()

	select {
	case <-wroteSecond:
		t.Fatal("expected the second write to block while the buffer is full")
	case <-time.After(50 * time.Millisecond):
	}

	if _, err := buf.Read(ctx); err != nil {
		t.Fatalf("unexpected read error: %v", err)
	}

	select {
	case err := <-wroteSecond:
		if err != nil {
			t.Fatalf("unexpected error on unblocked write: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("expected the blocked write to complete once space freed")
	}
}

func TestChannelBufferWriteCancelledByContext(t *testing.T) {
	buf := NewChannelBuffer(1)
	buf.AcquireReader()
	if err := buf.Write(context.Background(), []byte("fill")); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := buf.Write(ctx, []byte("x")); err == nil {
		t.Fatal("expected write on a cancelled context to fail")
	}
}
