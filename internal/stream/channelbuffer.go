// Package stream implements the two cross-thread bridges native ops use
// to hand data back to the single-threaded engine plane: a bounded
// byte-chunk channel (ChannelBuffer) and a one-shot cancellation signal.
package stream

import (
	"context"
	"io"
	"sync"

	"github.com/kedoruntime/kedo/internal/core"
)

// ChannelBuffer is a bounded single-producer/single-consumer byte-chunk
// stream: Write backpressures once the channel is full, Read blocks
// until a chunk or end-of-stream is available. Grounded on the teacher's
// internal/webapi/streams.go producer/consumer channel plumbing for
// fetch response bodies and on original_source/packages/kedo_web's
// stream_codec.rs pull-based resource model, generalized from
// "HTTP response body only" to the general bridge spec.md §4.5 names.
type ChannelBuffer struct {
	chunks chan []byte
	done   chan struct{}

	mu       sync.Mutex
	closed   bool
	closeErr error

	readerOnce sync.Once
}

// NewChannelBuffer creates a buffer holding up to capacity unread chunks
// before Write blocks.
func NewChannelBuffer(capacity int) *ChannelBuffer {
	if capacity < 1 {
		capacity = 1
	}
	return &ChannelBuffer{
		chunks: make(chan []byte, capacity),
		done:   make(chan struct{}),
	}
}

// Write enqueues chunk, blocking if the buffer is full until space frees,
// Close is called, or ctx is cancelled. There is no reader-side release:
// a reader that stops reading does not by itself unblock a waiting Write.
func (c *ChannelBuffer) Write(ctx context.Context, chunk []byte) error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return core.ErrChannelClosed
	}
	c.mu.Unlock()

	select {
	case c.chunks <- chunk:
		return nil
	case <-c.done:
		return core.ErrChannelClosed
	case <-ctx.Done():
		return core.NewError(core.KindCancelled, "write cancelled", ctx.Err())
	}
}

// Close signals end-of-stream (with err==nil) or a terminal stream error
// (err!=nil); it may be called exactly once, subsequent calls are no-ops.
func (c *ChannelBuffer) Close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	c.closeErr = err
	close(c.done)
}

// Read returns the next chunk, io.EOF once the stream closes cleanly, or
// the error passed to Close on an abnormal close. A Close error is
// delivered exactly once; every call after that returns io.EOF, same as
// a clean close.
func (c *ChannelBuffer) Read(ctx context.Context) ([]byte, error) {
	select {
	case chunk, ok := <-c.chunks:
		if ok {
			return chunk, nil
		}
	default:
	}
	select {
	case chunk := <-c.chunks:
		return chunk, nil
	case <-c.done:
		select {
		case chunk := <-c.chunks:
			return chunk, nil
		default:
		}
		c.mu.Lock()
		err := c.closeErr
		c.closeErr = nil
		c.mu.Unlock()
		if err != nil {
			return nil, err
		}
		return nil, io.EOF
	case <-ctx.Done():
		return nil, core.NewError(core.KindCancelled, "read cancelled", ctx.Err())
	}
}

// AcquireReader enforces "at most one reader": the first caller gets
// ok=true, every subsequent caller gets ok=false.
func (c *ChannelBuffer) AcquireReader() (acquired bool) {
	acquired = false
	c.readerOnce.Do(func() { acquired = true })
	return acquired
}
