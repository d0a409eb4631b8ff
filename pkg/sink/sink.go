// Package sink carries finished events to the monitoring consumer. The
// hot path requires emission to be non-blocking and bounded, so the
// channel sink is loss-tolerant: when the consumer falls behind, events
// are dropped and counted rather than queued without bound.
package sink

import (
	"io"
	"sync"
	"sync/atomic"

	"github.com/zhangbo1882/pwru/pkg/event"
)

// Sink receives one record per accepted invocation. Emit must not block
// and must not retain the pointer past the call; the event is copied out.
type Sink interface {
	Emit(e *event.Event)
}

// Channel is a bounded broadcast buffer drained by user space.
type Channel struct {
	ch    chan event.Event
	drops atomic.Uint64
}

// NewChannel sizes the buffer; a full buffer drops, it never blocks the
// producing invocation.
func NewChannel(size int) *Channel {
	return &Channel{ch: make(chan event.Event, size)}
}

// Emit implements Sink.
func (c *Channel) Emit(e *event.Event) {
	select {
	case c.ch <- *e:
	default:
		c.drops.Add(1)
	}
}

// Events is the consumer side.
func (c *Channel) Events() <-chan event.Event {
	return c.ch
}

// Drops reports how many events were lost to a full buffer.
func (c *Channel) Drops() uint64 {
	return c.drops.Load()
}

// Close releases the consumer; no Emit may be in flight or follow.
func (c *Channel) Close() {
	close(c.ch)
}

// Stream writes fixed-size records to an io.Writer with no framing beyond
// the record size. It serializes writers with a mutex, so it belongs on
// the consumer side of a Channel, not directly on the hot path.
type Stream struct {
	mu    sync.Mutex
	w     io.Writer
	drops atomic.Uint64
}

// NewStream wraps w.
func NewStream(w io.Writer) *Stream {
	return &Stream{w: w}
}

// Emit implements Sink. Write failures count as drops; there is no error
// surface on emission.
func (s *Stream) Emit(e *event.Event) {
	raw := e.Encode()
	s.mu.Lock()
	_, err := s.w.Write(raw[:])
	s.mu.Unlock()
	if err != nil {
		s.drops.Add(1)
	}
}

// Drops reports failed writes.
func (s *Stream) Drops() uint64 {
	return s.drops.Load()
}
