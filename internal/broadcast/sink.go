package broadcast

import "errors"

// ErrSinkClosed is returned by a sink that can no longer accept events.
var ErrSinkClosed = errors.New("broadcast: sink closed")

// Sink receives stream events for one subscriber. Write must not block:
// a sink that cannot keep up returns an error and gets removed.
type Sink interface {
	Write(event StreamEvent) error
	Close() error
}

// ChannelSink buffers events on a channel; SSE and websocket writers
// drain it from their own goroutine.
type ChannelSink struct {
	ch     chan StreamEvent
	closed chan struct{}
}

func NewChannelSink(buffer int) *ChannelSink {
	return &ChannelSink{
		ch:     make(chan StreamEvent, buffer),
		closed: make(chan struct{}),
	}
}

// Write enqueues without blocking. A full buffer counts as a failed
// write so the broadcaster drops the subscriber instead of stalling.
func (s *ChannelSink) Write(event StreamEvent) error {
	select {
	case <-s.closed:
		return ErrSinkClosed
	default:
	}

	select {
	case s.ch <- event:
		return nil
	default:
		return errors.New("broadcast: sink buffer full")
	}
}

// Events exposes the drain side of the sink.
func (s *ChannelSink) Events() <-chan StreamEvent {
	return s.ch
}

func (s *ChannelSink) Close() error {
	select {
	case <-s.closed:
	default:
		close(s.closed)
	}
	return nil
}

// Done is closed once the sink is closed.
func (s *ChannelSink) Done() <-chan struct{} {
	return s.closed
}
