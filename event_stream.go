package ai

import (
	"context"
	"sync/atomic"

	"github.com/bitop-dev/aistream/internal/fanout"
)

// EventStream yields every StreamEvent of a run in production order. After a
// failed run the last event is an ErrorEvent and Err reports the same error.
type EventStream struct {
	q *fanout.Queue[StreamEvent]

	cur    StreamEvent
	err    error
	closed atomic.Bool
}

func newEventStream(q *fanout.Queue[StreamEvent]) *EventStream {
	return &EventStream{q: q}
}

func (s *EventStream) Next() bool {
	return s.NextContext(context.Background())
}

// NextContext is Next bounded by ctx. When ctx ends first, Err reports the
// context error.
func (s *EventStream) NextContext(ctx context.Context) bool {
	if s == nil || s.err != nil || s.closed.Load() {
		return false
	}
	ev, err := s.q.Recv(ctx)
	if err != nil {
		if !isEOF(err) {
			s.err = err
		}
		s.closed.Store(true)
		return false
	}
	s.cur = ev
	return true
}

func (s *EventStream) Event() StreamEvent {
	if s == nil {
		return nil
	}
	return s.cur
}

func (s *EventStream) Err() error {
	if s == nil {
		return nil
	}
	return s.err
}

func (s *EventStream) Close() error {
	if s != nil {
		s.closed.Store(true)
	}
	return nil
}

// Iter returns a channel of events. The caller should check Err() after the
// channel is closed.
//
// Do not call Next() concurrently with Iter().
func (s *EventStream) Iter() <-chan StreamEvent {
	ch := make(chan StreamEvent)
	go func() {
		defer close(ch)
		for s.Next() {
			ch <- s.Event()
		}
	}()
	return ch
}
