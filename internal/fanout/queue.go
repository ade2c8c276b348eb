// Package fanout holds the per-consumer queues used to republish one ordered
// event sequence to several independent readers.
package fanout

import (
	"context"
	"errors"
	"io"
	"sync"
)

var ErrClosed = errors.New("fanout: queue closed")

// Queue is an unbounded single-producer FIFO. Push never blocks, so a slow
// reader of one queue cannot stall the producer or the readers of another
// queue.
type Queue[T any] struct {
	mu     sync.Mutex
	items  []T
	ready  chan struct{}
	closed bool
	err    error
}

func NewQueue[T any]() *Queue[T] {
	return &Queue[T]{ready: make(chan struct{})}
}

// Push appends v. It reports ErrClosed after Close.
func (q *Queue[T]) Push(v T) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrClosed
	}
	q.items = append(q.items, v)
	q.signal()
	return nil
}

// Close ends the queue. Buffered items stay readable; afterwards Recv
// returns err, or io.EOF when err is nil. Only the first Close counts.
func (q *Queue[T]) Close(err error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return
	}
	q.closed = true
	q.err = err
	q.signal()
}

// signal wakes every waiting reader. Callers hold q.mu.
func (q *Queue[T]) signal() {
	close(q.ready)
	q.ready = make(chan struct{})
}

// Recv blocks until an item is available, the queue is closed and drained,
// or ctx is done.
func (q *Queue[T]) Recv(ctx context.Context) (T, error) {
	var zero T
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			v := q.items[0]
			q.items[0] = zero
			q.items = q.items[1:]
			q.mu.Unlock()
			return v, nil
		}
		if q.closed {
			err := q.err
			q.mu.Unlock()
			if err == nil {
				err = io.EOF
			}
			return zero, err
		}
		ready := q.ready
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-ready:
		}
	}
}

// Len reports the number of buffered items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Publisher pushes every value to all of its queues in the same order.
type Publisher[T any] struct {
	queues []*Queue[T]
}

func NewPublisher[T any](queues ...*Queue[T]) *Publisher[T] {
	return &Publisher[T]{queues: queues}
}

func (p *Publisher[T]) Publish(v T) {
	for _, q := range p.queues {
		_ = q.Push(v)
	}
}

// Close closes every queue at the same transition point.
func (p *Publisher[T]) Close(err error) {
	for _, q := range p.queues {
		q.Close(err)
	}
}
