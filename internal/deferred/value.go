// Package deferred provides write-once values that readers can wait on.
package deferred

import (
	"context"
	"sync"
)

type Value[T any] struct {
	once sync.Once
	done chan struct{}
	v    T
	err  error
}

func New[T any]() *Value[T] {
	return &Value[T]{done: make(chan struct{})}
}

// Resolve settles the value. Only the first call has an effect; it reports
// whether this call settled the value.
func (d *Value[T]) Resolve(v T, err error) bool {
	settled := false
	d.once.Do(func() {
		d.v = v
		d.err = err
		close(d.done)
		settled = true
	})
	return settled
}

// Wait blocks until the value is settled or ctx is done.
func (d *Value[T]) Wait(ctx context.Context) (T, error) {
	select {
	case <-d.done:
		return d.v, d.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

func (d *Value[T]) Done() <-chan struct{} { return d.done }
