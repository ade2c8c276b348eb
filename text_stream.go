package ai

import (
	"context"
	"errors"
	"io"
	"sync/atomic"

	"github.com/bitop-dev/aistream/internal/fanout"
)

type TextStream struct {
	next  func() bool
	delta func() string
	err   func() error
	close func() error
}

func (s *TextStream) Next() bool {
	if s == nil || s.next == nil {
		return false
	}
	return s.next()
}

func (s *TextStream) Delta() string {
	if s == nil || s.delta == nil {
		return ""
	}
	return s.delta()
}

func (s *TextStream) Err() error {
	if s == nil || s.err == nil {
		return nil
	}
	return s.err()
}

// Close stops reading. The run itself keeps going; cancel its context to
// abort it.
func (s *TextStream) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

func newTextStream(
	next func() bool,
	delta func() string,
	err func() error,
	close func() error,
) *TextStream {
	return &TextStream{
		next:  next,
		delta: delta,
		err:   err,
		close: close,
	}
}

func newQueueTextStream(q *fanout.Queue[string]) *TextStream {
	var (
		cur    string
		err    error
		closed atomic.Bool
	)
	next := func() bool {
		if err != nil || closed.Load() {
			return false
		}
		v, rerr := q.Recv(context.Background())
		if rerr != nil {
			if !isEOF(rerr) {
				err = rerr
			}
			closed.Store(true)
			return false
		}
		cur = v
		return true
	}
	return newTextStream(
		next,
		func() string { return cur },
		func() error { return err },
		func() error { closed.Store(true); return nil },
	)
}

// Iter returns a channel of text deltas. The caller should check Err() after
// the channel is closed.
//
// Do not call Next() concurrently with Iter().
func (s *TextStream) Iter() <-chan string {
	ch := make(chan string)
	go func() {
		defer close(ch)
		for s.Next() {
			ch <- s.Delta()
		}
	}()
	return ch
}

// Reader exposes the stream as an io.Reader of text deltas.
//
// Do not call Next() concurrently with Reader().
func (s *TextStream) Reader() io.Reader {
	return &textStreamReader{stream: s}
}

type textStreamReader struct {
	stream *TextStream
	buf    []byte
	done   bool
}

func (r *textStreamReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	for len(r.buf) == 0 {
		if r.stream.Next() {
			r.buf = []byte(r.stream.Delta())
			continue
		}
		r.done = true
		if err := r.stream.Err(); err != nil {
			return 0, err
		}
		return 0, io.EOF
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func isEOF(err error) bool {
	return errors.Is(err, io.EOF)
}
