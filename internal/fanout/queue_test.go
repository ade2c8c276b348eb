package fanout

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_OrderAndEOF(t *testing.T) {
	q := NewQueue[int]()
	for i := 0; i < 3; i++ {
		require.NoError(t, q.Push(i))
	}
	q.Close(nil)

	ctx := context.Background()
	for i := 0; i < 3; i++ {
		v, err := q.Recv(ctx)
		require.NoError(t, err)
		assert.Equal(t, i, v)
	}
	_, err := q.Recv(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.ErrorIs(t, q.Push(4), ErrClosed)
}

func TestQueue_CloseWithError(t *testing.T) {
	boom := errors.New("boom")
	q := NewQueue[string]()
	require.NoError(t, q.Push("a"))
	q.Close(boom)
	q.Close(nil)

	v, err := q.Recv(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "a", v)
	_, err = q.Recv(context.Background())
	assert.ErrorIs(t, err, boom)
}

func TestQueue_RecvWakesOnPush(t *testing.T) {
	q := NewQueue[int]()
	got := make(chan int, 1)
	go func() {
		v, _ := q.Recv(context.Background())
		got <- v
	}()
	time.Sleep(10 * time.Millisecond)
	require.NoError(t, q.Push(7))

	select {
	case v := <-got:
		assert.Equal(t, 7, v)
	case <-time.After(time.Second):
		t.Fatal("reader was not woken")
	}
}

func TestQueue_RecvHonoursContext(t *testing.T) {
	q := NewQueue[int]()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := q.Recv(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestPublisher_IndependentConsumers(t *testing.T) {
	a, b := NewQueue[int](), NewQueue[int]()
	p := NewPublisher(a, b)
	for i := 0; i < 100; i++ {
		p.Publish(i)
	}
	p.Close(nil)

	// Draining a fully before touching b must not lose or reorder anything.
	ctx := context.Background()
	for _, q := range []*Queue[int]{a, b} {
		for i := 0; i < 100; i++ {
			v, err := q.Recv(ctx)
			require.NoError(t, err)
			require.Equal(t, i, v)
		}
		_, err := q.Recv(ctx)
		require.ErrorIs(t, err, io.EOF)
	}
}
