// Package providertest provides a scripted provider.LanguageModel for tests.
package providertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/bitop-dev/aistream/provider"
)

// Call scripts the outcome of one DoStream invocation.
type Call struct {
	Parts    []provider.StreamPart
	Warnings []provider.Warning

	// Err is reported by the reader after all parts were read.
	Err error

	// DoStreamErr is returned by DoStream itself.
	DoStreamErr error

	// Hang makes the reader wait for context cancellation once Parts are
	// exhausted instead of ending the stream.
	Hang bool
}

type Model struct {
	ProviderName string
	ID           string

	Calls []Call

	mu       sync.Mutex
	requests []provider.CallOptions
}

func NewModel(calls ...Call) *Model {
	return &Model{ProviderName: "test", ID: "test-model", Calls: calls}
}

func (m *Model) Provider() string { return m.ProviderName }
func (m *Model) ModelID() string  { return m.ID }

func (m *Model) DoStream(ctx context.Context, opts provider.CallOptions) (*provider.StreamResult, error) {
	m.mu.Lock()
	m.requests = append(m.requests, opts)
	n := len(m.requests) - 1
	m.mu.Unlock()

	if n >= len(m.Calls) {
		return nil, fmt.Errorf("providertest: unexpected call %d", n)
	}
	c := m.Calls[n]
	if c.DoStreamErr != nil {
		return nil, c.DoStreamErr
	}
	return &provider.StreamResult{
		Stream:   &reader{ctx: ctx, call: c},
		Warnings: append([]provider.Warning(nil), c.Warnings...),
	}, nil
}

// Requests returns the call options of every DoStream invocation so far.
func (m *Model) Requests() []provider.CallOptions {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]provider.CallOptions, len(m.requests))
	copy(out, m.requests)
	return out
}

type reader struct {
	ctx  context.Context
	call Call
	i    int
	err  error
}

func (r *reader) Next() bool {
	if r.err != nil {
		return false
	}
	if err := r.ctx.Err(); err != nil {
		r.err = err
		return false
	}
	if r.i < len(r.call.Parts) {
		r.i++
		return true
	}
	if r.call.Hang {
		<-r.ctx.Done()
		r.err = r.ctx.Err()
		return false
	}
	r.err = r.call.Err
	return false
}

func (r *reader) Part() provider.StreamPart {
	if r.i == 0 {
		return nil
	}
	return r.call.Parts[r.i-1]
}

func (r *reader) Err() error   { return r.err }
func (r *reader) Close() error { return nil }

var _ provider.LanguageModel = (*Model)(nil)
