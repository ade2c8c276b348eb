package ai

import (
	"context"
	"sync"

	"github.com/bitop-dev/aistream/internal/deferred"
	"github.com/bitop-dev/aistream/internal/fanout"
)

// StreamTextResult is the handle of a running stream. The streaming accessors
// are single-pass; the other accessors block until the run ended and may be
// called any number of times from any goroutine.
//
// When the run failed they return the partial value together with the run
// error. When the run was aborted the error wraps ErrAborted.
//
// Every consumer view is buffered from the start of the run, so events that
// are never read through FullStream or UIMessageStream stay in memory until
// the result is dropped. A long run read only through TextStream or
// ConsumeStream keeps two copies of its event log.
type StreamTextResult struct {
	runID string

	textQ  *fanout.Queue[string]
	fullQ  *fanout.Queue[StreamEvent]
	uiQ    *fanout.Queue[StreamEvent]
	events *fanout.Publisher[StreamEvent]

	outcome *deferred.Value[Aggregate]

	textStream *TextStream
	fullStream *EventStream

	uiOnce   sync.Once
	uiStream *UIMessageStream
}

func newStreamTextResult(runID string) *StreamTextResult {
	r := &StreamTextResult{
		runID:   runID,
		textQ:   fanout.NewQueue[string](),
		fullQ:   fanout.NewQueue[StreamEvent](),
		uiQ:     fanout.NewQueue[StreamEvent](),
		outcome: deferred.New[Aggregate](),
	}
	r.events = fanout.NewPublisher(r.fullQ, r.uiQ)
	r.textStream = newQueueTextStream(r.textQ)
	r.fullStream = newEventStream(r.fullQ)
	return r
}

// close ends every consumer queue at the same point.
func (r *StreamTextResult) close(err error) {
	r.textQ.Close(err)
	r.events.Close(err)
}

// RunID identifies the run in logs and UI message ids.
func (r *StreamTextResult) RunID() string { return r.runID }

// TextStream returns the stream of text deltas. Every call returns the same
// stream.
func (r *StreamTextResult) TextStream() *TextStream { return r.textStream }

// FullStream returns the stream of every event. Every call returns the same
// stream.
func (r *StreamTextResult) FullStream() *EventStream { return r.fullStream }

// Result waits for the run to end and returns its final state.
func (r *StreamTextResult) Result(ctx context.Context) (Aggregate, error) {
	return r.outcome.Wait(ctx)
}

func (r *StreamTextResult) Text(ctx context.Context) (string, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Text, err
}

func (r *StreamTextResult) Reasoning(ctx context.Context) (string, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Reasoning, err
}

func (r *StreamTextResult) Sources(ctx context.Context) ([]Source, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Sources, err
}

func (r *StreamTextResult) Files(ctx context.Context) ([]GeneratedFile, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Files, err
}

// FinishReason resolves to FinishError when the run failed and to
// FinishUnknown when it was aborted. The error is only set when ctx ended
// first.
func (r *StreamTextResult) FinishReason(ctx context.Context) (FinishReason, error) {
	select {
	case <-r.outcome.Done():
	case <-ctx.Done():
		return FinishUnknown, ctx.Err()
	}
	a, _ := r.outcome.Wait(context.Background())
	return a.FinishReason, nil
}

// Usage is the usage of the last step.
func (r *StreamTextResult) Usage(ctx context.Context) (Usage, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Usage, err
}

func (r *StreamTextResult) TotalUsage(ctx context.Context) (Usage, error) {
	a, err := r.outcome.Wait(ctx)
	return a.TotalUsage, err
}

func (r *StreamTextResult) ToolCalls(ctx context.Context) ([]ToolCallPart, error) {
	a, err := r.outcome.Wait(ctx)
	return a.ToolCalls, err
}

func (r *StreamTextResult) ToolResults(ctx context.Context) ([]ToolResultPart, error) {
	a, err := r.outcome.Wait(ctx)
	return a.ToolResults, err
}

func (r *StreamTextResult) Steps(ctx context.Context) ([]Step, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Steps, err
}

func (r *StreamTextResult) Warnings(ctx context.Context) ([]Warning, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Warnings, err
}

func (r *StreamTextResult) ProviderMetadata(ctx context.Context) (map[string]any, error) {
	a, err := r.outcome.Wait(ctx)
	return a.ProviderMetadata, err
}

func (r *StreamTextResult) Response(ctx context.Context) (Response, error) {
	a, err := r.outcome.Wait(ctx)
	return a.Response, err
}

// ConsumeStream drains the text stream so the run completes without a
// reader. Read errors are handed to onError.
func (r *StreamTextResult) ConsumeStream(ctx context.Context, onError func(error)) {
	for {
		_, err := r.textQ.Recv(ctx)
		if err == nil {
			continue
		}
		if !isEOF(err) && onError != nil {
			onError(err)
		}
		return
	}
}
