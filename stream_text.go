package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/bitop-dev/aistream/logging"
	"github.com/bitop-dev/aistream/provider"
)

// StreamText starts a streaming run and returns immediately. Request
// validation errors are returned directly; everything that happens after the
// model call was issued is reported through the returned result.
//
// Cancelling ctx aborts the run.
func StreamText(ctx context.Context, req StreamTextRequest) (*StreamTextResult, error) {
	if req.Model == nil {
		return nil, ErrNoModel
	}
	if ctx == nil {
		ctx = context.Background()
	}

	runID := uuid.NewString()
	log := req.Logger
	if log == nil {
		log = logging.NoOpLogger{}
	}
	log = logging.With(log, "run_id", runID, "provider", req.Model.Provider(), "model", req.Model.ModelID())

	tools, err := newToolRegistry(req.Tools)
	if err != nil {
		return nil, err
	}
	msgs, err := standardizePrompt(req)
	if err != nil {
		return nil, err
	}
	prompt, err := toProviderMessages(msgs, log)
	if err != nil {
		return nil, err
	}

	maxSteps := req.MaxSteps
	if maxSteps < 1 {
		maxSteps = 1
	}

	runCtx, cancel := applyTimeout(ctx, req.Timeout)
	res := newStreamTextResult(runID)
	s := &runState{
		ctx:       runCtx,
		cancel:    cancel,
		req:       req,
		log:       log,
		tools:     tools,
		lifecycle: newToolInputLifecycle(tools),
		maxSteps:  maxSteps,
		out:       res,
		messages:  msgs,
	}
	go s.run(prompt)
	return res, nil
}

// runState is owned by the run goroutine. Only the queues and the deferred
// outcome in out are shared with consumers.
type runState struct {
	ctx    context.Context
	cancel context.CancelFunc

	req       StreamTextRequest
	log       logging.Logger
	tools     *toolRegistry
	lifecycle *toolInputLifecycle
	maxSteps  int

	out *StreamTextResult

	// messages is the conversation sent with the current step.
	messages []Message
	done     bool

	stepOpen        bool
	step            stepAccumulator
	pendingWarnings []Warning
	continueNext    bool

	text             strings.Builder
	reasoning        strings.Builder
	sources          []Source
	files            []GeneratedFile
	toolCalls        []ToolCallPart
	toolResults      []ToolResultPart
	steps            []Step
	warnings         []Warning
	lastUsage        Usage
	totalUsage       Usage
	response         ResponseMetadata
	responseMessages []Message
	providerMetadata map[string]any
}

type stepAccumulator struct {
	text      strings.Builder
	reasoning strings.Builder

	reasoningOpen    bool
	reasoningBlock   strings.Builder
	reasoningDetails []ReasoningPart

	sources     []Source
	files       []GeneratedFile
	toolCalls   []ToolCallPart
	toolResults []ToolResultPart
	warnings    []Warning
	response    ResponseMetadata
}

func (s *runState) run(prompt []provider.Message) {
	defer s.cancel()
	defer func() {
		if p := recover(); p != nil {
			s.fail(fmt.Errorf("stream panic: %v", p))
		}
	}()

	s.log.Debug("stream started", "max_steps", s.maxSteps, "tools", s.tools.len())
	s.emit(StartEvent{})

	for {
		if !s.streamStep(prompt) {
			return
		}
		if !s.continueNext {
			s.finish()
			return
		}

		last := s.steps[len(s.steps)-1]
		s.messages = append(s.messages, stepMessages(last)...)
		var err error
		prompt, err = toProviderMessages(s.messages, s.log)
		if err != nil {
			s.fail(err)
			return
		}
	}
}

// streamStep issues one model call and translates its parts. It returns false
// when the run terminated.
func (s *runState) streamStep(prompt []provider.Message) bool {
	if s.ctx.Err() != nil {
		s.abort()
		return false
	}

	opts := buildCallOptions(s.req, s.tools, prompt)
	res, err := s.req.Model.DoStream(s.ctx, opts)
	if err != nil {
		if s.ctx.Err() != nil {
			s.abort()
		} else {
			s.fail(mapProviderError(err))
		}
		return false
	}
	if res == nil || res.Stream == nil {
		s.fail(errors.New("model returned no stream"))
		return false
	}
	stream := res.Stream
	defer stream.Close()

	s.continueNext = false
	s.pendingWarnings = append([]Warning(nil), res.Warnings...)
	s.ensureStep()

	for stream.Next() {
		if s.ctx.Err() != nil {
			s.abort()
			return false
		}
		if !s.handlePart(stream.Part()) {
			return false
		}
	}
	if err := stream.Err(); err != nil {
		if s.ctx.Err() != nil {
			s.abort()
		} else {
			s.fail(mapProviderError(err))
		}
		return false
	}
	if s.ctx.Err() != nil {
		s.abort()
		return false
	}

	if s.stepOpen {
		s.closeReasoning("")
		s.sealStep(FinishUnknown, Usage{}, nil)
	}
	return true
}

// handlePart applies one raw part. It returns false when the run terminated.
func (s *runState) handlePart(p provider.StreamPart) bool {
	switch v := p.(type) {
	case provider.TextDelta:
		if v.Text == "" {
			return true
		}
		s.ensureStep()
		s.closeReasoning("")
		s.step.text.WriteString(v.Text)
		s.text.WriteString(v.Text)
		s.emitChunk(TextEvent{Text: v.Text})

	case provider.ReasoningDelta:
		if v.Text == "" {
			return true
		}
		s.ensureStep()
		s.step.reasoningOpen = true
		s.step.reasoningBlock.WriteString(v.Text)
		s.step.reasoning.WriteString(v.Text)
		s.reasoning.WriteString(v.Text)
		s.emitChunk(ReasoningEvent{Text: v.Text})

	case provider.ReasoningSignature:
		s.ensureStep()
		s.closeReasoning(v.Signature)

	case provider.SourcePart:
		s.ensureStep()
		s.closeReasoning("")
		s.step.sources = append(s.step.sources, v.Source)
		s.sources = append(s.sources, v.Source)
		s.emitChunk(SourceEvent{Source: v.Source})

	case provider.GeneratedFile:
		s.ensureStep()
		s.closeReasoning("")
		f := GeneratedFile{Data: v.Data, MediaType: v.MediaType}
		s.step.files = append(s.step.files, f)
		s.files = append(s.files, f)
		s.emitChunk(FileEvent{File: f})

	case provider.ToolCallDelta:
		s.ensureStep()
		s.closeReasoning("")
		if s.lifecycle.begin(v.ToolCallID, v.ToolName) {
			s.emitChunk(ToolCallStreamingStartEvent{ToolCallID: v.ToolCallID, ToolName: v.ToolName})
		}
		s.emitChunk(ToolCallDeltaEvent{ToolCallID: v.ToolCallID, ToolName: v.ToolName, ArgsTextDelta: v.ArgsTextDelta})
		s.lifecycle.delta(v.ToolCallID, v.ToolName, v.ArgsTextDelta)

	case provider.ToolCall:
		s.ensureStep()
		s.closeReasoning("")
		call := ToolCallPart{ID: v.ID, Name: v.Name, Args: append(json.RawMessage(nil), v.Args...)}
		if call.ID == "" {
			call.ID = uuid.NewString()
		}
		if len(call.Args) == 0 {
			call.Args = json.RawMessage(`{}`)
		}
		s.step.toolCalls = append(s.step.toolCalls, call)
		s.toolCalls = append(s.toolCalls, call)
		s.emitChunk(ToolCallEvent{ToolCallID: call.ID, ToolName: call.Name, Args: call.Args})
		s.runTool(call)

	case provider.ResponseMetadata:
		if s.stepOpen {
			mergeResponse(&s.step.response, v)
		}
		mergeResponse(&s.response, v)

	case provider.Finish:
		s.ensureStep()
		s.closeReasoning("")
		reason := FinishReason(v.FinishReason)
		if reason == "" {
			reason = FinishUnknown
		}
		s.sealStep(reason, usageFromProvider(v.Usage), v.ProviderMetadata)

	case provider.ErrorPart:
		err := v.Err
		if err == nil {
			err = errors.New("model stream error")
		}
		s.fail(mapProviderError(err))

	default:
		s.log.Debug("ignoring stream part", "type", fmt.Sprintf("%T", p))
	}
	return !s.done
}

func (s *runState) runTool(call ToolCallPart) {
	res, ok, err := s.tools.executeToolCall(s.ctx, call, toolExecOptions{
		messages:         s.messages,
		onInputAvailable: s.lifecycle.onInputAvailable,
		onProgress:       s.req.OnToolProgress,
	})
	if s.ctx.Err() != nil {
		return
	}
	if err != nil {
		s.log.Warn("tool execution failed",
			"step", len(s.steps), "tool", call.Name, "tool_call_id", call.ID, "error", err)
		s.onError(err)
		return
	}
	if !ok {
		if _, known := s.tools.lookup(call.Name); !known {
			s.log.Warn("model called an unknown tool",
				"step", len(s.steps), "tool_call_id", call.ID, "error", &NoSuchToolError{ToolName: call.Name})
			return
		}
		s.log.Debug("tool call left without result",
			"step", len(s.steps), "tool", call.Name, "tool_call_id", call.ID)
		return
	}

	s.step.toolResults = append(s.step.toolResults, res)
	s.toolResults = append(s.toolResults, res)
	s.emitChunk(ToolResultEvent{ToolCallID: res.ToolCallID, ToolName: res.ToolName, Args: res.Args, Result: res.Result})
}

// ensureStep opens a step if none is open. Every step after the first one is
// announced with a StartStepEvent.
func (s *runState) ensureStep() {
	if s.stepOpen {
		return
	}
	s.stepOpen = true
	s.step = stepAccumulator{warnings: s.pendingWarnings}
	s.pendingWarnings = nil
	if len(s.steps) > 0 {
		s.emit(StartStepEvent{StepNumber: len(s.steps), Warnings: s.step.warnings})
	}
}

// closeReasoning ends the open reasoning block. A signature always ends a
// block, even an empty one.
func (s *runState) closeReasoning(signature string) {
	if !s.step.reasoningOpen && signature == "" {
		return
	}
	s.step.reasoningDetails = append(s.step.reasoningDetails, ReasoningPart{
		Text:      s.step.reasoningBlock.String(),
		Signature: signature,
	})
	s.step.reasoningBlock.Reset()
	s.step.reasoningOpen = false
	s.emit(ReasoningPartFinishEvent{Signature: signature})
}

func (s *runState) sealStep(reason FinishReason, usage Usage, providerMetadata map[string]any) {
	acc := &s.step
	st := Step{
		StepNumber:       len(s.steps),
		Text:             acc.text.String(),
		Reasoning:        acc.reasoning.String(),
		ReasoningDetails: acc.reasoningDetails,
		Sources:          acc.sources,
		Files:            acc.files,
		ToolCalls:        acc.toolCalls,
		ToolResults:      acc.toolResults,
		FinishReason:     reason,
		Usage:            usage,
		Warnings:         acc.warnings,
		Response:         acc.response,
		ProviderMetadata: providerMetadata,
	}

	all := append(s.steps[:len(s.steps):len(s.steps)], st)
	st.IsContinued = s.canContinue(st, all)
	all[len(all)-1] = st
	s.steps = all

	s.continueNext = st.IsContinued
	s.lastUsage = usage
	s.totalUsage = addUsage(s.totalUsage, usage)
	s.warnings = append(s.warnings, st.Warnings...)
	if providerMetadata != nil {
		s.providerMetadata = providerMetadata
	}
	s.responseMessages = append(s.responseMessages, stepMessages(st)...)

	s.stepOpen = false
	s.step = stepAccumulator{}

	s.log.Debug("step finished",
		"step", st.StepNumber, "finish_reason", string(st.FinishReason), "tool_calls", len(st.ToolCalls))
	s.emit(FinishStepEvent{Step: st})
	if s.req.OnStepFinish != nil {
		s.req.OnStepFinish(st)
	}
}

func (s *runState) canContinue(st Step, all []Step) bool {
	if len(st.ToolCalls) == 0 || len(st.ToolResults) != len(st.ToolCalls) {
		return false
	}
	if len(all) >= s.maxSteps {
		return false
	}
	return !shouldStop(s.req.StopWhen, all)
}

func (s *runState) aggregate() Aggregate {
	reason := FinishUnknown
	if n := len(s.steps); n > 0 {
		reason = s.steps[n-1].FinishReason
	}
	return Aggregate{
		Text:         s.text.String(),
		Reasoning:    s.reasoning.String(),
		Sources:      s.sources,
		Files:        s.files,
		ToolCalls:    nonNil(s.toolCalls),
		ToolResults:  nonNil(s.toolResults),
		FinishReason: reason,
		Usage:        s.lastUsage,
		TotalUsage:   s.totalUsage,
		Steps:        s.steps,
		Warnings:     s.warnings,
		Response: Response{
			ResponseMetadata: s.response,
			Messages:         s.responseMessages,
		},
		ProviderMetadata: s.providerMetadata,
	}
}

func (s *runState) finish() {
	if s.done {
		return
	}
	s.done = true

	agg := s.aggregate()
	s.emit(FinishEvent{
		FinishReason:     agg.FinishReason,
		Usage:            agg.Usage,
		TotalUsage:       agg.TotalUsage,
		Response:         agg.Response,
		ProviderMetadata: agg.ProviderMetadata,
	})
	s.out.close(nil)
	s.out.outcome.Resolve(agg, nil)

	s.log.Debug("stream finished",
		"finish_reason", string(agg.FinishReason), "steps", len(agg.Steps), "total_tokens", agg.TotalUsage.TotalTokens)
	if s.req.OnFinish != nil {
		s.req.OnFinish(agg)
	}
}

func (s *runState) fail(err error) {
	if s.done {
		s.log.Error("error after stream end", "error", err)
		return
	}
	s.done = true

	s.log.Error("stream failed", "step", len(s.steps), "error", err)
	if s.req.OnError != nil {
		s.safeCall("OnError", func() { s.req.OnError(err) })
	}
	s.emit(ErrorEvent{Err: err})
	s.out.close(err)

	agg := s.aggregate()
	agg.FinishReason = FinishError
	s.out.outcome.Resolve(agg, err)
}

func (s *runState) abort() {
	if s.done {
		return
	}
	s.done = true

	cause := s.ctx.Err()
	s.log.Info("stream aborted", "steps", len(s.steps), "reason", cause)
	s.emit(AbortEvent{Err: cause})
	s.out.close(nil)

	agg := s.aggregate()
	agg.FinishReason = FinishUnknown
	s.out.outcome.Resolve(agg, fmt.Errorf("%w: %w", ErrAborted, cause))

	if s.req.OnAbort != nil {
		steps := append([]Step(nil), s.steps...)
		s.safeCall("OnAbort", func() { s.req.OnAbort(steps) })
	}
}

// onError reports an error the run recovers from. A panicking callback is
// logged and does not end the run.
func (s *runState) onError(err error) {
	if s.req.OnError != nil {
		s.safeCall("OnError", func() { s.req.OnError(err) })
	}
}

// safeCall runs a callback whose panic must not escalate into a run failure.
func (s *runState) safeCall(name string, fn func()) {
	defer func() {
		if p := recover(); p != nil {
			s.log.Error("callback panicked", "callback", name, "panic", fmt.Sprint(p))
		}
	}()
	fn()
}

func (s *runState) emit(ev StreamEvent) {
	if t, ok := ev.(TextEvent); ok {
		_ = s.out.textQ.Push(t.Text)
	}
	s.out.events.Publish(ev)
}

func (s *runState) emitChunk(ev StreamEvent) {
	s.emit(ev)
	if s.req.OnChunk != nil {
		s.req.OnChunk(ev)
	}
}

func mergeResponse(dst *ResponseMetadata, src provider.ResponseMetadata) {
	if src.ID != "" {
		dst.ID = src.ID
	}
	if src.ModelID != "" {
		dst.ModelID = src.ModelID
	}
	if !src.Timestamp.IsZero() {
		dst.Timestamp = src.Timestamp
	}
}

// nonNil keeps empty collections encoding as [] instead of null.
func nonNil[T any](v []T) []T {
	if v == nil {
		return []T{}
	}
	return v
}
