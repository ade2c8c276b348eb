package ai

import "encoding/json"

type EventType string

const (
	EventStart                  EventType = "start"
	EventText                   EventType = "text"
	EventReasoning              EventType = "reasoning"
	EventReasoningPartFinish    EventType = "reasoning-part-finish"
	EventSource                 EventType = "source"
	EventFile                   EventType = "file"
	EventToolCallStreamingStart EventType = "tool-call-streaming-start"
	EventToolCallDelta          EventType = "tool-call-delta"
	EventToolCall               EventType = "tool-call"
	EventToolResult             EventType = "tool-result"
	EventStartStep              EventType = "start-step"
	EventFinishStep             EventType = "finish-step"
	EventFinish                 EventType = "finish"
	EventError                  EventType = "error"
	EventAbort                  EventType = "abort"
)

// StreamEvent is one entry of the full event stream. The set of
// implementations is closed; switch on the concrete type or on Type().
type StreamEvent interface {
	Type() EventType
	isStreamEvent()
}

// StartEvent opens every run.
type StartEvent struct{}

type TextEvent struct {
	Text string
}

type ReasoningEvent struct {
	Text string
}

// ReasoningPartFinishEvent closes a reasoning block.
type ReasoningPartFinishEvent struct {
	Signature string
}

type SourceEvent struct {
	Source Source
}

type FileEvent struct {
	File GeneratedFile
}

// ToolCallStreamingStartEvent precedes the first ToolCallDeltaEvent of a
// tool call.
type ToolCallStreamingStartEvent struct {
	ToolCallID string
	ToolName   string
}

type ToolCallDeltaEvent struct {
	ToolCallID    string
	ToolName      string
	ArgsTextDelta string
}

type ToolCallEvent struct {
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
}

type ToolResultEvent struct {
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
	Result     any
}

// StartStepEvent opens every step after the first one.
type StartStepEvent struct {
	StepNumber int
	Warnings   []Warning
}

type FinishStepEvent struct {
	Step Step
}

type FinishEvent struct {
	FinishReason     FinishReason
	Usage            Usage
	TotalUsage       Usage
	Response         Response
	ProviderMetadata map[string]any
}

type ErrorEvent struct {
	Err error
}

// AbortEvent ends the run when its context is canceled. Err is the context
// error.
type AbortEvent struct {
	Err error
}

func (StartEvent) Type() EventType                  { return EventStart }
func (TextEvent) Type() EventType                   { return EventText }
func (ReasoningEvent) Type() EventType              { return EventReasoning }
func (ReasoningPartFinishEvent) Type() EventType    { return EventReasoningPartFinish }
func (SourceEvent) Type() EventType                 { return EventSource }
func (FileEvent) Type() EventType                   { return EventFile }
func (ToolCallStreamingStartEvent) Type() EventType { return EventToolCallStreamingStart }
func (ToolCallDeltaEvent) Type() EventType          { return EventToolCallDelta }
func (ToolCallEvent) Type() EventType               { return EventToolCall }
func (ToolResultEvent) Type() EventType             { return EventToolResult }
func (StartStepEvent) Type() EventType              { return EventStartStep }
func (FinishStepEvent) Type() EventType             { return EventFinishStep }
func (FinishEvent) Type() EventType                 { return EventFinish }
func (ErrorEvent) Type() EventType                  { return EventError }
func (AbortEvent) Type() EventType                  { return EventAbort }

func (StartEvent) isStreamEvent()                  {}
func (TextEvent) isStreamEvent()                   {}
func (ReasoningEvent) isStreamEvent()              {}
func (ReasoningPartFinishEvent) isStreamEvent()    {}
func (SourceEvent) isStreamEvent()                 {}
func (FileEvent) isStreamEvent()                   {}
func (ToolCallStreamingStartEvent) isStreamEvent() {}
func (ToolCallDeltaEvent) isStreamEvent()          {}
func (ToolCallEvent) isStreamEvent()               {}
func (ToolResultEvent) isStreamEvent()             {}
func (StartStepEvent) isStreamEvent()              {}
func (FinishStepEvent) isStreamEvent()             {}
func (FinishEvent) isStreamEvent()                 {}
func (ErrorEvent) isStreamEvent()                  {}
func (AbortEvent) isStreamEvent()                  {}

var (
	_ StreamEvent = StartEvent{}
	_ StreamEvent = TextEvent{}
	_ StreamEvent = ReasoningEvent{}
	_ StreamEvent = ReasoningPartFinishEvent{}
	_ StreamEvent = SourceEvent{}
	_ StreamEvent = FileEvent{}
	_ StreamEvent = ToolCallStreamingStartEvent{}
	_ StreamEvent = ToolCallDeltaEvent{}
	_ StreamEvent = ToolCallEvent{}
	_ StreamEvent = ToolResultEvent{}
	_ StreamEvent = StartStepEvent{}
	_ StreamEvent = FinishStepEvent{}
	_ StreamEvent = FinishEvent{}
	_ StreamEvent = ErrorEvent{}
	_ StreamEvent = AbortEvent{}
)
