package ai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bitop-dev/aistream/logging"
	"github.com/bitop-dev/aistream/provider"
)

type StreamTextRequest struct {
	Model provider.LanguageModel

	// System is prepended as a system message.
	System string

	// Prompt is a single user message. It cannot be combined with Messages.
	Prompt   string
	Messages []Message

	Tools      []Tool
	ToolChoice *ToolChoice

	// ActiveTools restricts the tools advertised to the model. When empty,
	// every tool is active.
	ActiveTools []string

	// MaxSteps bounds the number of model calls. Defaults to 1, which disables
	// the automatic tool continuation.
	MaxSteps int

	// StopWhen is evaluated after each step that produced tool results. Any
	// condition returning true stops the continuation.
	StopWhen []StopCondition

	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	TopK             *int
	PresencePenalty  *float64
	FrequencyPenalty *float64
	Stop             []string
	Seed             *int64

	Headers         map[string]string
	ProviderOptions map[string]any

	Timeout time.Duration

	Logger logging.Logger

	// OnChunk is called for every content event (text, reasoning, sources,
	// files and tool events).
	OnChunk func(event StreamEvent)

	// OnError is called for provider, transport and tool failures.
	OnError func(err error)

	// OnStepFinish is called once for each sealed step.
	OnStepFinish func(step Step)

	// OnFinish is called after the run completed successfully.
	OnFinish func(result Aggregate)

	// OnAbort is called with the steps sealed so far when the context is
	// canceled before the run completed.
	OnAbort func(steps []Step)

	// OnToolProgress receives data reported through
	// ToolExecutionOptions.Report.
	OnToolProgress func(event ToolProgressEvent)
}

type ToolChoice = provider.ToolChoice

func ToolChoiceAuto() *ToolChoice     { return &ToolChoice{Type: "auto"} }
func ToolChoiceNone() *ToolChoice     { return &ToolChoice{Type: "none"} }
func ToolChoiceRequired() *ToolChoice { return &ToolChoice{Type: "required"} }

func ToolChoiceTool(name string) *ToolChoice {
	return &ToolChoice{Type: "tool", ToolName: name}
}

type Schema struct {
	JSON json.RawMessage
}

func JSONSchema(raw json.RawMessage) Schema {
	return Schema{JSON: raw}
}

type Tool struct {
	Name        string
	Description string
	InputSchema Schema
	Handler     ToolHandler

	// Tool input lifecycle hooks, driven by streamed tool call deltas.
	OnInputStart     func(event ToolInputStartEvent)
	OnInputDelta     func(event ToolInputDeltaEvent)
	OnInputAvailable func(event ToolInputAvailableEvent)
}

type ToolHandler func(ctx context.Context, input json.RawMessage) (any, error)

type ToolInputStartEvent struct {
	ToolName   string
	ToolCallID string
}

type ToolInputDeltaEvent struct {
	ToolName   string
	ToolCallID string

	InputTextDelta string
}

type ToolInputAvailableEvent struct {
	ToolName   string
	ToolCallID string

	Input json.RawMessage
}

type ToolProgressEvent struct {
	ToolName   string
	ToolCallID string

	Data any
}

type Source = provider.Source

type Warning = provider.Warning

// GeneratedFile is a file produced by the model.
type GeneratedFile struct {
	Data      []byte
	MediaType string
}

func (f GeneratedFile) Base64() string {
	return base64.StdEncoding.EncodeToString(f.Data)
}

// ResponseMetadata describes the model response of one step.
type ResponseMetadata struct {
	ID        string
	ModelID   string
	Timestamp time.Time
}

type Response struct {
	ResponseMetadata

	// Messages are the assistant and tool messages generated by the run. They
	// can be appended to the conversation for the next turn.
	Messages []Message
}

// Step is the immutable record of one model call and the tool executions it
// triggered.
type Step struct {
	StepNumber int

	Text             string
	Reasoning        string
	ReasoningDetails []ReasoningPart
	Sources          []Source
	Files            []GeneratedFile
	ToolCalls        []ToolCallPart
	ToolResults      []ToolResultPart

	FinishReason     FinishReason
	Usage            Usage
	Warnings         []Warning
	Response         ResponseMetadata
	ProviderMetadata map[string]any

	// IsContinued reports whether another step follows this one.
	IsContinued bool
}

// Aggregate is the final state of a run.
type Aggregate struct {
	Text        string
	Reasoning   string
	Sources     []Source
	Files       []GeneratedFile
	ToolCalls   []ToolCallPart
	ToolResults []ToolResultPart

	FinishReason FinishReason

	// Usage is the usage of the last step; TotalUsage sums every step.
	Usage      Usage
	TotalUsage Usage

	Steps            []Step
	Warnings         []Warning
	Response         Response
	ProviderMetadata map[string]any
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

type Message struct {
	Role    Role
	Content []ContentPart
	Name    string

	ToolCallID string // required for role=tool messages
}

type ContentPart interface {
	isContentPart()
}

type TextPart struct{ Text string }

func (TextPart) isContentPart() {}

// ImagePart is an image input. Provide either URL (remote or data URL) or
// Bytes/Base64. MediaType defaults to image/jpeg.
type ImagePart struct {
	URL       string
	MediaType string
	Bytes     []byte
	Base64    string
}

func (ImagePart) isContentPart() {}

// FilePart is a file input. Files whose media type the models cannot read are
// replaced by a short text placeholder.
type FilePart struct {
	URL       string
	MediaType string
	Filename  string
	Bytes     []byte
	Base64    string
}

func (FilePart) isContentPart() {}

type ReasoningPart struct {
	Text      string
	Signature string
}

func (ReasoningPart) isContentPart() {}

type ToolCallPart struct {
	ID   string
	Name string
	Args json.RawMessage
}

func (ToolCallPart) isContentPart() {}

type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Args       json.RawMessage
	Result     any
	IsError    bool
}

func (ToolResultPart) isContentPart() {}

func ImageURL(url string) ImagePart { return ImagePart{URL: url} }

func ImageBytes(mediaType string, b []byte) ImagePart {
	return ImagePart{MediaType: mediaType, Bytes: b}
}

func FileBytes(filename, mediaType string, b []byte) FilePart {
	return FilePart{Filename: filename, MediaType: mediaType, Bytes: b}
}

func System(text string) Message {
	return Message{Role: RoleSystem, Content: []ContentPart{TextPart{Text: text}}}
}

func User(text string) Message {
	return Message{Role: RoleUser, Content: []ContentPart{TextPart{Text: text}}}
}

func Assistant(text string) Message {
	return Message{Role: RoleAssistant, Content: []ContentPart{TextPart{Text: text}}}
}

func ToolResultForCall(toolCallID, toolName string, value any) Message {
	raw, err := json.Marshal(value)
	if err != nil {
		raw = json.RawMessage(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	return Message{
		Role:       RoleTool,
		Name:       toolName,
		ToolCallID: toolCallID,
		Content:    []ContentPart{TextPart{Text: string(raw)}},
	}
}

type FinishReason string

const (
	FinishStop          FinishReason = "stop"
	FinishLength        FinishReason = "length"
	FinishToolCalls     FinishReason = "tool-calls"
	FinishContentFilter FinishReason = "content-filter"
	FinishError         FinishReason = "error"
	FinishOther         FinishReason = "other"
	FinishUnknown       FinishReason = "unknown"
)

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

func addUsage(a, b Usage) Usage {
	return Usage{
		PromptTokens:     a.PromptTokens + b.PromptTokens,
		CompletionTokens: a.CompletionTokens + b.CompletionTokens,
		TotalTokens:      a.TotalTokens + b.TotalTokens,
	}
}

func usageFromProvider(u provider.Usage) Usage {
	return Usage{
		PromptTokens:     u.PromptTokens,
		CompletionTokens: u.CompletionTokens,
		TotalTokens:      u.PromptTokens + u.CompletionTokens,
	}
}
