package provider

import (
	"encoding/json"
	"time"
)

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

// Usage holds the token counts reported by the model. Counts are left at zero
// when the provider does not report them.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
}

type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is the canonical prompt message handed to a LanguageModel.
type Message struct {
	Role    Role
	Content []ContentPart

	// ToolCalls is only set on assistant messages.
	ToolCalls []ToolCall

	// ToolCallID is set on tool messages and associates the result with a
	// prior assistant tool call.
	ToolCallID string
	Name       string
}

type ContentPart interface {
	isContentPart()
}

type TextPart struct{ Text string }

func (TextPart) isContentPart() {}

// ImagePart carries either inline Data or a URL. MediaType is always set by
// the normalizer.
type ImagePart struct {
	Data      []byte
	URL       string
	MediaType string
}

func (ImagePart) isContentPart() {}

type FilePart struct {
	Data      []byte
	URL       string
	MediaType string
	Filename  string
}

func (FilePart) isContentPart() {}

type ReasoningPart struct {
	Text      string
	Signature string
}

func (ReasoningPart) isContentPart() {}

type ToolResultPart struct {
	ToolCallID string
	ToolName   string
	Result     json.RawMessage
	IsError    bool
}

func (ToolResultPart) isContentPart() {}

type ToolDefinition struct {
	Name        string
	Description string
	InputSchema json.RawMessage
}

type Mode string

const (
	ModeRegular Mode = "regular"
	ModeTools   Mode = "tools"
)

type ToolChoice struct {
	// Type is one of "auto", "none", "required" or "tool".
	Type     string
	ToolName string
}

type Warning struct {
	Type    string
	Setting string
	Message string
}

type ResponseMetadata struct {
	ID        string
	ModelID   string
	Timestamp time.Time
}

func (ResponseMetadata) isStreamPart() {}

// Source is a citation surfaced by the model (for example a web search hit).
type Source struct {
	ID               string
	SourceType       string
	URL              string
	Title            string
	ProviderMetadata map[string]any
}
