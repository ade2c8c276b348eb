package provider

import "encoding/json"

// StreamPart is a single raw unit produced by a LanguageModel stream. The set
// of implementations is closed.
type StreamPart interface {
	isStreamPart()
}

type TextDelta struct{ Text string }

func (TextDelta) isStreamPart() {}

type ReasoningDelta struct{ Text string }

func (ReasoningDelta) isStreamPart() {}

// ReasoningSignature closes the current reasoning block.
type ReasoningSignature struct{ Signature string }

func (ReasoningSignature) isStreamPart() {}

type SourcePart struct{ Source Source }

func (SourcePart) isStreamPart() {}

// GeneratedFile is a file produced by the model (for example an image).
type GeneratedFile struct {
	Data      []byte
	MediaType string
}

func (GeneratedFile) isStreamPart() {}

// ToolCallDelta carries a fragment of the JSON arguments of a tool call as it
// is generated. ArgsTextDelta is not valid JSON by itself.
type ToolCallDelta struct {
	ToolCallID    string
	ToolName      string
	ArgsTextDelta string
}

func (ToolCallDelta) isStreamPart() {}

// ToolCall is a complete tool invocation. It is also used on assistant prompt
// messages.
type ToolCall struct {
	ID   string
	Name string
	Args json.RawMessage
}

func (ToolCall) isStreamPart() {}

type Finish struct {
	FinishReason     FinishReason
	Usage            Usage
	ProviderMetadata map[string]any
}

func (Finish) isStreamPart() {}

// ErrorPart reports a failure signalled inside the stream itself.
type ErrorPart struct{ Err error }

func (ErrorPart) isStreamPart() {}

var (
	_ StreamPart = TextDelta{}
	_ StreamPart = ReasoningDelta{}
	_ StreamPart = ReasoningSignature{}
	_ StreamPart = SourcePart{}
	_ StreamPart = GeneratedFile{}
	_ StreamPart = ToolCallDelta{}
	_ StreamPart = ToolCall{}
	_ StreamPart = ResponseMetadata{}
	_ StreamPart = Finish{}
	_ StreamPart = ErrorPart{}
)

// PartReader yields raw parts in order. Next returns false once the stream is
// exhausted or failed; Err reports the failure, if any. Implementations must
// stop blocking when the context passed to DoStream is done.
type PartReader interface {
	Next() bool
	Part() StreamPart
	Err() error
	Close() error
}

// SliceReader is a PartReader over a fixed list of parts.
type SliceReader struct {
	parts []StreamPart
	i     int
	err   error
}

func NewSliceReader(parts []StreamPart, err error) *SliceReader {
	return &SliceReader{parts: parts, err: err}
}

func (r *SliceReader) Next() bool {
	if r.i >= len(r.parts) {
		return false
	}
	r.i++
	return true
}

func (r *SliceReader) Part() StreamPart {
	if r.i == 0 || r.i > len(r.parts) {
		return nil
	}
	return r.parts[r.i-1]
}

func (r *SliceReader) Err() error {
	if r.i < len(r.parts) {
		return nil
	}
	return r.err
}

func (r *SliceReader) Close() error { return nil }
