package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/bitop-dev/aistream/internal/fanout"
	"github.com/bitop-dev/aistream/internal/sse"
)

const (
	UIChunkMessageStart = "message-start"
	UIChunkMessageDelta = "message-delta"
	UIChunkMessageStop  = "message-stop"
	UIChunkFinish       = "finish"
	UIChunkError        = "error"
)

const (
	UIPartText          = "text"
	UIPartReasoning     = "reasoning"
	UIPartToolCallStart = "tool-call-start"
	UIPartToolCallDelta = "tool-call-delta"
	UIPartToolCall      = "tool-call"
	UIPartToolResult    = "tool-result"
	UIPartSource        = "source"
	UIPartFile          = "file"
)

const defaultUIErrorText = "An error occurred."

// UIMessageChunk is one entry of the UI message stream protocol.
type UIMessageChunk struct {
	Type      string         `json:"type"`
	MessageID string         `json:"messageId,omitempty"`
	Part      *UIMessagePart `json:"part,omitempty"`

	FinishReason FinishReason `json:"finishReason,omitempty"`
	Usage        *UIUsage     `json:"usage,omitempty"`

	ErrorText string `json:"errorText,omitempty"`
}

// UIMessagePart is the payload of a message-delta chunk.
type UIMessagePart struct {
	Type string `json:"type"`

	Text string `json:"text,omitempty"`

	ToolCallID     string          `json:"toolCallId,omitempty"`
	ToolName       string          `json:"toolName,omitempty"`
	InputTextDelta string          `json:"inputTextDelta,omitempty"`
	Input          json.RawMessage `json:"input,omitempty"`
	Output         any             `json:"output,omitempty"`

	SourceID  string `json:"sourceId,omitempty"`
	URL       string `json:"url,omitempty"`
	Title     string `json:"title,omitempty"`
	MediaType string `json:"mediaType,omitempty"`
}

type UIUsage struct {
	PromptTokens     int `json:"promptTokens"`
	CompletionTokens int `json:"completionTokens"`
	TotalTokens      int `json:"totalTokens"`
}

type UIMessageStreamOptions struct {
	// MessageID is used for the first message. Later steps get generated ids.
	MessageID string

	// OnError maps a run error to the text sent to the client. By default the
	// error is masked.
	OnError func(err error) string

	OmitReasoning bool
	OmitSources   bool
}

// UIMessageStream yields UI message chunks.
type UIMessageStream struct {
	next  func() bool
	chunk func() UIMessageChunk
	err   func() error
	close func() error
}

func (s *UIMessageStream) Next() bool {
	if s == nil || s.next == nil {
		return false
	}
	return s.next()
}

func (s *UIMessageStream) Chunk() UIMessageChunk {
	if s == nil || s.chunk == nil {
		return UIMessageChunk{}
	}
	return s.chunk()
}

func (s *UIMessageStream) Err() error {
	if s == nil || s.err == nil {
		return nil
	}
	return s.err()
}

func (s *UIMessageStream) Close() error {
	if s == nil || s.close == nil {
		return nil
	}
	return s.close()
}

// WriteTo encodes the remaining chunks as server-sent events, flushing after
// every chunk when w supports it, and terminates the stream with [DONE].
func (s *UIMessageStream) WriteTo(w io.Writer) (int64, error) {
	flusher, _ := w.(http.Flusher)
	var total int64
	write := func(b []byte) error {
		n, err := sse.WriteData(w, b)
		total += int64(n)
		if err == nil && flusher != nil {
			flusher.Flush()
		}
		return err
	}

	for s.Next() {
		raw, err := json.Marshal(s.Chunk())
		if err != nil {
			return total, fmt.Errorf("encode ui chunk: %w", err)
		}
		if err := write(raw); err != nil {
			return total, err
		}
	}
	if err := s.Err(); err != nil {
		return total, err
	}
	return total, write([]byte("[DONE]"))
}

// UIMessageStream projects the full event stream onto UI message chunks. The
// first call fixes the options; every call returns the same stream.
func (r *StreamTextResult) UIMessageStream(opts UIMessageStreamOptions) *UIMessageStream {
	r.uiOnce.Do(func() {
		r.uiStream = newUIProjection(r.uiQ, opts).stream()
	})
	return r.uiStream
}

type uiProjection struct {
	q    *fanout.Queue[StreamEvent]
	opts UIMessageStreamOptions

	messageID string
	first     bool
	pending   []UIMessageChunk
	cur       UIMessageChunk
	sentError bool
	done      bool
	err       error
}

func newUIProjection(q *fanout.Queue[StreamEvent], opts UIMessageStreamOptions) *uiProjection {
	return &uiProjection{q: q, opts: opts, first: true}
}

func (p *uiProjection) stream() *UIMessageStream {
	return &UIMessageStream{
		next:  p.next,
		chunk: func() UIMessageChunk { return p.cur },
		err:   func() error { return p.err },
		close: func() error { p.done = true; return nil },
	}
}

func (p *uiProjection) next() bool {
	for len(p.pending) == 0 {
		if p.done {
			return false
		}
		ev, err := p.q.Recv(context.Background())
		if err != nil {
			p.done = true
			if !isEOF(err) && !p.sentError {
				p.err = err
			}
			return false
		}
		p.project(ev)
	}
	p.cur = p.pending[0]
	p.pending = p.pending[1:]
	return true
}

func (p *uiProjection) startMessage() {
	if p.first && p.opts.MessageID != "" {
		p.messageID = p.opts.MessageID
	} else {
		p.messageID = uuid.NewString()
	}
	p.first = false
	p.emit(UIMessageChunk{Type: UIChunkMessageStart, MessageID: p.messageID})
}

func (p *uiProjection) delta(part UIMessagePart) {
	p.emit(UIMessageChunk{Type: UIChunkMessageDelta, MessageID: p.messageID, Part: &part})
}

func (p *uiProjection) emit(c UIMessageChunk) {
	p.pending = append(p.pending, c)
}

func (p *uiProjection) project(ev StreamEvent) {
	switch e := ev.(type) {
	case StartEvent, StartStepEvent:
		p.startMessage()
	case TextEvent:
		p.delta(UIMessagePart{Type: UIPartText, Text: e.Text})
	case ReasoningEvent:
		if !p.opts.OmitReasoning {
			p.delta(UIMessagePart{Type: UIPartReasoning, Text: e.Text})
		}
	case ReasoningPartFinishEvent:
	case SourceEvent:
		if !p.opts.OmitSources {
			p.delta(UIMessagePart{Type: UIPartSource, SourceID: e.Source.ID, URL: e.Source.URL, Title: e.Source.Title})
		}
	case FileEvent:
		p.delta(UIMessagePart{
			Type:      UIPartFile,
			MediaType: e.File.MediaType,
			URL:       "data:" + e.File.MediaType + ";base64," + e.File.Base64(),
		})
	case ToolCallStreamingStartEvent:
		p.delta(UIMessagePart{Type: UIPartToolCallStart, ToolCallID: e.ToolCallID, ToolName: e.ToolName})
	case ToolCallDeltaEvent:
		p.delta(UIMessagePart{Type: UIPartToolCallDelta, ToolCallID: e.ToolCallID, ToolName: e.ToolName, InputTextDelta: e.ArgsTextDelta})
	case ToolCallEvent:
		p.delta(UIMessagePart{Type: UIPartToolCall, ToolCallID: e.ToolCallID, ToolName: e.ToolName, Input: e.Args})
	case ToolResultEvent:
		p.delta(UIMessagePart{Type: UIPartToolResult, ToolCallID: e.ToolCallID, ToolName: e.ToolName, Input: e.Args, Output: e.Result})
	case FinishStepEvent:
		p.emit(UIMessageChunk{Type: UIChunkMessageStop, MessageID: p.messageID})
	case FinishEvent:
		p.emit(UIMessageChunk{
			Type:         UIChunkFinish,
			FinishReason: e.FinishReason,
			Usage: &UIUsage{
				PromptTokens:     e.TotalUsage.PromptTokens,
				CompletionTokens: e.TotalUsage.CompletionTokens,
				TotalTokens:      e.TotalUsage.TotalTokens,
			},
		})
	case ErrorEvent:
		text := defaultUIErrorText
		if p.opts.OnError != nil {
			text = p.opts.OnError(e.Err)
		}
		p.sentError = true
		p.emit(UIMessageChunk{Type: UIChunkError, ErrorText: text})
	case AbortEvent:
	}
}

// ReadUIMessageStream decodes a UI message stream written by
// UIMessageStream.WriteTo.
func ReadUIMessageStream(r io.Reader) *UIMessageStream {
	d := sse.NewDecoder(r)
	var (
		cur  UIMessageChunk
		err  error
		done bool
	)
	next := func() bool {
		for !done && err == nil {
			if !d.Next() {
				done = true
				if derr := d.Err(); derr != nil {
					err = derr
				}
				return false
			}
			data := d.Data()
			if len(data) == 0 {
				continue
			}
			if string(data) == "[DONE]" {
				done = true
				return false
			}
			var c UIMessageChunk
			if uerr := json.Unmarshal(data, &c); uerr != nil {
				err = fmt.Errorf("decode ui chunk: %w", uerr)
				return false
			}
			cur = c
			return true
		}
		return false
	}
	return &UIMessageStream{
		next:  next,
		chunk: func() UIMessageChunk { return cur },
		err:   func() error { return err },
		close: func() error { done = true; return nil },
	}
}
