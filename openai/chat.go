package openai

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	oai "github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/bitop-dev/aistream/provider"
)

// ChatModel streams chat completions for one model id.
type ChatModel struct {
	modelID string
	client  *Client
}

func (m *ChatModel) Provider() string { return ProviderName }
func (m *ChatModel) ModelID() string  { return m.modelID }

func (m *ChatModel) DoStream(ctx context.Context, opts provider.CallOptions) (*provider.StreamResult, error) {
	params, warnings, err := m.buildParams(opts)
	if err != nil {
		return nil, err
	}

	reqOpts := make([]option.RequestOption, 0, len(opts.Headers))
	for k, v := range opts.Headers {
		reqOpts = append(reqOpts, option.WithHeader(k, v))
	}

	var body []byte
	if raw, err := json.Marshal(params); err == nil {
		body = raw
	}

	stream := m.client.sdk.Chat.Completions.NewStreaming(ctx, params, reqOpts...)
	return &provider.StreamResult{
		Stream:   newChunkReader(stream),
		Warnings: warnings,
		Request:  body,
	}, nil
}

func (m *ChatModel) buildParams(opts provider.CallOptions) (oai.ChatCompletionNewParams, []provider.Warning, error) {
	msgs, err := buildMessages(opts.Prompt)
	if err != nil {
		return oai.ChatCompletionNewParams{}, nil, err
	}

	params := oai.ChatCompletionNewParams{
		Model:    m.modelID,
		Messages: msgs,
		StreamOptions: oai.ChatCompletionStreamOptionsParam{
			IncludeUsage: oai.Bool(true),
		},
	}

	var warnings []provider.Warning
	if opts.MaxTokens != nil {
		params.MaxCompletionTokens = oai.Int(int64(*opts.MaxTokens))
	}
	if opts.Temperature != nil {
		params.Temperature = oai.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = oai.Float(*opts.TopP)
	}
	if opts.PresencePenalty != nil {
		params.PresencePenalty = oai.Float(*opts.PresencePenalty)
	}
	if opts.FrequencyPenalty != nil {
		params.FrequencyPenalty = oai.Float(*opts.FrequencyPenalty)
	}
	if opts.Seed != nil {
		params.Seed = oai.Int(*opts.Seed)
	}
	if len(opts.Stop) > 0 {
		params.Stop = oai.ChatCompletionNewParamsStopUnion{OfStringArray: opts.Stop}
	}
	if opts.TopK != nil {
		warnings = append(warnings, provider.Warning{Type: "unsupported-setting", Setting: "topK"})
	}

	if opts.Mode == provider.ModeTools && len(opts.Tools) > 0 {
		tools, err := buildTools(opts.Tools)
		if err != nil {
			return oai.ChatCompletionNewParams{}, nil, err
		}
		params.Tools = tools
		if opts.ToolChoice != nil {
			params.ToolChoice = buildToolChoice(*opts.ToolChoice)
		}
	}

	co, err := chatOptionsFrom(opts.ProviderOptions)
	if err != nil {
		return oai.ChatCompletionNewParams{}, nil, err
	}
	if co.User != "" {
		params.User = oai.String(co.User)
	}
	if co.ParallelToolCalls != nil {
		params.ParallelToolCalls = oai.Bool(*co.ParallelToolCalls)
	}

	return params, warnings, nil
}

func buildTools(defs []provider.ToolDefinition) ([]oai.ChatCompletionToolParam, error) {
	tools := make([]oai.ChatCompletionToolParam, len(defs))
	for i, d := range defs {
		params := map[string]any{"type": "object", "properties": map[string]any{}}
		if len(d.InputSchema) > 0 {
			if err := json.Unmarshal(d.InputSchema, &params); err != nil {
				return nil, fmt.Errorf("tool %q schema: %w", d.Name, err)
			}
		}
		fn := oai.FunctionDefinitionParam{
			Name:       d.Name,
			Parameters: params,
		}
		if d.Description != "" {
			fn.Description = oai.String(d.Description)
		}
		tools[i] = oai.ChatCompletionToolParam{Type: "function", Function: fn}
	}
	return tools, nil
}

func buildToolChoice(tc provider.ToolChoice) oai.ChatCompletionToolChoiceOptionUnionParam {
	if tc.Type == "tool" {
		return oai.ChatCompletionToolChoiceOptionUnionParam{
			OfChatCompletionNamedToolChoice: &oai.ChatCompletionNamedToolChoiceParam{
				Function: oai.ChatCompletionNamedToolChoiceFunctionParam{Name: tc.ToolName},
			},
		}
	}
	return oai.ChatCompletionToolChoiceOptionUnionParam{OfAuto: oai.String(tc.Type)}
}

func buildMessages(prompt []provider.Message) ([]oai.ChatCompletionMessageParamUnion, error) {
	out := make([]oai.ChatCompletionMessageParamUnion, 0, len(prompt))
	for _, m := range prompt {
		switch m.Role {
		case provider.RoleSystem:
			out = append(out, oai.SystemMessage(joinText(m.Content)))
		case provider.RoleUser:
			if onlyText(m.Content) {
				out = append(out, oai.UserMessage(joinText(m.Content)))
				continue
			}
			parts, err := userContentParts(m.Content)
			if err != nil {
				return nil, err
			}
			out = append(out, oai.UserMessage(parts))
		case provider.RoleAssistant:
			text := joinText(m.Content)
			if len(m.ToolCalls) == 0 {
				out = append(out, oai.AssistantMessage(text))
				continue
			}
			asst := &oai.ChatCompletionAssistantMessageParam{Role: "assistant"}
			if text != "" {
				asst.Content = oai.ChatCompletionAssistantMessageParamContentUnion{OfString: oai.String(text)}
			}
			for _, tc := range m.ToolCalls {
				asst.ToolCalls = append(asst.ToolCalls, oai.ChatCompletionMessageToolCallParam{
					ID:   tc.ID,
					Type: "function",
					Function: oai.ChatCompletionMessageToolCallFunctionParam{
						Name:      tc.Name,
						Arguments: string(tc.Args),
					},
				})
			}
			out = append(out, oai.ChatCompletionMessageParamUnion{OfAssistant: asst})
		case provider.RoleTool:
			out = append(out, oai.ToolMessage(toolContent(m.Content), m.ToolCallID))
		default:
			return nil, fmt.Errorf("openai: unsupported role %q", m.Role)
		}
	}
	return out, nil
}

func userContentParts(content []provider.ContentPart) ([]oai.ChatCompletionContentPartUnionParam, error) {
	var parts []oai.ChatCompletionContentPartUnionParam
	for _, p := range content {
		switch v := p.(type) {
		case provider.TextPart:
			parts = append(parts, oai.TextContentPart(v.Text))
		case provider.ImagePart:
			url := v.URL
			if len(v.Data) > 0 {
				url = dataURL(v.MediaType, v.Data)
			}
			parts = append(parts, oai.ImageContentPart(oai.ChatCompletionContentPartImageImageURLParam{URL: url}))
		case provider.FilePart:
			switch {
			case strings.HasPrefix(v.MediaType, "text/") && len(v.Data) > 0:
				parts = append(parts, oai.TextContentPart(string(v.Data)))
			case len(v.Data) > 0:
				f := oai.ChatCompletionContentPartFileFileParam{FileData: oai.String(dataURL(v.MediaType, v.Data))}
				if v.Filename != "" {
					f.Filename = oai.String(v.Filename)
				}
				parts = append(parts, oai.FileContentPart(f))
			default:
				return nil, fmt.Errorf("openai: file %q must be sent inline", v.Filename)
			}
		}
	}
	return parts, nil
}

func onlyText(content []provider.ContentPart) bool {
	for _, p := range content {
		if _, ok := p.(provider.TextPart); !ok {
			return false
		}
	}
	return true
}

func joinText(content []provider.ContentPart) string {
	var sb strings.Builder
	for _, p := range content {
		if tp, ok := p.(provider.TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

func toolContent(content []provider.ContentPart) string {
	var sb strings.Builder
	for _, p := range content {
		switch v := p.(type) {
		case provider.TextPart:
			sb.WriteString(v.Text)
		case provider.ToolResultPart:
			sb.Write(v.Result)
		}
	}
	return sb.String()
}

func dataURL(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}

type chunkStream interface {
	Next() bool
	Current() oai.ChatCompletionChunk
	Err() error
	Close() error
}

type toolCallState struct {
	id   string
	name string
	args strings.Builder
	done bool
}

// chunkReader converts completion chunks into provider stream parts. Complete
// tool calls are emitted when the choice finishes; the Finish part is emitted
// once the stream ends so it carries the trailing usage chunk.
type chunkReader struct {
	stream chunkStream

	pending []provider.StreamPart
	cur     provider.StreamPart

	calls    map[int64]*toolCallState
	sawMeta  bool
	finish   provider.FinishReason
	usage    provider.Usage
	finished bool
	err      error
}

func newChunkReader(stream chunkStream) *chunkReader {
	return &chunkReader{stream: stream, calls: map[int64]*toolCallState{}}
}

func (r *chunkReader) Next() bool {
	for len(r.pending) == 0 {
		if r.finished || r.err != nil {
			return false
		}
		if !r.stream.Next() {
			if err := r.stream.Err(); err != nil {
				r.err = mapError(err)
				return false
			}
			r.flushToolCalls()
			reason := r.finish
			if reason == "" {
				reason = provider.FinishUnknown
			}
			r.pending = append(r.pending, provider.Finish{FinishReason: reason, Usage: r.usage})
			r.finished = true
			break
		}
		r.absorb(r.stream.Current())
	}
	r.cur = r.pending[0]
	r.pending = r.pending[1:]
	return true
}

func (r *chunkReader) absorb(ck oai.ChatCompletionChunk) {
	if !r.sawMeta && ck.ID != "" {
		r.sawMeta = true
		meta := provider.ResponseMetadata{ID: ck.ID, ModelID: ck.Model}
		if ck.Created > 0 {
			meta.Timestamp = time.Unix(ck.Created, 0).UTC()
		}
		r.pending = append(r.pending, meta)
	}
	if ck.Usage.PromptTokens > 0 || ck.Usage.CompletionTokens > 0 {
		r.usage = provider.Usage{
			PromptTokens:     int(ck.Usage.PromptTokens),
			CompletionTokens: int(ck.Usage.CompletionTokens),
		}
	}

	for _, ch := range ck.Choices {
		if ch.Delta.Content != "" {
			r.pending = append(r.pending, provider.TextDelta{Text: ch.Delta.Content})
		}
		for _, tc := range ch.Delta.ToolCalls {
			st := r.calls[tc.Index]
			if st == nil {
				st = &toolCallState{}
				r.calls[tc.Index] = st
			}
			if tc.ID != "" {
				st.id = tc.ID
			}
			if tc.Function.Name != "" {
				st.name = tc.Function.Name
			}
			st.args.WriteString(tc.Function.Arguments)
			r.pending = append(r.pending, provider.ToolCallDelta{
				ToolCallID:    st.id,
				ToolName:      st.name,
				ArgsTextDelta: tc.Function.Arguments,
			})
		}
		if ch.FinishReason != "" {
			r.finish = mapFinishReason(ch.FinishReason)
			r.flushToolCalls()
		}
	}
}

func (r *chunkReader) flushToolCalls() {
	idx := make([]int64, 0, len(r.calls))
	for i, st := range r.calls {
		if !st.done {
			idx = append(idx, i)
		}
	}
	sort.Slice(idx, func(a, b int) bool { return idx[a] < idx[b] })
	for _, i := range idx {
		st := r.calls[i]
		st.done = true
		args := st.args.String()
		if args == "" {
			args = "{}"
		}
		r.pending = append(r.pending, provider.ToolCall{ID: st.id, Name: st.name, Args: json.RawMessage(args)})
	}
}

func (r *chunkReader) Part() provider.StreamPart { return r.cur }
func (r *chunkReader) Err() error                { return r.err }
func (r *chunkReader) Close() error              { return r.stream.Close() }

func mapFinishReason(s string) provider.FinishReason {
	switch s {
	case "stop":
		return provider.FinishStop
	case "length":
		return provider.FinishLength
	case "tool_calls", "function_call":
		return provider.FinishToolCalls
	case "content_filter":
		return provider.FinishContentFilter
	default:
		return provider.FinishOther
	}
}

func mapError(err error) error {
	var apiErr *oai.Error
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider:  ProviderName,
			Code:      apiErr.Code,
			Status:    apiErr.StatusCode,
			Message:   apiErr.Message,
			Retryable: apiErr.StatusCode == 429 || apiErr.StatusCode >= 500,
			Cause:     err,
		}
	}
	return &provider.Error{Provider: ProviderName, Message: err.Error(), Cause: err}
}

var _ provider.LanguageModel = (*ChatModel)(nil)
