package anthropic

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/bitop-dev/aistream/provider"
)

// MessagesModel streams Messages API responses for one model id.
type MessagesModel struct {
	modelID string
	client  *Client
}

func (m *MessagesModel) Provider() string { return ProviderName }
func (m *MessagesModel) ModelID() string  { return m.modelID }

func (m *MessagesModel) DoStream(ctx context.Context, opts provider.CallOptions) (*provider.StreamResult, error) {
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

	stream := m.client.sdk.Messages.NewStreaming(ctx, params, reqOpts...)
	return &provider.StreamResult{
		Stream:   newEventReader(stream),
		Warnings: warnings,
		Request:  body,
	}, nil
}

func (m *MessagesModel) buildParams(opts provider.CallOptions) (sdk.MessageNewParams, []provider.Warning, error) {
	system, msgs, err := buildMessages(opts.Prompt)
	if err != nil {
		return sdk.MessageNewParams{}, nil, err
	}

	params := sdk.MessageNewParams{
		Model:     sdk.Model(m.modelID),
		Messages:  msgs,
		MaxTokens: DefaultMaxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}

	var warnings []provider.Warning
	if opts.MaxTokens != nil {
		params.MaxTokens = int64(*opts.MaxTokens)
	}
	if opts.Temperature != nil {
		params.Temperature = sdk.Float(*opts.Temperature)
	}
	if opts.TopP != nil {
		params.TopP = sdk.Float(*opts.TopP)
	}
	if opts.TopK != nil {
		params.TopK = sdk.Int(int64(*opts.TopK))
	}
	if len(opts.Stop) > 0 {
		params.StopSequences = opts.Stop
	}
	if opts.PresencePenalty != nil {
		warnings = append(warnings, provider.Warning{Type: "unsupported-setting", Setting: "presencePenalty"})
	}
	if opts.FrequencyPenalty != nil {
		warnings = append(warnings, provider.Warning{Type: "unsupported-setting", Setting: "frequencyPenalty"})
	}
	if opts.Seed != nil {
		warnings = append(warnings, provider.Warning{Type: "unsupported-setting", Setting: "seed"})
	}

	if opts.Mode == provider.ModeTools && len(opts.Tools) > 0 {
		tools, err := buildTools(opts.Tools)
		if err != nil {
			return sdk.MessageNewParams{}, nil, err
		}
		params.Tools = tools
		if opts.ToolChoice != nil {
			params.ToolChoice = buildToolChoice(*opts.ToolChoice)
		}
	}

	o, err := optionsFrom(opts.ProviderOptions)
	if err != nil {
		return sdk.MessageNewParams{}, nil, err
	}
	if o.ThinkingBudget > 0 {
		params.Thinking = sdk.ThinkingConfigParamOfEnabled(o.ThinkingBudget)
	}

	return params, warnings, nil
}

func optionsFrom(providerOptions map[string]any) (Options, error) {
	v, ok := providerOptions[ProviderName]
	if !ok || v == nil {
		return Options{}, nil
	}
	switch o := v.(type) {
	case Options:
		return o, nil
	case *Options:
		return *o, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return Options{}, fmt.Errorf("anthropic options: %w", err)
		}
		var out Options
		if err := json.Unmarshal(raw, &out); err != nil {
			return Options{}, fmt.Errorf("anthropic options: %w", err)
		}
		return out, nil
	}
}

func buildTools(defs []provider.ToolDefinition) ([]sdk.ToolUnionParam, error) {
	tools := make([]sdk.ToolUnionParam, len(defs))
	for i, d := range defs {
		inputSchema := sdk.ToolInputSchemaParam{Type: constant.Object("object")}
		if len(d.InputSchema) > 0 {
			var s struct {
				Properties any      `json:"properties"`
				Required   []string `json:"required"`
			}
			if err := json.Unmarshal(d.InputSchema, &s); err != nil {
				return nil, fmt.Errorf("tool %q schema: %w", d.Name, err)
			}
			inputSchema.Properties = s.Properties
			inputSchema.Required = s.Required
		}
		tools[i] = sdk.ToolUnionParamOfTool(inputSchema, d.Name)
		if d.Description != "" && tools[i].OfTool != nil {
			tools[i].OfTool.Description = sdk.String(d.Description)
		}
	}
	return tools, nil
}

func buildToolChoice(tc provider.ToolChoice) sdk.ToolChoiceUnionParam {
	switch tc.Type {
	case "required":
		return sdk.ToolChoiceUnionParam{OfAny: &sdk.ToolChoiceAnyParam{}}
	case "none":
		return sdk.ToolChoiceUnionParam{OfNone: &sdk.ToolChoiceNoneParam{}}
	case "tool":
		return sdk.ToolChoiceUnionParam{OfTool: &sdk.ToolChoiceToolParam{Name: tc.ToolName}}
	default:
		return sdk.ToolChoiceUnionParam{OfAuto: &sdk.ToolChoiceAutoParam{}}
	}
}

// buildMessages splits out system text and merges consecutive tool results
// into one user turn, as the Messages API expects.
func buildMessages(prompt []provider.Message) ([]sdk.TextBlockParam, []sdk.MessageParam, error) {
	var (
		system      []sdk.TextBlockParam
		out         []sdk.MessageParam
		toolResults []sdk.ContentBlockParamUnion
	)
	flushResults := func() {
		if len(toolResults) > 0 {
			out = append(out, sdk.NewUserMessage(toolResults...))
			toolResults = nil
		}
	}

	for _, m := range prompt {
		if m.Role != provider.RoleTool {
			flushResults()
		}
		switch m.Role {
		case provider.RoleSystem:
			for _, p := range m.Content {
				if tp, ok := p.(provider.TextPart); ok && tp.Text != "" {
					system = append(system, sdk.TextBlockParam{Text: tp.Text})
				}
			}
		case provider.RoleUser:
			blocks, err := userBlocks(m.Content)
			if err != nil {
				return nil, nil, err
			}
			if len(blocks) > 0 {
				out = append(out, sdk.NewUserMessage(blocks...))
			}
		case provider.RoleAssistant:
			blocks := assistantBlocks(m)
			if len(blocks) > 0 {
				out = append(out, sdk.NewAssistantMessage(blocks...))
			}
		case provider.RoleTool:
			content, isError := toolResultContent(m.Content)
			toolResults = append(toolResults, sdk.NewToolResultBlock(m.ToolCallID, content, isError))
		default:
			return nil, nil, fmt.Errorf("anthropic: unsupported role %q", m.Role)
		}
	}
	flushResults()
	return system, out, nil
}

func userBlocks(content []provider.ContentPart) ([]sdk.ContentBlockParamUnion, error) {
	var blocks []sdk.ContentBlockParamUnion
	for _, p := range content {
		switch v := p.(type) {
		case provider.TextPart:
			if v.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			}
		case provider.ImagePart:
			if len(v.Data) > 0 {
				blocks = append(blocks, sdk.NewImageBlockBase64(v.MediaType, base64.StdEncoding.EncodeToString(v.Data)))
			} else {
				blocks = append(blocks, sdk.NewImageBlock(sdk.URLImageSourceParam{URL: v.URL}))
			}
		case provider.FilePart:
			switch {
			case strings.HasPrefix(v.MediaType, "text/") && len(v.Data) > 0:
				blocks = append(blocks, sdk.NewTextBlock(string(v.Data)))
			case v.MediaType == "application/pdf" && len(v.Data) > 0:
				blocks = append(blocks, sdk.NewDocumentBlock(sdk.Base64PDFSourceParam{Data: base64.StdEncoding.EncodeToString(v.Data)}))
			default:
				return nil, fmt.Errorf("anthropic: file %q must be sent inline", v.Filename)
			}
		}
	}
	return blocks, nil
}

func assistantBlocks(m provider.Message) []sdk.ContentBlockParamUnion {
	var blocks []sdk.ContentBlockParamUnion
	for _, p := range m.Content {
		switch v := p.(type) {
		case provider.ReasoningPart:
			// Thinking blocks can only be replayed with their signature.
			if v.Signature != "" {
				blocks = append(blocks, sdk.NewThinkingBlock(v.Signature, v.Text))
			}
		case provider.TextPart:
			if v.Text != "" {
				blocks = append(blocks, sdk.NewTextBlock(v.Text))
			}
		}
	}
	for _, tc := range m.ToolCalls {
		args := tc.Args
		if len(args) == 0 {
			args = json.RawMessage(`{}`)
		}
		blocks = append(blocks, sdk.NewToolUseBlock(tc.ID, args, tc.Name))
	}
	return blocks
}

func toolResultContent(content []provider.ContentPart) (string, bool) {
	var sb strings.Builder
	isError := false
	for _, p := range content {
		switch v := p.(type) {
		case provider.TextPart:
			sb.WriteString(v.Text)
		case provider.ToolResultPart:
			sb.Write(v.Result)
			isError = isError || v.IsError
		}
	}
	return sb.String(), isError
}

type eventStream interface {
	Next() bool
	Current() sdk.MessageStreamEventUnion
	Err() error
	Close() error
}

type toolBlock struct {
	id   string
	name string
	args strings.Builder
}

// eventReader converts Messages stream events into provider stream parts.
type eventReader struct {
	stream eventStream

	pending []provider.StreamPart
	cur     provider.StreamPart

	tools    map[int64]*toolBlock
	finish   provider.FinishReason
	usage    provider.Usage
	finished bool
	err      error
}

func newEventReader(stream eventStream) *eventReader {
	return &eventReader{stream: stream, tools: map[int64]*toolBlock{}}
}

func (r *eventReader) Next() bool {
	for len(r.pending) == 0 {
		if r.finished || r.err != nil {
			return false
		}
		if !r.stream.Next() {
			if err := r.stream.Err(); err != nil {
				r.err = mapError(err)
				return false
			}
			r.emitFinish()
			break
		}
		r.absorb(r.stream.Current())
	}
	r.cur = r.pending[0]
	r.pending = r.pending[1:]
	return true
}

func (r *eventReader) emitFinish() {
	if r.finished {
		return
	}
	reason := r.finish
	if reason == "" {
		reason = provider.FinishUnknown
	}
	r.pending = append(r.pending, provider.Finish{FinishReason: reason, Usage: r.usage})
	r.finished = true
}

func (r *eventReader) absorb(event sdk.MessageStreamEventUnion) {
	switch ev := event.AsAny().(type) {
	case sdk.MessageStartEvent:
		r.usage.PromptTokens = int(ev.Message.Usage.InputTokens)
		r.pending = append(r.pending, provider.ResponseMetadata{ID: ev.Message.ID, ModelID: string(ev.Message.Model)})

	case sdk.ContentBlockStartEvent:
		if ev.ContentBlock.Type == "tool_use" {
			r.tools[ev.Index] = &toolBlock{id: ev.ContentBlock.ID, name: ev.ContentBlock.Name}
		}

	case sdk.ContentBlockDeltaEvent:
		switch d := ev.Delta.AsAny().(type) {
		case sdk.TextDelta:
			if d.Text != "" {
				r.pending = append(r.pending, provider.TextDelta{Text: d.Text})
			}
		case sdk.ThinkingDelta:
			if d.Thinking != "" {
				r.pending = append(r.pending, provider.ReasoningDelta{Text: d.Thinking})
			}
		case sdk.SignatureDelta:
			r.pending = append(r.pending, provider.ReasoningSignature{Signature: d.Signature})
		case sdk.InputJSONDelta:
			tb := r.tools[ev.Index]
			if tb == nil {
				return
			}
			tb.args.WriteString(d.PartialJSON)
			r.pending = append(r.pending, provider.ToolCallDelta{
				ToolCallID:    tb.id,
				ToolName:      tb.name,
				ArgsTextDelta: d.PartialJSON,
			})
		}

	case sdk.ContentBlockStopEvent:
		tb := r.tools[ev.Index]
		if tb == nil {
			return
		}
		delete(r.tools, ev.Index)
		args := tb.args.String()
		if args == "" {
			args = "{}"
		}
		r.pending = append(r.pending, provider.ToolCall{ID: tb.id, Name: tb.name, Args: json.RawMessage(args)})

	case sdk.MessageDeltaEvent:
		if ev.Delta.StopReason != "" {
			r.finish = mapStopReason(string(ev.Delta.StopReason))
		}
		r.usage.CompletionTokens = int(ev.Usage.OutputTokens)

	case sdk.MessageStopEvent:
		r.emitFinish()
	}
}

func (r *eventReader) Part() provider.StreamPart { return r.cur }
func (r *eventReader) Err() error                { return r.err }
func (r *eventReader) Close() error              { return r.stream.Close() }

func mapStopReason(s string) provider.FinishReason {
	switch s {
	case "end_turn", "stop_sequence", "pause_turn":
		return provider.FinishStop
	case "max_tokens":
		return provider.FinishLength
	case "tool_use":
		return provider.FinishToolCalls
	case "refusal":
		return provider.FinishContentFilter
	default:
		return provider.FinishOther
	}
}

func mapError(err error) error {
	var apiErr *sdk.Error
	if errors.As(err, &apiErr) {
		return &provider.Error{
			Provider:  ProviderName,
			Status:    apiErr.StatusCode,
			Message:   err.Error(),
			Retryable: apiErr.StatusCode == 429 || apiErr.StatusCode >= 500,
			Cause:     err,
		}
	}
	return &provider.Error{Provider: ProviderName, Message: err.Error(), Cause: err}
}

var _ provider.LanguageModel = (*MessagesModel)(nil)
