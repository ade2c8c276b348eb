package ai

import (
	"encoding/base64"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/aistream/logging"
	"github.com/bitop-dev/aistream/provider"
)

func TestStandardizePrompt(t *testing.T) {
	msgs, err := standardizePrompt(StreamTextRequest{System: "sys", Prompt: "hi"})
	require.NoError(t, err)
	assert.Equal(t, []Message{System("sys"), User("hi")}, msgs)

	msgs, err = standardizePrompt(StreamTextRequest{Messages: []Message{User("a"), Assistant("b")}})
	require.NoError(t, err)
	assert.Len(t, msgs, 2)

	_, err = standardizePrompt(StreamTextRequest{})
	assert.True(t, IsInvalidPrompt(err))
}

func TestToProviderMessages_Roles(t *testing.T) {
	msgs := []Message{
		System("sys"),
		User("user"),
		{Role: RoleAssistant, Content: []ContentPart{
			ReasoningPart{Text: "thinking", Signature: "sig"},
			TextPart{Text: "hi"},
			ToolCallPart{ID: "1", Name: "t", Args: json.RawMessage(`{"x":1}`)},
			ToolCallPart{ID: "2", Name: "t"},
		}},
		{Role: RoleTool, ToolCallID: "1", Content: []ContentPart{ToolResultPart{ToolCallID: "1", ToolName: "t", Result: map[string]int{"y": 2}}}},
	}

	out, err := toProviderMessages(msgs, logging.NoOpLogger{})
	require.NoError(t, err)
	require.Len(t, out, 4)

	assert.Equal(t, provider.RoleSystem, out[0].Role)
	assert.Equal(t, provider.RoleUser, out[1].Role)

	assert.Equal(t, provider.RoleAssistant, out[2].Role)
	assert.Equal(t, []provider.ContentPart{
		provider.ReasoningPart{Text: "thinking", Signature: "sig"},
		provider.TextPart{Text: "hi"},
	}, out[2].Content)
	require.Len(t, out[2].ToolCalls, 2)
	assert.JSONEq(t, `{"x":1}`, string(out[2].ToolCalls[0].Args))
	assert.JSONEq(t, `{}`, string(out[2].ToolCalls[1].Args))

	assert.Equal(t, provider.RoleTool, out[3].Role)
	assert.Equal(t, "1", out[3].ToolCallID)
	tr, ok := out[3].Content[0].(provider.ToolResultPart)
	require.True(t, ok)
	assert.JSONEq(t, `{"y":2}`, string(tr.Result))
}

func TestToProviderMessages_UnknownRoleBecomesUserText(t *testing.T) {
	out, err := toProviderMessages([]Message{{
		Role:    Role("narrator"),
		Content: []ContentPart{TextPart{Text: "once"}, FilePart{Filename: "a.bin", MediaType: "application/octet-stream"}},
	}}, logging.NoOpLogger{})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, provider.RoleUser, out[0].Role)
	assert.Equal(t, []provider.ContentPart{provider.TextPart{Text: "once\n[file: a.bin (application/octet-stream)]"}}, out[0].Content)
}

func TestToProviderMessages_RejectsMisplacedParts(t *testing.T) {
	cases := map[string]Message{
		"reasoning in user":   {Role: RoleUser, Content: []ContentPart{ReasoningPart{Text: "x"}}},
		"tool call in user":   {Role: RoleUser, Content: []ContentPart{ToolCallPart{ID: "1", Name: "t"}}},
		"tool result in user": {Role: RoleUser, Content: []ContentPart{ToolResultPart{ToolCallID: "1"}}},
		"tool without id":     {Role: RoleTool, Content: []ContentPart{TextPart{Text: "5"}}},
		"image without data":  {Role: RoleUser, Content: []ContentPart{ImagePart{}}},
		"bad base64":          {Role: RoleUser, Content: []ContentPart{ImagePart{Base64: "%%%"}}},
	}
	for name, m := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := toProviderMessages([]Message{m}, logging.NoOpLogger{})
			assert.True(t, IsInvalidPrompt(err), "got %v", err)
		})
	}
}

func TestToProviderMessages_ImagesAndFiles(t *testing.T) {
	png := []byte{0x89, 'P', 'N', 'G'}
	msgs := []Message{{Role: RoleUser, Content: []ContentPart{
		ImageURL("https://example.com/cat"),
		ImagePart{Base64: base64.StdEncoding.EncodeToString(png), MediaType: "image/png"},
		FileBytes("scan.png", "image/png", png),
		FileBytes("doc.pdf", "application/pdf", []byte("%PDF")),
		FileBytes("notes.txt", "text/plain", []byte("hello")),
		FilePart{MediaType: "application/zip", Bytes: []byte("PK")},
	}}}

	out, err := toProviderMessages(msgs, logging.NoOpLogger{})
	require.NoError(t, err)
	require.Len(t, out, 1)

	assert.Equal(t, []provider.ContentPart{
		provider.ImagePart{URL: "https://example.com/cat", MediaType: "image/jpeg"},
		provider.ImagePart{Data: png, MediaType: "image/png"},
		provider.ImagePart{Data: png, MediaType: "image/png"},
		provider.FilePart{Data: []byte("%PDF"), MediaType: "application/pdf", Filename: "doc.pdf"},
		provider.FilePart{Data: []byte("hello"), MediaType: "text/plain", Filename: "notes.txt"},
		provider.TextPart{Text: "[file: unnamed (application/zip)]"},
	}, out[0].Content)
}

func TestBuildCallOptions(t *testing.T) {
	maxTokens := 123
	temp := 0.2
	seed := int64(9)
	tools, err := newToolRegistry([]Tool{
		addTool(),
		{Name: "search", Description: "web search", InputSchema: JSONSchema(json.RawMessage(`{"type":"object"}`))},
	})
	require.NoError(t, err)

	req := StreamTextRequest{
		MaxTokens:       &maxTokens,
		Temperature:     &temp,
		Seed:            &seed,
		Stop:            []string{"a", "b"},
		Headers:         map[string]string{"X-Trace": "1"},
		ProviderOptions: map[string]any{"openai": map[string]any{"user": "u"}},
		ToolChoice:      ToolChoiceTool("search"),
	}
	prompt := []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentPart{provider.TextPart{Text: "hi"}}}}

	opts := buildCallOptions(req, tools, prompt)
	assert.Equal(t, provider.ModeTools, opts.Mode)
	assert.Equal(t, prompt, opts.Prompt)
	assert.Equal(t, &maxTokens, opts.MaxTokens)
	assert.Equal(t, &temp, opts.Temperature)
	assert.Equal(t, &seed, opts.Seed)
	assert.Equal(t, []string{"a", "b"}, opts.Stop)
	assert.Equal(t, map[string]string{"X-Trace": "1"}, opts.Headers)
	assert.Equal(t, req.ProviderOptions, opts.ProviderOptions)
	require.Len(t, opts.Tools, 2)
	assert.Equal(t, "add", opts.Tools[0].Name)
	assert.Equal(t, "search", opts.Tools[1].Name)
	assert.Equal(t, &provider.ToolChoice{Type: "tool", ToolName: "search"}, opts.ToolChoice)

	req.ActiveTools = []string{"search"}
	opts = buildCallOptions(req, tools, prompt)
	require.Len(t, opts.Tools, 1)
	assert.Equal(t, "search", opts.Tools[0].Name)

	opts = buildCallOptions(StreamTextRequest{ToolChoice: ToolChoiceRequired()}, nil, prompt)
	assert.Equal(t, provider.ModeRegular, opts.Mode)
	assert.Nil(t, opts.Tools)
	assert.Nil(t, opts.ToolChoice)
}

func TestToolResultForCall(t *testing.T) {
	m := ToolResultForCall("call_1", "add", map[string]int{"sum": 3})
	assert.Equal(t, RoleTool, m.Role)
	assert.Equal(t, "call_1", m.ToolCallID)
	require.Len(t, m.Content, 1)
	assert.Equal(t, TextPart{Text: `{"sum":3}`}, m.Content[0])
}
