package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/aistream/provider"
)

func sseServer(t *testing.T, status int, chunks []string, onBody func(map[string]any)) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if onBody != nil {
			var body map[string]any
			_ = json.Unmarshal(raw, &body)
			onBody(body)
		}
		if status != http.StatusOK {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(status)
			_, _ = io.WriteString(w, `{"error":{"message":"bad key","type":"invalid_request_error","code":"invalid_api_key"}}`)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			_, _ = fmt.Fprintf(w, "data: %s\n\n", c)
		}
		_, _ = io.WriteString(w, "data: [DONE]\n\n")
	}))
}

func collect(t *testing.T, r provider.PartReader) []provider.StreamPart {
	t.Helper()
	var out []provider.StreamPart
	for r.Next() {
		out = append(out, r.Part())
	}
	require.NoError(t, r.Err())
	require.NoError(t, r.Close())
	return out
}

func TestDoStream_TextAndToolCall(t *testing.T) {
	chunks := []string{
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me "},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"add."},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_1","type":"function","function":{"name":"add","arguments":""}}]},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"a\":2,\"b\":3}"}}]},"finish_reason":null}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"id":"chatcmpl-1","object":"chat.completion.chunk","created":1700000000,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":7,"total_tokens":19}}`,
	}

	var body map[string]any
	srv := sseServer(t, http.StatusOK, chunks, func(b map[string]any) { body = b })
	defer srv.Close()

	m := NewClient(Config{APIKey: "test", BaseURL: srv.URL + "/"}).Chat("gpt-4o")
	temp := 0.2
	res, err := m.DoStream(context.Background(), provider.CallOptions{
		Mode: provider.ModeTools,
		Tools: []provider.ToolDefinition{{
			Name:        "add",
			Description: "adds numbers",
			InputSchema: json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}}}`),
		}},
		Prompt: []provider.Message{
			{Role: provider.RoleSystem, Content: []provider.ContentPart{provider.TextPart{Text: "be brief"}}},
			{Role: provider.RoleUser, Content: []provider.ContentPart{provider.TextPart{Text: "add(2,3)"}}},
		},
		Temperature: &temp,
	})
	require.NoError(t, err)

	parts := collect(t, res.Stream)

	require.NotNil(t, body)
	assert.Equal(t, "gpt-4o", body["model"])
	assert.Equal(t, true, body["stream"])
	assert.InDelta(t, 0.2, body["temperature"], 1e-9)
	require.Len(t, body["tools"], 1)
	require.Len(t, body["messages"], 2)

	require.NotEmpty(t, parts)
	meta, ok := parts[0].(provider.ResponseMetadata)
	require.True(t, ok, "first part is %T", parts[0])
	assert.Equal(t, "chatcmpl-1", meta.ID)
	assert.Equal(t, "gpt-4o", meta.ModelID)

	var text strings.Builder
	var deltas []provider.ToolCallDelta
	var calls []provider.ToolCall
	for _, p := range parts {
		switch v := p.(type) {
		case provider.TextDelta:
			text.WriteString(v.Text)
		case provider.ToolCallDelta:
			deltas = append(deltas, v)
		case provider.ToolCall:
			calls = append(calls, v)
		}
	}
	assert.Equal(t, "Let me add.", text.String())
	require.Len(t, deltas, 2)
	assert.Equal(t, "call_1", deltas[1].ToolCallID)
	assert.Equal(t, "add", deltas[1].ToolName)
	require.Len(t, calls, 1)
	assert.Equal(t, "call_1", calls[0].ID)
	assert.JSONEq(t, `{"a":2,"b":3}`, string(calls[0].Args))

	fin, ok := parts[len(parts)-1].(provider.Finish)
	require.True(t, ok)
	assert.Equal(t, provider.FinishToolCalls, fin.FinishReason)
	assert.Equal(t, provider.Usage{PromptTokens: 12, CompletionTokens: 7}, fin.Usage)
}

func TestDoStream_APIError(t *testing.T) {
	srv := sseServer(t, http.StatusUnauthorized, nil, nil)
	defer srv.Close()

	m := NewClient(Config{APIKey: "bad", BaseURL: srv.URL + "/"}).Chat("gpt-4o")
	res, err := m.DoStream(context.Background(), provider.CallOptions{
		Prompt: []provider.Message{{Role: provider.RoleUser, Content: []provider.ContentPart{provider.TextPart{Text: "hi"}}}},
	})
	require.NoError(t, err)

	assert.False(t, res.Stream.Next())
	var pe *provider.Error
	require.ErrorAs(t, res.Stream.Err(), &pe)
	assert.Equal(t, http.StatusUnauthorized, pe.Status)
	assert.Equal(t, ProviderName, pe.Provider)
	assert.False(t, pe.Retryable)
}

func TestBuildParams_Warnings(t *testing.T) {
	k := 5
	m := NewClient(Config{APIKey: "test"}).Chat("gpt-4o")
	_, warnings, err := m.buildParams(provider.CallOptions{TopK: &k})
	require.NoError(t, err)
	require.Len(t, warnings, 1)
	assert.Equal(t, "topK", warnings[0].Setting)
}

func TestBuildMessages_ToolRoundTrip(t *testing.T) {
	msgs, err := buildMessages([]provider.Message{
		{Role: provider.RoleAssistant, ToolCalls: []provider.ToolCall{{ID: "c1", Name: "add", Args: json.RawMessage(`{"a":1}`)}}},
		{Role: provider.RoleTool, ToolCallID: "c1", Content: []provider.ContentPart{provider.ToolResultPart{ToolCallID: "c1", Result: json.RawMessage(`5`)}}},
	})
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	raw, err := json.Marshal(msgs)
	require.NoError(t, err)
	var decoded []map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "assistant", decoded[0]["role"])
	assert.Len(t, decoded[0]["tool_calls"], 1)
	assert.Equal(t, "tool", decoded[1]["role"])
	assert.Equal(t, "c1", decoded[1]["tool_call_id"])
	assert.Equal(t, "5", decoded[1]["content"])
}

func TestChatOptionsFrom(t *testing.T) {
	yes := true
	co, err := chatOptionsFrom(map[string]any{"openai": map[string]any{"user": "u1", "parallel_tool_calls": true}})
	require.NoError(t, err)
	assert.Equal(t, ChatOptions{User: "u1", ParallelToolCalls: &yes}, co)

	co, err = chatOptionsFrom(nil)
	require.NoError(t, err)
	assert.Equal(t, ChatOptions{}, co)
}

func TestRegisteredProvider(t *testing.T) {
	m, err := provider.Resolve("openai:gpt-4o-mini")
	require.NoError(t, err)
	assert.Equal(t, ProviderName, m.Provider())
	assert.Equal(t, "gpt-4o-mini", m.ModelID())
}
