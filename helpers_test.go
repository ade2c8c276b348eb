package ai

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/bitop-dev/aistream/provider"
)

const testTimeout = 5 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)
	return ctx
}

// drainEvents reads the full stream to the end.
func drainEvents(t *testing.T, res *StreamTextResult) ([]StreamEvent, error) {
	t.Helper()
	ctx := testContext(t)
	fs := res.FullStream()
	var events []StreamEvent
	for fs.NextContext(ctx) {
		events = append(events, fs.Event())
	}
	require.NoError(t, ctx.Err(), "stream did not end in time")
	return events, fs.Err()
}

func eventTypes(events []StreamEvent) []EventType {
	out := make([]EventType, len(events))
	for i, e := range events {
		out[i] = e.Type()
	}
	return out
}

type addInput struct {
	A int `json:"a"`
	B int `json:"b"`
}

var addSchema = JSONSchema(json.RawMessage(`{"type":"object","properties":{"a":{"type":"integer"},"b":{"type":"integer"}},"required":["a","b"],"additionalProperties":false}`))

func addTool() Tool {
	return NewTool("add", ToolSpec[addInput, int]{
		Description: "adds two integers",
		InputSchema: addSchema,
		Execute: func(_ context.Context, in addInput, _ ToolExecutionOptions) (int, error) {
			return in.A + in.B, nil
		},
	})
}

func textParts(text string, reason provider.FinishReason, usage provider.Usage) []provider.StreamPart {
	return []provider.StreamPart{
		provider.TextDelta{Text: text},
		provider.Finish{FinishReason: reason, Usage: usage},
	}
}

func toolCallParts(id string, args string) []provider.StreamPart {
	return []provider.StreamPart{
		provider.ToolCall{ID: id, Name: "add", Args: json.RawMessage(args)},
		provider.Finish{FinishReason: provider.FinishToolCalls, Usage: provider.Usage{PromptTokens: 10, CompletionTokens: 5}},
	}
}
