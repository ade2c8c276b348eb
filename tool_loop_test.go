package ai

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToolRegistry_Build(t *testing.T) {
	r, err := newToolRegistry([]Tool{addTool(), {Name: "noop"}})
	require.NoError(t, err)
	assert.Equal(t, 2, r.len())
	assert.Equal(t, []string{"add", "noop"}, r.order)

	_, ok := r.lookup("add")
	assert.True(t, ok)
	_, ok = r.lookup("missing")
	assert.False(t, ok)

	_, err = newToolRegistry([]Tool{{Name: ""}})
	assert.Error(t, err)

	_, err = newToolRegistry([]Tool{{Name: "bad", InputSchema: JSONSchema(json.RawMessage(`{"type":`))}})
	assert.Error(t, err)

	var nilRegistry *toolRegistry
	assert.Equal(t, 0, nilRegistry.len())
}

func TestExecuteToolCall(t *testing.T) {
	failing := NewTool("fail", ToolSpec[struct{}, any]{
		Execute: func(context.Context, struct{}, ToolExecutionOptions) (any, error) {
			return nil, errors.New("nope")
		},
	})
	r, err := newToolRegistry([]Tool{addTool(), failing, {Name: "client-side"}})
	require.NoError(t, err)
	ctx := context.Background()

	res, executed, err := r.executeToolCall(ctx, ToolCallPart{ID: "1", Name: "add", Args: json.RawMessage(`{"a":2,"b":3}`)}, toolExecOptions{})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, ToolResultPart{ToolCallID: "1", ToolName: "add", Args: json.RawMessage(`{"a":2,"b":3}`), Result: 5}, res)

	_, executed, err = r.executeToolCall(ctx, ToolCallPart{ID: "2", Name: "add", Args: json.RawMessage(`{"a":2}`)}, toolExecOptions{})
	assert.False(t, executed)
	var invalid *InvalidToolInputError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "2", invalid.ToolCallID)

	_, executed, err = r.executeToolCall(ctx, ToolCallPart{ID: "3", Name: "fail", Args: json.RawMessage(`{}`)}, toolExecOptions{})
	assert.False(t, executed)
	assert.True(t, IsToolExecution(err))

	_, executed, err = r.executeToolCall(ctx, ToolCallPart{ID: "4", Name: "client-side", Args: json.RawMessage(`{}`)}, toolExecOptions{})
	assert.NoError(t, err)
	assert.False(t, executed)

	_, executed, err = r.executeToolCall(ctx, ToolCallPart{ID: "5", Name: "unknown", Args: json.RawMessage(`{}`)}, toolExecOptions{})
	assert.NoError(t, err)
	assert.False(t, executed)
}

func TestExecuteToolCall_RecoversHandlerPanic(t *testing.T) {
	tool := Tool{Name: "explode", Handler: func(context.Context, json.RawMessage) (any, error) {
		panic("kaboom")
	}}
	r, err := newToolRegistry([]Tool{tool})
	require.NoError(t, err)

	_, executed, err := r.executeToolCall(context.Background(), ToolCallPart{ID: "1", Name: "explode", Args: json.RawMessage(`{}`)}, toolExecOptions{})
	assert.False(t, executed)
	var execErr *ToolExecutionError
	require.ErrorAs(t, err, &execErr)
	assert.Equal(t, "1", execErr.ToolCallID)
	assert.ErrorContains(t, err, "tool panicked: kaboom")
}

func TestExecuteToolCall_PassesMessages(t *testing.T) {
	var got []Message
	tool := NewDynamicTool("peek", DynamicToolSpec{
		Execute: func(_ context.Context, _ json.RawMessage, opts ToolExecutionOptions) (any, error) {
			got = opts.Messages
			return nil, nil
		},
	})
	r, err := newToolRegistry([]Tool{tool})
	require.NoError(t, err)

	msgs := []Message{User("hello")}
	_, executed, err := r.executeToolCall(context.Background(), ToolCallPart{ID: "1", Name: "peek", Args: json.RawMessage(`{}`)}, toolExecOptions{messages: msgs})
	require.NoError(t, err)
	assert.True(t, executed)
	assert.Equal(t, msgs, got)
}

func TestStepMessages(t *testing.T) {
	step := Step{
		Text:             "checking",
		ReasoningDetails: []ReasoningPart{{Text: "hmm", Signature: "s"}},
		ToolCalls:        []ToolCallPart{{ID: "1", Name: "add", Args: json.RawMessage(`{"a":1,"b":1}`)}},
		ToolResults:      []ToolResultPart{{ToolCallID: "1", ToolName: "add", Result: 2}},
	}

	msgs := stepMessages(step)
	require.Len(t, msgs, 2)
	assert.Equal(t, RoleAssistant, msgs[0].Role)
	assert.Equal(t, []ContentPart{
		ReasoningPart{Text: "hmm", Signature: "s"},
		TextPart{Text: "checking"},
		step.ToolCalls[0],
	}, msgs[0].Content)
	assert.Equal(t, RoleTool, msgs[1].Role)
	assert.Equal(t, "1", msgs[1].ToolCallID)

	assert.Nil(t, stepMessages(Step{}))
}
