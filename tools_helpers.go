package ai

import (
	"context"
	"encoding/json"
	"fmt"
)

// ToolExecutionOptions is handed to every tool execution.
type ToolExecutionOptions struct {
	ToolCallID string
	ToolName   string

	// Messages is the conversation sent to the model for the step that
	// requested the call.
	Messages []Message

	// Report emits a ToolProgressEvent to StreamTextRequest.OnToolProgress.
	// It is never nil.
	Report func(data any)
}

type ToolSpec[Input any, Output any] struct {
	Description string
	InputSchema Schema
	Execute     func(ctx context.Context, input Input, opts ToolExecutionOptions) (Output, error)
}

type toolExecutionOptionsKey struct{}

// ToolExecutionOptionsFromContext returns the options of the tool execution
// running under ctx.
func ToolExecutionOptionsFromContext(ctx context.Context) ToolExecutionOptions {
	if ctx == nil {
		return ToolExecutionOptions{Report: func(any) {}}
	}
	opts, ok := ctx.Value(toolExecutionOptionsKey{}).(ToolExecutionOptions)
	if !ok {
		return ToolExecutionOptions{Report: func(any) {}}
	}
	return opts
}

// NewTool creates a Tool with typed input/output. Input is validated against
// InputSchema by the engine before the handler runs; the handler unmarshals
// it into Input and calls Execute.
func NewTool[Input any, Output any](name string, spec ToolSpec[Input, Output]) Tool {
	if name == "" {
		panic("tool name is required")
	}
	if spec.Execute == nil {
		panic(fmt.Sprintf("tool %q Execute is required", name))
	}
	return Tool{
		Name:        name,
		Description: spec.Description,
		InputSchema: spec.InputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			var v Input
			if err := json.Unmarshal(input, &v); err != nil {
				return nil, err
			}
			return spec.Execute(ctx, v, ToolExecutionOptionsFromContext(ctx))
		},
	}
}

type DynamicToolSpec struct {
	Description string
	InputSchema Schema
	Execute     func(ctx context.Context, input json.RawMessage, opts ToolExecutionOptions) (any, error)
}

// NewDynamicTool creates a Tool where input is left as json.RawMessage for
// runtime casting.
func NewDynamicTool(name string, spec DynamicToolSpec) Tool {
	if name == "" {
		panic("tool name is required")
	}
	if spec.Execute == nil {
		panic(fmt.Sprintf("tool %q Execute is required", name))
	}
	return Tool{
		Name:        name,
		Description: spec.Description,
		InputSchema: spec.InputSchema,
		Handler: func(ctx context.Context, input json.RawMessage) (any, error) {
			return spec.Execute(ctx, input, ToolExecutionOptionsFromContext(ctx))
		},
	}
}
