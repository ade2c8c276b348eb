package ai

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/bitop-dev/aistream/internal/schema"
)

// toolRegistry is built once per run and only read afterwards.
type toolRegistry struct {
	tools   map[string]Tool
	schemas map[string]*jsonschema.Schema
	order   []string
}

func newToolRegistry(tools []Tool) (*toolRegistry, error) {
	r := &toolRegistry{
		tools:   make(map[string]Tool, len(tools)),
		schemas: make(map[string]*jsonschema.Schema, len(tools)),
	}
	for _, t := range tools {
		if t.Name == "" {
			return nil, fmt.Errorf("tool name is required")
		}
		if _, dup := r.tools[t.Name]; dup {
			return nil, &DuplicateToolError{ToolName: t.Name}
		}
		s, err := schema.Compile(t.InputSchema.JSON)
		if err != nil {
			return nil, fmt.Errorf("tool %q: %w", t.Name, err)
		}
		r.tools[t.Name] = t
		r.schemas[t.Name] = s
		r.order = append(r.order, t.Name)
	}
	return r, nil
}

func (r *toolRegistry) lookup(name string) (Tool, bool) {
	if r == nil {
		return Tool{}, false
	}
	t, ok := r.tools[name]
	return t, ok
}

func (r *toolRegistry) len() int {
	if r == nil {
		return 0
	}
	return len(r.order)
}

type toolExecOptions struct {
	messages         []Message
	onInputAvailable func(tool Tool, call ToolCallPart)
	onProgress       func(event ToolProgressEvent)
}

// executeToolCall runs the handler of the tool named by call. executed is
// false when the tool is unknown or has no handler; the call then has no
// result.
func (r *toolRegistry) executeToolCall(ctx context.Context, call ToolCallPart, opts toolExecOptions) (result ToolResultPart, executed bool, err error) {
	t, ok := r.lookup(call.Name)
	if !ok || t.Handler == nil {
		return ToolResultPart{}, false, nil
	}

	if err := schema.Validate(r.schemas[t.Name], call.Args); err != nil {
		return ToolResultPart{}, false, &InvalidToolInputError{ToolName: t.Name, ToolCallID: call.ID, Cause: err}
	}

	if opts.onInputAvailable != nil {
		opts.onInputAvailable(t, call)
	}

	execOpts := ToolExecutionOptions{
		ToolCallID: call.ID,
		ToolName:   t.Name,
		Messages:   append([]Message(nil), opts.messages...),
		Report: func(data any) {
			if opts.onProgress != nil {
				opts.onProgress(ToolProgressEvent{ToolName: t.Name, ToolCallID: call.ID, Data: data})
			}
		},
	}
	execCtx := context.WithValue(ctx, toolExecutionOptionsKey{}, execOpts)

	val, err := callHandler(execCtx, t.Handler, call.Args)
	if err != nil {
		return ToolResultPart{}, false, &ToolExecutionError{ToolName: t.Name, ToolCallID: call.ID, Cause: err}
	}
	return ToolResultPart{
		ToolCallID: call.ID,
		ToolName:   t.Name,
		Args:       append(json.RawMessage(nil), call.Args...),
		Result:     val,
	}, true, nil
}

// callHandler turns a handler panic into an error so a broken tool only
// fails its own call.
func callHandler(ctx context.Context, h ToolHandler, args json.RawMessage) (val any, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return h(ctx, args)
}
