package main

import (
	"context"
	"encoding/json"
	"time"

	ai "github.com/bitop-dev/aistream"
)

type addInput struct {
	A float64 `json:"a"`
	B float64 `json:"b"`
}

type clockInput struct {
	Timezone string `json:"timezone"`
}

// builtinTools are offered to the model by chat and serve.
func builtinTools() []ai.Tool {
	add := ai.NewTool("add", ai.ToolSpec[addInput, float64]{
		Description: "Add two numbers.",
		InputSchema: ai.JSONSchema(json.RawMessage(`{"type":"object","properties":{"a":{"type":"number"},"b":{"type":"number"}},"required":["a","b"],"additionalProperties":false}`)),
		Execute: func(_ context.Context, in addInput, _ ai.ToolExecutionOptions) (float64, error) {
			return in.A + in.B, nil
		},
	})

	clock := ai.NewTool("current_time", ai.ToolSpec[clockInput, string]{
		Description: "Current time in an IANA time zone, UTC by default.",
		InputSchema: ai.JSONSchema(json.RawMessage(`{"type":"object","properties":{"timezone":{"type":"string"}},"additionalProperties":false}`)),
		Execute: func(_ context.Context, in clockInput, opts ai.ToolExecutionOptions) (string, error) {
			loc := time.UTC
			if in.Timezone != "" {
				l, err := time.LoadLocation(in.Timezone)
				if err != nil {
					return "", err
				}
				loc = l
			}
			opts.Report(map[string]string{"timezone": loc.String()})
			return time.Now().In(loc).Format(time.RFC3339), nil
		},
	})

	return []ai.Tool{add, clock}
}
