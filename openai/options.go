package openai

import (
	"encoding/json"
	"fmt"
)

// ChatOptions provides OpenAI-specific options for chat completions.
// Use via StreamTextRequest.ProviderOptions: map[string]any{"openai": openai.ChatOptions{...}}.
type ChatOptions struct {
	User              string `json:"user,omitempty"`
	ParallelToolCalls *bool  `json:"parallel_tool_calls,omitempty"`
}

func chatOptionsFrom(providerOptions map[string]any) (ChatOptions, error) {
	v, ok := providerOptions[ProviderName]
	if !ok || v == nil {
		return ChatOptions{}, nil
	}
	switch o := v.(type) {
	case ChatOptions:
		return o, nil
	case *ChatOptions:
		return *o, nil
	default:
		raw, err := json.Marshal(v)
		if err != nil {
			return ChatOptions{}, fmt.Errorf("openai options: %w", err)
		}
		var out ChatOptions
		if err := json.Unmarshal(raw, &out); err != nil {
			return ChatOptions{}, fmt.Errorf("openai options: %w", err)
		}
		return out, nil
	}
}
