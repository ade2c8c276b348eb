package ai

import (
	"github.com/bitop-dev/aistream/provider"
)

// buildCallOptions assembles the outbound invocation for one step.
func buildCallOptions(req StreamTextRequest, tools *toolRegistry, prompt []provider.Message) provider.CallOptions {
	opts := provider.CallOptions{
		Mode:             provider.ModeRegular,
		Prompt:           prompt,
		MaxTokens:        req.MaxTokens,
		Temperature:      req.Temperature,
		TopP:             req.TopP,
		TopK:             req.TopK,
		PresencePenalty:  req.PresencePenalty,
		FrequencyPenalty: req.FrequencyPenalty,
		Stop:             append([]string(nil), req.Stop...),
		Seed:             req.Seed,
		Headers:          cloneStringMap(req.Headers),
		ProviderOptions:  req.ProviderOptions,
	}

	defs := activeToolDefinitions(tools, req.ActiveTools)
	if len(defs) > 0 {
		opts.Mode = provider.ModeTools
		opts.Tools = defs
		if req.ToolChoice != nil {
			tc := *req.ToolChoice
			opts.ToolChoice = &tc
		}
	}
	return opts
}

func activeToolDefinitions(tools *toolRegistry, active []string) []provider.ToolDefinition {
	if tools.len() == 0 {
		return nil
	}
	var allow map[string]bool
	if len(active) > 0 {
		allow = make(map[string]bool, len(active))
		for _, n := range active {
			allow[n] = true
		}
	}

	out := make([]provider.ToolDefinition, 0, len(tools.order))
	for _, name := range tools.order {
		if allow != nil && !allow[name] {
			continue
		}
		t := tools.tools[name]
		out = append(out, provider.ToolDefinition{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema.JSON,
		})
	}
	return out
}
