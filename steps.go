package ai

type StopConditionEvent struct {
	Steps []Step
}

type StopCondition func(event StopConditionEvent) bool

func StepCountIs(maxSteps int) StopCondition {
	return func(event StopConditionEvent) bool {
		return len(event.Steps) >= maxSteps
	}
}

func HasToolCall(toolName string) StopCondition {
	return func(event StopConditionEvent) bool {
		if len(event.Steps) == 0 {
			return false
		}
		for _, tc := range event.Steps[len(event.Steps)-1].ToolCalls {
			if tc.Name == toolName {
				return true
			}
		}
		return false
	}
}

func shouldStop(conds []StopCondition, steps []Step) bool {
	ev := StopConditionEvent{Steps: steps}
	for _, c := range conds {
		if c != nil && c(ev) {
			return true
		}
	}
	return false
}

// stepMessages renders a sealed step as the assistant message and tool
// messages that continue the conversation.
func stepMessages(s Step) []Message {
	var content []ContentPart
	for _, r := range s.ReasoningDetails {
		content = append(content, r)
	}
	if s.Text != "" {
		content = append(content, TextPart{Text: s.Text})
	}
	for _, tc := range s.ToolCalls {
		content = append(content, tc)
	}
	if len(content) == 0 {
		return nil
	}

	out := []Message{{Role: RoleAssistant, Content: content}}
	for _, tr := range s.ToolResults {
		out = append(out, Message{
			Role:       RoleTool,
			Name:       tr.ToolName,
			ToolCallID: tr.ToolCallID,
			Content:    []ContentPart{tr},
		})
	}
	return out
}
