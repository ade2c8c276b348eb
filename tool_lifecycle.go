package ai

// toolInputLifecycle drives the per-tool input hooks from streamed tool call
// deltas, keyed by tool call id.
type toolInputLifecycle struct {
	tools *toolRegistry

	started map[string]bool
}

func newToolInputLifecycle(tools *toolRegistry) *toolInputLifecycle {
	return &toolInputLifecycle{tools: tools, started: map[string]bool{}}
}

// begin fires OnInputStart for the first delta of a call and reports whether
// the call was new.
func (l *toolInputLifecycle) begin(toolCallID, toolName string) bool {
	if l.started[toolCallID] {
		return false
	}
	l.started[toolCallID] = true
	if tool, ok := l.tools.lookup(toolName); ok && tool.OnInputStart != nil {
		tool.OnInputStart(ToolInputStartEvent{ToolName: toolName, ToolCallID: toolCallID})
	}
	return true
}

func (l *toolInputLifecycle) delta(toolCallID, toolName, argsDelta string) {
	if argsDelta == "" {
		return
	}
	tool, ok := l.tools.lookup(toolName)
	if !ok || tool.OnInputDelta == nil {
		return
	}
	tool.OnInputDelta(ToolInputDeltaEvent{
		ToolName:       toolName,
		ToolCallID:     toolCallID,
		InputTextDelta: argsDelta,
	})
}

func (l *toolInputLifecycle) onInputAvailable(tool Tool, call ToolCallPart) {
	if tool.OnInputAvailable == nil {
		return
	}
	tool.OnInputAvailable(ToolInputAvailableEvent{
		ToolName:   tool.Name,
		ToolCallID: call.ID,
		Input:      append([]byte(nil), call.Args...),
	})
}
