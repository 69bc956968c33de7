package llm

// NormalizeResponse patches up quirks in assistant messages before the
// agent loop consumes them: tool calls missing their type field, and
// reasoning content left dangling next to tool calls.
func NormalizeResponse(msg *Message) {
	for i := range msg.ToolCalls {
		if msg.ToolCalls[i].Type == "" {
			msg.ToolCalls[i].Type = "function"
		}
	}
	// Reasoning that accompanies a tool call is scratch work; servers
	// reject it when echoed back in the conversation history.
	if len(msg.ToolCalls) > 0 {
		msg.ReasoningContent = ""
	}
}

// PreventConsecutiveAssistant drops a trailing assistant message so the
// next request keeps strict role alternation. Reports whether a message
// was removed.
func PreventConsecutiveAssistant(messages []Message) ([]Message, bool) {
	if len(messages) > 0 && messages[len(messages)-1].Role == RoleAssistant {
		return messages[:len(messages)-1], true
	}
	return messages, false
}
