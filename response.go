package llmprovider

import "strings"

// MergeDeltas folds consecutive streamed deltas of the same turn into whole
// messages. Text and thinking content concatenate, signatures concatenate,
// and tool-call argument fragments concatenate per tool-call ID.
//
// A role change starts a new message. Redacted thinking deltas are opaque and
// are never merged with their neighbours.
func MergeDeltas(deltas []Message) []Message {
	var merged []Message
	var text strings.Builder

	flush := func() {
		if len(merged) == 0 {
			return
		}
		last := &merged[len(merged)-1]
		if !last.Content.IsStructured() {
			last.Content.Text = text.String()
		}
		text.Reset()
	}

	for _, delta := range deltas {
		if len(merged) > 0 && canMerge(merged[len(merged)-1], delta) {
			last := &merged[len(merged)-1]
			text.WriteString(renderContent(delta.Content))
			last.Signature += delta.Signature
			last.ToolCalls = mergeToolCalls(last.ToolCalls, delta.ToolCalls)
			continue
		}

		flush()
		next := Message{
			Role:             delta.Role,
			ToolCallID:       delta.ToolCallID,
			RedactedThinking: delta.RedactedThinking,
			Signature:        delta.Signature,
			ToolCalls:        mergeToolCalls(nil, delta.ToolCalls),
		}
		if delta.Content.IsStructured() {
			next.Content = delta.Content
		}
		merged = append(merged, next)
		text.WriteString(renderContent(delta.Content))
	}
	flush()

	return merged
}

func canMerge(prev, next Message) bool {
	if prev.Role != next.Role {
		return false
	}
	if prev.RedactedThinking != "" || next.RedactedThinking != "" {
		return false
	}
	if prev.Content.IsStructured() || next.Content.IsStructured() {
		return false
	}
	return prev.ToolCallID == next.ToolCallID
}

func mergeToolCalls(calls []ToolCall, fragments []ToolCall) []ToolCall {
	for _, frag := range fragments {
		found := false
		for i := range calls {
			if calls[i].ID == frag.ID {
				calls[i].Arguments += frag.Arguments
				if calls[i].Name == "" {
					calls[i].Name = frag.Name
				}
				found = true
				break
			}
		}
		if !found {
			calls = append(calls, frag)
		}
	}
	return calls
}
