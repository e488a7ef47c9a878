package models

import "context"

// ToolDefinition is a registered capability. Parameters must be an
// object-schema: {type:"object", properties: map<string,Schema>, required?}.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  Schema
	Execute     func(ctx context.Context, callID string, args map[string]any) ToolResult
}

// ToolCall is the model's request to invoke a named capability.
// ThoughtSignature is preserved verbatim when the provider supplies one and
// is never fabricated or copied onto unrelated calls (see DESIGN.md).
type ToolCall struct {
	ID               string
	Name             string
	Arguments        map[string]any
	ThoughtSignature string
}

// ContentBlock is one element of ToolResult.Content. The contract only
// defines a "text" block today; Type is kept explicit so a future block kind
// doesn't silently break callers that switch on it.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is a capability's reply. It never represents a Go error:
// failures are carried in Error so they can be fed back to the model instead
// of unwinding the orchestrator.
type ToolResult struct {
	ToolCallID string         `json:"toolCallId"`
	Content    []ContentBlock `json:"content"`
	Error      string         `json:"error,omitempty"`
}

// TextResult builds a single-block text ToolResult.
func TextResult(callID, text string) ToolResult {
	return ToolResult{ToolCallID: callID, Content: []ContentBlock{{Type: "text", Text: text}}}
}

// ErrorResult builds a ToolResult carrying a classification string
// ("timeout", "cancelled", or a tool-specific reason).
func ErrorResult(callID, reason string) ToolResult {
	return ToolResult{ToolCallID: callID, Error: reason}
}

// Text returns the concatenation of all text blocks, which is what callers
// that don't care about block structure (logging, compaction) want.
func (r ToolResult) Text() string {
	if len(r.Content) == 0 {
		return ""
	}
	if len(r.Content) == 1 {
		return r.Content[0].Text
	}
	out := make([]byte, 0, 256)
	for _, b := range r.Content {
		out = append(out, b.Text...)
	}
	return string(out)
}
