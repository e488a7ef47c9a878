package models

// StreamEvent is one frame emitted by a generation, in emission order, to
// be forwarded verbatim by the gateway to the client. It's a closed tagged
// variant: exactly one of the typed fields is meaningful, selected by Kind.
type StreamEvent struct {
	Kind EventKind `json:"kind"`

	TextDelta string `json:"delta,omitempty"`

	ToolCallID       string         `json:"callId,omitempty"`
	ToolName         string         `json:"name,omitempty"`
	ToolArguments    map[string]any `json:"arguments,omitempty"`
	ThoughtSignature string         `json:"thoughtSignature,omitempty"`
	ToolResult       *ToolResult    `json:"result,omitempty"`

	CompactingPhase   CompactingPhase `json:"phase,omitempty"`
	MessagesCompacted int             `json:"messagesCompacted,omitempty"`

	DoneMessage   *ChatMessage `json:"message,omitempty"`
	DoneToolCalls []ToolCall   `json:"toolCalls,omitempty"`

	// ErrorMessage is serialized as "error" here; the gateway re-frames it
	// as {message} inside the error event payload on the wire.
	ErrorMessage string `json:"error,omitempty"`
}

// EventKind enumerates StreamEvent variants.
type EventKind string

const (
	EventTextDelta  EventKind = "text_delta"
	EventToolStart  EventKind = "tool_start"
	EventToolEnd    EventKind = "tool_end"
	EventCompacting EventKind = "compacting"
	EventDone       EventKind = "done"
	EventError      EventKind = "error"
)

// CompactingPhase distinguishes the two compacting{} frames.
type CompactingPhase string

const (
	CompactingStart CompactingPhase = "start"
	CompactingDone  CompactingPhase = "done"
)

func TextDeltaEvent(delta string) StreamEvent {
	return StreamEvent{Kind: EventTextDelta, TextDelta: delta}
}

func ToolStartEvent(call ToolCall) StreamEvent {
	return StreamEvent{
		Kind:             EventToolStart,
		ToolCallID:       call.ID,
		ToolName:         call.Name,
		ToolArguments:    call.Arguments,
		ThoughtSignature: call.ThoughtSignature,
	}
}

func ToolEndEvent(callID, name string, result ToolResult) StreamEvent {
	return StreamEvent{Kind: EventToolEnd, ToolCallID: callID, ToolName: name, ToolResult: &result}
}

func CompactingStartEvent() StreamEvent {
	return StreamEvent{Kind: EventCompacting, CompactingPhase: CompactingStart}
}

func CompactingDoneEvent(messagesCompacted int) StreamEvent {
	return StreamEvent{Kind: EventCompacting, CompactingPhase: CompactingDone, MessagesCompacted: messagesCompacted}
}

func DoneEvent(msg ChatMessage, toolCalls []ToolCall) StreamEvent {
	return StreamEvent{Kind: EventDone, DoneMessage: &msg, DoneToolCalls: toolCalls}
}

func ErrorEvent(message string) StreamEvent {
	return StreamEvent{Kind: EventError, ErrorMessage: message}
}
