package gateway

import (
	"encoding/json"
	"testing"

	"github.com/agentrt/agentrt/pkg/models"
)

func roundTrip(t *testing.T, frame wsFrame) map[string]any {
	t.Helper()
	data, err := json.Marshal(frame)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	return decoded
}

func TestEventFrameShapes(t *testing.T) {
	tests := []struct {
		name      string
		event     models.StreamEvent
		wantEvent string
		check     func(t *testing.T, payload map[string]any)
	}{
		{
			name:      "text delta",
			event:     models.TextDeltaEvent("hel"),
			wantEvent: "text_delta",
			check: func(t *testing.T, payload map[string]any) {
				if payload["delta"] != "hel" {
					t.Errorf("delta = %v", payload["delta"])
				}
			},
		},
		{
			name: "tool start with signature",
			event: models.ToolStartEvent(models.ToolCall{
				ID:               "c1",
				Name:             "echo",
				Arguments:        map[string]any{"text": "x"},
				ThoughtSignature: "sig",
			}),
			wantEvent: "tool_start",
			check: func(t *testing.T, payload map[string]any) {
				if payload["callId"] != "c1" || payload["name"] != "echo" {
					t.Errorf("payload = %v", payload)
				}
				if payload["thoughtSignature"] != "sig" {
					t.Error("thoughtSignature missing")
				}
			},
		},
		{
			name:      "tool start without signature omits field",
			event:     models.ToolStartEvent(models.ToolCall{ID: "c2", Name: "echo"}),
			wantEvent: "tool_start",
			check: func(t *testing.T, payload map[string]any) {
				if _, present := payload["thoughtSignature"]; present {
					t.Error("empty thoughtSignature should be omitted")
				}
			},
		},
		{
			name:      "tool end",
			event:     models.ToolEndEvent("c1", "echo", models.TextResult("c1", "{}")),
			wantEvent: "tool_end",
			check: func(t *testing.T, payload map[string]any) {
				result, ok := payload["result"].(map[string]any)
				if !ok || result["toolCallId"] != "c1" {
					t.Errorf("result = %v", payload["result"])
				}
			},
		},
		{
			name:      "compacting start",
			event:     models.CompactingStartEvent(),
			wantEvent: "compacting",
			check: func(t *testing.T, payload map[string]any) {
				if payload["phase"] != "start" {
					t.Errorf("phase = %v", payload["phase"])
				}
				if _, present := payload["messagesCompacted"]; present {
					t.Error("start frame should not carry messagesCompacted")
				}
			},
		},
		{
			name:      "compacting done",
			event:     models.CompactingDoneEvent(12),
			wantEvent: "compacting",
			check: func(t *testing.T, payload map[string]any) {
				if payload["phase"] != "done" || payload["messagesCompacted"] != float64(12) {
					t.Errorf("payload = %v", payload)
				}
			},
		},
		{
			name: "done",
			event: models.DoneEvent(models.ChatMessage{
				ID: "m1", Role: models.RoleAssistant, Content: "hi",
			}, []models.ToolCall{{ID: "c1", Name: "echo"}}),
			wantEvent: "done",
			check: func(t *testing.T, payload map[string]any) {
				message, ok := payload["message"].(map[string]any)
				if !ok || message["content"] != "hi" {
					t.Errorf("message = %v", payload["message"])
				}
				calls, ok := payload["toolCalls"].([]any)
				if !ok || len(calls) != 1 {
					t.Errorf("toolCalls = %v", payload["toolCalls"])
				}
			},
		},
		{
			name:      "error",
			event:     models.ErrorEvent("cancelled"),
			wantEvent: "error",
			check: func(t *testing.T, payload map[string]any) {
				if payload["message"] != "cancelled" {
					t.Errorf("message = %v", payload["message"])
				}
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decoded := roundTrip(t, eventFrame(tt.event))
			if decoded["type"] != "event" {
				t.Errorf("type = %v, want event", decoded["type"])
			}
			if decoded["event"] != tt.wantEvent {
				t.Errorf("event = %v, want %q", decoded["event"], tt.wantEvent)
			}
			payload, _ := decoded["payload"].(map[string]any)
			tt.check(t, payload)
		})
	}
}

func TestValidateFrame(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr bool
	}{
		{
			name: "valid send",
			raw:  `{"type":"req","id":"1","method":"send","params":{"text":"hi"}}`,
		},
		{
			name:    "send without text",
			raw:     `{"type":"req","id":"1","method":"send","params":{}}`,
			wantErr: true,
		},
		{
			name:    "send with empty text",
			raw:     `{"type":"req","id":"1","method":"send","params":{"text":""}}`,
			wantErr: true,
		},
		{
			name: "valid cancel without params",
			raw:  `{"type":"req","id":"2","method":"cancel"}`,
		},
		{
			name: "valid resume",
			raw:  `{"type":"req","id":"3","method":"resume","params":{"sessionId":"s1"}}`,
		},
		{
			name:    "resume without session",
			raw:     `{"type":"req","id":"3","method":"resume","params":{}}`,
			wantErr: true,
		},
		{
			name:    "unknown method",
			raw:     `{"type":"req","id":"4","method":"shrug"}`,
			wantErr: true,
		},
		{
			name:    "wrong frame type",
			raw:     `{"type":"event","method":"send","params":{"text":"hi"}}`,
			wantErr: true,
		},
		{
			name: "valid connect",
			raw:  `{"type":"req","id":"0","method":"connect","params":{"minProtocol":1,"maxProtocol":1}}`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var frame wsFrame
			if err := json.Unmarshal([]byte(tt.raw), &frame); err != nil {
				t.Fatal(err)
			}
			err := validateFrame([]byte(tt.raw), &frame)
			if (err != nil) != tt.wantErr {
				t.Errorf("validateFrame() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
