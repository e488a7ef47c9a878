package gateway

import (
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentrt/agentrt/pkg/models"
)

// wsFrame is the typed JSON envelope every frame on the wire uses: "req"
// frames carry inbound methods, "res" frames acknowledge them, and "event"
// frames carry StreamEvents and gateway control events.
type wsFrame struct {
	Type    string          `json:"type"`
	ID      string          `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Event   string          `json:"event,omitempty"`
	OK      *bool           `json:"ok,omitempty"`
	Payload any             `json:"payload,omitempty"`
	Error   *wsError        `json:"error,omitempty"`
}

type wsError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type wsConnectParams struct {
	MinProtocol int    `json:"minProtocol"`
	MaxProtocol int    `json:"maxProtocol"`
	SessionID   string `json:"sessionId,omitempty"`
}

type wsSendParams struct {
	Text           string `json:"text"`
	CharacterState string `json:"characterState,omitempty"`
}

type wsResumeParams struct {
	SessionID string `json:"sessionId"`
}

// frame schema registry, compiled once.
type wsSchemaRegistry struct {
	once    sync.Once
	initErr error
	request *jsonschema.Schema
	methods map[string]*jsonschema.Schema
}

var wsSchemas wsSchemaRegistry

func initWSSchemas() error {
	wsSchemas.once.Do(func() {
		reqSchema, err := jsonschema.CompileString("ws_request", wsRequestSchema)
		if err != nil {
			wsSchemas.initErr = err
			return
		}
		wsSchemas.request = reqSchema

		methods := map[string]string{
			"connect": wsConnectParamsSchema,
			"send":    wsSendParamsSchema,
			"cancel":  wsEmptyParamsSchema,
			"reset":   wsEmptyParamsSchema,
			"resume":  wsResumeParamsSchema,
		}
		wsSchemas.methods = make(map[string]*jsonschema.Schema, len(methods))
		for name, schemaSrc := range methods {
			compiled, err := jsonschema.CompileString("ws_method_"+name, schemaSrc)
			if err != nil {
				wsSchemas.initErr = err
				return
			}
			wsSchemas.methods[name] = compiled
		}
	})
	return wsSchemas.initErr
}

// validateFrame checks the envelope and the per-method params schema.
func validateFrame(raw []byte, frame *wsFrame) error {
	if err := initWSSchemas(); err != nil {
		return err
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return err
	}
	if err := wsSchemas.request.Validate(payload); err != nil {
		return err
	}

	schema, ok := wsSchemas.methods[frame.Method]
	if !ok {
		return fmt.Errorf("unknown method %q", frame.Method)
	}
	var params any
	if len(frame.Params) == 0 {
		params = map[string]any{}
	} else if err := json.Unmarshal(frame.Params, &params); err != nil {
		return err
	}
	return schema.Validate(params)
}

const wsRequestSchema = `{
  "type": "object",
  "required": ["type", "method"],
  "properties": {
    "type": { "const": "req" },
    "id": { "type": "string" },
    "method": { "type": "string", "minLength": 1 },
    "params": {}
  },
  "additionalProperties": true
}`

const wsConnectParamsSchema = `{
  "type": "object",
  "required": ["minProtocol", "maxProtocol"],
  "properties": {
    "minProtocol": { "type": "integer", "minimum": 1 },
    "maxProtocol": { "type": "integer", "minimum": 1 },
    "sessionId": { "type": "string" }
  },
  "additionalProperties": true
}`

const wsSendParamsSchema = `{
  "type": "object",
  "required": ["text"],
  "properties": {
    "text": { "type": "string", "minLength": 1 },
    "characterState": { "type": "string" }
  },
  "additionalProperties": true
}`

const wsEmptyParamsSchema = `{
  "type": "object",
  "additionalProperties": true
}`

const wsResumeParamsSchema = `{
  "type": "object",
  "required": ["sessionId"],
  "properties": {
    "sessionId": { "type": "string", "minLength": 1 }
  },
  "additionalProperties": true
}`

// eventFrame shapes one StreamEvent as an outbound event frame.
func eventFrame(ev models.StreamEvent) wsFrame {
	frame := wsFrame{Type: "event", Event: string(ev.Kind)}
	switch ev.Kind {
	case models.EventTextDelta:
		frame.Payload = map[string]any{"delta": ev.TextDelta}
	case models.EventToolStart:
		payload := map[string]any{
			"callId":    ev.ToolCallID,
			"name":      ev.ToolName,
			"arguments": ev.ToolArguments,
		}
		if ev.ThoughtSignature != "" {
			payload["thoughtSignature"] = ev.ThoughtSignature
		}
		frame.Payload = payload
	case models.EventToolEnd:
		frame.Payload = map[string]any{
			"callId": ev.ToolCallID,
			"name":   ev.ToolName,
			"result": ev.ToolResult,
		}
	case models.EventCompacting:
		payload := map[string]any{"phase": string(ev.CompactingPhase)}
		if ev.CompactingPhase == models.CompactingDone {
			payload["messagesCompacted"] = ev.MessagesCompacted
		}
		frame.Payload = payload
	case models.EventDone:
		payload := map[string]any{"message": ev.DoneMessage}
		if len(ev.DoneToolCalls) > 0 {
			payload["toolCalls"] = ev.DoneToolCalls
		}
		frame.Payload = payload
	case models.EventError:
		frame.Payload = map[string]any{"message": ev.ErrorMessage}
	}
	return frame
}
