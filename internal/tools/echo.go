package tools

import (
	"context"
	"encoding/json"

	"github.com/agentrt/agentrt/pkg/models"
)

// EchoTool is the one built-in capability: it returns its "text" argument
// as a JSON payload. It exists to exercise the registry, wrappers, and
// compaction path in examples and tests; real capabilities are plugged in
// by the embedding process.
func EchoTool() models.ToolDefinition {
	return models.ToolDefinition{
		Name:        "echo",
		Description: "Returns the provided text unchanged.",
		Parameters: models.Schema{
			"type": "object",
			"properties": map[string]any{
				"text": map[string]any{
					"type":        "string",
					"description": "Text to echo back.",
				},
			},
			"required": []any{"text"},
		},
		Execute: func(ctx context.Context, callID string, args map[string]any) models.ToolResult {
			text, _ := args["text"].(string)
			payload, err := json.Marshal(map[string]string{"text": text})
			if err != nil {
				return models.ErrorResult(callID, "marshal echo payload")
			}
			return models.TextResult(callID, string(payload))
		},
	}
}
