package provider

import (
	"github.com/agentrt/agentrt/internal/schema"
	"github.com/agentrt/agentrt/pkg/models"
)

// Wire structs mirror the provider request schema exactly; everything else
// in this package converts to and from them.

type wireRequest struct {
	Contents          []wireContent         `json:"contents"`
	SystemInstruction *wireContent          `json:"systemInstruction,omitempty"`
	Tools             []wireTool            `json:"tools,omitempty"`
	ToolConfig        *wireToolConfig       `json:"toolConfig,omitempty"`
	GenerationConfig  *wireGenerationConfig `json:"generationConfig,omitempty"`
}

type wireContent struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text             string                `json:"text,omitempty"`
	FunctionCall     *wireFunctionCall     `json:"functionCall,omitempty"`
	FunctionResponse *wireFunctionResponse `json:"functionResponse,omitempty"`
	ThoughtSignature string                `json:"thoughtSignature,omitempty"`
}

type wireFunctionCall struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args"`
}

type wireFunctionResponse struct {
	Name     string         `json:"name"`
	Response map[string]any `json:"response"`
}

type wireTool struct {
	FunctionDeclarations []wireFunctionDeclaration `json:"functionDeclarations"`
}

type wireFunctionDeclaration struct {
	Name        string        `json:"name"`
	Description string        `json:"description,omitempty"`
	Parameters  models.Schema `json:"parameters,omitempty"`
}

type wireToolConfig struct {
	FunctionCallingConfig wireFunctionCallingConfig `json:"functionCallingConfig"`
}

type wireFunctionCallingConfig struct {
	Mode string `json:"mode"`
}

type wireGenerationConfig struct {
	Temperature     *float64            `json:"temperature,omitempty"`
	MaxOutputTokens int                 `json:"maxOutputTokens,omitempty"`
	ThinkingConfig  *wireThinkingConfig `json:"thinkingConfig,omitempty"`
}

type wireThinkingConfig struct {
	ThinkingBudget int `json:"thinkingBudget"`
}

type wireResponse struct {
	Candidates    []wireCandidate `json:"candidates"`
	UsageMetadata *models.Usage   `json:"usageMetadata,omitempty"`
}

type wireCandidate struct {
	Content wireContent `json:"content"`
}

// buildWireRequest converts a Request to the provider wire schema. Tool
// parameter schemas go through the sanitizer here: this is the single
// choke point guaranteeing nothing non-dialect reaches the provider.
func buildWireRequest(req Request) wireRequest {
	out := wireRequest{
		Contents: make([]wireContent, 0, len(req.Contents)),
	}

	for _, content := range req.Contents {
		out.Contents = append(out.Contents, toWireContent(content))
	}

	if req.SystemInstruction != "" {
		out.SystemInstruction = &wireContent{
			Parts: []wirePart{{Text: req.SystemInstruction}},
		}
	}

	if len(req.Tools) > 0 {
		decls := make([]wireFunctionDeclaration, 0, len(req.Tools))
		for _, tool := range req.Tools {
			decls = append(decls, wireFunctionDeclaration{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema.Sanitize(tool.Parameters),
			})
		}
		out.Tools = []wireTool{{FunctionDeclarations: decls}}

		mode := req.ToolConfig
		if mode == "" {
			mode = ToolModeAuto
		}
		out.ToolConfig = &wireToolConfig{
			FunctionCallingConfig: wireFunctionCallingConfig{Mode: string(mode)},
		}
	}

	if req.Temperature != nil || req.MaxOutputTokens > 0 || req.ThinkingBudget != nil {
		gen := &wireGenerationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: req.MaxOutputTokens,
		}
		if req.ThinkingBudget != nil {
			gen.ThinkingConfig = &wireThinkingConfig{ThinkingBudget: *req.ThinkingBudget}
		}
		out.GenerationConfig = gen
	}

	return out
}

func toWireContent(content models.ProviderContent) wireContent {
	out := wireContent{
		Role:  string(content.Role),
		Parts: make([]wirePart, 0, len(content.Parts)),
	}
	for _, part := range content.Parts {
		switch p := part.(type) {
		case models.TextPart:
			out.Parts = append(out.Parts, wirePart{Text: p.Text})
		case models.FunctionCallPart:
			out.Parts = append(out.Parts, wirePart{
				FunctionCall:     &wireFunctionCall{Name: p.Name, Args: p.Args},
				ThoughtSignature: p.ThoughtSignature,
			})
		case models.FunctionResponsePart:
			out.Parts = append(out.Parts, wirePart{
				FunctionResponse: &wireFunctionResponse{Name: p.Name, Response: p.Response},
			})
		}
	}
	return out
}

// projectParts maps one decoded response body to GenEvents, in part order.
// Unknown part shapes are skipped rather than failing the whole chunk.
func projectParts(resp wireResponse) []GenEvent {
	if len(resp.Candidates) == 0 {
		return nil
	}
	var events []GenEvent
	for _, part := range resp.Candidates[0].Content.Parts {
		switch {
		case part.FunctionCall != nil:
			events = append(events, GenEvent{
				Kind: GenFunctionCall,
				Call: &FunctionCall{
					Name:             part.FunctionCall.Name,
					Args:             part.FunctionCall.Args,
					ThoughtSignature: part.ThoughtSignature,
				},
			})
		case part.Text != "":
			events = append(events, GenEvent{Kind: GenTextDelta, TextDelta: part.Text})
		}
	}
	return events
}
