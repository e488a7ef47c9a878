package models

// ContentRole is the role on a ProviderContent entry, distinct from Role
// (ChatMessage) because the provider's vocabulary is user|model, not
// user|assistant|system.
type ContentRole string

const (
	ContentRoleUser  ContentRole = "user"
	ContentRoleModel ContentRole = "model"
)

// Part is a typed fragment inside a ProviderContent entry: text, a function
// call, or a function response. It's a closed tagged variant (unexported
// marker method) rather than an open interface; the wire format only ever
// produces these three shapes.
type Part interface {
	isPart()
}

// TextPart carries plain text.
type TextPart struct {
	Text string
}

func (TextPart) isPart() {}

// FunctionCallPart is the model's request to invoke a tool.
type FunctionCallPart struct {
	Name             string
	Args             map[string]any
	ThoughtSignature string
}

func (FunctionCallPart) isPart() {}

// FunctionResponsePart carries a tool's result back to the model.
type FunctionResponsePart struct {
	Name     string
	Response map[string]any
}

func (FunctionResponsePart) isPart() {}

// ProviderContent is one element of the provider's message array.
type ProviderContent struct {
	Role  ContentRole
	Parts []Part
}

// AppendParts returns a copy of c with extra parts appended, used by the
// message adapter when merging consecutive same-role turns.
func (c ProviderContent) AppendParts(parts ...Part) ProviderContent {
	merged := make([]Part, 0, len(c.Parts)+len(parts))
	merged = append(merged, c.Parts...)
	merged = append(merged, parts...)
	c.Parts = merged
	return c
}

// Usage mirrors the provider's terminal usageMetadata.
type Usage struct {
	PromptTokens     int `json:"promptTokenCount"`
	CandidatesTokens int `json:"candidatesTokenCount"`
	TotalTokens      int `json:"totalTokenCount"`
}
