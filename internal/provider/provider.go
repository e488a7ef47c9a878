// Package provider implements the Gemini-family HTTP client: request
// construction, the non-streaming generateContent call, and the SSE
// streaming streamGenerateContent call decoded into GenEvents. Tool
// parameter schemas are passed through internal/schema before they reach
// the wire, so everything sent obeys the provider's restricted dialect.
package provider

import (
	"context"
	"net/http"
	"time"

	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/pkg/models"
)

// DefaultBaseURL is the provider API root.
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultRequestTimeout bounds a single request, streaming or not.
const DefaultRequestTimeout = 120 * time.Second

// ToolMode selects the provider's function-calling mode.
type ToolMode string

const (
	ToolModeAuto ToolMode = "AUTO"
	ToolModeAny  ToolMode = "ANY"
	ToolModeNone ToolMode = "NONE"
)

// Request describes one model call.
type Request struct {
	APIKey            string
	Model             string
	Contents          []models.ProviderContent
	SystemInstruction string
	Tools             []models.ToolDefinition
	ToolConfig        ToolMode
	MaxOutputTokens   int
	Temperature       *float64
	ThinkingBudget    *int
}

// GenEventKind tags a GenEvent variant.
type GenEventKind string

const (
	GenTextDelta    GenEventKind = "text_delta"
	GenFunctionCall GenEventKind = "function_call"
	GenDone         GenEventKind = "done"
)

// FunctionCall is the model's request to invoke a named capability, as it
// arrives on the wire (no call ID yet; the orchestrator assigns one).
type FunctionCall struct {
	Name             string
	Args             map[string]any
	ThoughtSignature string
}

// GenEvent is one element of the lazy event sequence a streaming call
// produces.
type GenEvent struct {
	Kind      GenEventKind
	TextDelta string
	Call      *FunctionCall
	Usage     *models.Usage
}

// Response is a complete non-streaming result.
type Response struct {
	Text  string
	Calls []FunctionCall
	Usage *models.Usage
}

// Generator is the non-streaming surface, implemented by Client and by
// test fakes. The compactor summarizes through it.
type Generator interface {
	Generate(ctx context.Context, req Request) (*Response, error)
}

// Streamer is the streaming surface, implemented by Client and by test
// fakes. The orchestrator runs model turns through it; emit is called for
// every decoded event in arrival order, and a non-nil return from emit
// stops the read loop.
type Streamer interface {
	Stream(ctx context.Context, req Request, emit func(GenEvent) error) error
}

// Client talks to the provider over HTTP. Safe for concurrent use; the
// underlying *http.Client multiplexes requests.
type Client struct {
	httpClient *http.Client
	baseURL    string
	timeout    time.Duration
	logger     *observability.Logger
	metrics    *observability.Metrics
}

// Options configures a Client. Zero values select the defaults above.
type Options struct {
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
	Logger     *observability.Logger
	Metrics    *observability.Metrics
}

// NewClient builds a Client.
func NewClient(opts Options) *Client {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultRequestTimeout
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = &http.Client{}
	}
	if opts.Logger == nil {
		opts.Logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Client{
		httpClient: opts.HTTPClient,
		baseURL:    opts.BaseURL,
		timeout:    opts.Timeout,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
	}
}
