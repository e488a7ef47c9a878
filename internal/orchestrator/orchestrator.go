// Package orchestrator runs the bounded tool-call iteration loop at the
// center of a generation: stream a model turn, execute any requested tools
// concurrently, feed compacted results back, repeat until the model stops
// calling tools or the iteration budget runs out, emitting StreamEvents
// along the way.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/agentrt/agentrt/internal/backoff"
	"github.com/agentrt/agentrt/internal/classify"
	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/provider"
	"github.com/agentrt/agentrt/internal/tools"
	"github.com/agentrt/agentrt/pkg/models"
)

const (
	// DefaultMaxIterations is the hard cap on model/tool rounds.
	DefaultMaxIterations = 8
	// DefaultSoftLimit is the iteration at which the tool-budget prompt
	// starts nudging the model toward synthesis.
	DefaultSoftLimit = 6
	// DefaultMaxAttempts bounds provider retries per model turn.
	DefaultMaxAttempts = 3

	// eventBuffer sizes the event channel a run writes into.
	eventBuffer = 64

	// CancelledMessage is the error event payload for a tripped generation.
	CancelledMessage = "cancelled"
)

// Config tunes a run; zero values select the defaults above.
type Config struct {
	MaxIterations int
	SoftLimit     int
	MaxAttempts   int
}

// Orchestrator drives generations. Safe for concurrent runs; per-run state
// lives on the stack of each Run call.
type Orchestrator struct {
	streamer  provider.Streamer
	registry  *tools.Registry
	executor  *tools.Executor
	compactor *tools.ResultCompactor
	config    Config
	logger    *observability.Logger
	metrics   *observability.Metrics
	now       func() time.Time
}

// New builds an Orchestrator.
func New(streamer provider.Streamer, registry *tools.Registry, executor *tools.Executor, compactor *tools.ResultCompactor, config Config, logger *observability.Logger, metrics *observability.Metrics) *Orchestrator {
	if config.MaxIterations <= 0 {
		config.MaxIterations = DefaultMaxIterations
	}
	if config.SoftLimit <= 0 {
		config.SoftLimit = DefaultSoftLimit
	}
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = DefaultMaxAttempts
	}
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Orchestrator{
		streamer:  streamer,
		registry:  registry,
		executor:  executor,
		compactor: compactor,
		config:    config,
		logger:    logger,
		metrics:   metrics,
		now:       time.Now,
	}
}

// RunParams describes one generation.
type RunParams struct {
	APIKey            string
	Model             string
	ThinkingBudget    *int
	InitialContents   []models.ProviderContent
	SystemInstruction string
	AgentID           string
	EnableTools       bool
}

// Run starts a generation and returns its event channel. The channel is
// closed after the terminal event (done or error); the caller must drain
// it. ctx is the generation's cancellation context; tripping it stops the
// provider read loop and all in-flight tools, and the run terminates with
// an error{"cancelled"} event.
func (o *Orchestrator) Run(ctx context.Context, params RunParams) <-chan models.StreamEvent {
	out := make(chan models.StreamEvent, eventBuffer)
	go func() {
		defer close(out)
		o.run(ctx, params, out)
	}()
	return out
}

// runState is the mutable state of one generation.
type runState struct {
	contents     []models.ProviderContent
	allToolCalls []models.ToolCall
	fullContent  strings.Builder
	metrics      *toolMetrics
}

func (o *Orchestrator) run(ctx context.Context, params RunParams, out chan<- models.StreamEvent) {
	state := &runState{
		contents: append([]models.ProviderContent{}, params.InitialContents...),
		metrics:  newToolMetrics(),
	}

	for iteration := 0; ; iteration++ {
		if ctx.Err() != nil {
			o.finishCancelled(out)
			return
		}

		if iteration >= o.config.MaxIterations {
			if state.fullContent.Len() == 0 && len(state.allToolCalls) > 0 {
				o.finalSynthesis(ctx, params, state, out)
			}
			o.finishDone(out, state, iteration)
			return
		}

		systemInstruction := params.SystemInstruction
		if iteration >= o.config.SoftLimit {
			systemInstruction += o.budgetBlock(o.config.MaxIterations-iteration, state.metrics)
		}

		pending, err := o.modelTurn(ctx, params, state, systemInstruction, out)
		if err != nil {
			policy := provider.ClassifyErr(err)
			switch {
			case ctx.Err() != nil:
				o.finishCancelled(out)
			case policy.Reason == classify.ReasonContextOverflow:
				// Pre-generation compaction should have prevented this;
				// terminate with whatever text accumulated.
				o.logger.Warn(ctx, "context overflow mid-generation, terminating", "iteration", iteration)
				o.finishDone(out, state, iteration)
			default:
				o.countOutcome("error")
				out <- models.ErrorEvent(err.Error())
			}
			return
		}

		if len(pending) == 0 {
			o.finishDone(out, state, iteration+1)
			return
		}

		if err := o.toolTurn(ctx, params, state, pending, iteration, out); err != nil {
			o.finishCancelled(out)
			return
		}
	}
}

// modelTurn streams one provider call, forwarding text deltas and
// buffering function calls, with classified retries for transient errors
// that occur before any event was emitted.
func (o *Orchestrator) modelTurn(ctx context.Context, params RunParams, state *runState, systemInstruction string, out chan<- models.StreamEvent) ([]models.ToolCall, error) {
	req := provider.Request{
		APIKey:            params.APIKey,
		Model:             params.Model,
		Contents:          state.contents,
		SystemInstruction: systemInstruction,
		ThinkingBudget:    params.ThinkingBudget,
	}
	if params.EnableTools && o.registry != nil && o.registry.Len() > 0 {
		req.Tools = o.registry.Definitions()
		req.ToolConfig = provider.ToolModeAuto
	}

	var pending []models.ToolCall
	var lastErr error

	for attempt := 1; attempt <= o.config.MaxAttempts; attempt++ {
		emitted := false
		err := o.streamer.Stream(ctx, req, func(event provider.GenEvent) error {
			switch event.Kind {
			case provider.GenTextDelta:
				emitted = true
				state.fullContent.WriteString(event.TextDelta)
				out <- models.TextDeltaEvent(event.TextDelta)
			case provider.GenFunctionCall:
				emitted = true
				call := models.ToolCall{
					ID:               uuid.NewString(),
					Name:             event.Call.Name,
					Arguments:        event.Call.Args,
					ThoughtSignature: event.Call.ThoughtSignature,
				}
				pending = append(pending, call)
				out <- models.ToolStartEvent(call)
			}
			return nil
		})
		if err == nil {
			return pending, nil
		}
		lastErr = err

		if ctx.Err() != nil || emitted {
			// Never retry after events reached the client; a replayed turn
			// would duplicate deltas and tool_starts.
			return nil, err
		}

		policy := provider.ClassifyErr(err)
		if !policy.Retryable || attempt == o.config.MaxAttempts {
			return nil, err
		}

		o.logger.Warn(ctx, "provider call failed, retrying",
			"reason", string(policy.Reason), "attempt", attempt)
		if sleepErr := backoff.Sleep(ctx, backoff.ForReason(policy.RetryDelay), attempt); sleepErr != nil {
			return nil, err
		}
	}
	return nil, lastErr
}

// toolTurn appends the model turn, runs the pending calls concurrently,
// emits tool_end events in call order, and appends the compacted results
// as the next user turn.
func (o *Orchestrator) toolTurn(ctx context.Context, params RunParams, state *runState, pending []models.ToolCall, iteration int, out chan<- models.StreamEvent) error {
	callParts := make([]models.Part, 0, len(pending))
	for _, call := range pending {
		callParts = append(callParts, models.FunctionCallPart{
			Name:             call.Name,
			Args:             call.Arguments,
			ThoughtSignature: call.ThoughtSignature,
		})
	}
	state.contents = append(state.contents, models.ProviderContent{
		Role:  models.ContentRoleModel,
		Parts: callParts,
	})

	results := o.executor.ExecuteAll(ctx, pending)

	responseParts := make([]models.Part, 0, len(results))
	for _, res := range results {
		out <- models.ToolEndEvent(res.Call.ID, res.Call.Name, res.Result)
		state.allToolCalls = append(state.allToolCalls, res.Call)
		state.metrics.record(res.Call.Name, res.Latency)

		responseParts = append(responseParts, models.FunctionResponsePart{
			Name:     res.Call.Name,
			Response: o.responsePayload(res, params.AgentID, iteration),
		})
	}
	state.contents = append(state.contents, models.ProviderContent{
		Role:  models.ContentRoleUser,
		Parts: responseParts,
	})

	return ctx.Err()
}

// responsePayload compacts one result and shapes it for the wire's
// functionResponse.response object.
func (o *Orchestrator) responsePayload(res tools.ExecResult, agentID string, iteration int) map[string]any {
	if res.Result.Error != "" {
		return map[string]any{"error": res.Result.Error}
	}

	text := res.Result.Text()
	if o.compactor != nil {
		text = o.compactor.Compact(res.Call.Name, text, agentID, iteration)
	}

	var structured map[string]any
	if err := json.Unmarshal([]byte(text), &structured); err == nil && structured != nil {
		return structured
	}
	return map[string]any{"output": text}
}

// finalSynthesis streams one last provider call with tools disabled so a
// generation that spent its whole budget on tools still says something.
func (o *Orchestrator) finalSynthesis(ctx context.Context, params RunParams, state *runState, out chan<- models.StreamEvent) {
	instruction := params.SystemInstruction + o.budgetBlock(0, state.metrics) +
		"\n\nNo tool rounds remain. Synthesize a final answer for the user from the tool results above; do not request more tools."

	err := o.streamer.Stream(ctx, provider.Request{
		APIKey:            params.APIKey,
		Model:             params.Model,
		Contents:          state.contents,
		SystemInstruction: instruction,
		ThinkingBudget:    params.ThinkingBudget,
	}, func(event provider.GenEvent) error {
		if event.Kind == provider.GenTextDelta {
			state.fullContent.WriteString(event.TextDelta)
			out <- models.TextDeltaEvent(event.TextDelta)
		}
		return nil
	})
	if err != nil {
		o.logger.Warn(ctx, "final synthesis failed", "error", err)
	}
}

// budgetBlock renders the tool-budget prompt augmentation.
func (o *Orchestrator) budgetBlock(remaining int, metrics *toolMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n\nTool Budget: %d rounds remaining.", remaining)
	if remaining == 0 {
		b.WriteString(" Do not call tools.")
	} else {
		b.WriteString(" Prefer synthesizing an answer over further tool calls.")
	}
	if !metrics.empty() {
		b.WriteString("\nTool usage so far: ")
		b.WriteString(metrics.summary())
	}
	return b.String()
}

func (o *Orchestrator) finishDone(out chan<- models.StreamEvent, state *runState, iterations int) {
	msg := models.ChatMessage{
		ID:        uuid.NewString(),
		Role:      models.RoleAssistant,
		Content:   stripThinking(state.fullContent.String()),
		Timestamp: o.now().UnixMilli(),
	}
	var calls []models.ToolCall
	if len(state.allToolCalls) > 0 {
		calls = state.allToolCalls
	}
	out <- models.DoneEvent(msg, calls)

	o.countOutcome("done")
	if o.metrics != nil {
		o.metrics.GenerationIterations.Observe(float64(iterations))
	}
}

func (o *Orchestrator) finishCancelled(out chan<- models.StreamEvent) {
	o.countOutcome("cancelled")
	out <- models.ErrorEvent(CancelledMessage)
}

func (o *Orchestrator) countOutcome(outcome string) {
	if o.metrics != nil {
		o.metrics.GenerationsStarted.WithLabelValues(outcome).Inc()
	}
}
