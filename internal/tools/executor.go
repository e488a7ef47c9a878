package tools

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/pkg/models"
)

// Error strings carried on ToolResult for the two wrapper-produced
// failures. They are part of the event contract the client sees.
const (
	ErrStringTimeout   = "timeout"
	ErrStringCancelled = "cancelled"
	ErrStringNotFound  = "tool not found"
)

// ExecConfig configures tool execution behavior.
type ExecConfig struct {
	// Concurrency is the maximum number of concurrent tool executions per
	// iteration. Default: 4.
	Concurrency int

	// PerToolTimeout bounds individual tool executions. Default: 30s.
	PerToolTimeout time.Duration
}

// DefaultExecConfig returns the defaults above.
func DefaultExecConfig() ExecConfig {
	return ExecConfig{
		Concurrency:    4,
		PerToolTimeout: 30 * time.Second,
	}
}

// Executor runs tool calls through the timeout and abort wrappers with a
// semaphore-bounded fan-out. It never returns a Go error for a tool
// failure: every failure becomes an error-carrying ToolResult fed back to
// the model.
type Executor struct {
	registry *Registry
	config   ExecConfig
	metrics  *observability.Metrics
}

// NewExecutor builds an Executor; zero config fields get defaults.
func NewExecutor(registry *Registry, config ExecConfig, metrics *observability.Metrics) *Executor {
	if config.Concurrency <= 0 {
		config.Concurrency = 4
	}
	if config.PerToolTimeout <= 0 {
		config.PerToolTimeout = 30 * time.Second
	}
	return &Executor{registry: registry, config: config, metrics: metrics}
}

// ExecResult is one completed call with timing.
type ExecResult struct {
	Call    models.ToolCall
	Result  models.ToolResult
	Latency time.Duration
}

// ExecuteAll runs the calls concurrently, bounded by the configured
// fan-out, and returns results in call order (not completion order) so
// downstream event emission stays stable. ctx is the generation's
// cancellation context; tripping it aborts every in-flight call.
func (e *Executor) ExecuteAll(ctx context.Context, calls []models.ToolCall) []ExecResult {
	results := make([]ExecResult, len(calls))

	sem := make(chan struct{}, e.config.Concurrency)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(idx int, call models.ToolCall) {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				results[idx] = ExecResult{
					Call:   call,
					Result: models.ErrorResult(call.ID, ErrStringCancelled),
				}
				return
			}

			started := time.Now()
			result := e.ExecuteOne(ctx, call)
			latency := time.Since(started)

			results[idx] = ExecResult{Call: call, Result: result, Latency: latency}
			e.count(call.Name, result, latency)
		}(i, call)
	}

	wg.Wait()
	return results
}

// ExecuteOne runs a single call through lookup, the timeout wrapper, and
// the abort wrapper.
func (e *Executor) ExecuteOne(ctx context.Context, call models.ToolCall) models.ToolResult {
	tool, ok := e.registry.Lookup(call.Name)
	if !ok {
		return models.ErrorResult(call.ID, ErrStringNotFound+": "+call.Name)
	}

	toolCtx, cancel := context.WithTimeout(ctx, e.config.PerToolTimeout)
	defer cancel()

	type outcome struct {
		result models.ToolResult
	}
	done := make(chan outcome, 1)

	go func() {
		defer func() {
			// A panicking tool becomes an error result, never a crashed
			// generation.
			if r := recover(); r != nil {
				done <- outcome{result: models.ErrorResult(call.ID, "tool panicked")}
			}
		}()
		done <- outcome{result: tool.Execute(toolCtx, call.ID, call.Arguments)}
	}()

	select {
	case <-toolCtx.Done():
		if errors.Is(toolCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return models.ErrorResult(call.ID, ErrStringTimeout)
		}
		return models.ErrorResult(call.ID, ErrStringCancelled)
	case out := <-done:
		if out.result.ToolCallID == "" {
			out.result.ToolCallID = call.ID
		}
		return out.result
	}
}

func (e *Executor) count(name string, result models.ToolResult, latency time.Duration) {
	if e.metrics == nil {
		return
	}
	status := "success"
	switch result.Error {
	case "":
	case ErrStringTimeout:
		status = "timeout"
	case ErrStringCancelled:
		status = "cancelled"
	default:
		status = "error"
	}
	e.metrics.ToolExecutionCounter.WithLabelValues(name, status).Inc()
	e.metrics.ToolExecutionDuration.WithLabelValues(name).Observe(latency.Seconds())
}
