// Package tools manages the capability registry and everything between the
// model's function calls and the capabilities behind them: lookup,
// timeout/abort wrappers, bounded concurrent execution, and result
// compaction before results rejoin the provider conversation.
package tools

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"sync"

	"github.com/agentrt/agentrt/internal/observability"
	"github.com/agentrt/agentrt/internal/schema"
	"github.com/agentrt/agentrt/pkg/models"
)

// nameRe is the identifier shape the capability contract requires.
var nameRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Registry manages available tools with thread-safe registration and
// lookup. Registration happens at startup; after that the registry is
// read-only and safe for concurrent lookups.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]models.ToolDefinition
	order  []string
	logger *observability.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *observability.Logger) *Registry {
	if logger == nil {
		logger = observability.NewLogger(observability.LogConfig{})
	}
	return &Registry{
		tools:  make(map[string]models.ToolDefinition),
		logger: logger,
	}
}

// Register adds a tool. The name must match the capability contract's
// identifier shape; a tool with the same name replaces the previous one.
// The parameter schema is run through the meta-schema validator as a
// diagnostic gate: a failure is logged but does not reject the tool, since
// the sanitizer downstream never errors.
func (r *Registry) Register(tool models.ToolDefinition) error {
	if !nameRe.MatchString(tool.Name) {
		return fmt.Errorf("tools: invalid tool name %q", tool.Name)
	}
	if tool.Execute == nil {
		return fmt.Errorf("tools: tool %q has no execute function", tool.Name)
	}

	if tool.Parameters != nil {
		if err := schema.Validate(tool.Parameters); err != nil {
			r.logger.Warn(context.Background(), "tool parameter schema failed validation",
				"tool", tool.Name, "error", err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[tool.Name]; !exists {
		r.order = append(r.order, tool.Name)
	}
	r.tools[tool.Name] = tool
	return nil
}

// Lookup returns a tool by name.
func (r *Registry) Lookup(name string) (models.ToolDefinition, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tool, ok := r.tools[name]
	return tool, ok
}

// Has reports whether a tool with the given name is registered. The
// system-prompt builder gates sections on this.
func (r *Registry) Has(name string) bool {
	_, ok := r.Lookup(name)
	return ok
}

// Definitions returns all registered tools in registration order.
func (r *Registry) Definitions() []models.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]models.ToolDefinition, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns registered tool names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}
