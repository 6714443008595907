// Package search implements the tools the reasoning model may invoke and
// the registry that dispatches them by name.
package search

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/openai/openai-go/v2"
)

// Source is one provenance reference backing a generated answer.
type Source struct {
	Text string `json:"text"`
	Link string `json:"link,omitempty"`
}

// Tool is a named, schema-declared callable. Execute returns human-readable
// text for the model; errors are fed back to the model as text, not raised.
type Tool interface {
	Name() string
	Definition() openai.ChatCompletionToolUnionParam
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// sourceTracker is implemented by tools that record provenance for their
// most recent invocation.
type sourceTracker interface {
	LastSources() []Source
	ResetSources()
}

// Registry maps tool names to tools and aggregates their recorded sources.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Registering a duplicate name is an error.
func (r *Registry) Register(tool Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := tool.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %q already registered", name)
	}
	r.tools[name] = tool
	r.order = append(r.order, name)
	return nil
}

// Definitions returns the tool schemas in registration order.
func (r *Registry) Definitions() []openai.ChatCompletionToolUnionParam {
	r.mu.RLock()
	defer r.mu.RUnlock()

	defs := make([]openai.ChatCompletionToolUnionParam, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Definition())
	}
	return defs
}

// Execute dispatches an invocation by name. An unknown name is an explicit
// error rather than a silent no-op.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("unknown tool %q", name)
	}
	return tool.Execute(ctx, args)
}

// LastSources collects the sources recorded by all tools during the most
// recent invocations, in registration order.
func (r *Registry) LastSources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var sources []Source
	for _, name := range r.order {
		if tracker, ok := r.tools[name].(sourceTracker); ok {
			sources = append(sources, tracker.LastSources()...)
		}
	}
	return sources
}

// ResetSources clears every tool's recorded sources.
func (r *Registry) ResetSources() {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, tool := range r.tools {
		if tracker, ok := tool.(sourceTracker); ok {
			tracker.ResetSources()
		}
	}
}
