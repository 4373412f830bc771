// Package agent implements the tool-calling conversation loop.
//
// A Registry maps tool names to their schema definitions and Go handlers.
// The Agent drives the chat completion loop: it sends the conversation,
// executes any tool calls the model requests, feeds the results back, and
// repeats until the model answers in plain text or the round ceiling is
// hit.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/pmfonseca/wedding-assistant/internal/llm"
)

// ErrToolNotFound indicates a model-requested tool has no handler.
var ErrToolNotFound = errors.New("agent: tool not found")

// Handler executes one tool invocation. Arguments arrive as the raw JSON
// object the model produced; the returned value is JSON-encoded into the
// tool message.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

type registeredTool struct {
	def     llm.Tool
	handler Handler
}

// Registry holds the tools available to the agent.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]registeredTool
	order []string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]registeredTool)}
}

// Register adds a tool. Registering an existing name overwrites the
// previous handler.
func (r *Registry) Register(def llm.Tool, h Handler) {
	name := def.Function.Name
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[name]; exists {
		log.Warn().Str("tool", name).Msg("tool already registered, overwriting")
	} else {
		r.order = append(r.order, name)
	}
	r.tools[name] = registeredTool{def: def, handler: h}
}

// Unregister removes a tool by name and reports whether it was registered.
// The registration order of the remaining tools is preserved.
func (r *Registry) Unregister(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[name]; !ok {
		return false
	}
	delete(r.tools, name)
	for i, n := range r.order {
		if n == name {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return true
}

// Definitions returns the tool schemas in registration order.
func (r *Registry) Definitions() []llm.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]llm.Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name].def)
	}
	return out
}

// Names returns the registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Execute runs the named tool with the given raw arguments.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (any, error) {
	r.mu.RLock()
	tool, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return tool.handler(ctx, args)
}
