// Package tool implements the registry of LLM-callable tools. Tools are
// registered explicitly once at process start; the registry is
// read-only afterwards and shared by every session.
package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/truvo-ai/voice-agent-go/pkg/ai/llm"
)

// ErrToolNotFound indicates an invocation of a name the registry never
// held. The model can only request tools it was given, so this is an
// integration defect, not a conversational condition to recover from.
var ErrToolNotFound = errors.New("tool not found")

// Handler executes a tool call and returns natural-language text that
// re-enters the conversation as the tool result.
type Handler func(ctx context.Context, args map[string]any) (string, error)

// Param describes one tool parameter in presentation order.
type Param struct {
	Name        string
	Type        string // JSON schema type: "string", "number", ...
	Required    bool
	Description string
}

// Descriptor binds a stable tool name to its parameter schema and
// handler. Immutable after registration.
type Descriptor struct {
	Name        string
	Description string
	Params      []Param
	Handler     Handler
}

// Registry maps tool names to descriptors, preserving registration
// order so tool presentation to the model is reproducible across runs.
type Registry struct {
	mu     sync.RWMutex
	byName map[string]*Descriptor
	order  []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{byName: make(map[string]*Descriptor)}
}

// Register adds a descriptor. Registration happens once at process
// start; a duplicate or malformed descriptor is a programming error and
// panics.
func (r *Registry) Register(d *Descriptor) {
	if d.Name == "" {
		panic("tool name cannot be empty")
	}
	if d.Handler == nil {
		panic(fmt.Sprintf("tool %s has no handler", d.Name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byName[d.Name]; exists {
		panic(fmt.Sprintf("tool %s already registered", d.Name))
	}
	r.byName[d.Name] = d
	r.order = append(r.order, d.Name)
}

// Resolve returns the registered descriptors for the requested names in
// registration order. Names the registry doesn't hold are dropped
// silently; a session asking for an unknown tool simply doesn't get it.
func (r *Registry) Resolve(names []string) []*Descriptor {
	requested := make(map[string]bool, len(names))
	for _, n := range names {
		requested[n] = true
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Descriptor
	for _, name := range r.order {
		if requested[name] {
			out = append(out, r.byName[name])
		}
	}
	return out
}

// Invoke dispatches a call to the named tool's handler.
func (r *Registry) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	r.mu.RLock()
	d, ok := r.byName[name]
	r.mu.RUnlock()

	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, name)
	}
	return d.Handler(ctx, args)
}

// Names returns all registered tool names in registration order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.order...)
}

// Definitions renders descriptors as the function definitions presented
// to the model.
func Definitions(descriptors []*Descriptor) []llm.FunctionDefinition {
	defs := make([]llm.FunctionDefinition, 0, len(descriptors))
	for _, d := range descriptors {
		props := make(map[string]any, len(d.Params))
		var required []string
		for _, p := range d.Params {
			props[p.Name] = map[string]any{
				"type":        p.Type,
				"description": p.Description,
			}
			if p.Required {
				required = append(required, p.Name)
			}
		}
		params := map[string]any{
			"type":       "object",
			"properties": props,
		}
		if len(required) > 0 {
			params["required"] = required
		}
		defs = append(defs, llm.FunctionDefinition{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  params,
		})
	}
	return defs
}
