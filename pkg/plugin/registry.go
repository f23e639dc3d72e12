// Package plugin is the registry of capability providers (STT, TTS,
// LLM, VAD). Providers register explicitly at process start; the
// pipeline builder looks them up by kind and name.
package plugin

import (
	"fmt"
	"sync"
)

// Provider kinds.
const (
	KindSTT = "stt"
	KindTTS = "tts"
	KindLLM = "llm"
	KindVAD = "vad"
)

// Factory creates a provider instance from configuration. The result is
// cast by the caller to the interface matching the registered kind.
type Factory func(cfg map[string]any) (any, error)

// Entry is one registered provider.
type Entry struct {
	Kind    string
	Name    string
	Factory Factory
}

// Registry maps kind/name pairs to factories. Read-only after startup.
type Registry struct {
	mu      sync.RWMutex
	entries map[string]map[string]*Entry
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{entries: make(map[string]map[string]*Entry)}
}

var global = NewRegistry()

// Global returns the process-wide registry.
func Global() *Registry {
	return global
}

// Register adds a provider to the process-wide registry.
func Register(kind, name string, factory Factory) {
	global.Register(kind, name, factory)
}

// Register adds a provider. Duplicate or malformed registrations are
// programming errors and panic; this runs only at process start.
func (r *Registry) Register(kind, name string, factory Factory) {
	if kind == "" || name == "" {
		panic("plugin kind and name are required")
	}
	if factory == nil {
		panic(fmt.Sprintf("plugin %s/%s has nil factory", kind, name))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.entries[kind] == nil {
		r.entries[kind] = make(map[string]*Entry)
	}
	if _, exists := r.entries[kind][name]; exists {
		panic(fmt.Sprintf("plugin %s/%s already registered", kind, name))
	}
	r.entries[kind][name] = &Entry{Kind: kind, Name: name, Factory: factory}
}

// Create instantiates the named provider.
func (r *Registry) Create(kind, name string, cfg map[string]any) (any, error) {
	r.mu.RLock()
	entry, ok := r.entries[kind][name]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("no %s provider named %q registered", kind, name)
	}
	return entry.Factory(cfg)
}

// Has reports whether the kind/name pair is registered.
func (r *Registry) Has(kind, name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.entries[kind][name]
	return ok
}
