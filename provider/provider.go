package provider

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// LanguageModel is the single network-facing boundary of the engine.
type LanguageModel interface {
	Provider() string
	ModelID() string
	DoStream(ctx context.Context, opts CallOptions) (*StreamResult, error)
}

// CallOptions is the fully assembled outbound invocation.
type CallOptions struct {
	Mode       Mode
	Tools      []ToolDefinition
	ToolChoice *ToolChoice

	Prompt []Message

	MaxTokens        *int
	Temperature      *float64
	TopP             *float64
	TopK             *int
	PresencePenalty  *float64
	FrequencyPenalty *float64
	Stop             []string
	Seed             *int64

	Headers         map[string]string
	ProviderOptions map[string]any
}

type StreamResult struct {
	Stream   PartReader
	Warnings []Warning

	// Request optionally carries the raw request body for diagnostics.
	Request []byte
}

// Factory builds a model for a model id of one provider.
type Factory func(modelID string) (LanguageModel, error)

type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewRegistry() *Registry {
	return &Registry{factories: map[string]Factory{}}
}

func (r *Registry) Register(name string, f Factory) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if f == nil {
		return fmt.Errorf("provider %q factory is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[name]; exists {
		return fmt.Errorf("provider %q already registered", name)
	}

	r.factories[name] = f
	return nil
}

func (r *Registry) Get(name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	return f, ok
}

// Resolve looks up a model by a "provider:model" reference.
func (r *Registry) Resolve(ref string) (LanguageModel, error) {
	name, modelID, ok := strings.Cut(ref, ":")
	if !ok || name == "" || modelID == "" {
		return nil, fmt.Errorf("invalid model reference %q (want provider:model)", ref)
	}
	f, ok := r.Get(name)
	if !ok {
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	return f(modelID)
}

var defaultRegistry = NewRegistry()

func Register(name string, f Factory) error {
	return defaultRegistry.Register(name, f)
}

func Get(name string) (Factory, bool) {
	return defaultRegistry.Get(name)
}

func Resolve(ref string) (LanguageModel, error) {
	return defaultRegistry.Resolve(ref)
}
