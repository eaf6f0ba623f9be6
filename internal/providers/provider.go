package providers

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"

	"imageservice/internal/domain"
	"imageservice/internal/infra"
)

// Descriptor identifies a provider and the models it accepts.
type Descriptor struct {
	Name   string   `json:"name"`
	Models []string `json:"models"`
}

// Supports reports whether model is in the descriptor's model list.
func (d Descriptor) Supports(model string) bool {
	return slices.Contains(d.Models, model)
}

// RequestSummary carries the request facts the result record needs. Either
// Width/Height or Size is set.
type RequestSummary struct {
	Prompt         string
	NegativePrompt *string
	Width          int
	Height         int
	Size           string
}

// NormalizedRequest is a vendor-ready request produced by Normalize.
type NormalizedRequest struct {
	Provider string
	Model    string
	// Endpoint is the vendor path the body is posted to.
	Endpoint string
	// Body marshals to the exact JSON the vendor expects.
	Body    any
	Summary RequestSummary
	// Ignored lists caller keys that were not forwarded.
	Ignored []string
}

// Provider is the capability set every vendor integration implements.
// Normalize is pure; Submit and Status perform network I/O bound to ctx.
type Provider interface {
	Descriptor() Descriptor
	Normalize(model string, params map[string]any) (*NormalizedRequest, error)
	Submit(ctx context.Context, req *NormalizedRequest) (*domain.RemoteJob, error)
	Status(ctx context.Context, job *domain.RemoteJob) (*domain.StatusReport, error)
}

// Factory builds a provider for a descriptor.
type Factory func(Descriptor) Provider

// Registry maps provider names to constructed providers. It is populated once
// at startup and read concurrently afterwards.
type Registry struct {
	mu        sync.RWMutex
	providers map[string]Provider
	logger    *infra.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *infra.Logger) *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		logger:    infra.OrNop(logger),
	}
}

// Register constructs a provider through factory and stores it under
// desc.Name. A second registration under the same name replaces the first.
func (r *Registry) Register(desc Descriptor, factory Factory) error {
	if desc.Name == "" {
		return fmt.Errorf("providers: descriptor name is required")
	}
	if factory == nil {
		return fmt.Errorf("providers: factory for %q is nil", desc.Name)
	}
	desc.Models = slices.Clone(desc.Models)
	p := factory(desc)
	if p == nil {
		return fmt.Errorf("providers: factory for %q returned nil", desc.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.providers[desc.Name]; exists {
		r.logger.Warn().Str("provider", desc.Name).Msg("provider re-registered, replacing previous entry")
	}
	r.providers[desc.Name] = p
	return nil
}

// Resolve returns the provider registered under name.
func (r *Registry) Resolve(name string) (Provider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.providers[name]
	if !ok {
		return nil, &domain.Error{Kind: domain.ErrProviderNotFound, Key: name}
	}
	return p, nil
}

// Names returns the sorted names of all registered providers.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Descriptors returns copies of every registered descriptor, sorted by name.
func (r *Registry) Descriptors() []Descriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Descriptor, 0, len(r.providers))
	for _, p := range r.providers {
		d := p.Descriptor()
		d.Models = slices.Clone(d.Models)
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Len returns the number of registered providers.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.providers)
}
