package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownProvider is returned when a model reference names a tag
// with no registered provider.
var ErrUnknownProvider = errors.New("unknown provider")

// Factory constructs a provider instance. Factories are registered per
// tag so that configuration can be validated before any generation
// runs.
type Factory func() (Provider, error)

// Registry maps provider tags to live provider instances. A model
// reference has the form "tag:model" (e.g., "ollama:llama3.2"); the
// tag selects the provider, the remainder names the model.
type Registry struct {
	providers map[string]Provider
	order     []string
}

// NewRegistry builds a registry from the given factories, constructing
// each provider eagerly. An unknown or misconfigured backend fails
// here, at configuration time, rather than on first use.
func NewRegistry(factories map[string]Factory) (*Registry, error) {
	r := &Registry{providers: make(map[string]Provider, len(factories))}
	for tag, factory := range factories {
		if tag == "" {
			return nil, fmt.Errorf("provider tag must not be empty")
		}
		if strings.Contains(tag, ":") {
			return nil, fmt.Errorf("provider tag %q must not contain ':'", tag)
		}
		p, err := factory()
		if err != nil {
			r.Close()
			return nil, fmt.Errorf("constructing provider %q: %w", tag, err)
		}
		r.providers[tag] = p
		r.order = append(r.order, tag)
	}
	if len(r.providers) == 0 {
		return nil, fmt.Errorf("no providers configured")
	}
	return r, nil
}

// Resolve splits a "tag:model" reference and returns the provider for
// the tag together with the bare model name.
func (r *Registry) Resolve(modelRef string) (Provider, string, error) {
	tag, model, ok := strings.Cut(modelRef, ":")
	if !ok || tag == "" || model == "" {
		return nil, "", fmt.Errorf("model reference %q: want \"provider:model\"", modelRef)
	}
	p, found := r.providers[tag]
	if !found {
		return nil, "", fmt.Errorf("model reference %q: %w: %q", modelRef, ErrUnknownProvider, tag)
	}
	return p, model, nil
}

// Tags returns the registered provider tags in registration order.
func (r *Registry) Tags() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

// ListModels aggregates models across all providers, with each model
// ID prefixed by its provider tag so the result is directly usable as
// a model reference.
func (r *Registry) ListModels(ctx context.Context) ([]ModelInfo, error) {
	var out []ModelInfo
	for _, tag := range r.order {
		models, err := r.providers[tag].ListModels(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing models for %q: %w", tag, err)
		}
		for _, m := range models {
			m.ID = tag + ":" + m.ID
			out = append(out, m)
		}
	}
	return out, nil
}

// Close closes all registered providers, returning the first error.
func (r *Registry) Close() error {
	var first error
	for _, p := range r.providers {
		if err := p.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
