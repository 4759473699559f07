package services

import (
	"fmt"
	"sort"

	"github.com/gen-mind/echo-mind/internal/core/domain"
	"github.com/gen-mind/echo-mind/internal/core/ports/driven"
)

// ProviderFactory builds a fresh provider instance. Each sync run gets its
// own instance so provider state never leaks between runs.
type ProviderFactory func() driven.Provider

// ProviderRegistry maps provider names to their factories.
type ProviderRegistry struct {
	factories map[string]ProviderFactory
}

// NewProviderRegistry creates an empty registry.
func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{
		factories: make(map[string]ProviderFactory),
	}
}

// Register adds a factory under a provider name, replacing any previous
// registration.
func (r *ProviderRegistry) Register(name string, factory ProviderFactory) {
	r.factories[name] = factory
}

// Create builds a provider for the named type.
func (r *ProviderRegistry) Create(name string) (driven.Provider, error) {
	factory, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrUnsupportedProvider, name)
	}
	return factory(), nil
}

// Names returns the registered provider names, sorted.
func (r *ProviderRegistry) Names() []string {
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
