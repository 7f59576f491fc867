package adapters

import (
	"strings"

	"github.com/soloware/dealdesk/internal/payment/domain"
)

// Registry resolves webhook and checkout providers by name. Adapters
// are constructed once at startup from config; nil adapters (provider
// not configured) are skipped.
type Registry struct {
	adapters map[string]domain.Adapter
}

func NewRegistry(adapters ...domain.Adapter) *Registry {
	registry := &Registry{adapters: map[string]domain.Adapter{}}
	for _, adapter := range adapters {
		if adapter == nil {
			continue
		}
		name := strings.ToLower(strings.TrimSpace(adapter.Name()))
		if name == "" {
			continue
		}
		registry.adapters[name] = adapter
	}
	return registry
}

func (r *Registry) Exists(provider string) bool {
	if r == nil {
		return false
	}
	_, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	return ok
}

func (r *Registry) Adapter(provider string) (domain.Adapter, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	adapter, ok := r.adapters[strings.ToLower(strings.TrimSpace(provider))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return adapter, nil
}
