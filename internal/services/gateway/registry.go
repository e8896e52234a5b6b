package gateway

import (
	"fmt"
	"sort"
	"strings"
)

// Registry resolves adapters by provider code. It is built once at startup.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry(adapters ...Adapter) *Registry {
	r := &Registry{adapters: make(map[string]Adapter, len(adapters))}
	for _, a := range adapters {
		r.adapters[a.Provider()] = a
	}
	return r
}

// Get looks a provider up case-insensitively.
func (r *Registry) Get(provider string) (Adapter, error) {
	a, ok := r.adapters[strings.ToUpper(strings.TrimSpace(provider))]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, provider)
	}
	return a, nil
}

// Providers lists the registered provider codes, sorted.
func (r *Registry) Providers() []string {
	out := make([]string, 0, len(r.adapters))
	for p := range r.adapters {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}
