package compliance

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Registry indexes providers by name, country and region. Lookups are
// case-insensitive. It holds no business logic.
type Registry struct {
	mu        sync.RWMutex
	byName    map[string]Provider
	byCountry map[string]Provider
	byRegion  map[string]Provider
}

func NewRegistry() *Registry {
	return &Registry{
		byName:    make(map[string]Provider),
		byCountry: make(map[string]Provider),
		byRegion:  make(map[string]Provider),
	}
}

func key(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// Register adds a provider. Registering a second provider with the same
// name fails; country and region entries keep the first provider that
// claimed them.
func (r *Registry) Register(p Provider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := key(p.Name())
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if _, exists := r.byName[name]; exists {
		return fmt.Errorf("provider %s already registered", p.Name())
	}
	r.byName[name] = p

	countries := append([]string{p.Country()}, p.Countries()...)
	for _, c := range countries {
		if c = key(c); c == "" {
			continue
		}
		if _, taken := r.byCountry[c]; !taken {
			r.byCountry[c] = p
		}
	}
	if region := key(p.Region()); region != "" {
		if _, taken := r.byRegion[region]; !taken {
			r.byRegion[region] = p
		}
	}
	return nil
}

func (r *Registry) GetProvider(name string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byName[key(name)]
	return p, ok
}

func (r *Registry) GetProviderForCountry(code string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byCountry[key(code)]
	return p, ok
}

func (r *Registry) GetProviderForRegion(region string) (Provider, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.byRegion[key(region)]
	return p, ok
}

// GetAllProviders returns every provider sorted by name
func (r *Registry) GetAllProviders() []Provider {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Provider, 0, len(r.byName))
	for _, p := range r.byName {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}
