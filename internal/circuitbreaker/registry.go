package circuitbreaker

import (
	"fmt"
	"sync"
)

// Registry is a named collection of breakers sharing one configuration.
// Lookup is create-on-first-use and idempotent.
type Registry struct {
	mutex         sync.RWMutex
	breakers      map[string]*Breaker
	cfg           Config
	onStateChange StateChangeFunc
}

// NewRegistry creates a registry from a validated configuration.
func NewRegistry(cfg Config, hooks ...StateChangeFunc) (*Registry, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	r := &Registry{
		breakers: make(map[string]*Breaker),
		cfg:      cfg,
	}
	if len(hooks) > 0 {
		r.onStateChange = hooks[0]
	}
	return r, nil
}

// NewRegistryFromOptions creates a registry from a raw option set.
func NewRegistryFromOptions(opts Options, hooks ...StateChangeFunc) (*Registry, error) {
	cfg, err := BuildConfig(opts)
	if err != nil {
		return nil, err
	}
	return NewRegistry(cfg, hooks...)
}

// GetBreaker returns the breaker registered under name, creating it from the
// registry configuration on first use.
func (r *Registry) GetBreaker(name string) *Breaker {
	r.mutex.RLock()
	b, exists := r.breakers[name]
	r.mutex.RUnlock()

	if exists {
		return b
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()

	// Double-check: another goroutine may have created it
	if b, exists = r.breakers[name]; exists {
		return b
	}

	b = NewBreaker(name, r.cfg, r.onStateChange)
	r.breakers[name] = b
	return b
}

// Config returns the configuration shared by this registry's breakers.
func (r *Registry) Config() Config {
	return r.cfg
}

// Stats snapshots the accounting of every registered breaker by name.
func (r *Registry) Stats() map[string]Stats {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	stats := make(map[string]Stats, len(r.breakers))
	for name, b := range r.breakers {
		stats[name] = b.Stats()
	}
	return stats
}

// For resolves a breaker from any of the accepted source forms: an existing
// *Registry (shared lookup), a Config, an Options set, or nil for defaults.
// The non-registry forms create a standalone breaker.
func For(source any, name string) (*Breaker, error) {
	switch src := source.(type) {
	case nil:
		return NewBreaker(name, DefaultConfig()), nil
	case *Registry:
		return src.GetBreaker(name), nil
	case Config:
		if err := src.Validate(); err != nil {
			return nil, err
		}
		return NewBreaker(name, src), nil
	case Options:
		cfg, err := BuildConfig(src)
		if err != nil {
			return nil, err
		}
		return NewBreaker(name, cfg), nil
	default:
		return nil, fmt.Errorf("circuitbreaker: unsupported breaker source %T", source)
	}
}
