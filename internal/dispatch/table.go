package dispatch

import (
	"fmt"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
	"github.com/resolvekit/resolveguard/internal/resolution"
)

// KeyFunc maps a batch to its application-defined dispatch key.
type KeyFunc func(env resolution.Env, batch []resolution.Item) any

// Entry configures the breaker for one dispatch key. An empty Name falls back
// to a stable textual rendering of the key.
type Entry struct {
	Name    string
	Options circuitbreaker.Options
}

// Table maps dispatch keys to breakers. All breakers are created eagerly at
// construction time; lookups never allocate.
type Table struct {
	breakers map[any]*circuitbreaker.Breaker
}

// NewTable builds a dispatch table, one breaker per entry.
func NewTable(entries map[any]Entry, hooks ...circuitbreaker.StateChangeFunc) (*Table, error) {
	t := &Table{breakers: make(map[any]*circuitbreaker.Breaker, len(entries))}

	for key, entry := range entries {
		cfg, err := circuitbreaker.BuildConfig(entry.Options)
		if err != nil {
			return nil, fmt.Errorf("dispatch: key %v: %w", key, err)
		}

		name := entry.Name
		if name == "" {
			name = fmt.Sprint(key)
		}

		t.breakers[key] = circuitbreaker.NewBreaker(name, cfg, hooks...)
	}

	return t, nil
}

// Breaker returns the breaker for key, or nil when the key is not dispatched
// through a breaker.
func (t *Table) Breaker(key any) *circuitbreaker.Breaker {
	return t.breakers[key]
}

// Stats snapshots every breaker in the table by breaker name.
func (t *Table) Stats() map[string]circuitbreaker.Stats {
	stats := make(map[string]circuitbreaker.Stats, len(t.breakers))
	for _, b := range t.breakers {
		stats[b.Name()] = b.Stats()
	}
	return stats
}

// WrapByKey interposes keyed breaker gating in front of a resolver: keyFn
// picks the dispatch key for each batch and the table built from entries
// supplies the breaker. Batches whose key has no entry resolve directly.
func WrapByKey(resolve resolution.ResolveFunc, keyFn KeyFunc, entries map[any]Entry, opts Options, hooks ...circuitbreaker.StateChangeFunc) (resolution.ResolveFunc, *Table, error) {
	table, err := NewTable(entries, hooks...)
	if err != nil {
		return nil, nil, err
	}

	wrapped := Wrap(resolve, func(env resolution.Env, batch []resolution.Item) *circuitbreaker.Breaker {
		return table.Breaker(keyFn(env, batch))
	}, opts)

	return wrapped, table, nil
}
