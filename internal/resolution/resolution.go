package resolution

import "context"

// Env carries the resolution environment shared by every batch of a request.
// Its contents are owned by the host engine; this core only threads it through.
type Env map[string]any

// Item is a single unit of work within a batch. Its concrete type is owned by
// the host engine; the core only moves items around and maps outcomes onto them.
type Item any

// ItemResult is the outcome for one item of a batch: a value or an error,
// never both.
type ItemResult struct {
	Value any
	Err   error
}

// ResolveFunc resolves a batch of items against a downstream source. The
// returned Result may already be settled or may complete later on another
// goroutine.
type ResolveFunc func(ctx context.Context, env Env, batch []Item) *Result

// PureFunc classifies a work item as side-effect-free. Pure items are exempt
// from breaker gating.
type PureFunc func(item Item) bool
