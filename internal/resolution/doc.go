// Package resolution defines the contracts between the batch-resolution
// engine and the circuit breaker core: the resolution environment, batches
// of work items, the resolver function shape, and the eventually-completed
// Result that carries per-item outcomes.
package resolution
