// Package dispatch routes batch resolutions through circuit breakers.
//
// The interceptor wraps a single resolver call with permission check, timing
// and outcome recording; the middleware decides per batch which breaker (if
// any) applies, exempting side-effect-free work, and the keyed layer maps
// application dispatch keys onto an eagerly-built breaker table.
package dispatch
