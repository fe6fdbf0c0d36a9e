// Package resolver provides downstream batch resolvers. The HTTP resolver
// posts a batch of keys to a downstream service and completes its result
// asynchronously on a separate goroutine.
package resolver
