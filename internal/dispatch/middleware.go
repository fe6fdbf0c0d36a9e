package dispatch

import (
	"context"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
	"github.com/resolvekit/resolveguard/internal/resolution"
)

// BreakerFunc selects the breaker guarding a batch. Returning nil means the
// batch is not guarded and resolves directly.
type BreakerFunc func(env resolution.Env, batch []resolution.Item) *circuitbreaker.Breaker

// Wrap interposes breaker gating in front of a resolver.
//
// A batch whose representative item is classified side-effect-free bypasses
// the breaker unconditionally; its outcome never feeds any window. Otherwise
// the selected breaker, if any, gates the call through Intercept.
func Wrap(resolve resolution.ResolveFunc, breakerFor BreakerFunc, opts Options) resolution.ResolveFunc {
	return func(ctx context.Context, env resolution.Env, batch []resolution.Item) *resolution.Result {
		if len(batch) > 0 && opts.IsPure != nil && opts.IsPure(batch[0]) {
			return resolve(ctx, env, batch)
		}

		br := breakerFor(env, batch)
		if br == nil {
			return resolve(ctx, env, batch)
		}

		return Intercept(ctx, br, resolve, env, batch, opts)
	}
}
