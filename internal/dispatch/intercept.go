package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
	"github.com/resolvekit/resolveguard/internal/resolution"
)

// FailureData carries the breaker accounting attached to a denied call.
type FailureData struct {
	FailureRate       float64 `json:"failure_rate"`
	NotPermittedCalls int64   `json:"not_permitted_calls"`
}

// Failure is the descriptor mapped onto every item of a denied batch. The
// message format and field names are part of the contract observable by
// callers.
type Failure struct {
	Message string      `json:"message"`
	Data    FailureData `json:"data"`
}

// OpenError is a denied call surfaced as an error. It carries the same
// descriptor as the per-item failure values.
type OpenError struct {
	BreakerName string
	Data        FailureData
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit-breaker '%s' is open.", e.BreakerName)
}

// Descriptor returns the structured failure shape for this denial.
func (e *OpenError) Descriptor() Failure {
	return Failure{Message: e.Error(), Data: e.Data}
}

// Options configures how batches are routed through breakers.
type Options struct {
	// ThrowOnOpen makes a denied call fail the whole batch instead of
	// producing a per-item failure descriptor.
	ThrowOnOpen bool

	// IsPure classifies items as side-effect-free. Pure batches bypass
	// breaking entirely. Nil means nothing is pure.
	IsPure resolution.PureFunc
}

// Intercept routes one resolver call through a breaker.
//
// On denial the resolver is not invoked: with ThrowOnOpen the returned result
// fails with an *OpenError for the whole batch, otherwise it completes with
// the same *OpenError mapped onto every item.
//
// On permission the resolver runs and its eventual outcome, synchronous or
// not, is recorded exactly once with the elapsed wall time. A genuine
// resolver error is observed for accounting and flows through unmodified.
func Intercept(ctx context.Context, br *circuitbreaker.Breaker, resolve resolution.ResolveFunc, env resolution.Env, batch []resolution.Item, opts Options) *resolution.Result {
	if !br.Allow() {
		stats := br.Stats()
		open := &OpenError{
			BreakerName: br.Name(),
			Data: FailureData{
				FailureRate:       stats.FailureRate,
				NotPermittedCalls: stats.NotPermittedCalls,
			},
		}

		if opts.ThrowOnOpen {
			return resolution.Failed(open)
		}

		items := make([]resolution.ItemResult, len(batch))
		for i := range items {
			items[i] = resolution.ItemResult{Err: open}
		}
		return resolution.Completed(items)
	}

	start := time.Now()
	res := resolve(ctx, env, batch)
	res.Observe(
		func() { br.RecordSuccess(time.Since(start)) },
		func(err error) { br.RecordFailure(time.Since(start), err) },
	)
	return res
}
