// Package circuitbreaker implements failure-rate-gated call admission for
// downstream resolvers.
//
// A circuit breaker prevents cascading failures by temporarily denying calls
// to a failing downstream. Outcomes are kept in a fixed-size sliding window
// per state; once the window fills, the failure rate decides transitions:
//
//   - CLOSED: Normal operation, calls pass through and are counted
//   - OPEN: Failure rate reached the threshold, calls denied
//   - HALF-OPEN: Wait duration elapsed, a small window of probes decides
//
// Usage:
//
//	registry, _ := circuitbreaker.NewRegistry(circuitbreaker.DefaultConfig())
//	cb := registry.GetBreaker("search")
//	if cb.Allow() {
//	    start := time.Now()
//	    // Call the downstream...
//	    if err != nil {
//	        cb.RecordFailure(time.Since(start), err)
//	    } else {
//	        cb.RecordSuccess(time.Since(start))
//	    }
//	}
package circuitbreaker
