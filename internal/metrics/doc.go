// Package metrics provides real-time metrics collection for the resolution
// pipeline.
//
// It uses a channel-based event pipeline to asynchronously collect:
//   - Batch counts and resolution failure totals
//   - Resolution durations with percentile calculations (P50, P95, P99)
//   - Denied-call counts per circuit breaker
//   - Breaker state transitions
//
// The collector runs in a dedicated goroutine and processes events without
// blocking the resolution path. Events are emitted with non-blocking semantics
// to prevent performance degradation under load.
//
// Example usage:
//
//	collector := metrics.NewCollector(1000, logger)
//	collector.Start(ctx)
//
//	// Emit events during batch handling
//	collector.Emit(metrics.MetricEvent{
//		Type:     metrics.EventBatchResolved,
//		Duration: 150 * time.Millisecond,
//	})
//
//	// Get metrics snapshot
//	snapshot := collector.Snapshot()
//
// The package provides thread-safe metrics storage using sync.RWMutex and
// supports graceful shutdown with event draining to prevent data loss.
package metrics
