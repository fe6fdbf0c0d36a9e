package metrics

import (
	"sort"
	"sync"
	"time"
)

type Metrics struct {
	mutex       sync.RWMutex
	batches     int64
	failures    int64
	durations   []time.Duration
	denials     map[string]int64
	states      map[string]string
	transitions map[string]int64
	startTime   time.Time
}

type Snapshot struct {
	TotalBatches  int64                     `json:"total_batches"`
	TotalFailures int64                     `json:"total_failures"`
	Uptime        time.Duration             `json:"uptime"`
	Resolution    ResolutionMetrics         `json:"resolution"`
	Breakers      map[string]BreakerMetrics `json:"breakers"`
}

type ResolutionMetrics struct {
	AvgDuration time.Duration `json:"avg_duration"`
	P50Duration time.Duration `json:"p50_duration"`
	P95Duration time.Duration `json:"p95_duration"`
	P99Duration time.Duration `json:"p99_duration"`
}

type BreakerMetrics struct {
	State       string `json:"state"`
	Denials     int64  `json:"denials"`
	Transitions int64  `json:"transitions"`
}

func NewMetrics() *Metrics {
	return &Metrics{
		denials:     make(map[string]int64),
		states:      make(map[string]string),
		transitions: make(map[string]int64),
		startTime:   time.Now(),
	}
}

func (m *Metrics) IncrementBatches() {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.batches++
}

func (m *Metrics) RecordResolution(duration time.Duration, failed bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.durations = append(m.durations, duration)

	if len(m.durations) > 1000 {
		m.durations = m.durations[1:]
	}

	if failed {
		m.failures++
	}
}

func (m *Metrics) RecordDenial(breaker string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.denials[breaker]++
}

func (m *Metrics) RecordStateChange(breaker, state string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.states[breaker] = state
	m.transitions[breaker]++
}

func (m *Metrics) Snapshot() Snapshot {
	m.mutex.RLock()
	defer m.mutex.RUnlock()

	snap := Snapshot{
		TotalBatches:  m.batches,
		TotalFailures: m.failures,
		Uptime:        time.Since(m.startTime),
		Breakers:      make(map[string]BreakerMetrics),
	}

	if len(m.durations) > 0 {
		sorted := make([]time.Duration, len(m.durations))
		copy(sorted, m.durations)
		sort.Slice(sorted, func(i, j int) bool {
			return sorted[i] < sorted[j]
		})

		snap.Resolution = ResolutionMetrics{
			AvgDuration: average(sorted),
			P50Duration: percentile(sorted, 0.50),
			P95Duration: percentile(sorted, 0.95),
			P99Duration: percentile(sorted, 0.99),
		}
	}

	// Collect every breaker seen through any event
	allBreakers := make(map[string]bool)
	for name := range m.denials {
		allBreakers[name] = true
	}
	for name := range m.states {
		allBreakers[name] = true
	}

	for name := range allBreakers {
		state := m.states[name]
		if state == "" {
			state = "CLOSED"
		}

		snap.Breakers[name] = BreakerMetrics{
			State:       state,
			Denials:     m.denials[name],
			Transitions: m.transitions[name],
		}
	}

	return snap
}

func average(durations []time.Duration) time.Duration {
	if len(durations) == 0 {
		return 0
	}

	var sum time.Duration
	for _, d := range durations {
		sum += d
	}

	return sum / time.Duration(len(durations))
}

func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}

	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}

	return sorted[index]
}
