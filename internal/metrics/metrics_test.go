package metrics_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/resolvekit/resolveguard/internal/metrics"
)

var _ = Describe("Metrics", func() {
	var m *metrics.Metrics

	BeforeEach(func() {
		m = metrics.NewMetrics()
	})

	Describe("NewMetrics", func() {
		It("should create a new metrics instance", func() {
			Expect(m).NotTo(BeNil())
		})
	})

	Describe("IncrementBatches", func() {
		It("should increment the batch count", func() {
			m.IncrementBatches()
			m.IncrementBatches()

			snap := m.Snapshot()
			Expect(snap.TotalBatches).To(Equal(int64(2)))
		})
	})

	Describe("RecordResolution", func() {
		It("should record duration and count failures", func() {
			m.RecordResolution(100*time.Millisecond, false)
			m.RecordResolution(200*time.Millisecond, true)

			snap := m.Snapshot()
			Expect(snap.TotalFailures).To(Equal(int64(1)))
			Expect(snap.Resolution.AvgDuration).To(Equal(150 * time.Millisecond))
		})

		It("should calculate percentiles correctly", func() {
			for i := 1; i <= 100; i++ {
				m.RecordResolution(time.Duration(i)*time.Millisecond, false)
			}

			snap := m.Snapshot()
			Expect(snap.Resolution.P50Duration).To(BeNumerically("~", 50*time.Millisecond, 1*time.Millisecond))
			Expect(snap.Resolution.P95Duration).To(BeNumerically("~", 95*time.Millisecond, 1*time.Millisecond))
			Expect(snap.Resolution.P99Duration).To(BeNumerically("~", 99*time.Millisecond, 1*time.Millisecond))
		})

		It("should limit stored durations to 1000", func() {
			for i := 1; i <= 1500; i++ {
				m.RecordResolution(time.Duration(i)*time.Millisecond, false)
			}

			snap := m.Snapshot()
			Expect(snap.Resolution.AvgDuration).To(BeNumerically(">", 500*time.Millisecond))
		})
	})

	Describe("RecordDenial", func() {
		It("should track denials per breaker", func() {
			m.RecordDenial("search")
			m.RecordDenial("search")
			m.RecordDenial("catalog")

			snap := m.Snapshot()
			Expect(snap.Breakers["search"].Denials).To(Equal(int64(2)))
			Expect(snap.Breakers["catalog"].Denials).To(Equal(int64(1)))
		})

		It("should default the state of a denied-only breaker to CLOSED", func() {
			m.RecordDenial("search")

			snap := m.Snapshot()
			Expect(snap.Breakers["search"].State).To(Equal("CLOSED"))
		})
	})

	Describe("RecordStateChange", func() {
		It("should track the latest state per breaker", func() {
			m.RecordStateChange("search", "OPEN")
			snap1 := m.Snapshot()
			Expect(snap1.Breakers["search"].State).To(Equal("OPEN"))

			m.RecordStateChange("search", "HALF-OPEN")
			snap2 := m.Snapshot()
			Expect(snap2.Breakers["search"].State).To(Equal("HALF-OPEN"))
		})

		It("should count transitions", func() {
			m.RecordStateChange("search", "OPEN")
			m.RecordStateChange("search", "HALF-OPEN")
			m.RecordStateChange("search", "CLOSED")

			snap := m.Snapshot()
			Expect(snap.Breakers["search"].Transitions).To(Equal(int64(3)))
		})
	})

	Describe("Snapshot", func() {
		It("should include uptime", func() {
			time.Sleep(10 * time.Millisecond)

			snap := m.Snapshot()
			Expect(snap.Uptime).To(BeNumerically(">", 0))
		})

		It("should handle empty metrics", func() {
			snap := m.Snapshot()

			Expect(snap.TotalBatches).To(Equal(int64(0)))
			Expect(snap.Breakers).To(BeEmpty())
		})

		It("should return independent snapshots", func() {
			m.IncrementBatches()

			snap1 := m.Snapshot()
			m.IncrementBatches()
			snap2 := m.Snapshot()

			Expect(snap1.TotalBatches).To(Equal(int64(1)))
			Expect(snap2.TotalBatches).To(Equal(int64(2)))
		})
	})
})
