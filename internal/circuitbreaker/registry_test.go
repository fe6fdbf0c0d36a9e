package circuitbreaker_test

import (
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
)

var _ = Describe("Registry", func() {
	var registry *circuitbreaker.Registry

	BeforeEach(func() {
		var err error
		registry, err = circuitbreaker.NewRegistry(testConfig())
		Expect(err).NotTo(HaveOccurred())
	})

	Describe("NewRegistry", func() {
		It("should create a registry", func() {
			Expect(registry).NotTo(BeNil())
		})

		It("should reject an invalid configuration", func() {
			cfg := testConfig()
			cfg.FailureRateThreshold = 150
			r, err := circuitbreaker.NewRegistry(cfg)
			Expect(err).To(HaveOccurred())
			Expect(r).To(BeNil())
		})
	})

	Describe("NewRegistryFromOptions", func() {
		It("should apply defaults to unset options", func() {
			r, err := circuitbreaker.NewRegistryFromOptions(circuitbreaker.Options{})
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Config()).To(Equal(circuitbreaker.DefaultConfig()))
		})

		It("should fail fast on out-of-range options", func() {
			_, err := circuitbreaker.NewRegistryFromOptions(circuitbreaker.Options{
				FailureRateThreshold: 101,
			})
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("GetBreaker", func() {
		It("should create a new breaker for an unknown name", func() {
			cb := registry.GetBreaker("search")
			Expect(cb).NotTo(BeNil())
			Expect(cb.Name()).To(Equal("search"))
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should return the same breaker for the same name", func() {
			cb1 := registry.GetBreaker("search")
			cb2 := registry.GetBreaker("search")
			Expect(cb1).To(BeIdenticalTo(cb2))
		})

		It("should share state across lookups of the same name", func() {
			fill(registry.GetBreaker("search"), 4, 0)
			Expect(registry.GetBreaker("search").State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should return different breakers for different names", func() {
			cb1 := registry.GetBreaker("search")
			cb2 := registry.GetBreaker("catalog")
			Expect(cb1).NotTo(BeIdenticalTo(cb2))
		})

		It("should keep breakers independent of one another", func() {
			fill(registry.GetBreaker("search"), 4, 0)
			Expect(registry.GetBreaker("search").State()).To(Equal(circuitbreaker.StateOpen))
			Expect(registry.GetBreaker("catalog").State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should use the registry configuration for new breakers", func() {
			cb := registry.GetBreaker("search")

			// Opens after the size-4 window fills at the threshold
			fill(cb, 2, 2)
			Expect(cb.State()).To(Equal(circuitbreaker.StateOpen))
		})

		It("should return one instance under concurrent lookups", func() {
			var wg sync.WaitGroup
			results := make([]*circuitbreaker.Breaker, 10)

			for i := range results {
				wg.Add(1)
				go func(slot int) {
					defer wg.Done()
					results[slot] = registry.GetBreaker("search")
				}(i)
			}
			wg.Wait()

			for _, cb := range results[1:] {
				Expect(cb).To(BeIdenticalTo(results[0]))
			}
		})
	})

	Describe("Stats", func() {
		It("should snapshot every registered breaker", func() {
			fill(registry.GetBreaker("search"), 4, 0)
			registry.GetBreaker("catalog")

			stats := registry.Stats()
			Expect(stats).To(HaveLen(2))
			Expect(stats["search"].State).To(Equal(circuitbreaker.StateOpen))
			Expect(stats["catalog"].State).To(Equal(circuitbreaker.StateClosed))
		})
	})

	Describe("For", func() {
		It("should look up through a registry source", func() {
			cb, err := circuitbreaker.For(registry, "search")
			Expect(err).NotTo(HaveOccurred())
			Expect(cb).To(BeIdenticalTo(registry.GetBreaker("search")))
		})

		It("should build a standalone breaker from a Config", func() {
			cb, err := circuitbreaker.For(testConfig(), "search")
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.Name()).To(Equal("search"))
		})

		It("should build a standalone breaker from Options", func() {
			cb, err := circuitbreaker.For(circuitbreaker.Options{
				FailureRateThreshold:      25,
				WaitDurationInOpenStateMs: 500,
			}, "search")
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.Name()).To(Equal("search"))
		})

		It("should apply defaults for a nil source", func() {
			cb, err := circuitbreaker.For(nil, "search")
			Expect(err).NotTo(HaveOccurred())
			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
		})

		It("should reject an invalid Config source", func() {
			cfg := testConfig()
			cfg.RingBufferSizeInClosedState = 0
			_, err := circuitbreaker.For(cfg, "search")
			Expect(err).To(HaveOccurred())
		})

		It("should reject an unsupported source type", func() {
			_, err := circuitbreaker.For(42, "search")
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring("unsupported breaker source"))
		})
	})
})

var _ = Describe("BuildConfig", func() {
	It("should apply all defaults to empty options", func() {
		cfg, err := circuitbreaker.BuildConfig(circuitbreaker.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.FailureRateThreshold).To(Equal(50))
		Expect(cfg.WaitDurationInOpenState).To(Equal(60 * time.Second))
		Expect(cfg.RingBufferSizeInClosedState).To(Equal(100))
		Expect(cfg.RingBufferSizeInHalfOpenState).To(Equal(10))
		Expect(cfg.RecordFailure).To(BeNil())
	})

	It("should convert the wait duration from milliseconds", func() {
		cfg, err := circuitbreaker.BuildConfig(circuitbreaker.Options{
			WaitDurationInOpenStateMs: 1500,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.WaitDurationInOpenState).To(Equal(1500 * time.Millisecond))
	})

	It("should keep explicit values", func() {
		cfg, err := circuitbreaker.BuildConfig(circuitbreaker.Options{
			FailureRateThreshold:          80,
			RingBufferSizeInClosedState:   20,
			RingBufferSizeInHalfOpenState: 5,
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.FailureRateThreshold).To(Equal(80))
		Expect(cfg.RingBufferSizeInClosedState).To(Equal(20))
		Expect(cfg.RingBufferSizeInHalfOpenState).To(Equal(5))
	})

	It("should reject a threshold above 100", func() {
		_, err := circuitbreaker.BuildConfig(circuitbreaker.Options{FailureRateThreshold: 101})
		Expect(err).To(HaveOccurred())
	})

	It("should reject a negative threshold", func() {
		_, err := circuitbreaker.BuildConfig(circuitbreaker.Options{FailureRateThreshold: -5})
		Expect(err).To(HaveOccurred())
	})

	It("should reject negative buffer sizes", func() {
		_, err := circuitbreaker.BuildConfig(circuitbreaker.Options{RingBufferSizeInClosedState: -1})
		Expect(err).To(HaveOccurred())
	})

	It("should carry the failure predicate through", func() {
		cfg, err := circuitbreaker.BuildConfig(circuitbreaker.Options{
			RecordFailure: func(err error) bool { return false },
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(cfg.RecordFailure).NotTo(BeNil())
	})
})
