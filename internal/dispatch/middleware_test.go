package dispatch_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/resolvekit/resolveguard/internal/circuitbreaker"
	"github.com/resolvekit/resolveguard/internal/dispatch"
	"github.com/resolvekit/resolveguard/internal/resolution"
)

func isPureMarker(item resolution.Item) bool {
	s, ok := item.(string)
	return ok && s == "pure"
}

var _ = Describe("Wrap", func() {
	var (
		cb  *circuitbreaker.Breaker
		env resolution.Env
	)

	breakerFor := func(resolution.Env, []resolution.Item) *circuitbreaker.Breaker {
		return cb
	}

	BeforeEach(func() {
		cb = circuitbreaker.NewBreaker("search", testConfig())
		env = resolution.Env{"source": "search"}
	})

	It("should gate batches through the selected breaker", func() {
		trip(cb)

		var called bool
		wrapped := dispatch.Wrap(staticResolver(&called), breakerFor, dispatch.Options{})

		items, err := wrapped(context.Background(), env, []resolution.Item{"a"}).Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeFalse())
		Expect(items[0].Err).To(HaveOccurred())
	})

	It("should call the resolver directly when no breaker is selected", func() {
		var called bool
		wrapped := dispatch.Wrap(staticResolver(&called), func(resolution.Env, []resolution.Item) *circuitbreaker.Breaker {
			return nil
		}, dispatch.Options{})

		_, err := wrapped(context.Background(), env, []resolution.Item{"a"}).Wait(context.Background())
		Expect(err).NotTo(HaveOccurred())
		Expect(called).To(BeTrue())
	})

	Describe("pure batches", func() {
		It("should bypass an open breaker", func() {
			trip(cb)

			var called bool
			wrapped := dispatch.Wrap(staticResolver(&called), breakerFor, dispatch.Options{IsPure: isPureMarker})

			items, err := wrapped(context.Background(), env, []resolution.Item{"pure", "other"}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeTrue())
			Expect(items[0].Err).NotTo(HaveOccurred())
		})

		It("should never feed outcomes into the breaker", func() {
			wrapped := dispatch.Wrap(func(ctx context.Context, env resolution.Env, batch []resolution.Item) *resolution.Result {
				return resolution.Failed(errors.New("boom"))
			}, breakerFor, dispatch.Options{IsPure: isPureMarker})

			for i := 0; i < 5; i++ {
				_, err := wrapped(context.Background(), env, []resolution.Item{"pure"}).Wait(context.Background())
				Expect(err).To(HaveOccurred())
			}

			Expect(cb.State()).To(Equal(circuitbreaker.StateClosed))
			Expect(cb.Stats().FailureRate).To(Equal(circuitbreaker.NoRate))
		})

		It("should classify by the representative item only", func() {
			trip(cb)

			var called bool
			wrapped := dispatch.Wrap(staticResolver(&called), breakerFor, dispatch.Options{IsPure: isPureMarker})

			items, err := wrapped(context.Background(), env, []resolution.Item{"other", "pure"}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(items[0].Err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Table", func() {
	entries := func() map[any]dispatch.Entry {
		return map[any]dispatch.Entry{
			"search":  {Options: circuitbreaker.Options{RingBufferSizeInClosedState: 2}},
			"catalog": {Name: "catalog-primary", Options: circuitbreaker.Options{}},
			42:        {Options: circuitbreaker.Options{}},
		}
	}

	Describe("NewTable", func() {
		It("should eagerly create one breaker per entry", func() {
			table, err := dispatch.NewTable(entries())
			Expect(err).NotTo(HaveOccurred())

			stats := table.Stats()
			Expect(stats).To(HaveLen(3))
			Expect(stats).To(HaveKey("search"))
			Expect(stats).To(HaveKey("catalog-primary"))
			Expect(stats).To(HaveKey("42"))
		})

		It("should name unnamed entries by the textual rendering of their key", func() {
			table, err := dispatch.NewTable(entries())
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Breaker(42).Name()).To(Equal("42"))
		})

		It("should honor explicit breaker names", func() {
			table, err := dispatch.NewTable(entries())
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Breaker("catalog").Name()).To(Equal("catalog-primary"))
		})

		It("should fail fast on invalid entry options", func() {
			_, err := dispatch.NewTable(map[any]dispatch.Entry{
				"search": {Options: circuitbreaker.Options{FailureRateThreshold: 200}},
			})
			Expect(err).To(HaveOccurred())
		})

		It("should return nil for unmapped keys", func() {
			table, err := dispatch.NewTable(entries())
			Expect(err).NotTo(HaveOccurred())
			Expect(table.Breaker("unknown")).To(BeNil())
		})
	})

	Describe("WrapByKey", func() {
		keyFn := func(env resolution.Env, batch []resolution.Item) any {
			return env["source"]
		}

		It("should route each batch to its key's breaker", func() {
			var called bool
			wrapped, table, err := dispatch.WrapByKey(staticResolver(&called), keyFn, entries(), dispatch.Options{})
			Expect(err).NotTo(HaveOccurred())

			trip(table.Breaker("search"))

			items, err := wrapped(context.Background(), resolution.Env{"source": "search"}, []resolution.Item{"a"}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeFalse())
			Expect(items[0].Err.Error()).To(Equal("circuit-breaker 'search' is open."))
		})

		It("should leave other keys unaffected", func() {
			var called bool
			wrapped, table, err := dispatch.WrapByKey(staticResolver(&called), keyFn, entries(), dispatch.Options{})
			Expect(err).NotTo(HaveOccurred())

			trip(table.Breaker("search"))

			items, err := wrapped(context.Background(), resolution.Env{"source": "catalog"}, []resolution.Item{"a"}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeTrue())
			Expect(items[0].Err).NotTo(HaveOccurred())
		})

		It("should resolve directly for keys without an entry", func() {
			var called bool
			wrapped, _, err := dispatch.WrapByKey(staticResolver(&called), keyFn, entries(), dispatch.Options{})
			Expect(err).NotTo(HaveOccurred())

			_, err = wrapped(context.Background(), resolution.Env{"source": "unknown"}, []resolution.Item{"a"}).Wait(context.Background())
			Expect(err).NotTo(HaveOccurred())
			Expect(called).To(BeTrue())
		})

		It("should surface table construction errors", func() {
			var called bool
			_, _, err := dispatch.WrapByKey(staticResolver(&called), keyFn, map[any]dispatch.Entry{
				"bad": {Options: circuitbreaker.Options{RingBufferSizeInHalfOpenState: -1}},
			}, dispatch.Options{})
			Expect(err).To(HaveOccurred())
		})
	})
})
