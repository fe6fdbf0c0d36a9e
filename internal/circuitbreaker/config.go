package circuitbreaker

import (
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

const (
	DefaultFailureRateThreshold          = 50
	DefaultWaitDurationInOpenState       = 60 * time.Second
	DefaultRingBufferSizeInClosedState   = 100
	DefaultRingBufferSizeInHalfOpenState = 10
)

// RecordFailurePredicate decides whether a downstream error counts toward the
// failure rate. Errors it rejects still fill the window but never trip the
// breaker. The predicate must be total; it is invoked under the breaker lock.
type RecordFailurePredicate func(err error) bool

// Config is the immutable tuning record shared by the breakers of a registry.
type Config struct {
	// FailureRateThreshold is the percentage of counted failures in a full
	// window at or above which the breaker opens (1-100).
	FailureRateThreshold int

	// WaitDurationInOpenState is how long an open breaker denies calls before
	// probing recovery through the half-open state.
	WaitDurationInOpenState time.Duration

	// RingBufferSizeInClosedState is the outcome window capacity while closed.
	RingBufferSizeInClosedState int

	// RingBufferSizeInHalfOpenState is the outcome window capacity while
	// half-open.
	RingBufferSizeInHalfOpenState int

	// RecordFailure filters which failures count toward the rate.
	// Nil means every failure counts.
	RecordFailure RecordFailurePredicate
}

// Options is the raw option set accepted at the configuration boundary.
// Zero-valued fields take the package defaults.
type Options struct {
	FailureRateThreshold          int                    `mapstructure:"failure_rate_threshold"`
	WaitDurationInOpenStateMs     int                    `mapstructure:"wait_duration_in_open_state_ms"`
	RingBufferSizeInClosedState   int                    `mapstructure:"ring_buffer_size_in_closed_state"`
	RingBufferSizeInHalfOpenState int                    `mapstructure:"ring_buffer_size_in_half_open_state"`
	RecordFailure                 RecordFailurePredicate `mapstructure:"-"`
}

// DefaultConfig returns the configuration used when no options are supplied.
func DefaultConfig() Config {
	return Config{
		FailureRateThreshold:          DefaultFailureRateThreshold,
		WaitDurationInOpenState:       DefaultWaitDurationInOpenState,
		RingBufferSizeInClosedState:   DefaultRingBufferSizeInClosedState,
		RingBufferSizeInHalfOpenState: DefaultRingBufferSizeInHalfOpenState,
	}
}

// BuildConfig normalizes an option set into a validated Config.
// Invalid values fail here, at build time, rather than being clamped.
func BuildConfig(opts Options) (Config, error) {
	cfg := DefaultConfig()

	if opts.FailureRateThreshold != 0 {
		cfg.FailureRateThreshold = opts.FailureRateThreshold
	}
	if opts.WaitDurationInOpenStateMs != 0 {
		cfg.WaitDurationInOpenState = time.Duration(opts.WaitDurationInOpenStateMs) * time.Millisecond
	}
	if opts.RingBufferSizeInClosedState != 0 {
		cfg.RingBufferSizeInClosedState = opts.RingBufferSizeInClosedState
	}
	if opts.RingBufferSizeInHalfOpenState != 0 {
		cfg.RingBufferSizeInHalfOpenState = opts.RingBufferSizeInHalfOpenState
	}
	cfg.RecordFailure = opts.RecordFailure

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate checks the configuration bounds.
func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.FailureRateThreshold,
			validation.Required,
			validation.Min(1),
			validation.Max(100),
		),
		validation.Field(&c.WaitDurationInOpenState,
			validation.Required,
			validation.Min(time.Duration(1)),
		),
		validation.Field(&c.RingBufferSizeInClosedState,
			validation.Required,
			validation.Min(1),
		),
		validation.Field(&c.RingBufferSizeInHalfOpenState,
			validation.Required,
			validation.Min(1),
		),
	)
}

func (c Config) countsAsFailure(err error) bool {
	if c.RecordFailure == nil {
		return true
	}
	return c.RecordFailure(err)
}
