package circuitbreaker

import (
	"sync"
	"time"
)

type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Denying calls
	StateHalfOpen              // Probing recovery
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF-OPEN"
	default:
		return "UNKNOWN"
	}
}

// StateChangeFunc observes breaker transitions. It runs under the breaker
// lock and must not call back into the breaker.
type StateChangeFunc func(name string, from, to State)

// Stats is a point-in-time view of a breaker's accounting.
type Stats struct {
	State             State   `json:"state"`
	FailureRate       float64 `json:"failure_rate"`
	NotPermittedCalls int64   `json:"not_permitted_calls"`
}

// Breaker is a named circuit breaker gating calls to a protected resolver.
// Allow, RecordSuccess and RecordFailure are its only mutation points and are
// safe for concurrent use.
type Breaker struct {
	name string
	cfg  Config

	mutex         sync.Mutex
	state         State
	window        *window
	openedAt      time.Time
	notPermitted  int64
	onStateChange StateChangeFunc
}

// NewBreaker creates a closed breaker. The configuration is assumed valid;
// use BuildConfig or Config.Validate at the boundary that produced it.
func NewBreaker(name string, cfg Config, hooks ...StateChangeFunc) *Breaker {
	b := &Breaker{
		name:   name,
		cfg:    cfg,
		state:  StateClosed,
		window: newWindow(cfg.RingBufferSizeInClosedState),
	}
	if len(hooks) > 0 {
		b.onStateChange = hooks[0]
	}
	return b
}

// Name returns the breaker's registry identity.
func (b *Breaker) Name() string {
	return b.name
}

// Allow reports whether a call may proceed. While open it denies and counts
// the denial, unless the wait duration has elapsed, in which case the breaker
// moves to half-open and the call proceeds as a probe. The open-timeout check
// happens only here, on incoming traffic; an idle open breaker stays open.
func (b *Breaker) Allow() bool {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	switch b.state {
	case StateOpen:
		if time.Since(b.openedAt) >= b.cfg.WaitDurationInOpenState {
			b.setState(StateHalfOpen, time.Now())
			return true
		}
		b.notPermitted++
		return false
	default:
		return true
	}
}

// RecordSuccess records a successful call outcome.
func (b *Breaker) RecordSuccess(duration time.Duration) {
	b.record(false)
}

// RecordFailure records a failed call outcome. Whether the failure counts
// toward the rate is decided by the configured predicate; either way it
// occupies a window slot.
func (b *Breaker) RecordFailure(duration time.Duration, err error) {
	b.record(b.cfg.countsAsFailure(err))
}

func (b *Breaker) record(countedFailure bool) {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	// An in-flight call can finish after the breaker already tripped.
	// Its outcome belongs to a window that no longer accepts entries.
	if b.state == StateOpen {
		return
	}

	b.window.record(countedFailure)

	rate, ok := b.window.failureRate()
	if !ok {
		return
	}

	now := time.Now()
	switch b.state {
	case StateClosed:
		if rate >= float64(b.cfg.FailureRateThreshold) {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		if rate >= float64(b.cfg.FailureRateThreshold) {
			b.setState(StateOpen, now)
		} else {
			b.setState(StateClosed, now)
		}
	}
}

// setState performs a transition. The denial counter resets on every
// transition. Opening keeps the tripped window so the rate that caused the
// trip stays readable; the half-open window is allocated only once the wait
// duration has elapsed.
func (b *Breaker) setState(to State, now time.Time) {
	from := b.state
	if from == to {
		return
	}

	b.state = to
	b.notPermitted = 0

	switch to {
	case StateOpen:
		b.openedAt = now
	case StateHalfOpen:
		b.window = newWindow(b.cfg.RingBufferSizeInHalfOpenState)
	case StateClosed:
		b.window = newWindow(b.cfg.RingBufferSizeInClosedState)
	}

	if b.onStateChange != nil {
		b.onStateChange(b.name, from, to)
	}
}

// State returns the current state without advancing the open timeout.
func (b *Breaker) State() State {
	b.mutex.Lock()
	defer b.mutex.Unlock()
	return b.state
}

// Stats returns the current accounting snapshot. FailureRate is NoRate until
// the active window has filled.
func (b *Breaker) Stats() Stats {
	b.mutex.Lock()
	defer b.mutex.Unlock()

	rate, _ := b.window.failureRate()
	return Stats{
		State:             b.state,
		FailureRate:       rate,
		NotPermittedCalls: b.notPermitted,
	}
}
