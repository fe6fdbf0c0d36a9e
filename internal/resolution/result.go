package resolution

import (
	"context"
	"sync"
)

// Result is the eventual outcome of one batch resolution. It settles exactly
// once, either with a per-item outcome slice aligned with the batch, or with
// a batch-level error. Observers registered before settlement run on the
// goroutine that settles the result; observers registered afterwards run
// inline.
type Result struct {
	mutex     sync.Mutex
	done      chan struct{}
	items     []ItemResult
	err       error
	settled   bool
	observers []observer
}

type observer struct {
	onSuccess func()
	onFailure func(error)
}

// NewResult creates an unsettled result.
func NewResult() *Result {
	return &Result{done: make(chan struct{})}
}

// Completed returns a result already settled with the given item outcomes.
func Completed(items []ItemResult) *Result {
	r := NewResult()
	r.Complete(items)
	return r
}

// Failed returns a result already settled with a batch-level error.
func Failed(err error) *Result {
	r := NewResult()
	r.Fail(err)
	return r
}

// Complete settles the result with per-item outcomes. Settling twice is a
// programmer error and panics rather than corrupting observer accounting.
func (r *Result) Complete(items []ItemResult) {
	r.settle(items, nil)
}

// Fail settles the result with a batch-level error.
func (r *Result) Fail(err error) {
	r.settle(nil, err)
}

func (r *Result) settle(items []ItemResult, err error) {
	r.mutex.Lock()
	if r.settled {
		r.mutex.Unlock()
		panic("resolution: result settled twice")
	}
	r.settled = true
	r.items = items
	r.err = err
	obs := r.observers
	r.observers = nil
	close(r.done)
	r.mutex.Unlock()

	for _, o := range obs {
		o.notify(err)
	}
}

// Observe registers a success and a failure continuation. Exactly one of the
// two runs, exactly once, regardless of which goroutine settles the result.
// Either callback may be nil.
func (r *Result) Observe(onSuccess func(), onFailure func(error)) {
	o := observer{onSuccess: onSuccess, onFailure: onFailure}

	r.mutex.Lock()
	if !r.settled {
		r.observers = append(r.observers, o)
		r.mutex.Unlock()
		return
	}
	err := r.err
	r.mutex.Unlock()

	o.notify(err)
}

func (o observer) notify(err error) {
	if err != nil {
		if o.onFailure != nil {
			o.onFailure(err)
		}
		return
	}
	if o.onSuccess != nil {
		o.onSuccess()
	}
}

// Done returns a channel closed when the result settles.
func (r *Result) Done() <-chan struct{} {
	return r.done
}

// Wait blocks until the result settles or the context is cancelled.
func (r *Result) Wait(ctx context.Context) ([]ItemResult, error) {
	select {
	case <-r.done:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	r.mutex.Lock()
	defer r.mutex.Unlock()
	return r.items, r.err
}
