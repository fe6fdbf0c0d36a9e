package circuitbreaker

// NoRate is the FailureRate sentinel reported while the active window has not
// yet filled. An unfilled window never triggers a transition.
const NoRate = float64(-1)

// window is a fixed-capacity ring of call outcomes for the current state.
// Each slot records whether the call was a counted failure; successes and
// predicate-rejected failures occupy slots without raising the rate.
type window struct {
	buf    []bool
	pos    int // next write position
	filled int // recorded outcomes, up to len(buf)
	fails  int // counted failures currently in the ring
}

func newWindow(capacity int) *window {
	return &window{buf: make([]bool, capacity)}
}

// record appends an outcome, evicting the oldest entry once at capacity.
func (w *window) record(countedFailure bool) {
	if w.filled == len(w.buf) {
		if w.buf[w.pos] {
			w.fails--
		}
	} else {
		w.filled++
	}

	w.buf[w.pos] = countedFailure
	if countedFailure {
		w.fails++
	}

	w.pos = (w.pos + 1) % len(w.buf)
}

// failureRate returns the percentage of counted failures in the ring.
// ok is false until the ring has filled.
func (w *window) failureRate() (rate float64, ok bool) {
	if w.filled < len(w.buf) {
		return NoRate, false
	}
	return float64(w.fails) / float64(w.filled) * 100, true
}
