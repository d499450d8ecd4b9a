package analytics

import (
	"sync"
	"time"
)

// counterSample is one (timestamp, counter value) observation
type counterSample struct {
	at    time.Time
	value float64
}

// RateWindow retains counter observations over a bounded time window and
// computes a rate()-style derivative: the value delta between the newest and
// oldest retained sample divided by their elapsed time. This mirrors a
// time-windowed derivative, not a true range query.
type RateWindow struct {
	mu      sync.Mutex
	window  time.Duration
	samples []counterSample
}

// NewRateWindow creates a window retaining samples for the given duration
func NewRateWindow(window time.Duration) *RateWindow {
	if window <= 0 {
		window = 5 * time.Minute
	}
	return &RateWindow{window: window}
}

// Observe records a counter value at a point in time and evicts samples that
// have aged out of the window
func (w *RateWindow) Observe(at time.Time, value float64) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.samples = append(w.samples, counterSample{at: at, value: value})

	cutoff := at.Add(-w.window)
	// Keep one sample at or before the cutoff so the rate can span the
	// full window.
	idx := 0
	for i, s := range w.samples {
		if s.at.After(cutoff) {
			break
		}
		idx = i
	}
	if idx > 0 {
		w.samples = w.samples[idx:]
	}
}

// Rate returns the per-second derivative over the retained samples, or 0
// when fewer than two samples exist
func (w *RateWindow) Rate() float64 {
	w.mu.Lock()
	defer w.mu.Unlock()

	if len(w.samples) < 2 {
		return 0
	}

	oldest := w.samples[0]
	newest := w.samples[len(w.samples)-1]
	elapsed := newest.at.Sub(oldest.at).Seconds()
	if elapsed <= 0 {
		return 0
	}

	return (newest.value - oldest.value) / elapsed
}

// Len returns the number of retained samples
func (w *RateWindow) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.samples)
}
