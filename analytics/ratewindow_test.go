package analytics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRateWindow_TwoSamples(t *testing.T) {
	w := NewRateWindow(5 * time.Minute)
	base := time.Now()

	w.Observe(base, 100)
	w.Observe(base.Add(5*time.Second), 150)

	// (150 - 100) / 5s = 10 units/sec
	assert.Equal(t, 10.0, w.Rate())
}

func TestRateWindow_FewerThanTwoSamples(t *testing.T) {
	w := NewRateWindow(5 * time.Minute)

	assert.Equal(t, 0.0, w.Rate())

	w.Observe(time.Now(), 100)
	assert.Equal(t, 0.0, w.Rate())
}

func TestRateWindow_EvictsAgedSamples(t *testing.T) {
	w := NewRateWindow(time.Minute)
	base := time.Now()

	w.Observe(base, 0)
	w.Observe(base.Add(30*time.Second), 30)
	w.Observe(base.Add(2*time.Minute), 120)

	// The first sample aged out; the rate spans the retained samples.
	assert.LessOrEqual(t, w.Len(), 2)
	assert.InDelta(t, 1.0, w.Rate(), 0.01)
}

func TestRateWindow_ZeroElapsed(t *testing.T) {
	w := NewRateWindow(time.Minute)
	at := time.Now()

	w.Observe(at, 1)
	w.Observe(at, 2)

	assert.Equal(t, 0.0, w.Rate())
}

func TestRateWindow_CounterFlat(t *testing.T) {
	w := NewRateWindow(time.Minute)
	base := time.Now()

	w.Observe(base, 42)
	w.Observe(base.Add(10*time.Second), 42)

	assert.Equal(t, 0.0, w.Rate())
}
