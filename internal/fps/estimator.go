// Package fps turns per-frame acquisition latencies into a smoothed
// frames-per-second estimate.
package fps

import (
	"sort"
	"sync"
	"time"
)

// WindowSize is the number of latency samples the estimator averages.
const WindowSize = 100

// Divisor selects how the rolling average is normalized.
type Divisor int

const (
	// DivisorWindow always divides by WindowSize. Until the window has
	// filled, unwritten slots count as zero latency, which inflates the
	// early estimate. This is the default behavior.
	DivisorWindow Divisor = iota
	// DivisorFilled divides by the number of slots written so far.
	DivisorFilled
)

// String returns the config spelling of the divisor
func (d Divisor) String() string {
	if d == DivisorFilled {
		return "filled"
	}
	return "window"
}

// ParseDivisor accepts "window" (or "") and "filled".
func ParseDivisor(s string) (Divisor, bool) {
	switch s {
	case "", "window":
		return DivisorWindow, true
	case "filled":
		return DivisorFilled, true
	default:
		return DivisorWindow, false
	}
}

// Estimator is a fixed-size ring of latency samples in milliseconds.
//
// Record is called by the acquisition loop only; the mutex exists so
// Latency and Last can be read from a stats goroutine.
type Estimator struct {
	mu      sync.Mutex
	divisor Divisor
	samples [WindowSize]float64
	cursor  int // next slot to write, always in [0, WindowSize)
	count   int // slots written, capped at WindowSize
	sum     float64
	last    float64
}

// New returns an empty estimator.
func New(divisor Divisor) *Estimator {
	return &Estimator{divisor: divisor}
}

// Record stores latency at the cursor, advances the cursor modulo the
// window and returns the current estimate 1000 / (sum / divisor).
//
// A zero sum yields 0 rather than +Inf.
func (e *Estimator) Record(latency time.Duration) float64 {
	ms := float64(latency) / float64(time.Millisecond)
	if ms < 0 {
		ms = 0
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	e.sum += ms - e.samples[e.cursor]
	e.samples[e.cursor] = ms
	e.cursor = (e.cursor + 1) % WindowSize
	if e.count < WindowSize {
		e.count++
	}

	// Recompute from the window when float drift could matter
	if e.cursor == 0 {
		e.sum = 0
		for _, s := range e.samples {
			e.sum += s
		}
	}

	n := float64(WindowSize)
	if e.divisor == DivisorFilled {
		n = float64(e.count)
	}
	if e.sum <= 0 {
		e.last = 0
		return 0
	}
	e.last = 1000 / (e.sum / n)
	return e.last
}

// Last returns the most recent estimate (0 before the first sample).
func (e *Estimator) Last() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.last
}

// Cursor returns the slot the next sample will be written to.
func (e *Estimator) Cursor() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cursor
}

// LatencyStats summarizes the written slots of the window.
type LatencyStats struct {
	Samples int
	MeanMS  float64
	P95MS   float64
	MaxMS   float64
}

// Latency returns mean/p95/max over the written samples. An empty window
// returns zeros.
func (e *Estimator) Latency() LatencyStats {
	e.mu.Lock()
	n := e.count
	buf := make([]float64, n)
	copy(buf, e.samples[:n])
	e.mu.Unlock()

	if n == 0 {
		return LatencyStats{}
	}

	sort.Float64s(buf)
	var sum float64
	for _, v := range buf {
		sum += v
	}
	idx := int(float64(n)*0.95+0.5) - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= n {
		idx = n - 1
	}
	return LatencyStats{
		Samples: n,
		MeanMS:  sum / float64(n),
		P95MS:   buf[idx],
		MaxMS:   buf[n-1],
	}
}

// Window returns the number of slots in the latency window.
func (e *Estimator) Window() int { return WindowSize }
