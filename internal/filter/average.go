// Package filter provides the numeric smoothers behind the animated
// underline, loudness bars and scrolling of the caption overlay.
//
// None of the types are safe for concurrent use; they are owned by one
// session tick.
package filter

import (
	"errors"
	"fmt"
	"math"
)

// MovingAverage is the mean of the last n values, kept in a ring buffer.
type MovingAverage struct {
	buf  []float64
	next int
	n    int
	sum  float64
}

// NewMovingAverage returns an average over the last size values. A size
// below 1 is treated as 1.
func NewMovingAverage(size int) *MovingAverage {
	return &MovingAverage{buf: make([]float64, max(size, 1))}
}

// Add pushes v, evicting the oldest value once the window is full.
func (m *MovingAverage) Add(v float64) {
	m.sum += v - m.buf[m.next]
	m.buf[m.next] = v
	m.next = (m.next + 1) % len(m.buf)
	if m.n < len(m.buf) {
		m.n++
	}
	if m.next == 0 {
		// Rebuild the running sum once per lap so rounding errors do not
		// accumulate.
		m.sum = 0
		for _, x := range m.buf {
			m.sum += x
		}
	}
}

// Value returns the current mean, or 0 before the first Add.
func (m *MovingAverage) Value() float64 {
	if m.n == 0 {
		return 0
	}
	return m.sum / float64(m.n)
}

// Int returns Value rounded to the nearest integer.
func (m *MovingAverage) Int() int {
	return int(math.Round(m.Value()))
}

// Len returns how many values are in the window.
func (m *MovingAverage) Len() int { return m.n }

// Reset empties the window.
func (m *MovingAverage) Reset() {
	clear(m.buf)
	m.next, m.n, m.sum = 0, 0, 0
}

// ErrAlpha is returned for a smoothing factor outside (0, 1].
var ErrAlpha = errors.New("filter: alpha must be in (0, 1]")

// LowPassFilter is an exponential smoother:
// s = alpha*v + (1-alpha)*s_prev. The first value passes through.
type LowPassFilter struct {
	alpha  float64
	primed bool
	last   float64
	value  float64
}

// NewLowPassFilter returns a filter with the given smoothing factor.
func NewLowPassFilter(alpha float64) (*LowPassFilter, error) {
	if err := checkAlpha(alpha); err != nil {
		return nil, err
	}
	return &LowPassFilter{alpha: alpha}, nil
}

func checkAlpha(alpha float64) error {
	if !(alpha > 0 && alpha <= 1) {
		return fmt.Errorf("%w: got %v", ErrAlpha, alpha)
	}
	return nil
}

// Filter smooths v with the configured alpha.
func (f *LowPassFilter) Filter(v float64) float64 {
	if !f.primed {
		f.primed = true
		f.value = v
	} else {
		f.value = f.alpha*v + (1-f.alpha)*f.value
	}
	f.last = v
	return f.value
}

// FilterWithAlpha changes alpha and smooths v. An invalid alpha leaves the
// filter untouched and returns an error.
func (f *LowPassFilter) FilterWithAlpha(v, alpha float64) (float64, error) {
	if err := checkAlpha(alpha); err != nil {
		return f.value, err
	}
	f.alpha = alpha
	return f.Filter(v), nil
}

// Last returns the last raw input and whether there was one.
func (f *LowPassFilter) Last() (float64, bool) { return f.last, f.primed }

// Value returns the last smoothed output.
func (f *LowPassFilter) Value() float64 { return f.value }

// Reset forgets all history.
func (f *LowPassFilter) Reset() {
	f.primed, f.last, f.value = false, 0, 0
}
