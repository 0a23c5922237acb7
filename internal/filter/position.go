package filter

import (
	"fmt"
	"math"
	"time"
)

// Dim is the dimension of a filtered position.
const Dim = 3

// PositionFilter is a one-euro filter over a 3-vector. It smooths jitter
// at low speeds and follows quickly at high speeds.
type PositionFilter struct {
	freq      float64
	minCutoff float64
	beta      float64
	dCutoff   float64
	last      time.Time
	v, dv     [Dim]LowPassFilter
}

// NewPositionFilter returns a filter sampled at freq Hz. freq, minCutoff
// and dCutoff must be positive.
func NewPositionFilter(freq, minCutoff, beta, dCutoff float64) (*PositionFilter, error) {
	if freq <= 0 || minCutoff <= 0 || dCutoff <= 0 {
		return nil, fmt.Errorf("filter: position filter needs positive freq and cutoffs, got freq=%v min_cutoff=%v d_cutoff=%v",
			freq, minCutoff, dCutoff)
	}
	f := &PositionFilter{freq: freq, minCutoff: minCutoff, beta: beta, dCutoff: dCutoff}
	for i := range Dim {
		f.v[i].alpha = f.alpha(minCutoff)
		f.dv[i].alpha = f.alpha(dCutoff)
	}
	return f, nil
}

func (f *PositionFilter) alpha(cutoff float64) float64 {
	te := 1 / f.freq
	tau := 1 / (2 * math.Pi * cutoff)
	return 1 / (1 + tau/te)
}

// Filter smooths p sampled at now. The sampling frequency follows the
// spacing of successive timestamps; a zero now keeps the current frequency.
func (f *PositionFilter) Filter(p [Dim]float64, now time.Time) [Dim]float64 {
	if !now.IsZero() {
		if !f.last.IsZero() {
			if dt := now.Sub(f.last).Seconds(); dt > 0 {
				f.freq = 1 / dt
			}
		}
		f.last = now
	}

	var out [Dim]float64
	for i := range Dim {
		dx := 0.0
		if prev, ok := f.v[i].Last(); ok {
			dx = (p[i] - prev) * f.freq
		}
		f.dv[i].alpha = f.alpha(f.dCutoff)
		edx := f.dv[i].Filter(dx)
		f.v[i].alpha = f.alpha(f.minCutoff + f.beta*math.Abs(edx))
		out[i] = f.v[i].Filter(p[i])
	}
	return out
}

// Reset forgets all history.
func (f *PositionFilter) Reset() {
	f.last = time.Time{}
	for i := range Dim {
		f.v[i].Reset()
		f.dv[i].Reset()
	}
}
