// Package dsp provides the small signal-processing kernel behind the voice
// analyzer: fixed-size sliding-window statistics (RMS, variance, peak
// picking), autocorrelation pitch estimation, and Goertzel band energies.
//
// Everything here is pure and allocation-light; callers own all buffers and
// nothing retains state between calls except Ring, which is an explicit
// rolling window.
package dsp

import "math"

// RMS returns the root mean square amplitude of the window, in the same unit
// as the samples (so [0, 1] for normalized PCM).
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// Variance returns the population variance of values, 0 for fewer than two
// values.
func Variance(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean := Mean(values)
	var sum float64
	for _, v := range values {
		d := v - mean
		sum += d * d
	}
	return sum / float64(len(values))
}

// StdDev returns the population standard deviation of values.
func StdDev(values []float64) float64 {
	return math.Sqrt(Variance(values))
}

// CountPeaks counts local maxima strictly above threshold. A peak is a value
// greater than both neighbors; the first and last elements never count.
func CountPeaks(values []float64, threshold float64) int {
	peaks := 0
	for i := 1; i < len(values)-1; i++ {
		if values[i] <= threshold {
			continue
		}
		if values[i] > values[i-1] && values[i] > values[i+1] {
			peaks++
		}
	}
	return peaks
}

// Clamp limits v to [lo, hi].
func Clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// Ring is a fixed-capacity rolling window of float64 values. Once full, each
// Push evicts the oldest value. The zero value is not usable; construct with
// NewRing. Ring is not safe for concurrent use; each analyzer owns its rings.
type Ring struct {
	buf  []float64
	next int
	full bool
}

// NewRing creates a Ring holding up to capacity values. Capacity must be at
// least 1.
func NewRing(capacity int) *Ring {
	if capacity < 1 {
		capacity = 1
	}
	return &Ring{buf: make([]float64, 0, capacity)}
}

// Push appends v, evicting the oldest value when the ring is full.
func (r *Ring) Push(v float64) {
	if !r.full {
		r.buf = append(r.buf, v)
		if len(r.buf) == cap(r.buf) {
			r.full = true
		}
		return
	}
	r.buf[r.next] = v
	r.next = (r.next + 1) % len(r.buf)
}

// Len returns the number of values currently held.
func (r *Ring) Len() int {
	return len(r.buf)
}

// Full reports whether the ring has reached capacity.
func (r *Ring) Full() bool {
	return r.full
}

// Values returns the held values oldest first, as a fresh slice.
func (r *Ring) Values() []float64 {
	out := make([]float64, len(r.buf))
	if !r.full {
		copy(out, r.buf)
		return out
	}
	n := copy(out, r.buf[r.next:])
	copy(out[n:], r.buf[:r.next])
	return out
}

// Last returns the most recently pushed value and whether one exists.
func (r *Ring) Last() (float64, bool) {
	if len(r.buf) == 0 {
		return 0, false
	}
	if !r.full {
		return r.buf[len(r.buf)-1], true
	}
	idx := r.next - 1
	if idx < 0 {
		idx = len(r.buf) - 1
	}
	return r.buf[idx], true
}
