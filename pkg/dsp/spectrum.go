package dsp

import "math"

// DefaultSpectrumBins is the number of evenly spaced frequency bins used by
// MidBandRatio. 64 bins over a 100ms window keeps the Goertzel bank well
// under a millisecond while resolving the broad spectral balance the clarity
// score needs.
const DefaultSpectrumBins = 64

// Goertzel returns the signal power at a single frequency, computed with the
// Goertzel algorithm. It is the per-bin building block for the band energy
// helpers; power is non-negative and unnormalized.
func Goertzel(samples []float32, sampleRate int, freq float64) float64 {
	n := len(samples)
	if n == 0 || sampleRate <= 0 || freq <= 0 || freq >= float64(sampleRate)/2 {
		return 0
	}

	omega := 2 * math.Pi * freq / float64(sampleRate)
	coeff := 2 * math.Cos(omega)

	var s0, s1, s2 float64
	for _, sample := range samples {
		s0 = float64(sample) + coeff*s1 - s2
		s2 = s1
		s1 = s0
	}
	return s1*s1 + s2*s2 - coeff*s1*s2
}

// SpectrumBins returns the Goertzel power of `bins` evenly spaced frequencies
// spanning (0, Nyquist). Bin i is centered at Nyquist*(i+1)/(bins+1), so no
// bin sits at DC or at Nyquist itself.
func SpectrumBins(samples []float32, sampleRate, bins int) []float64 {
	if bins < 1 || sampleRate <= 0 || len(samples) == 0 {
		return nil
	}
	nyquist := float64(sampleRate) / 2
	out := make([]float64, bins)
	for i := range out {
		freq := nyquist * float64(i+1) / float64(bins+1)
		out[i] = Goertzel(samples, sampleRate, freq)
	}
	return out
}

// MidBandRatio returns the fraction of total spectral energy held by the
// middle bins (25%–75% of the analyzed range), in [0, 1]. A balanced,
// non-muffled voice concentrates energy here; 0 is returned when the window
// carries no energy at all.
func MidBandRatio(samples []float32, sampleRate int) float64 {
	bins := SpectrumBins(samples, sampleRate, DefaultSpectrumBins)
	if len(bins) == 0 {
		return 0
	}

	var total, mid float64
	lo := len(bins) / 4
	hi := (3 * len(bins)) / 4
	for i, p := range bins {
		total += p
		if i >= lo && i < hi {
			mid += p
		}
	}
	if total == 0 {
		return 0
	}
	return mid / total
}
