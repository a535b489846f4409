package dsp

// Default vocal range for pitch estimation. Fundamental frequencies outside
// 50–500 Hz are not produced by human speech.
const (
	DefaultMinPitchHz = 50.0
	DefaultMaxPitchHz = 500.0
)

// EstimatePitch estimates the fundamental frequency of the window using
// autocorrelation over the default vocal range. It returns the pitch in Hz
// and a voicing strength in [0, 1]; both are 0 when no periodicity is found
// (silence, noise, or a window too short for the lag range).
func EstimatePitch(samples []float32, sampleRate int) (hz, strength float64) {
	return EstimatePitchInRange(samples, sampleRate, DefaultMinPitchHz, DefaultMaxPitchHz)
}

// EstimatePitchInRange estimates the fundamental frequency restricted to
// [minHz, maxHz]. For each candidate lag L in [sampleRate/maxHz,
// sampleRate/minHz] it computes the normalized autocorrelation
//
//	corr(L) = Σ s[i]*s[i+L] / count
//
// and picks the lag maximizing corr. Ties favor the first (lowest-lag,
// highest-frequency) maximum. The returned strength is the winning
// correlation normalized by the window energy, clamped to [0, 1].
func EstimatePitchInRange(samples []float32, sampleRate int, minHz, maxHz float64) (hz, strength float64) {
	if sampleRate <= 0 || minHz <= 0 || maxHz <= minHz {
		return 0, 0
	}

	minLag := int(float64(sampleRate) / maxHz)
	maxLag := int(float64(sampleRate) / minHz)
	if minLag < 1 {
		minLag = 1
	}
	if maxLag >= len(samples) {
		maxLag = len(samples) - 1
	}
	if minLag > maxLag {
		return 0, 0
	}

	// Window energy (autocorrelation at lag 0) normalizes the strength.
	var energy float64
	for _, s := range samples {
		energy += float64(s) * float64(s)
	}
	if energy == 0 {
		return 0, 0
	}
	energy /= float64(len(samples))

	bestLag := 0
	bestCorr := 0.0
	for lag := minLag; lag <= maxLag; lag++ {
		var sum float64
		count := len(samples) - lag
		for i := 0; i < count; i++ {
			sum += float64(samples[i]) * float64(samples[i+lag])
		}
		corr := sum / float64(count)
		// Strictly greater keeps the first maximum on ties.
		if corr > bestCorr {
			bestCorr = corr
			bestLag = lag
		}
	}
	if bestLag == 0 {
		return 0, 0
	}

	return float64(sampleRate) / float64(bestLag), Clamp(bestCorr/energy, 0, 1)
}
