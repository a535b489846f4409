// Package voice implements the streaming voice analyzer: it consumes
// fixed-size PCM windows from the live capture stream and publishes
// exponentially smoothed volume, pitch, clarity, pace and quality snapshots.
//
// The analyzer is passive and purely computational; the session's voice loop
// feeds it one window per capture tick via ProcessWindow. All signal math
// lives in pkg/dsp.
package voice

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/dsp"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Analyzer calibration defaults. These are tuning values; the score shapes
// (RMS volume, autocorrelation pitch stability, mid-band clarity, envelope
// peak pace) are fixed.
const (
	// DefaultAlpha is the exponential smoothing factor for every published
	// field.
	DefaultAlpha = 0.3

	// DefaultVolumeCalibration converts RMS amplitude of normalized PCM to
	// the 0–100 volume scale. Conversational speech around RMS 0.2 lands
	// near 65.
	DefaultVolumeCalibration = 320

	// DefaultConsistencyK converts the volume-history standard deviation to
	// a consistency penalty: consistency = max(0, 100 - stddev*k).
	DefaultConsistencyK = 2.0

	// DefaultClarityScale converts the mid-band energy ratio to 0–100.
	DefaultClarityScale = 180

	// DefaultSpeechThreshold is the 0–100 volume level an envelope peak must
	// exceed to count toward the pace estimate.
	DefaultSpeechThreshold = 15.0

	// DefaultExpectedPeaks is the envelope peak count of a comfortable
	// speaking rhythm over the pace window (~2s of audio).
	DefaultExpectedPeaks = 5

	// DefaultPeakPenalty is the rhythm score lost per peak of deviation
	// from the expected count.
	DefaultPeakPenalty = 9.0

	// volumeHistorySize is the rolling window behind the consistency stat.
	volumeHistorySize = 100

	// envelopeSize is the number of recent windows scanned for pace peaks.
	envelopeSize = 20

	// pitchHistorySize is the number of recent voiced pitch estimates
	// behind the stability stat.
	pitchHistorySize = 20
)

// ErrInvalidWindow is published when a tick receives an empty window or a
// non-positive sample rate.
var ErrInvalidWindow = errors.New("voice: invalid audio window")

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithAlpha sets the smoothing factor in (0, 1].
func WithAlpha(alpha float64) Option {
	return func(a *Analyzer) {
		if alpha > 0 && alpha <= 1 {
			a.alpha = alpha
		}
	}
}

// WithVolumeCalibration sets the RMS-to-volume conversion constant.
func WithVolumeCalibration(c float64) Option {
	return func(a *Analyzer) {
		if c > 0 {
			a.calibration = c
		}
	}
}

// WithPitchRange restricts the pitch search to [minHz, maxHz].
func WithPitchRange(minHz, maxHz float64) Option {
	return func(a *Analyzer) {
		if minHz > 0 && maxHz > minHz {
			a.minPitchHz, a.maxPitchHz = minHz, maxHz
		}
	}
}

// WithPace sets the expected envelope peak count and the per-peak penalty.
func WithPace(expectedPeaks int, penalty float64) Option {
	return func(a *Analyzer) {
		if expectedPeaks > 0 {
			a.expectedPeaks = expectedPeaks
		}
		if penalty > 0 {
			a.peakPenalty = penalty
		}
	}
}

// WithOnAnalysis registers the snapshot publication callback. The callback
// receives a value copy after every processed window and must not block.
func WithOnAnalysis(fn func(types.VoiceMetrics)) Option {
	return func(a *Analyzer) {
		a.onAnalysis = fn
	}
}

// WithOnError registers the tick error callback.
func WithOnError(fn func(error)) Option {
	return func(a *Analyzer) {
		a.onError = fn
	}
}

// Stats counts the analyzer's window handling for diagnostics.
type Stats struct {
	Processed uint64
	Skipped   uint64
}

// Analyzer is the streaming voice analyzer. One instance is created per
// coaching session and discarded on session end. ProcessWindow must be
// called from a single goroutine; Snapshot and WindowStats may be called
// from any.
type Analyzer struct {
	alpha           float64
	calibration     float64
	consistencyK    float64
	clarityScale    float64
	speechThreshold float64
	expectedPeaks   int
	peakPenalty     float64
	minPitchHz      float64
	maxPitchHz      float64

	onAnalysis func(types.VoiceMetrics)
	onError    func(error)

	busy atomic.Bool

	processed atomic.Uint64
	skipped   atomic.Uint64

	mu            sync.RWMutex
	metrics       types.VoiceMetrics
	volumeHistory *dsp.Ring
	envelope      *dsp.Ring
	pitchHistory  *dsp.Ring
}

// New creates an Analyzer with default calibration.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		alpha:           DefaultAlpha,
		calibration:     DefaultVolumeCalibration,
		consistencyK:    DefaultConsistencyK,
		clarityScale:    DefaultClarityScale,
		speechThreshold: DefaultSpeechThreshold,
		expectedPeaks:   DefaultExpectedPeaks,
		peakPenalty:     DefaultPeakPenalty,
		minPitchHz:      dsp.DefaultMinPitchHz,
		maxPitchHz:      dsp.DefaultMaxPitchHz,
		onAnalysis:      func(types.VoiceMetrics) {},
		onError:         func(error) {},
		volumeHistory:   dsp.NewRing(volumeHistorySize),
		envelope:        dsp.NewRing(envelopeSize),
		pitchHistory:    dsp.NewRing(pitchHistorySize),
	}
	for _, o := range opts {
		o(a)
	}
	return a
}

// ProcessWindow runs one voice tick: volume, pitch, clarity and pace
// estimation over the window, quality fusion, smoothing, publication. A tick
// arriving while the previous one is still running is skipped, never queued.
// Invalid windows go to the error callback and the loop resumes with the
// next window.
func (a *Analyzer) ProcessWindow(window types.AudioWindow) {
	if !a.busy.CompareAndSwap(false, true) {
		a.skipped.Add(1)
		return
	}
	defer a.busy.Store(false)

	if len(window.Samples) == 0 || window.SampleRate <= 0 {
		a.onError(ErrInvalidWindow)
		return
	}

	rms := dsp.RMS(window.Samples)
	volume := dsp.Clamp(rms*a.calibration, 0, 100)
	volumeConf := dsp.Clamp(rms*20, 0, 1)

	pitchHz, voicing := dsp.EstimatePitchInRange(window.Samples, window.SampleRate, a.minPitchHz, a.maxPitchHz)

	clarityRatio := dsp.MidBandRatio(window.Samples, window.SampleRate)
	clarity := dsp.Clamp(clarityRatio*a.clarityScale, 0, 100)

	now := time.Now().UnixMilli()

	a.mu.Lock()
	a.volumeHistory.Push(volume)
	a.envelope.Push(volume)
	if pitchHz > 0 {
		a.pitchHistory.Push(pitchHz)
	}

	consistency := dsp.Clamp(100-dsp.StdDev(a.volumeHistory.Values())*a.consistencyK, 0, 100)
	stability := a.stabilityLocked()
	rhythm := a.rhythmLocked()

	breakdown := types.QualityBreakdown{
		Consistency: consistency,
		Stability:   stability,
		Clarity:     clarity,
		Rhythm:      rhythm,
	}

	a.metrics.Volume.Smooth(volume, volumeConf, a.alpha, now)
	if pitchHz > 0 {
		a.metrics.Pitch.Smooth(stability, voicing, a.alpha, now)
	}
	a.metrics.Clarity.Smooth(clarity, volumeConf, a.alpha, now)
	paceConf := float64(a.envelope.Len()) / float64(envelopeSize)
	a.metrics.Pace.Smooth(rhythm, paceConf, a.alpha, now)
	qualityConf := (volumeConf + voicing + paceConf) / 3
	a.metrics.Quality.Smooth(breakdown.Overall(), qualityConf, a.alpha, now)
	a.metrics.Breakdown = breakdown
	a.metrics.PitchHz = pitchHz
	out := a.metrics
	a.mu.Unlock()

	a.processed.Add(1)
	a.onAnalysis(out)
}

// stabilityLocked computes the pitch stability score from the voiced pitch
// history: 100 - variance/mean*100, clamped to [0, 100]. A history of fewer
// than two voiced frames reads as fully stable.
func (a *Analyzer) stabilityLocked() float64 {
	values := a.pitchHistory.Values()
	if len(values) < 2 {
		return 100
	}
	mean := dsp.Mean(values)
	if mean <= 0 {
		return 0
	}
	return dsp.Clamp(100-dsp.Variance(values)/mean*100, 0, 100)
}

// rhythmLocked counts speech peaks in the recent volume envelope and scores
// the distance from the expected peak count.
func (a *Analyzer) rhythmLocked() float64 {
	peaks := dsp.CountPeaks(a.envelope.Values(), a.speechThreshold)
	deviation := float64(peaks - a.expectedPeaks)
	if deviation < 0 {
		deviation = -deviation
	}
	return dsp.Clamp(100-deviation*a.peakPenalty, 0, 100)
}

// Snapshot returns a value copy of the current smoothed metrics.
func (a *Analyzer) Snapshot() types.VoiceMetrics {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.metrics
}

// WindowStats returns processed/skipped window counts for diagnostics.
func (a *Analyzer) WindowStats() Stats {
	return Stats{
		Processed: a.processed.Load(),
		Skipped:   a.skipped.Load(),
	}
}
