// Package scoring aggregates the freshest analyzer snapshots into a single
// AnalysisResult: an overall score over the dimensions that have data,
// strength callouts, and prioritized improvement advice drawn from the
// rubric catalog.
package scoring

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"math"
	"math/rand/v2"
	"slices"
	"time"

	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/pkg/dsp"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Canonical dimension names shared between the analyzers, the rubric, and
// the aggregate result.
const (
	DimVolume     = "volume"
	DimPitch      = "pitch"
	DimClarity    = "clarity"
	DimPace       = "pace"
	DimPosture    = "posture"
	DimGestures   = "gestures"
	DimEyeContact = "eyeContact"
	DimEmotion    = "emotion"
	DimFluency    = "fluency"
)

// aggregationOrder fixes the dimension iteration order so selection is
// deterministic regardless of map layout.
var aggregationOrder = []string{
	DimVolume, DimPitch, DimClarity, DimPace,
	DimPosture, DimGestures, DimEyeContact, DimEmotion,
	DimFluency,
}

const (
	// DefaultSeed feeds the message selector when no seed is configured.
	DefaultSeed uint64 = 1

	// fillerPenaltyScale converts the filler-word ratio into score loss:
	// 5% fillers costs 20 points.
	fillerPenaltyScale = 400.0
)

// Snapshot is the complete input to one aggregation pass.
type Snapshot struct {
	// Voice is the latest voice analyzer state.
	Voice types.VoiceMetrics

	// Vision is the latest vision analyzer state.
	Vision types.VisionMetrics

	// FillerRatio is filler words over total words in the recent transcript.
	// Only read when HasTranscript is set.
	FillerRatio float64

	// HasTranscript reports whether transcript-derived signals are available.
	HasTranscript bool
}

// Option customizes an Engine.
type Option func(*Engine)

// WithSeed fixes the base seed of the message selector.
func WithSeed(seed uint64) Option {
	return func(e *Engine) { e.seed = seed }
}

// WithNow overrides the result timestamp source.
func WithNow(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

// Engine computes AnalysisResults from snapshots. Message wording is drawn
// from the rubric pools with a selector seeded from the snapshot contents,
// so identical snapshots always produce identical results.
type Engine struct {
	catalog *rubric.Catalog
	seed    uint64
	now     func() time.Time
}

// NewEngine builds an engine over the given rubric catalog.
func NewEngine(catalog *rubric.Catalog, opts ...Option) *Engine {
	e := &Engine{
		catalog: catalog,
		seed:    DefaultSeed,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Aggregate combines the snapshot into one immutable AnalysisResult.
// Dimensions that have never produced a measurement are excluded from the
// overall mean, not treated as zero.
func (e *Engine) Aggregate(snap Snapshot) types.AnalysisResult {
	dims := collectDimensions(snap)

	var sum float64
	for _, name := range aggregationOrder {
		if score, ok := dims[name]; ok {
			sum += score
		}
	}
	overall := 0.0
	if len(dims) > 0 {
		overall = sum / float64(len(dims))
	}

	rng := e.selector(dims)
	thresholds := e.catalog.Thresholds()

	var strengths []string
	var improvements []types.Improvement
	for _, name := range aggregationOrder {
		score, ok := dims[name]
		if !ok {
			continue
		}
		switch {
		case score >= thresholds.Strength:
			strengths = append(strengths, e.strengthMessage(name, rng))
		case score < thresholds.Improvement:
			improvements = append(improvements, types.Improvement{
				Area:     name,
				Score:    score,
				Message:  e.adviceMessage(name, rng),
				Priority: priorityFor(score, thresholds),
			})
		}
	}

	slices.SortStableFunc(improvements, func(a, b types.Improvement) int {
		if a.Priority != b.Priority {
			return int(b.Priority) - int(a.Priority)
		}
		switch {
		case a.Score < b.Score:
			return -1
		case a.Score > b.Score:
			return 1
		default:
			return 0
		}
	})

	return types.AnalysisResult{
		OverallScore: overall,
		Dimensions:   dims,
		Strengths:    strengths,
		Improvements: improvements,
		Timestamp:    e.now(),
	}
}

// collectDimensions gathers every dimension that has produced at least one
// measurement. A zero TimestampMs means the snapshot was never touched.
func collectDimensions(snap Snapshot) map[string]float64 {
	dims := make(map[string]float64)

	put := func(name string, m types.MetricSnapshot) {
		if m.TimestampMs > 0 {
			dims[name] = m.Score
		}
	}
	put(DimVolume, snap.Voice.Volume)
	put(DimPitch, snap.Voice.Pitch)
	put(DimClarity, snap.Voice.Clarity)
	put(DimPace, snap.Voice.Pace)
	put(DimPosture, snap.Vision.Posture)
	put(DimGestures, snap.Vision.Gestures)
	put(DimEyeContact, snap.Vision.EyeContact)
	put(DimEmotion, snap.Vision.Emotion)

	if snap.HasTranscript {
		dims[DimFluency] = dsp.Clamp(100-snap.FillerRatio*fillerPenaltyScale, 0, 100)
	}
	return dims
}

// priorityFor maps a below-improvement score onto its advice priority band.
func priorityFor(score float64, th rubric.Thresholds) types.Priority {
	switch {
	case score < th.HighPriority:
		return types.PriorityHigh
	case score < th.MediumPriority:
		return types.PriorityMedium
	default:
		return types.PriorityLow
	}
}

// selector builds the message picker for this pass. The seed mixes the
// configured base seed with a digest of the dimension scores, making the
// wording a pure function of the input.
func (e *Engine) selector(dims map[string]float64) *rand.Rand {
	h := fnv.New64a()
	var buf [8]byte
	for _, name := range aggregationOrder {
		score, ok := dims[name]
		if !ok {
			continue
		}
		h.Write([]byte(name))
		binary.BigEndian.PutUint64(buf[:], math.Float64bits(score))
		h.Write(buf[:])
	}
	return rand.New(rand.NewPCG(e.seed, h.Sum64()))
}

func (e *Engine) strengthMessage(name string, rng *rand.Rand) string {
	d, ok := e.catalog.Dimension(name)
	if !ok || len(d.Strengths) == 0 {
		return fmt.Sprintf("Strong %s.", name)
	}
	return d.Strengths[rng.IntN(len(d.Strengths))]
}

func (e *Engine) adviceMessage(name string, rng *rand.Rand) string {
	d, ok := e.catalog.Dimension(name)
	if !ok || len(d.Advice) == 0 {
		return fmt.Sprintf("Focus on improving your %s.", name)
	}
	return d.Advice[rng.IntN(len(d.Advice))]
}
