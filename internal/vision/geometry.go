package vision

import (
	"math"
	"math/rand/v2"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Geometry scorer defaults. The exact penalty constants are calibration
// values; the keypoint wiring and the fallback-on-missing behavior are the
// load-bearing parts.
const (
	// DefaultMinKeypointScore is the visibility threshold below which a
	// keypoint counts as missing.
	DefaultMinKeypointScore = 0.3

	// FallbackPostureScore is returned when a required posture keypoint is
	// missing, instead of propagating a misleading high or low score.
	FallbackPostureScore = 50

	// NoteIncompletePose flags a frame whose posture fell back because of
	// missing keypoints.
	NoteIncompletePose = "incomplete pose"
)

// requiredPostureKeypoints are the body landmarks the posture heuristic needs.
var requiredPostureKeypoints = []string{
	types.KPNose,
	types.KPLeftShoulder,
	types.KPRightShoulder,
	types.KPLeftHip,
	types.KPRightHip,
}

// allBodyKeypoints is the full 17-point COCO set used for the body-presence
// fraction.
var allBodyKeypoints = []string{
	types.KPNose,
	types.KPLeftEye, types.KPRightEye,
	types.KPLeftEar, types.KPRightEar,
	types.KPLeftShoulder, types.KPRightShoulder,
	types.KPLeftElbow, types.KPRightElbow,
	types.KPLeftWrist, types.KPRightWrist,
	types.KPLeftHip, types.KPRightHip,
	types.KPLeftKnee, types.KPRightKnee,
	types.KPLeftAnkle, types.KPRightAnkle,
}

// DimensionScore is the result of one geometric heuristic for one frame.
type DimensionScore struct {
	// Score in [0, 100].
	Score float64

	// Confidence in [0, 1], derived from the detection scores of the
	// keypoints the heuristic consumed.
	Confidence float64

	// Incomplete reports that required keypoints were missing and Score
	// holds a fallback rather than a measurement.
	Incomplete bool
}

// ScorerOption configures a Scorer.
type ScorerOption func(*Scorer)

// WithMinKeypointScore sets the visibility threshold for keypoints.
func WithMinKeypointScore(min float64) ScorerOption {
	return func(s *Scorer) {
		s.minScore = min
	}
}

// WithNoise adds a uniform ±amplitude jitter to every produced score, seeded
// deterministically. The default amplitude is 0: scoring is fully
// deterministic unless a caller explicitly opts in (demo mode).
func WithNoise(amplitude float64, seed uint64) ScorerOption {
	return func(s *Scorer) {
		s.noise = amplitude
		s.rng = rand.New(rand.NewPCG(seed, seed))
	}
}

// Scorer maps named-keypoint sets to posture, gesture, eye-contact and
// emotion scores via pure geometric heuristics. It holds no per-frame state;
// the same input always produces the same output unless noise was enabled.
type Scorer struct {
	minScore float64
	noise    float64
	rng      *rand.Rand
}

// NewScorer creates a Scorer with the default visibility threshold and no
// noise.
func NewScorer(opts ...ScorerOption) *Scorer {
	s := &Scorer{minScore: DefaultMinKeypointScore}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Posture scores upright stance from shoulder levelness, hip levelness, and
// the horizontal offset of the nose from the hip center (spine tilt). Each
// contributes a penalty against a ceiling of 100. A missing required keypoint
// short-circuits to FallbackPostureScore with Incomplete set.
func (s *Scorer) Posture(body types.KeypointSet) DimensionScore {
	kps := make(map[string]types.Keypoint, len(requiredPostureKeypoints))
	var confSum float64
	for _, name := range requiredPostureKeypoints {
		kp, ok := body.Visible(name, s.minScore)
		if !ok {
			return DimensionScore{Score: FallbackPostureScore, Confidence: 0.3, Incomplete: true}
		}
		kps[name] = kp
		confSum += kp.Score
	}

	ls, rs := kps[types.KPLeftShoulder], kps[types.KPRightShoulder]
	lh, rh := kps[types.KPLeftHip], kps[types.KPRightHip]
	nose := kps[types.KPNose]

	shoulderWidth := math.Abs(ls.X - rs.X)
	hipWidth := math.Abs(lh.X - rh.X)
	if shoulderWidth == 0 || hipWidth == 0 {
		return DimensionScore{Score: FallbackPostureScore, Confidence: 0.3, Incomplete: true}
	}

	shoulderTilt := math.Abs(ls.Y-rs.Y) / shoulderWidth
	hipTilt := math.Abs(lh.Y-rh.Y) / hipWidth
	hipCenterX := (lh.X + rh.X) / 2
	spineTilt := math.Abs(nose.X-hipCenterX) / shoulderWidth

	score := 100.0
	score -= math.Min(35, shoulderTilt*150)
	score -= math.Min(25, hipTilt*120)
	score -= math.Min(40, spineTilt*100)

	return DimensionScore{
		Score:      s.jitter(clamp(score, 0, 100)),
		Confidence: confSum / float64(len(requiredPostureKeypoints)),
	}
}

// Gestures scores hand activity from wrist raise above the shoulder line and
// horizontal spread away from the body, each normalized by arm length and
// averaged over both arms. Arms whose keypoints are missing are skipped; with
// no measurable arm the result is Incomplete.
func (s *Scorer) Gestures(body types.KeypointSet) DimensionScore {
	type arm struct{ shoulder, elbow, wrist string }
	arms := []arm{
		{types.KPLeftShoulder, types.KPLeftElbow, types.KPLeftWrist},
		{types.KPRightShoulder, types.KPRightElbow, types.KPRightWrist},
	}

	var total, confSum float64
	measured := 0
	for _, a := range arms {
		shoulder, okS := body.Visible(a.shoulder, s.minScore)
		wrist, okW := body.Visible(a.wrist, s.minScore)
		if !okS || !okW {
			continue
		}

		armLen := dist(shoulder, wrist)
		if elbow, okE := body.Visible(a.elbow, s.minScore); okE {
			armLen = dist(shoulder, elbow) + dist(elbow, wrist)
		}
		if armLen == 0 {
			continue
		}

		// Positive raise means the wrist sits above the shoulder in image
		// space (smaller y).
		raise := (shoulder.Y - wrist.Y) / armLen
		spread := math.Abs(wrist.X-shoulder.X) / armLen

		total += clamp(50+raise*60+spread*50, 0, 100)
		confSum += (shoulder.Score + wrist.Score) / 2
		measured++
	}

	if measured == 0 {
		return DimensionScore{Incomplete: true}
	}
	return DimensionScore{
		Score:      s.jitter(total / float64(measured)),
		Confidence: confSum / float64(measured),
	}
}

// EyeContact scores camera-facing from face symmetry: the horizontal offset
// between the midpoint of the eyes and the nose, normalized by eye distance.
// A small offset means the face points at the camera.
func (s *Scorer) EyeContact(face types.KeypointSet) DimensionScore {
	left, okL := face.Visible(types.KPFaceLeftEye, s.minScore)
	right, okR := face.Visible(types.KPFaceRightEye, s.minScore)
	nose, okN := face.Visible(types.KPFaceNose, s.minScore)
	if !okL || !okR || !okN {
		return DimensionScore{Incomplete: true}
	}

	eyeDist := math.Abs(left.X - right.X)
	if eyeDist == 0 {
		return DimensionScore{Incomplete: true}
	}

	eyeCenterX := (left.X + right.X) / 2
	offset := math.Abs(eyeCenterX-nose.X) / eyeDist

	return DimensionScore{
		Score:      s.jitter(clamp(100-offset*250, 0, 100)),
		Confidence: (left.Score + right.Score + nose.Score) / 3,
	}
}

// BodyPresence returns the fraction of the full COCO keypoint set that is
// visible, as a 0–100 score, blended with the posture score so that a
// slouched but fully visible body does not read as perfect presence.
func (s *Scorer) BodyPresence(body types.KeypointSet, posture DimensionScore) DimensionScore {
	visible := 0
	for _, name := range allBodyKeypoints {
		if _, ok := body.Visible(name, s.minScore); ok {
			visible++
		}
	}
	frac := float64(visible) / float64(len(allBodyKeypoints))

	return DimensionScore{
		Score:      s.jitter(clamp(frac*100*0.7+posture.Score*0.3, 0, 100)),
		Confidence: frac,
	}
}

// jitter applies the configured noise amplitude, if any.
func (s *Scorer) jitter(score float64) float64 {
	if s.noise == 0 || s.rng == nil {
		return score
	}
	return clamp(score+(s.rng.Float64()*2-1)*s.noise, 0, 100)
}

func dist(a, b types.Keypoint) float64 {
	return math.Hypot(a.X-b.X, a.Y-b.Y)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
