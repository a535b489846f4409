package vision

import (
	"math"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Emotion heuristic thresholds. Curvature is the height of the mouth corners
// relative to the mouth midline, normalized by mouth width; openness is the
// eyelid gap normalized by eye distance.
const (
	smileCurvature  = 0.06
	frownCurvature  = -0.06
	squintOpenness  = 0.065
	normalOpenness  = 0.11
	minEmotionScore = 0.3
)

// emotionScores maps each emotion label to the expressiveness score the
// aggregation layer sees for the emotion dimension.
var emotionScores = map[types.Emotion]float64{
	types.EmotionHappy:   85,
	types.EmotionFocused: 75,
	types.EmotionNeutral: 60,
	types.EmotionSad:     35,
}

// Emotion classifies the facial expression from mouth curvature and eye
// openness. This is a geometric heuristic, not ML: smiles lift the mouth
// corners above the mouth midline, frowns drop them, and narrowed eyes with
// a flat mouth read as focused. Ties and missing landmarks default to
// neutral.
func (s *Scorer) Emotion(face types.KeypointSet) (types.Emotion, DimensionScore) {
	mouthL, okML := face.Visible(types.KPFaceMouthLeft, s.minScore)
	mouthR, okMR := face.Visible(types.KPFaceMouthRight, s.minScore)
	mouthT, okMT := face.Visible(types.KPFaceMouthTop, s.minScore)
	mouthB, okMB := face.Visible(types.KPFaceMouthBottom, s.minScore)
	if !okML || !okMR || !okMT || !okMB {
		return types.EmotionNeutral, DimensionScore{
			Score:      emotionScores[types.EmotionNeutral],
			Confidence: minEmotionScore,
			Incomplete: true,
		}
	}

	mouthWidth := math.Abs(mouthL.X - mouthR.X)
	if mouthWidth == 0 {
		return types.EmotionNeutral, DimensionScore{
			Score:      emotionScores[types.EmotionNeutral],
			Confidence: minEmotionScore,
			Incomplete: true,
		}
	}

	// Positive curvature: corners above the mouth midline (image y grows
	// down), i.e. a smile.
	midY := (mouthT.Y + mouthB.Y) / 2
	cornerY := (mouthL.Y + mouthR.Y) / 2
	curvature := (midY - cornerY) / mouthWidth

	openness, hasEyes := s.eyeOpenness(face)

	label := types.EmotionNeutral
	confidence := 0.5
	switch {
	case curvature >= smileCurvature:
		label = types.EmotionHappy
		confidence = clamp(0.5+(curvature-smileCurvature)*4, 0.5, 0.95)
	case curvature <= frownCurvature:
		label = types.EmotionSad
		confidence = clamp(0.5+(frownCurvature-curvature)*4, 0.5, 0.95)
	case hasEyes && openness < squintOpenness:
		label = types.EmotionFocused
		confidence = clamp(0.5+(squintOpenness-openness)*6, 0.5, 0.9)
	default:
		// Flat mouth, open eyes: neutral with confidence growing as the
		// geometry sits squarely inside the neutral band.
		confidence = 0.5
		if hasEyes && openness >= normalOpenness {
			confidence = 0.7
		}
	}

	return label, DimensionScore{
		Score:      s.jitter(emotionScores[label]),
		Confidence: confidence,
	}
}

// eyeOpenness returns the average eyelid gap normalized by eye distance, and
// whether enough eyelid landmarks were visible to measure it.
func (s *Scorer) eyeOpenness(face types.KeypointSet) (float64, bool) {
	lt, okLT := face.Visible(types.KPFaceLeftEyeTop, s.minScore)
	lb, okLB := face.Visible(types.KPFaceLeftEyeBot, s.minScore)
	rt, okRT := face.Visible(types.KPFaceRightEyeTop, s.minScore)
	rb, okRB := face.Visible(types.KPFaceRightEyeBot, s.minScore)
	left, okL := face.Visible(types.KPFaceLeftEye, s.minScore)
	right, okR := face.Visible(types.KPFaceRightEye, s.minScore)
	if !okLT || !okLB || !okRT || !okRB || !okL || !okR {
		return 0, false
	}

	eyeDist := math.Abs(left.X - right.X)
	if eyeDist == 0 {
		return 0, false
	}

	gap := (math.Abs(lb.Y-lt.Y) + math.Abs(rb.Y-rt.Y)) / 2
	return gap / eyeDist, true
}
