// Package types defines the shared types used across all Rostrum packages.
//
// These types form the lingua franca between providers, analyzers, the flow
// manager, and the scoring layer. They are intentionally minimal — each package
// defines its own domain types, but cross-cutting data structures live here to
// avoid circular imports.
package types

import "time"

// AudioWindow is one fixed-length window of mono PCM samples captured from the
// live stream. Windows are immutable once captured and are owned transiently by
// the voice analyzer for a single analysis tick.
type AudioWindow struct {
	// Samples holds normalized PCM amplitudes in [-1, 1].
	Samples []float32

	// SampleRate in Hz (e.g., 16000 for STT-grade capture, 48000 for Opus).
	SampleRate int

	// Timestamp marks when this window was captured, relative to stream start.
	Timestamp time.Duration
}

// Duration returns the wall-clock span covered by the window's samples.
func (w AudioWindow) Duration() time.Duration {
	if w.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(w.Samples)) * time.Second / time.Duration(w.SampleRate)
}

// Keypoint is a named, confidence-scored 2D body or face landmark produced by
// an external pose/face model. Coordinates are in pixels of the source frame.
type Keypoint struct {
	Name string

	X float64
	Y float64

	// Score is the detection confidence in [0, 1].
	Score float64
}

// KeypointSet maps keypoint names to their detections for a single video
// frame. Sets are produced externally and consumed read-only by the vision
// analyzer and the geometry scorer.
type KeypointSet map[string]Keypoint

// Visible returns the named keypoint if it was detected with at least the
// given confidence.
func (s KeypointSet) Visible(name string, minScore float64) (Keypoint, bool) {
	kp, ok := s[name]
	if !ok || kp.Score < minScore {
		return Keypoint{}, false
	}
	return kp, true
}

// Body keypoint names follow the 17-point COCO convention used by MoveNet and
// PoseNet family models.
const (
	KPNose          = "nose"
	KPLeftEye       = "left_eye"
	KPRightEye      = "right_eye"
	KPLeftEar       = "left_ear"
	KPRightEar      = "right_ear"
	KPLeftShoulder  = "left_shoulder"
	KPRightShoulder = "right_shoulder"
	KPLeftElbow     = "left_elbow"
	KPRightElbow    = "right_elbow"
	KPLeftWrist     = "left_wrist"
	KPRightWrist    = "right_wrist"
	KPLeftHip       = "left_hip"
	KPRightHip      = "right_hip"
	KPLeftKnee      = "left_knee"
	KPRightKnee     = "right_knee"
	KPLeftAnkle     = "left_ankle"
	KPRightAnkle    = "right_ankle"
)

// Face landmark names for the reduced face set the emotion and eye-contact
// heuristics consume.
const (
	KPFaceNose        = "nose"
	KPFaceLeftEye     = "left_eye"
	KPFaceRightEye    = "right_eye"
	KPFaceLeftEyeTop  = "left_eye_top"
	KPFaceLeftEyeBot  = "left_eye_bottom"
	KPFaceRightEyeTop = "right_eye_top"
	KPFaceRightEyeBot = "right_eye_bottom"
	KPFaceMouthLeft   = "mouth_left"
	KPFaceMouthRight  = "mouth_right"
	KPFaceMouthTop    = "mouth_top"
	KPFaceMouthBottom = "mouth_bottom"
)

// MetricSnapshot is the smoothed, continuously updated score for one analysis
// dimension (posture, gestures, eyeContact, emotion, volume, pitch, clarity,
// pace). A snapshot lives for the whole session and is mutated in place by its
// owning analyzer; other components only ever see value copies.
type MetricSnapshot struct {
	// Score in [0, 100].
	Score float64

	// Confidence in [0, 1].
	Confidence float64

	// TimestampMs is the wall-clock time of the last update in Unix millis.
	TimestampMs int64
}

// Smooth folds an incoming measurement into the snapshot using exponential
// smoothing: new = old*(1-alpha) + incoming*alpha. A zero-valued snapshot
// (never updated) adopts the incoming measurement outright so the first tick
// is not dragged toward zero.
func (m *MetricSnapshot) Smooth(score, confidence float64, alpha float64, now int64) {
	if m.TimestampMs == 0 {
		m.Score = score
		m.Confidence = confidence
	} else {
		m.Score = m.Score*(1-alpha) + score*alpha
		m.Confidence = m.Confidence*(1-alpha) + confidence*alpha
	}
	m.TimestampMs = now
}

// QualityBreakdown carries the four sub-scores fused into the voice quality
// metric. Values are in [0, 100] and recomputed every tick before smoothing.
type QualityBreakdown struct {
	// Consistency rewards a steady volume envelope: max(0, 100 - stddev*k).
	Consistency float64

	// Stability rewards low pitch variance across voiced frames.
	Stability float64

	// Clarity rewards balanced mid-band spectral energy.
	Clarity float64

	// Rhythm rewards a speaking pace close to the expected syllabic rate.
	Rhythm float64
}

// Overall is the unweighted mean of the four sub-scores.
func (q QualityBreakdown) Overall() float64 {
	return (q.Consistency + q.Stability + q.Clarity + q.Rhythm) / 4
}

// VoiceMetrics is the voice analyzer's published snapshot set.
type VoiceMetrics struct {
	Volume  MetricSnapshot
	Pitch   MetricSnapshot
	Clarity MetricSnapshot
	Pace    MetricSnapshot

	// Quality is the smoothed fusion of the breakdown's overall value.
	Quality MetricSnapshot

	// Breakdown holds the raw (pre-smoothing) quality components from the
	// most recent tick.
	Breakdown QualityBreakdown

	// PitchHz is the raw fundamental frequency estimate of the most recent
	// voiced window, 0 when no pitch was found.
	PitchHz float64
}

// VisionMetrics is the vision analyzer's published snapshot set.
type VisionMetrics struct {
	Posture      MetricSnapshot
	Gestures     MetricSnapshot
	EyeContact   MetricSnapshot
	Emotion      MetricSnapshot
	Engagement   MetricSnapshot
	BodyPresence MetricSnapshot

	// Mood is the heuristic emotion label behind the Emotion score.
	Mood Emotion

	// Notes carries per-frame caveats such as "incomplete pose".
	Notes []string
}

// Emotion is the heuristic facial-expression class. The zero value is
// EmotionNeutral, which is also the tie-break default.
type Emotion int

const (
	EmotionNeutral Emotion = iota
	EmotionHappy
	EmotionSad
	EmotionFocused
)

// String returns the lower-case emotion label.
func (e Emotion) String() string {
	switch e {
	case EmotionHappy:
		return "happy"
	case EmotionSad:
		return "sad"
	case EmotionFocused:
		return "focused"
	default:
		return "neutral"
	}
}

// Transcript represents a speech-to-text result from an STT provider.
// Both partial (interim) and final transcripts use this type.
type Transcript struct {
	// Text is the transcribed speech content.
	Text string

	// IsFinal indicates whether this is a final (authoritative) or partial
	// (interim) transcript.
	IsFinal bool

	// Confidence is the overall confidence score (0.0–1.0). May be zero if
	// the provider does not report confidence.
	Confidence float64

	// Words contains per-word detail when available. May be nil for
	// providers that don't support word-level output.
	Words []WordDetail

	// Timestamp marks when the utterance started, relative to session start.
	Timestamp time.Duration

	// Duration is the length of the utterance.
	Duration time.Duration
}

// WordDetail holds per-word metadata from STT providers that support it.
type WordDetail struct {
	Word       string
	Start      time.Duration
	End        time.Duration
	Confidence float64
}

// Improvement is one entry of an AnalysisResult's improvement list.
type Improvement struct {
	// Area names the dimension needing work (e.g., "gestures").
	Area string

	// Score is the dimension score that triggered the entry.
	Score float64

	// Message is the coaching advice drawn from the rubric pool.
	Message string

	// Priority orders the improvements list (high first).
	Priority Priority
}

// Priority ranks improvement entries.
type Priority int

const (
	PriorityLow Priority = iota
	PriorityMedium
	PriorityHigh
)

// String returns the lower-case priority label.
func (p Priority) String() string {
	switch p {
	case PriorityHigh:
		return "high"
	case PriorityMedium:
		return "medium"
	default:
		return "low"
	}
}

// AnalysisResult is the immutable aggregate produced once per completed
// analyzing phase. It is created by the scoring engine, consumed by feedback
// generation, and never mutated after creation.
type AnalysisResult struct {
	// OverallScore is the unweighted mean of the available dimension scores.
	OverallScore float64

	// Dimensions maps dimension names to their scores at aggregation time.
	// Only dimensions that had data appear here.
	Dimensions map[string]float64

	// Strengths lists canned messages for dimensions scoring >= 80.
	Strengths []string

	// Improvements lists advice for dimensions scoring < 70, sorted by
	// descending priority.
	Improvements []Improvement

	// Timestamp is when the aggregation ran.
	Timestamp time.Time
}

// PerformanceLevel buckets an overall score into a coarse grade.
type PerformanceLevel int

const (
	PerformanceNeedsWork PerformanceLevel = iota
	PerformanceFair
	PerformanceGood
	PerformanceExcellent
)

// PerformanceLevelFor buckets an overall score.
func PerformanceLevelFor(score float64) PerformanceLevel {
	switch {
	case score >= 85:
		return PerformanceExcellent
	case score >= 70:
		return PerformanceGood
	case score >= 55:
		return PerformanceFair
	default:
		return PerformanceNeedsWork
	}
}

// String returns the human-readable level name.
func (l PerformanceLevel) String() string {
	switch l {
	case PerformanceExcellent:
		return "excellent"
	case PerformanceGood:
		return "good"
	case PerformanceFair:
		return "fair"
	default:
		return "needs-work"
	}
}

// FeedbackEntry is one accepted feedback item in the session's ordered
// history. Entries are appended on acceptance and removed only by an explicit
// clear.
type FeedbackEntry struct {
	// ID is a unique identifier (UUID).
	ID string

	// Timestamp is when the entry was accepted into history.
	Timestamp time.Time

	// Message is the delivered coaching message.
	Message string

	// Analysis is the aggregate that produced the message.
	Analysis AnalysisResult

	// PerformanceLevel grades the analysis overall score.
	PerformanceLevel PerformanceLevel
}

// CoachResponse is the language-generation service's answer for one analyzing
// cycle: the spoken message plus the analysis it was grounded on.
type CoachResponse struct {
	Message  string
	Analysis AnalysisResult
}

// Message represents a single message in an LLM conversation history.
type Message struct {
	// Role is one of "system", "user", "assistant", or "tool".
	Role string

	// Content is the text content of the message.
	Content string

	// Name is an optional participant name (for multi-speaker contexts).
	Name string

	// ToolCalls contains any tool invocations requested by the assistant.
	ToolCalls []ToolCall

	// ToolCallID is set when Role is "tool", identifying which tool call
	// this responds to.
	ToolCallID string
}

// ToolCall represents a tool/function invocation requested by the LLM.
type ToolCall struct {
	// ID is the unique identifier for this tool call (provider-assigned).
	ID string

	// Name is the tool/function name.
	Name string

	// Arguments is the JSON-encoded arguments string.
	Arguments string
}

// ToolDefinition describes a tool that can be offered to an LLM.
type ToolDefinition struct {
	// Name is the tool's unique identifier.
	Name string

	// Description explains what the tool does (included in LLM prompts).
	Description string

	// Parameters is the JSON Schema describing the tool's input parameters.
	Parameters map[string]any
}

// ModelCapabilities describes what an LLM model supports.
type ModelCapabilities struct {
	// ContextWindow is the maximum token count for input + output.
	ContextWindow int

	// MaxOutputTokens is the maximum tokens the model can generate in one
	// completion.
	MaxOutputTokens int

	// SupportsToolCalling indicates native function/tool calling support.
	SupportsToolCalling bool

	// SupportsVision indicates the model can process image inputs.
	SupportsVision bool

	// SupportsStreaming indicates the model supports streaming completions.
	SupportsStreaming bool
}

// KeywordBoost represents a keyword to boost in STT recognition.
// Used to improve recognition of coaching vocabulary and filler words.
type KeywordBoost struct {
	// Keyword is the text to boost.
	Keyword string

	// Boost is the intensity of the boost (provider-specific scale).
	Boost float64
}
