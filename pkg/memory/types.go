package memory

import "time"

// TranscriptEntry is one utterance record written to the session log. Both
// presenter speech and delivered coach lines are logged, forming the atomic
// unit of session history.
type TranscriptEntry struct {
	// SpeakerID identifies who spoke (capture client ID, or the coach).
	SpeakerID string

	// SpeakerName is the human-readable speaker name.
	SpeakerName string

	// Text is the (possibly corrected) transcript text.
	Text string

	// RawText is the original uncorrected STT output. Preserved for debugging.
	RawText string

	// IsCoach indicates whether this entry is a spoken coach line.
	IsCoach bool

	// FillerCount is the number of filler words detected in this utterance.
	// Always 0 for coach lines.
	FillerCount int

	// Timestamp is when this entry was recorded.
	Timestamp time.Time

	// Duration is the length of the utterance.
	Duration time.Duration
}
