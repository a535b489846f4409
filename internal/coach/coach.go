// Package coach turns a completed analysis into the coach's spoken reply.
//
// The Engine interface is the language-generation seam of the pipeline: the
// flow manager hands it the aggregated analysis plus whatever the speaker
// said, and gets back one short coaching message. Implementations live in
// subpackages: llmcoach for the LLM-backed engine, mock for tests.
//
// The package also owns prompt assembly ([FormatSystemPrompt]) so every
// implementation renders the same sectioned system prompt from the rubric
// persona, the current analysis, feedback already given this session, and
// semantic recalls from past sessions.
package coach

import (
	"context"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Engine generates the coach's reply for one analyzing cycle.
//
// Implementations must be safe for concurrent use, though the flow manager
// issues at most one Respond call at a time per session. Respond must respect
// ctx cancellation and return promptly when ctx is done.
type Engine interface {
	// Respond produces the coaching message for analysis. userText is the
	// speaker's transcribed question or remark; it may be empty on scheduled
	// feedback cycles where the speaker did not ask anything. The returned
	// response carries the analysis it was grounded on.
	Respond(ctx context.Context, analysis types.AnalysisResult, userText string) (types.CoachResponse, error)

	// Reset drops accumulated conversation context so the next session
	// starts fresh.
	Reset()
}

// Recall is one piece of past-session feedback surfaced by the semantic
// index for prompt grounding ("you have heard this advice before").
type Recall struct {
	// Message is the feedback message given in the earlier session.
	Message string

	// When is the time the feedback was given.
	When time.Time

	// Similarity is the match strength against the current query in [0, 1].
	Similarity float64
}

// HistorySource provides this session's accepted feedback entries, oldest
// first. *feedback.History satisfies it.
type HistorySource interface {
	Entries() []types.FeedbackEntry
}

// RecallSource surfaces semantically similar feedback from archived sessions.
// Implementations are expected to hit the session archive's vector index;
// errors are treated as a missing section, not a failed response.
type RecallSource interface {
	Recall(ctx context.Context, query string, limit int) ([]Recall, error)
}

// TranscriptSource provides a short excerpt of the speaker's latest
// utterances. *transcript.Buffer satisfies it.
type TranscriptSource interface {
	JoinRecent(maxEntries int) string
}
