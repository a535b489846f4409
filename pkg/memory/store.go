// Package memory defines the persistence layer for Rostrum coaching sessions.
//
// Two storage surfaces are exposed:
//
//   - Session Archive ([SessionArchive]): durable record of sessions, their
//     transcript log, and every feedback entry the coach delivered. Supports
//     recency-window retrieval and full-text transcript search.
//   - Feedback Index ([FeedbackIndex]): vector store over embedded feedback
//     messages, used for cross-session recall ("you have heard this advice
//     before") when composing coach prompts.
//
// All interfaces are public so that external packages can supply alternative
// storage backends (Postgres/pgvector, in-memory, …) without depending on
// rostrum internals.
//
// Every implementation must be safe for concurrent use.
package memory

import (
	"context"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// ─────────────────────────────────────────────────────────────────────────────
// Archive supporting types
// ─────────────────────────────────────────────────────────────────────────────

// SessionRecord is one coaching session's archive row. A record is created
// when the session starts and completed by [SessionArchive.FinishSession].
type SessionRecord struct {
	// ID is the unique session identifier.
	ID string

	// SpeakerID identifies the presenter (capture client ID).
	SpeakerID string

	// SpeakerName is the presenter's display name from the capture handshake.
	SpeakerName string

	// StartedAt is when the session began.
	StartedAt time.Time

	// EndedAt is when the session finished. Zero while the session is live.
	EndedAt time.Time

	// Summary is the end-of-session recap. Empty while the session is live.
	Summary string

	// OverallScore is the final aggregate score at session close.
	OverallScore float64

	// Dimensions holds the final smoothed per-dimension scores at close.
	Dimensions map[string]float64

	// FeedbackCount is the number of feedback entries delivered.
	FeedbackCount int
}

// SessionSummary carries the closing fields written by
// [SessionArchive.FinishSession].
type SessionSummary struct {
	// EndedAt is when the session finished.
	EndedAt time.Time

	// Summary is the recap text (typically LLM-written).
	Summary string

	// OverallScore is the final aggregate score.
	OverallScore float64

	// Dimensions holds the final smoothed per-dimension scores.
	Dimensions map[string]float64

	// FeedbackCount is the number of feedback entries delivered.
	FeedbackCount int
}

// SearchOpts configures a keyword / full-text search over transcript entries.
// All non-zero fields are applied as AND conditions.
type SearchOpts struct {
	// SessionID restricts the search to a single session.
	// An empty string searches across all sessions.
	SessionID string

	// After filters entries recorded after this instant (exclusive).
	// A zero Time disables the lower bound.
	After time.Time

	// Before filters entries recorded before this instant (exclusive).
	// A zero Time disables the upper bound.
	Before time.Time

	// SpeakerID restricts results to a specific speaker.
	// An empty string matches all speakers.
	SpeakerID string

	// Limit caps the number of results returned.
	// A value of 0 means the implementation may apply its own default.
	Limit int
}

// ─────────────────────────────────────────────────────────────────────────────
// Index supporting types
// ─────────────────────────────────────────────────────────────────────────────

// FeedbackChunk is an embedded feedback message prepared for semantic
// indexing. A chunk carries its pre-computed embedding so the index does not
// need to re-embed on insertion.
type FeedbackChunk struct {
	// ID is the unique identifier for this chunk. Conventionally the
	// feedback entry's ID, so re-archiving upserts rather than duplicates.
	ID string

	// SessionID is the session this feedback was delivered in.
	SessionID string

	// Message is the feedback text that was embedded.
	Message string

	// Embedding is the vector representation of Message.
	// Dimension must match the index configuration (e.g., 1536 for OpenAI
	// text-embedding-3-small).
	Embedding []float32

	// Area is the dominant improvement area the feedback addressed
	// (e.g., "gestures"). Empty for pure encouragement.
	Area string

	// Level is the performance level label at delivery time.
	Level string

	// Timestamp is when the feedback was delivered.
	Timestamp time.Time
}

// FeedbackFilter narrows a semantic search to a subset of indexed feedback.
// All non-zero fields are applied as AND conditions.
type FeedbackFilter struct {
	// SessionID restricts results to a single session.
	SessionID string

	// ExcludeSessionID drops results from the named session. Used for
	// cross-session recall, where the current session's own feedback would
	// trivially match.
	ExcludeSessionID string

	// Area restricts results to feedback addressing a specific dimension.
	Area string

	// After filters feedback delivered after this instant (exclusive).
	After time.Time

	// Before filters feedback delivered before this instant (exclusive).
	Before time.Time
}

// FeedbackMatch pairs a retrieved chunk with its vector-space distance from
// the query embedding. Lower Distance values indicate higher semantic
// similarity.
type FeedbackMatch struct {
	// Chunk is the retrieved feedback.
	Chunk FeedbackChunk

	// Distance is the vector-space distance to the query embedding
	// (cosine distance for the Postgres backend).
	Distance float64
}

// ─────────────────────────────────────────────────────────────────────────────
// Session Archive interface
// ─────────────────────────────────────────────────────────────────────────────

// SessionArchive is the durable record of coaching sessions: session rows,
// their time-ordered transcript log, and the feedback entries delivered.
//
// Entries must be returned in chronological order unless otherwise specified.
// Implementations must be safe for concurrent use.
type SessionArchive interface {
	// BeginSession upserts a session row. If a record with the same ID
	// already exists it is completely replaced.
	BeginSession(ctx context.Context, rec SessionRecord) error

	// FinishSession writes the closing fields onto an existing session row.
	// Returns an error when the session does not exist.
	FinishSession(ctx context.Context, sessionID string, summary SessionSummary) error

	// GetSession retrieves a session row by ID.
	// Returns (nil, nil) when the session does not exist.
	GetSession(ctx context.Context, sessionID string) (*SessionRecord, error)

	// ListSessions returns session rows ordered by StartedAt descending
	// (newest first). A limit of 0 means the implementation may apply its
	// own default.
	ListSessions(ctx context.Context, limit int) ([]SessionRecord, error)

	// WriteTranscript appends a TranscriptEntry to the session's log.
	// sessionID must be non-empty.
	// Returns an error only on persistent storage failure.
	WriteTranscript(ctx context.Context, sessionID string, entry TranscriptEntry) error

	// RecentTranscript returns all entries for the given session whose
	// Timestamp is no earlier than time.Now()-window.
	// Returns an empty (non-nil) slice when no matching entries exist.
	RecentTranscript(ctx context.Context, sessionID string, window time.Duration) ([]TranscriptEntry, error)

	// SearchTranscript performs keyword / full-text search over stored
	// entries. The query string is matched against the Text field; opts
	// refines the result set by time range, speaker, or session scope.
	// Returns an empty (non-nil) slice when no entries match.
	SearchTranscript(ctx context.Context, query string, opts SearchOpts) ([]TranscriptEntry, error)

	// WriteFeedback archives one delivered feedback entry under sessionID.
	// Re-archiving an entry with the same ID is a no-op, so consolidation
	// retries are safe.
	WriteFeedback(ctx context.Context, sessionID string, entry types.FeedbackEntry) error

	// FeedbackHistory returns the session's feedback entries in delivery
	// order (oldest first). A limit of 0 means the implementation may apply
	// its own default.
	FeedbackHistory(ctx context.Context, sessionID string, limit int) ([]types.FeedbackEntry, error)
}

// ─────────────────────────────────────────────────────────────────────────────
// Feedback Index interface
// ─────────────────────────────────────────────────────────────────────────────

// FeedbackIndex is a vector store for embedding-based similarity search over
// delivered feedback messages.
//
// Callers are responsible for producing embeddings before calling
// IndexFeedback or SearchSimilar. Implementations must be safe for concurrent
// use.
type FeedbackIndex interface {
	// IndexFeedback stores a pre-embedded [FeedbackChunk] in the vector
	// index. If a chunk with the same ID already exists it must be replaced
	// (upsert).
	IndexFeedback(ctx context.Context, chunk FeedbackChunk) error

	// SearchSimilar finds the topK chunks whose embeddings are closest to
	// the query embedding, filtered by filter.
	// Results are ordered by ascending Distance (most similar first).
	// Returns an empty (non-nil) slice when no chunks match.
	SearchSimilar(ctx context.Context, embedding []float32, topK int, filter FeedbackFilter) ([]FeedbackMatch, error)
}
