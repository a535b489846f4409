package session

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// ArchiveGuard wraps a [memory.SessionArchive] and makes all operations
// non-fatal. If the underlying archive fails, writes are swallowed and
// reads return empty defaults, with a warning logged either way.
//
// The coaching loop keeps running when the archive backend is temporarily
// unavailable (database restart, network partition); the session merely
// loses durability until the backend recovers. The IsDegraded method
// reports whether the archive is currently experiencing failures.
//
// ArchiveGuard implements [memory.SessionArchive].
//
// All methods are safe for concurrent use.
type ArchiveGuard struct {
	archive  memory.SessionArchive
	degraded atomic.Bool
}

// NewArchiveGuard creates a new [ArchiveGuard] wrapping the given archive.
func NewArchiveGuard(archive memory.SessionArchive) *ArchiveGuard {
	return &ArchiveGuard{archive: archive}
}

// BeginSession attempts to open the session row. On failure the error is
// logged and swallowed; the archive is marked as degraded. On success the
// degraded flag is cleared.
func (g *ArchiveGuard) BeginSession(ctx context.Context, rec memory.SessionRecord) error {
	err := g.archive.BeginSession(ctx, rec)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: BeginSession failed, swallowing error",
			"session_id", rec.ID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// FinishSession attempts to close the session row. On failure the error is
// logged and swallowed; the archive is marked as degraded.
func (g *ArchiveGuard) FinishSession(ctx context.Context, sessionID string, summary memory.SessionSummary) error {
	err := g.archive.FinishSession(ctx, sessionID, summary)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: FinishSession failed, swallowing error",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// GetSession attempts to read a session row. On failure (nil, nil) is
// returned and the archive is marked as degraded; callers see an unreadable
// session the same way they see a missing one.
func (g *ArchiveGuard) GetSession(ctx context.Context, sessionID string) (*memory.SessionRecord, error) {
	rec, err := g.archive.GetSession(ctx, sessionID)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: GetSession failed, returning nothing",
			"session_id", sessionID,
			"error", err,
		)
		return nil, nil
	}
	g.degraded.Store(false)
	return rec, nil
}

// ListSessions attempts to list session rows. On failure an empty slice is
// returned and the archive is marked as degraded.
func (g *ArchiveGuard) ListSessions(ctx context.Context, limit int) ([]memory.SessionRecord, error) {
	recs, err := g.archive.ListSessions(ctx, limit)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: ListSessions failed, returning empty",
			"limit", limit,
			"error", err,
		)
		return []memory.SessionRecord{}, nil
	}
	g.degraded.Store(false)
	return recs, nil
}

// WriteTranscript attempts to append a transcript entry. On failure the
// error is logged and swallowed; the archive is marked as degraded.
func (g *ArchiveGuard) WriteTranscript(ctx context.Context, sessionID string, entry memory.TranscriptEntry) error {
	err := g.archive.WriteTranscript(ctx, sessionID, entry)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: WriteTranscript failed, swallowing error",
			"session_id", sessionID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// RecentTranscript attempts to read recent transcript entries. On failure
// an empty slice is returned and the archive is marked as degraded.
func (g *ArchiveGuard) RecentTranscript(ctx context.Context, sessionID string, window time.Duration) ([]memory.TranscriptEntry, error) {
	entries, err := g.archive.RecentTranscript(ctx, sessionID, window)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: RecentTranscript failed, returning empty",
			"session_id", sessionID,
			"window", window,
			"error", err,
		)
		return []memory.TranscriptEntry{}, nil
	}
	g.degraded.Store(false)
	return entries, nil
}

// SearchTranscript attempts a keyword search over stored entries. On failure
// an empty slice is returned and the archive is marked as degraded.
func (g *ArchiveGuard) SearchTranscript(ctx context.Context, query string, opts memory.SearchOpts) ([]memory.TranscriptEntry, error) {
	entries, err := g.archive.SearchTranscript(ctx, query, opts)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: SearchTranscript failed, returning empty",
			"query", query,
			"error", err,
		)
		return []memory.TranscriptEntry{}, nil
	}
	g.degraded.Store(false)
	return entries, nil
}

// WriteFeedback attempts to archive a feedback entry. On failure the error
// is logged and swallowed; the archive is marked as degraded.
func (g *ArchiveGuard) WriteFeedback(ctx context.Context, sessionID string, entry types.FeedbackEntry) error {
	err := g.archive.WriteFeedback(ctx, sessionID, entry)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: WriteFeedback failed, swallowing error",
			"session_id", sessionID,
			"entry_id", entry.ID,
			"error", err,
		)
		return nil
	}
	g.degraded.Store(false)
	return nil
}

// FeedbackHistory attempts to read a session's feedback entries. On failure
// an empty slice is returned and the archive is marked as degraded.
func (g *ArchiveGuard) FeedbackHistory(ctx context.Context, sessionID string, limit int) ([]types.FeedbackEntry, error) {
	entries, err := g.archive.FeedbackHistory(ctx, sessionID, limit)
	if err != nil {
		g.degraded.Store(true)
		slog.Warn("archive guard: FeedbackHistory failed, returning empty",
			"session_id", sessionID,
			"error", err,
		)
		return []types.FeedbackEntry{}, nil
	}
	g.degraded.Store(false)
	return entries, nil
}

// IsDegraded reports whether the archive is currently operating in degraded
// mode (i.e., the most recent operation on the underlying archive failed).
func (g *ArchiveGuard) IsDegraded() bool {
	return g.degraded.Load()
}

// Compile-time check that ArchiveGuard satisfies memory.SessionArchive.
var _ memory.SessionArchive = (*ArchiveGuard)(nil)
