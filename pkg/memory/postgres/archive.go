package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// defaultFeedbackLimit caps FeedbackHistory when the caller passes 0. It
// matches the in-memory history cap, so a replayed session never returns more
// than the live one held.
const defaultFeedbackLimit = 200

// defaultSessionLimit caps ListSessions when the caller passes 0.
const defaultSessionLimit = 50

// BeginSession implements [memory.SessionArchive]. It upserts the session row;
// an existing record with the same ID is completely replaced.
func (s *Store) BeginSession(ctx context.Context, rec memory.SessionRecord) error {
	const q = `
		INSERT INTO sessions
		    (id, speaker_id, speaker_name, started_at, ended_at, summary, overall_score, dimensions, feedback_count)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
		    speaker_id     = EXCLUDED.speaker_id,
		    speaker_name   = EXCLUDED.speaker_name,
		    started_at     = EXCLUDED.started_at,
		    ended_at       = EXCLUDED.ended_at,
		    summary        = EXCLUDED.summary,
		    overall_score  = EXCLUDED.overall_score,
		    dimensions     = EXCLUDED.dimensions,
		    feedback_count = EXCLUDED.feedback_count`

	var endedAt *time.Time
	if !rec.EndedAt.IsZero() {
		endedAt = &rec.EndedAt
	}
	dims := rec.Dimensions
	if dims == nil {
		dims = map[string]float64{}
	}

	_, err := s.pool.Exec(ctx, q,
		rec.ID,
		rec.SpeakerID,
		rec.SpeakerName,
		rec.StartedAt,
		endedAt,
		rec.Summary,
		rec.OverallScore,
		dims,
		rec.FeedbackCount,
	)
	if err != nil {
		return fmt.Errorf("session archive: begin session: %w", err)
	}
	return nil
}

// FinishSession implements [memory.SessionArchive]. It writes the closing
// fields onto an existing session row.
func (s *Store) FinishSession(ctx context.Context, sessionID string, summary memory.SessionSummary) error {
	const q = `
		UPDATE sessions SET
		    ended_at       = $2,
		    summary        = $3,
		    overall_score  = $4,
		    dimensions     = $5,
		    feedback_count = $6
		WHERE id = $1`

	dims := summary.Dimensions
	if dims == nil {
		dims = map[string]float64{}
	}

	tag, err := s.pool.Exec(ctx, q,
		sessionID,
		summary.EndedAt,
		summary.Summary,
		summary.OverallScore,
		dims,
		summary.FeedbackCount,
	)
	if err != nil {
		return fmt.Errorf("session archive: finish session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session archive: finish session: session %q does not exist", sessionID)
	}
	return nil
}

// GetSession implements [memory.SessionArchive].
// Returns (nil, nil) when the session does not exist.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*memory.SessionRecord, error) {
	const q = `
		SELECT id, speaker_id, speaker_name, started_at, ended_at, summary, overall_score, dimensions, feedback_count
		FROM   sessions
		WHERE  id = $1`

	rows, err := s.pool.Query(ctx, q, sessionID)
	if err != nil {
		return nil, fmt.Errorf("session archive: get session: %w", err)
	}
	rec, err := pgx.CollectOneRow(rows, scanSession)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("session archive: get session: %w", err)
	}
	return &rec, nil
}

// ListSessions implements [memory.SessionArchive]. It returns session rows
// ordered newest first.
func (s *Store) ListSessions(ctx context.Context, limit int) ([]memory.SessionRecord, error) {
	if limit <= 0 {
		limit = defaultSessionLimit
	}
	const q = `
		SELECT id, speaker_id, speaker_name, started_at, ended_at, summary, overall_score, dimensions, feedback_count
		FROM   sessions
		ORDER  BY started_at DESC
		LIMIT  $1`

	rows, err := s.pool.Query(ctx, q, limit)
	if err != nil {
		return nil, fmt.Errorf("session archive: list sessions: %w", err)
	}
	recs, err := pgx.CollectRows(rows, scanSession)
	if err != nil {
		return nil, fmt.Errorf("session archive: scan rows: %w", err)
	}
	if recs == nil {
		recs = []memory.SessionRecord{}
	}
	return recs, nil
}

// scanSession scans one sessions row into a SessionRecord.
func scanSession(row pgx.CollectableRow) (memory.SessionRecord, error) {
	var (
		rec     memory.SessionRecord
		endedAt *time.Time
	)
	if err := row.Scan(
		&rec.ID,
		&rec.SpeakerID,
		&rec.SpeakerName,
		&rec.StartedAt,
		&endedAt,
		&rec.Summary,
		&rec.OverallScore,
		&rec.Dimensions,
		&rec.FeedbackCount,
	); err != nil {
		return memory.SessionRecord{}, err
	}
	if endedAt != nil {
		rec.EndedAt = *endedAt
	}
	return rec, nil
}

// WriteTranscript implements [memory.SessionArchive]. It appends entry to the
// transcript_entries table under sessionID.
func (s *Store) WriteTranscript(ctx context.Context, sessionID string, entry memory.TranscriptEntry) error {
	const q = `
		INSERT INTO transcript_entries
		    (session_id, speaker_id, speaker_name, text, raw_text, is_coach, filler_count, timestamp, duration_ns)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err := s.pool.Exec(ctx, q,
		sessionID,
		entry.SpeakerID,
		entry.SpeakerName,
		entry.Text,
		entry.RawText,
		entry.IsCoach,
		entry.FillerCount,
		entry.Timestamp,
		entry.Duration.Nanoseconds(),
	)
	if err != nil {
		return fmt.Errorf("session archive: write transcript: %w", err)
	}
	return nil
}

// RecentTranscript implements [memory.SessionArchive]. It returns all entries
// for sessionID whose timestamp is no earlier than time.Now()-window, ordered
// chronologically (oldest first).
func (s *Store) RecentTranscript(ctx context.Context, sessionID string, window time.Duration) ([]memory.TranscriptEntry, error) {
	const q = `
		SELECT speaker_id, speaker_name, text, raw_text, is_coach, filler_count, timestamp, duration_ns
		FROM   transcript_entries
		WHERE  session_id = $1
		  AND  timestamp  >= now() - ($2::bigint * interval '1 microsecond')
		ORDER  BY timestamp`

	rows, err := s.pool.Query(ctx, q, sessionID, window.Microseconds())
	if err != nil {
		return nil, fmt.Errorf("session archive: recent transcript: %w", err)
	}
	return collectEntries(rows)
}

// SearchTranscript implements [memory.SessionArchive]. It performs a
// PostgreSQL full-text search over the text column and applies optional
// filters from opts.
//
// The query is passed to plainto_tsquery so no special operator syntax is required.
func (s *Store) SearchTranscript(ctx context.Context, query string, opts memory.SearchOpts) ([]memory.TranscriptEntry, error) {
	args := []any{query} // $1 = FTS query string
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	conditions := []string{
		"to_tsvector('english', text) @@ plainto_tsquery('english', $1)",
	}
	if opts.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(opts.SessionID))
	}
	if !opts.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(opts.After))
	}
	if !opts.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(opts.Before))
	}
	if opts.SpeakerID != "" {
		conditions = append(conditions, "speaker_id = "+next(opts.SpeakerID))
	}

	q := "SELECT speaker_id, speaker_name, text, raw_text, is_coach, filler_count, timestamp, duration_ns\n" +
		"FROM   transcript_entries\n" +
		"WHERE  " + strings.Join(conditions, "\n  AND  ") + "\n" +
		"ORDER  BY timestamp"

	if opts.Limit > 0 {
		args = append(args, opts.Limit)
		q += fmt.Sprintf("\nLIMIT $%d", len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("session archive: search transcript: %w", err)
	}
	return collectEntries(rows)
}

// collectEntries scans pgx rows into a slice of TranscriptEntry values.
func collectEntries(rows pgx.Rows) ([]memory.TranscriptEntry, error) {
	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.TranscriptEntry, error) {
		var (
			e          memory.TranscriptEntry
			durationNS int64
		)
		if err := row.Scan(
			&e.SpeakerID,
			&e.SpeakerName,
			&e.Text,
			&e.RawText,
			&e.IsCoach,
			&e.FillerCount,
			&e.Timestamp,
			&durationNS,
		); err != nil {
			return memory.TranscriptEntry{}, err
		}
		e.Duration = time.Duration(durationNS)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session archive: scan rows: %w", err)
	}
	if entries == nil {
		entries = []memory.TranscriptEntry{}
	}
	return entries, nil
}

// WriteFeedback implements [memory.SessionArchive]. The full analysis
// aggregate is stored as JSONB; performance_level and overall_score are
// denormalized alongside for SQL-side filtering.
func (s *Store) WriteFeedback(ctx context.Context, sessionID string, entry types.FeedbackEntry) error {
	const q = `
		INSERT INTO feedback_entries
		    (id, session_id, timestamp, message, performance_level, overall_score, analysis)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	_, err := s.pool.Exec(ctx, q,
		entry.ID,
		sessionID,
		entry.Timestamp,
		entry.Message,
		entry.PerformanceLevel.String(),
		entry.Analysis.OverallScore,
		entry.Analysis,
	)
	if err != nil {
		return fmt.Errorf("session archive: write feedback: %w", err)
	}
	return nil
}

// FeedbackHistory implements [memory.SessionArchive]. The performance level is
// derived from the stored overall score on read, the same way it was derived
// when the entry was accepted.
func (s *Store) FeedbackHistory(ctx context.Context, sessionID string, limit int) ([]types.FeedbackEntry, error) {
	if limit <= 0 {
		limit = defaultFeedbackLimit
	}
	const q = `
		SELECT id, timestamp, message, overall_score, analysis
		FROM   feedback_entries
		WHERE  session_id = $1
		ORDER  BY timestamp
		LIMIT  $2`

	rows, err := s.pool.Query(ctx, q, sessionID, limit)
	if err != nil {
		return nil, fmt.Errorf("session archive: feedback history: %w", err)
	}

	entries, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (types.FeedbackEntry, error) {
		var (
			e       types.FeedbackEntry
			overall float64
		)
		if err := row.Scan(
			&e.ID,
			&e.Timestamp,
			&e.Message,
			&overall,
			&e.Analysis,
		); err != nil {
			return types.FeedbackEntry{}, err
		}
		e.PerformanceLevel = types.PerformanceLevelFor(overall)
		return e, nil
	})
	if err != nil {
		return nil, fmt.Errorf("session archive: scan rows: %w", err)
	}
	if entries == nil {
		entries = []types.FeedbackEntry{}
	}
	return entries, nil
}
