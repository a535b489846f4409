// Package postgres provides a PostgreSQL-backed implementation of the Rostrum
// memory layer (session archive and feedback index).
//
// Both surfaces share a single [pgxpool.Pool] connection pool. The pgvector
// extension must be available in the target database; [Migrate] installs it
// automatically via CREATE EXTENSION IF NOT EXISTS.
//
// Usage:
//
//	store, err := postgres.NewStore(ctx, dsn, 1536)
//	if err != nil { … }
//
//	// archive
//	_ = store.BeginSession(ctx, rec)
//	_ = store.WriteTranscript(ctx, sessionID, entry)
//
//	// index
//	_ = store.IndexFeedback(ctx, chunk)
//	matches, _ := store.SearchSimilar(ctx, queryVec, 5, filter)
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ─────────────────────────────────────────────────────────────────────────────
// Archive DDL — sessions, transcript log, feedback entries
// ─────────────────────────────────────────────────────────────────────────────

const ddlSessions = `
CREATE TABLE IF NOT EXISTS sessions (
    id             TEXT              PRIMARY KEY,
    speaker_id     TEXT              NOT NULL DEFAULT '',
    speaker_name   TEXT              NOT NULL DEFAULT '',
    started_at     TIMESTAMPTZ       NOT NULL DEFAULT now(),
    ended_at       TIMESTAMPTZ,
    summary        TEXT              NOT NULL DEFAULT '',
    overall_score  DOUBLE PRECISION  NOT NULL DEFAULT 0,
    dimensions     JSONB             NOT NULL DEFAULT '{}',
    feedback_count INTEGER           NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_sessions_started_at
    ON sessions (started_at);
`

const ddlTranscriptEntries = `
CREATE TABLE IF NOT EXISTS transcript_entries (
    id           BIGSERIAL    PRIMARY KEY,
    session_id   TEXT         NOT NULL,
    speaker_id   TEXT         NOT NULL DEFAULT '',
    speaker_name TEXT         NOT NULL DEFAULT '',
    text         TEXT         NOT NULL,
    raw_text     TEXT         NOT NULL DEFAULT '',
    is_coach     BOOLEAN      NOT NULL DEFAULT false,
    filler_count INTEGER      NOT NULL DEFAULT 0,
    timestamp    TIMESTAMPTZ  NOT NULL DEFAULT now(),
    duration_ns  BIGINT       NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session_id
    ON transcript_entries (session_id);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_timestamp
    ON transcript_entries (timestamp);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_session_timestamp
    ON transcript_entries (session_id, timestamp);

CREATE INDEX IF NOT EXISTS idx_transcript_entries_fts
    ON transcript_entries USING GIN (to_tsvector('english', text));
`

const ddlFeedbackEntries = `
CREATE TABLE IF NOT EXISTS feedback_entries (
    id                TEXT              PRIMARY KEY,
    session_id        TEXT              NOT NULL,
    timestamp         TIMESTAMPTZ       NOT NULL DEFAULT now(),
    message           TEXT              NOT NULL,
    performance_level TEXT              NOT NULL DEFAULT '',
    overall_score     DOUBLE PRECISION  NOT NULL DEFAULT 0,
    analysis          JSONB             NOT NULL DEFAULT '{}'
);

CREATE INDEX IF NOT EXISTS idx_feedback_entries_session_timestamp
    ON feedback_entries (session_id, timestamp);
`

// ddlFeedbackChunks returns the index DDL with the embedding dimension
// substituted. The vector dimension is baked into the column type at schema
// creation time.
func ddlFeedbackChunks(embeddingDimensions int) string {
	return fmt.Sprintf(`
CREATE EXTENSION IF NOT EXISTS vector;

CREATE TABLE IF NOT EXISTS feedback_chunks (
    id          TEXT         PRIMARY KEY,
    session_id  TEXT         NOT NULL,
    message     TEXT         NOT NULL,
    embedding   vector(%d),
    area        TEXT         NOT NULL DEFAULT '',
    level       TEXT         NOT NULL DEFAULT '',
    timestamp   TIMESTAMPTZ  NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_feedback_chunks_session_id
    ON feedback_chunks (session_id);

CREATE INDEX IF NOT EXISTS idx_feedback_chunks_area
    ON feedback_chunks (area);

CREATE INDEX IF NOT EXISTS idx_feedback_chunks_embedding
    ON feedback_chunks USING hnsw (embedding vector_cosine_ops);
`, embeddingDimensions)
}

// Migrate creates or ensures all required database tables and extensions exist.
// It is idempotent (CREATE TABLE IF NOT EXISTS / CREATE INDEX IF NOT EXISTS) and
// safe to call on every application start.
//
// embeddingDimensions must match the vector model configured for your deployment
// (e.g., 1536 for OpenAI text-embedding-3-small, 768 for nomic-embed-text).
// Changing this value after the first migration requires a manual schema update.
func Migrate(ctx context.Context, pool *pgxpool.Pool, embeddingDimensions int) error {
	statements := []string{
		ddlSessions,
		ddlTranscriptEntries,
		ddlFeedbackEntries,
		ddlFeedbackChunks(embeddingDimensions),
	}

	for _, stmt := range statements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("postgres migrate: %w", err)
		}
	}
	return nil
}
