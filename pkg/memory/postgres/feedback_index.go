package postgres

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/rostrumlabs/rostrum/pkg/memory"
)

// IndexFeedback implements [memory.FeedbackIndex]. It upserts a pre-embedded
// [memory.FeedbackChunk] into the feedback_chunks table. If a chunk with the
// same ID already exists it is completely replaced.
func (s *Store) IndexFeedback(ctx context.Context, chunk memory.FeedbackChunk) error {
	const q = `
		INSERT INTO feedback_chunks
		    (id, session_id, message, embedding, area, level, timestamp)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
		    session_id = EXCLUDED.session_id,
		    message    = EXCLUDED.message,
		    embedding  = EXCLUDED.embedding,
		    area       = EXCLUDED.area,
		    level      = EXCLUDED.level,
		    timestamp  = EXCLUDED.timestamp`

	vec := pgvector.NewVector(chunk.Embedding)
	_, err := s.pool.Exec(ctx, q,
		chunk.ID,
		chunk.SessionID,
		chunk.Message,
		vec,
		chunk.Area,
		chunk.Level,
		chunk.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("feedback index: index feedback: %w", err)
	}
	return nil
}

// SearchSimilar implements [memory.FeedbackIndex]. It finds the topK chunks
// whose embeddings are closest (cosine distance) to the supplied query
// embedding, optionally filtered by filter.
//
// Results are ordered by ascending cosine distance (most similar first).
func (s *Store) SearchSimilar(ctx context.Context, embedding []float32, topK int, filter memory.FeedbackFilter) ([]memory.FeedbackMatch, error) {
	queryVec := pgvector.NewVector(embedding)

	args := []any{queryVec} // $1 = query vector
	next := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	var conditions []string
	if filter.SessionID != "" {
		conditions = append(conditions, "session_id = "+next(filter.SessionID))
	}
	if filter.ExcludeSessionID != "" {
		conditions = append(conditions, "session_id <> "+next(filter.ExcludeSessionID))
	}
	if filter.Area != "" {
		conditions = append(conditions, "area = "+next(filter.Area))
	}
	if !filter.After.IsZero() {
		conditions = append(conditions, "timestamp > "+next(filter.After))
	}
	if !filter.Before.IsZero() {
		conditions = append(conditions, "timestamp < "+next(filter.Before))
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, "\n  AND ")
	}

	args = append(args, topK)
	limitArg := fmt.Sprintf("$%d", len(args))

	q := fmt.Sprintf(`
		SELECT id, session_id, message, embedding, area, level, timestamp,
		       embedding <=> $1 AS distance
		FROM   feedback_chunks
		%s
		ORDER  BY distance
		LIMIT  %s`, whereClause, limitArg)

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("feedback index: search: %w", err)
	}

	results, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (memory.FeedbackMatch, error) {
		var (
			fm  memory.FeedbackMatch
			vec pgvector.Vector
		)
		if err := row.Scan(
			&fm.Chunk.ID,
			&fm.Chunk.SessionID,
			&fm.Chunk.Message,
			&vec,
			&fm.Chunk.Area,
			&fm.Chunk.Level,
			&fm.Chunk.Timestamp,
			&fm.Distance,
		); err != nil {
			return memory.FeedbackMatch{}, err
		}
		fm.Chunk.Embedding = vec.Slice()
		return fm, nil
	})
	if err != nil {
		return nil, fmt.Errorf("feedback index: scan rows: %w", err)
	}
	if results == nil {
		results = []memory.FeedbackMatch{}
	}
	return results, nil
}
