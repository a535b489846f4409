package session

import (
	"context"
	"fmt"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/provider/embeddings"
)

// defaultRecallLimit caps recall results when the caller passes no limit.
const defaultRecallLimit = 3

// Recaller answers "has this presenter heard this advice before" by
// embedding the query and searching the feedback index. The current session
// is excluded so recall surfaces genuinely old advice rather than the
// feedback just delivered.
//
// Recaller implements [coach.RecallSource].
type Recaller struct {
	embedder  embeddings.Provider
	index     memory.FeedbackIndex
	sessionID string
}

// NewRecaller creates a [Recaller] that excludes currentSessionID from its
// results.
func NewRecaller(embedder embeddings.Provider, index memory.FeedbackIndex, currentSessionID string) *Recaller {
	return &Recaller{
		embedder:  embedder,
		index:     index,
		sessionID: currentSessionID,
	}
}

// Recall embeds the query and returns the closest past-session feedback,
// most similar first.
func (r *Recaller) Recall(ctx context.Context, query string, limit int) ([]coach.Recall, error) {
	if limit <= 0 {
		limit = defaultRecallLimit
	}

	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("recall: embed query: %w", err)
	}

	matches, err := r.index.SearchSimilar(ctx, vec, limit, memory.FeedbackFilter{
		ExcludeSessionID: r.sessionID,
	})
	if err != nil {
		return nil, fmt.Errorf("recall: search index: %w", err)
	}

	out := make([]coach.Recall, len(matches))
	for i, m := range matches {
		// Cosine distance is 0 for identical vectors and grows to 2 for
		// opposite ones; clamp so Similarity stays in [0, 1].
		sim := 1 - m.Distance
		if sim < 0 {
			sim = 0
		} else if sim > 1 {
			sim = 1
		}
		out[i] = coach.Recall{
			Message:    m.Chunk.Message,
			When:       m.Chunk.Timestamp,
			Similarity: sim,
		}
	}
	return out, nil
}

// Compile-time check that Recaller satisfies coach.RecallSource.
var _ coach.RecallSource = (*Recaller)(nil)
