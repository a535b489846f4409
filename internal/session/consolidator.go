package session

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/provider/embeddings"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// defaultConsolidationInterval is the default period between consolidation
// ticks.
const defaultConsolidationInterval = 30 * time.Second

// FeedbackSource provides the session's delivered feedback entries, oldest
// first. *feedback.History satisfies it.
type FeedbackSource interface {
	Entries() []types.FeedbackEntry
}

// Consolidator periodically flushes the live session's transcript log and
// feedback history to the session archive, and embeds new feedback messages
// into the vector index. The durable record stays close behind the live
// session, so a crash loses at most one interval of material.
//
// All methods are safe for concurrent use.
type Consolidator struct {
	archive   memory.SessionArchive
	index     memory.FeedbackIndex
	embedder  embeddings.Provider
	log       *TranscriptLog
	feedback  FeedbackSource
	interval  time.Duration
	sessionID string

	mu sync.Mutex
	// High-water marks into the transcript log and feedback history,
	// tracking what has already been flushed to avoid duplicate writes.
	lastTranscript int
	lastFeedback   int
	lastIndexed    int
	done           chan struct{}
	stopOnce       sync.Once
}

// ConsolidatorConfig configures a [Consolidator].
type ConsolidatorConfig struct {
	// Archive is the session archive entries are flushed to.
	Archive memory.SessionArchive

	// Index is the vector index new feedback messages are embedded into.
	// Nil disables indexing; the archive is still written.
	Index memory.FeedbackIndex

	// Embedder produces the vectors for Index. Required when Index is set.
	Embedder embeddings.Provider

	// Log is the transcript log being consolidated.
	Log *TranscriptLog

	// Feedback is the session's delivered feedback history.
	Feedback FeedbackSource

	// SessionID identifies the coaching session.
	SessionID string

	// Interval is how often to consolidate. Defaults to 30 seconds if zero.
	Interval time.Duration
}

// NewConsolidator creates a new [Consolidator] with the given configuration.
func NewConsolidator(cfg ConsolidatorConfig) *Consolidator {
	interval := cfg.Interval
	if interval <= 0 {
		interval = defaultConsolidationInterval
	}
	return &Consolidator{
		archive:   cfg.Archive,
		index:     cfg.Index,
		embedder:  cfg.Embedder,
		log:       cfg.Log,
		feedback:  cfg.Feedback,
		interval:  interval,
		sessionID: cfg.SessionID,
		done:      make(chan struct{}),
	}
}

// Start begins periodic consolidation in a background goroutine.
// The goroutine runs until [Consolidator.Stop] is called or ctx is cancelled.
func (c *Consolidator) Start(ctx context.Context) {
	go c.loop(ctx)
}

// Stop halts the consolidation loop. Safe to call multiple times. Stop does
// not flush; call [Consolidator.ConsolidateNow] first when closing a session.
func (c *Consolidator) Stop() {
	c.stopOnce.Do(func() {
		close(c.done)
	})
}

// ConsolidateNow performs an immediate consolidation, flushing any new
// transcript entries and feedback to the archive and index.
func (c *Consolidator) ConsolidateNow(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.consolidate(ctx)
}

// loop runs the periodic consolidation ticker.
func (c *Consolidator) loop(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			if err := c.consolidate(ctx); err != nil {
				slog.Warn("periodic consolidation failed",
					"session_id", c.sessionID,
					"error", err,
				)
			}
			c.mu.Unlock()
		}
	}
}

// consolidate flushes material past the high-water marks. Must be called
// with c.mu held.
func (c *Consolidator) consolidate(ctx context.Context) error {
	var firstErr error
	record := func(err error) {
		if firstErr == nil {
			firstErr = err
		}
	}

	entries := c.log.Entries()
	for i := c.lastTranscript; i < len(entries); i++ {
		if err := c.archive.WriteTranscript(ctx, c.sessionID, entries[i]); err != nil {
			record(fmt.Errorf("consolidate transcript entry %d: %w", i, err))
			slog.Warn("failed to flush transcript entry",
				"session_id", c.sessionID,
				"index", i,
				"error", err,
			)
			// Keep flushing the rest; a partial flush beats none.
		}
	}
	c.lastTranscript = len(entries)

	fb := c.feedback.Entries()
	for i := c.lastFeedback; i < len(fb); i++ {
		if err := c.archive.WriteFeedback(ctx, c.sessionID, fb[i]); err != nil {
			record(fmt.Errorf("consolidate feedback entry %d: %w", i, err))
			slog.Warn("failed to flush feedback entry",
				"session_id", c.sessionID,
				"entry_id", fb[i].ID,
				"error", err,
			)
		}
	}
	c.lastFeedback = len(fb)

	if err := c.indexFeedback(ctx, fb); err != nil {
		record(err)
	}

	return firstErr
}

// indexFeedback embeds feedback messages past the index high-water mark and
// upserts them into the vector index. Must be called with c.mu held.
func (c *Consolidator) indexFeedback(ctx context.Context, fb []types.FeedbackEntry) error {
	if c.index == nil || c.embedder == nil || c.lastIndexed >= len(fb) {
		return nil
	}

	fresh := fb[c.lastIndexed:]
	texts := make([]string, len(fresh))
	for i, e := range fresh {
		texts[i] = e.Message
	}

	// The index mark only advances past an embedded batch, so a transient
	// embedding failure is retried on the next tick.
	vecs, err := c.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("consolidate embed feedback: %w", err)
	}
	if len(vecs) != len(fresh) {
		return fmt.Errorf("consolidate embed feedback: got %d vectors for %d texts", len(vecs), len(fresh))
	}

	var firstErr error
	for i, e := range fresh {
		chunk := memory.FeedbackChunk{
			ID:        e.ID,
			SessionID: c.sessionID,
			Message:   e.Message,
			Embedding: vecs[i],
			Area:      dominantArea(e),
			Level:     e.PerformanceLevel.String(),
			Timestamp: e.Timestamp,
		}
		if err := c.index.IndexFeedback(ctx, chunk); err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("index feedback %s: %w", e.ID, err)
			}
			slog.Warn("failed to index feedback entry",
				"session_id", c.sessionID,
				"entry_id", e.ID,
				"error", err,
			)
		}
	}
	c.lastIndexed = len(fb)

	return firstErr
}

// dominantArea is the area of the entry's highest-priority improvement,
// or "" for pure encouragement. Improvements arrive priority-sorted.
func dominantArea(e types.FeedbackEntry) string {
	if len(e.Analysis.Improvements) == 0 {
		return ""
	}
	return e.Analysis.Improvements[0].Area
}
