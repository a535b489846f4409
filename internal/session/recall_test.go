package session

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	memorymock "github.com/rostrumlabs/rostrum/pkg/memory/mock"
	embmock "github.com/rostrumlabs/rostrum/pkg/provider/embeddings/mock"
)

func TestRecaller_Recall(t *testing.T) {
	t.Run("maps matches to recalls", func(t *testing.T) {
		when := time.Date(2025, 5, 1, 18, 30, 0, 0, time.UTC)
		index := &memorymock.FeedbackIndex{
			SearchSimilarResult: []memory.FeedbackMatch{
				{Chunk: memory.FeedbackChunk{Message: "Slow down on transitions.", Timestamp: when}, Distance: 0.2},
				{Chunk: memory.FeedbackChunk{Message: "Watch your filler words."}, Distance: 0.9},
				{Chunk: memory.FeedbackChunk{Message: "Unrelated advice."}, Distance: 1.4},
			},
		}
		embedder := &embmock.Provider{EmbedResult: []float32{0.5, 0.5}}

		r := NewRecaller(embedder, index, "current-session")

		got, err := r.Recall(context.Background(), "pacing feels rushed", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("expected 3 recalls, got %d", len(got))
		}

		if got[0].Message != "Slow down on transitions." {
			t.Errorf("unexpected first recall: %+v", got[0])
		}
		if !got[0].When.Equal(when) {
			t.Errorf("expected When %v, got %v", when, got[0].When)
		}
		if math.Abs(got[0].Similarity-0.8) > 1e-9 {
			t.Errorf("expected similarity 0.8, got %v", got[0].Similarity)
		}
		if math.Abs(got[1].Similarity-0.1) > 1e-9 {
			t.Errorf("expected similarity 0.1, got %v", got[1].Similarity)
		}
		// Distance beyond 1 clamps to zero similarity.
		if got[2].Similarity != 0 {
			t.Errorf("expected similarity 0, got %v", got[2].Similarity)
		}
	})

	t.Run("excludes the current session", func(t *testing.T) {
		index := &memorymock.FeedbackIndex{}
		embedder := &embmock.Provider{EmbedResult: []float32{1}}

		r := NewRecaller(embedder, index, "current-session")

		_, err := r.Recall(context.Background(), "gestures", 5)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		calls := index.Calls()
		if len(calls) != 1 {
			t.Fatalf("expected 1 SearchSimilar call, got %d", len(calls))
		}
		filter := calls[0].Args[2].(memory.FeedbackFilter)
		if filter.ExcludeSessionID != "current-session" {
			t.Errorf("expected current session excluded, got %+v", filter)
		}
		if topK := calls[0].Args[1].(int); topK != 5 {
			t.Errorf("expected topK 5, got %d", topK)
		}
	})

	t.Run("zero limit uses the default", func(t *testing.T) {
		index := &memorymock.FeedbackIndex{}
		embedder := &embmock.Provider{EmbedResult: []float32{1}}

		r := NewRecaller(embedder, index, "s1")

		_, err := r.Recall(context.Background(), "eye contact", 0)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if topK := index.Calls()[0].Args[1].(int); topK != defaultRecallLimit {
			t.Errorf("expected default limit %d, got %d", defaultRecallLimit, topK)
		}
	})

	t.Run("embed failure is wrapped", func(t *testing.T) {
		index := &memorymock.FeedbackIndex{}
		embedder := &embmock.Provider{EmbedErr: errors.New("model cold")}

		r := NewRecaller(embedder, index, "s1")

		_, err := r.Recall(context.Background(), "volume", 3)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "embed query") {
			t.Errorf("unexpected error text: %v", err)
		}
		if got := index.CallCount("SearchSimilar"); got != 0 {
			t.Errorf("expected no search after embed failure, got %d", got)
		}
	})

	t.Run("search failure is wrapped", func(t *testing.T) {
		index := &memorymock.FeedbackIndex{
			SearchSimilarErr: errors.New("index offline"),
		}
		embedder := &embmock.Provider{EmbedResult: []float32{1}}

		r := NewRecaller(embedder, index, "s1")

		_, err := r.Recall(context.Background(), "posture", 3)
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "search index") {
			t.Errorf("unexpected error text: %v", err)
		}
	})

	t.Run("no matches yields empty slice", func(t *testing.T) {
		index := &memorymock.FeedbackIndex{}
		embedder := &embmock.Provider{EmbedResult: []float32{1}}

		r := NewRecaller(embedder, index, "s1")

		got, err := r.Recall(context.Background(), "pauses", 3)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("expected empty non-nil slice, got %v", got)
		}
	})
}
