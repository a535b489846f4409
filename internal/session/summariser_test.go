package session

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/provider/llm"
	llmmock "github.com/rostrumlabs/rostrum/pkg/provider/llm/mock"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

func testDigest() Digest {
	start := time.Date(2025, 6, 12, 19, 0, 0, 0, time.UTC)
	return Digest{
		SessionID:    "sess-1",
		SpeakerName:  "Maya",
		StartedAt:    start,
		Duration:     15 * time.Minute,
		OverallScore: 78,
		Dimensions: map[string]float64{
			"pacing":   62,
			"gestures": 84,
		},
		Feedback: []types.FeedbackEntry{
			{
				ID:               "fb-1",
				Timestamp:        start.Add(2*time.Minute + 30*time.Second),
				Message:          "Try slowing down a little.",
				PerformanceLevel: types.PerformanceGood,
			},
			{
				ID:               "fb-2",
				Timestamp:        start.Add(9 * time.Minute),
				Message:          "Great use of gestures there.",
				PerformanceLevel: types.PerformanceExcellent,
			},
		},
	}
}

func TestLLMSummariser_Summarise(t *testing.T) {
	t.Run("returns model content", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "Solid session overall."},
		}
		s := NewLLMSummariser(p)

		got, err := s.Summarise(context.Background(), testDigest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "Solid session overall." {
			t.Errorf("unexpected recap: %q", got)
		}
	})

	t.Run("formats the digest into the user message", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "ok"},
		}
		s := NewLLMSummariser(p)

		_, err := s.Summarise(context.Background(), testDigest())
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(p.CompleteCalls) != 1 {
			t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
		}

		req := p.CompleteCalls[0].Req
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Fatalf("expected a single user message, got %+v", req.Messages)
		}

		content := req.Messages[0].Content
		for _, want := range []string{
			"Presenter: Maya",
			"Session length: 15m0s",
			"Final overall score: 78/100 (good)",
			"gestures: 84",
			"pacing: 62",
			"[2m30s] (good) Try slowing down a little.",
			"[9m0s] (excellent) Great use of gestures there.",
		} {
			if !strings.Contains(content, want) {
				t.Errorf("digest message missing %q:\n%s", want, content)
			}
		}

		// Dimension scores are listed alphabetically.
		if strings.Index(content, "gestures: 84") > strings.Index(content, "pacing: 62") {
			t.Error("expected gestures before pacing")
		}
	})

	t.Run("no feedback skips the model", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "unused"},
		}
		s := NewLLMSummariser(p)

		d := testDigest()
		d.Feedback = nil

		got, err := s.Summarise(context.Background(), d)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != "" {
			t.Errorf("expected empty recap, got %q", got)
		}
		if len(p.CompleteCalls) != 0 {
			t.Errorf("expected no Complete calls, got %d", len(p.CompleteCalls))
		}
	})

	t.Run("provider error is wrapped", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteErr: errors.New("rate limited"),
		}
		s := NewLLMSummariser(p)

		_, err := s.Summarise(context.Background(), testDigest())
		if err == nil {
			t.Fatal("expected error, got nil")
		}
		if !strings.Contains(err.Error(), "summarise session") {
			t.Errorf("unexpected error text: %v", err)
		}
	})

	t.Run("uses low temperature", func(t *testing.T) {
		p := &llmmock.Provider{
			CompleteResponse: &llm.CompletionResponse{Content: "ok"},
		}
		s := NewLLMSummariser(p)

		_, _ = s.Summarise(context.Background(), testDigest())
		if len(p.CompleteCalls) != 1 {
			t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
		}
		if got := p.CompleteCalls[0].Req.Temperature; got != 0.3 {
			t.Errorf("expected temperature 0.3, got %v", got)
		}
	})
}

func TestFormatDigest_NegativeOffsetClamped(t *testing.T) {
	d := testDigest()
	// An entry stamped before session start (clock skew) must not render a
	// negative offset.
	d.Feedback[0].Timestamp = d.StartedAt.Add(-5 * time.Second)

	content := formatDigest(d)
	if strings.Contains(content, "[-") {
		t.Errorf("expected clamped offset, got:\n%s", content)
	}
	if !strings.Contains(content, "[0s]") {
		t.Errorf("expected zero offset for skewed entry, got:\n%s", content)
	}
}
