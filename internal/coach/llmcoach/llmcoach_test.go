package llmcoach_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/internal/coach/llmcoach"
	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/pkg/provider/llm"
	llmmock "github.com/rostrumlabs/rostrum/pkg/provider/llm/mock"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

func mustCatalog(t *testing.T) *rubric.Catalog {
	t.Helper()
	cat, err := rubric.Default()
	if err != nil {
		t.Fatalf("loading default rubric: %v", err)
	}
	return cat
}

func scenarioAnalysis() types.AnalysisResult {
	return types.AnalysisResult{
		OverallScore: 78,
		Dimensions: map[string]float64{
			"volume":   70,
			"pitch":    90,
			"clarity":  85,
			"posture":  85,
			"gestures": 60,
		},
		Improvements: []types.Improvement{
			{
				Area:     "gestures",
				Score:    60,
				Message:  "Add purposeful hand movement to underline your key points.",
				Priority: types.PriorityLow,
			},
		},
		Timestamp: time.Now(),
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// test doubles
// ─────────────────────────────────────────────────────────────────────────────

type stubHistory struct {
	entries []types.FeedbackEntry
}

func (s *stubHistory) Entries() []types.FeedbackEntry { return s.entries }

type stubRecalls struct {
	recalls []coach.Recall
	err     error
	queries []string
}

func (s *stubRecalls) Recall(_ context.Context, query string, _ int) ([]coach.Recall, error) {
	s.queries = append(s.queries, query)
	return s.recalls, s.err
}

type stubTranscript struct {
	text string
}

func (s *stubTranscript) JoinRecent(int) string { return s.text }

// ─────────────────────────────────────────────────────────────────────────────
// tests
// ─────────────────────────────────────────────────────────────────────────────

func TestRespond_BuildsPromptAndReturnsMessage(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "Nice pacing. Lift your chin. Keep it up.",
		},
	}
	e := llmcoach.New(p, mustCatalog(t))

	resp, err := e.Respond(context.Background(), scenarioAnalysis(), "How am I doing?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Message != "Nice pacing. Lift your chin. Keep it up." {
		t.Errorf("unexpected message: %q", resp.Message)
	}
	if resp.Analysis.OverallScore != 78 {
		t.Errorf("analysis not attached: overall = %v", resp.Analysis.OverallScore)
	}

	if len(p.CompleteCalls) != 1 {
		t.Fatalf("expected 1 Complete call, got %d", len(p.CompleteCalls))
	}
	req := p.CompleteCalls[0].Req
	if !strings.Contains(req.SystemPrompt, "Rostrum") {
		t.Errorf("system prompt missing persona name:\n%s", req.SystemPrompt)
	}
	if !strings.Contains(req.SystemPrompt, "## Current Delivery") {
		t.Errorf("system prompt missing analysis section:\n%s", req.SystemPrompt)
	}
	last := req.Messages[len(req.Messages)-1]
	if last.Role != "user" || last.Content != "How am I doing?" {
		t.Errorf("last message = %+v, want user question", last)
	}
}

func TestRespond_EmptyUserTextUsesCheckIn(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Breathe between sections."},
	}
	e := llmcoach.New(p, mustCatalog(t))

	if _, err := e.Respond(context.Background(), scenarioAnalysis(), ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	req := p.CompleteCalls[0].Req
	want := "Give me one brief piece of feedback on my delivery right now."
	if got := req.Messages[0].Content; got != want {
		t.Errorf("check-in message = %q, want %q", got, want)
	}
}

func TestRespond_ClipsToPersonaSentenceCap(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "One point. Two points. Three points. Four points. Five points.",
		},
	}
	// Default rubric persona caps responses at 3 sentences.
	e := llmcoach.New(p, mustCatalog(t))

	resp, err := e.Respond(context.Background(), scenarioAnalysis(), "hi")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := "One point. Two points. Three points."
	if resp.Message != want {
		t.Errorf("clipped message = %q, want %q", resp.Message, want)
	}
}

func TestRespond_DecimalScoresSurviveClipping(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{
			Content: "You scored 78.5 overall. Volume dipped at 70.2 mid-talk. Gestures need work.",
		},
	}
	e := llmcoach.New(p, mustCatalog(t))

	resp, err := e.Respond(context.Background(), scenarioAnalysis(), "score?")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(resp.Message, "78.5") || !strings.Contains(resp.Message, "70.2") {
		t.Errorf("decimals were clipped as sentence boundaries: %q", resp.Message)
	}
	if !strings.HasSuffix(resp.Message, "Gestures need work.") {
		t.Errorf("expected all three sentences kept, got %q", resp.Message)
	}
}

func TestRespond_KeepsConversationWindow(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Noted."},
	}
	e := llmcoach.New(p, mustCatalog(t))
	ctx := context.Background()

	if _, err := e.Respond(ctx, scenarioAnalysis(), "first question"); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	if _, err := e.Respond(ctx, scenarioAnalysis(), "second question"); err != nil {
		t.Fatalf("second respond: %v", err)
	}

	req := p.CompleteCalls[1].Req
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages on second call, got %d", len(req.Messages))
	}
	wantRoles := []string{"user", "assistant", "user"}
	for i, want := range wantRoles {
		if req.Messages[i].Role != want {
			t.Errorf("message %d role = %q, want %q", i, req.Messages[i].Role, want)
		}
	}
	if req.Messages[0].Content != "first question" {
		t.Errorf("first turn content = %q", req.Messages[0].Content)
	}
}

func TestRespond_TrimsWindowToMaxTurns(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Noted."},
	}
	e := llmcoach.New(p, mustCatalog(t), llmcoach.WithMaxTurns(1))
	ctx := context.Background()

	for _, q := range []string{"first", "second", "third"} {
		if _, err := e.Respond(ctx, scenarioAnalysis(), q); err != nil {
			t.Fatalf("respond %q: %v", q, err)
		}
	}

	req := p.CompleteCalls[2].Req
	if len(req.Messages) != 3 {
		t.Fatalf("expected 3 messages with one kept pair, got %d", len(req.Messages))
	}
	if req.Messages[0].Content != "second" {
		t.Errorf("oldest kept turn = %q, want %q", req.Messages[0].Content, "second")
	}
}

func TestRespond_CompletionErrorWrapped(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{CompleteErr: errors.New("backend offline")}
	e := llmcoach.New(p, mustCatalog(t))

	resp, err := e.Respond(context.Background(), scenarioAnalysis(), "hi")
	if err == nil {
		t.Fatal("expected error from failing provider")
	}
	if !strings.Contains(err.Error(), "completion failed") {
		t.Errorf("error %q missing wrap context", err)
	}
	if resp.Message != "" {
		t.Errorf("expected zero response, got %q", resp.Message)
	}
}

func TestRespond_EmptyCompletion(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		resp *llm.CompletionResponse
	}{
		{"nil response", nil},
		{"blank content", &llm.CompletionResponse{Content: "   "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			p := &llmmock.Provider{CompleteResponse: tt.resp}
			e := llmcoach.New(p, mustCatalog(t))

			_, err := e.Respond(context.Background(), scenarioAnalysis(), "hi")
			if !errors.Is(err, llmcoach.ErrEmptyCompletion) {
				t.Errorf("expected ErrEmptyCompletion, got %v", err)
			}
		})
	}
}

func TestRespond_IncludesCollaboratorSections(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Keep going."},
	}
	hist := &stubHistory{entries: []types.FeedbackEntry{
		{Message: "Open your shoulders toward the audience.", Timestamp: time.Now().Add(-time.Minute)},
	}}
	rec := &stubRecalls{recalls: []coach.Recall{
		{Message: "Your closings trail off.", When: time.Now().Add(-48 * time.Hour), Similarity: 0.9},
	}}
	tr := &stubTranscript{text: "and that wraps up the quarterly numbers"}

	e := llmcoach.New(p, mustCatalog(t),
		llmcoach.WithHistory(hist),
		llmcoach.WithRecalls(rec),
		llmcoach.WithTranscript(tr),
	)

	if _, err := e.Respond(context.Background(), scenarioAnalysis(), "how was the close?"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := p.CompleteCalls[0].Req.SystemPrompt
	if !strings.Contains(prompt, "Open your shoulders") {
		t.Errorf("prompt missing history entry:\n%s", prompt)
	}
	if !strings.Contains(prompt, "Your closings trail off.") {
		t.Errorf("prompt missing recall:\n%s", prompt)
	}
	if !strings.Contains(prompt, "wraps up the quarterly numbers") {
		t.Errorf("prompt missing transcript excerpt:\n%s", prompt)
	}
	if len(rec.queries) != 1 || rec.queries[0] != "how was the close?" {
		t.Errorf("recall queried with %v, want the user text", rec.queries)
	}
}

func TestRespond_RecallFailureIsNonFatal(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Keep going."},
	}
	rec := &stubRecalls{err: errors.New("index offline")}
	e := llmcoach.New(p, mustCatalog(t), llmcoach.WithRecalls(rec))

	resp, err := e.Respond(context.Background(), scenarioAnalysis(), "hi")
	if err != nil {
		t.Fatalf("recall failure should not fail the response: %v", err)
	}
	if resp.Message == "" {
		t.Error("expected a response despite recall failure")
	}
	if strings.Contains(p.CompleteCalls[0].Req.SystemPrompt, "## Past Sessions") {
		t.Error("prompt should omit recalls section when the index fails")
	}
}

func TestRespond_RecallQueryFallsBackToImprovement(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Keep going."},
	}
	rec := &stubRecalls{}
	e := llmcoach.New(p, mustCatalog(t), llmcoach.WithRecalls(rec))

	analysis := scenarioAnalysis()
	if _, err := e.Respond(context.Background(), analysis, ""); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(rec.queries) != 1 || rec.queries[0] != analysis.Improvements[0].Message {
		t.Errorf("recall queried with %v, want the top improvement message", rec.queries)
	}
}

func TestRespond_FeedbackLimit(t *testing.T) {
	t.Parallel()

	var entries []types.FeedbackEntry
	for i := 1; i <= 7; i++ {
		entries = append(entries, types.FeedbackEntry{
			Message:   fmt.Sprintf("feedback point %d", i),
			Timestamp: time.Now().Add(-time.Duration(8-i) * time.Minute),
		})
	}
	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Keep going."},
	}
	e := llmcoach.New(p, mustCatalog(t), llmcoach.WithHistory(&stubHistory{entries: entries}))

	if _, err := e.Respond(context.Background(), scenarioAnalysis(), "hi"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt := p.CompleteCalls[0].Req.SystemPrompt
	if strings.Contains(prompt, "feedback point 2") {
		t.Errorf("prompt should drop entries beyond the limit:\n%s", prompt)
	}
	for i := 3; i <= 7; i++ {
		if !strings.Contains(prompt, fmt.Sprintf("feedback point %d", i)) {
			t.Errorf("prompt missing recent entry %d:\n%s", i, prompt)
		}
	}
}

func TestReset_ClearsConversationWindow(t *testing.T) {
	t.Parallel()

	p := &llmmock.Provider{
		CompleteResponse: &llm.CompletionResponse{Content: "Noted."},
	}
	e := llmcoach.New(p, mustCatalog(t))
	ctx := context.Background()

	if _, err := e.Respond(ctx, scenarioAnalysis(), "first"); err != nil {
		t.Fatalf("first respond: %v", err)
	}
	e.Reset()
	if _, err := e.Respond(ctx, scenarioAnalysis(), "second"); err != nil {
		t.Fatalf("second respond: %v", err)
	}

	req := p.CompleteCalls[1].Req
	if len(req.Messages) != 1 {
		t.Errorf("expected a fresh window after Reset, got %d messages", len(req.Messages))
	}
}
