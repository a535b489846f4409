// Package session ties a live coaching session to its durable archive.
//
// It includes the in-memory transcript log ([TranscriptLog]), periodic
// archive consolidation ([Consolidator]), end-of-session recap generation
// ([Summariser], [LLMSummariser]), cross-session feedback recall
// ([Recaller]), stream reconnection with backoff ([Reconnector]), and
// graceful archive degradation ([ArchiveGuard]).
//
// All exported types are safe for concurrent use.
package session

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/provider/llm"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// recapPrompt is the system prompt sent to the LLM when writing the
// end-of-session recap.
const recapPrompt = `Summarise the following public-speaking practice session for the presenter's records.
Preserve: the overall performance level, which delivery areas were strong, which areas
need work, and any advice that came up repeatedly. Note improvement or decline over
the course of the session where the feedback shows it.
Address the presenter directly as "you". Be concise, encouraging, and honest.`

// Digest is the material a recap is written from: the session's closing
// metric state plus the feedback delivered along the way.
type Digest struct {
	// SessionID identifies the session being recapped.
	SessionID string

	// SpeakerName is the presenter's display name.
	SpeakerName string

	// StartedAt is when the session began.
	StartedAt time.Time

	// Duration is how long the session ran.
	Duration time.Duration

	// OverallScore is the final smoothed aggregate score.
	OverallScore float64

	// Dimensions holds the final smoothed per-dimension scores.
	Dimensions map[string]float64

	// Feedback is the session's delivered feedback, oldest first.
	Feedback []types.FeedbackEntry
}

// Summariser produces an end-of-session recap from a session digest.
type Summariser interface {
	// Summarise returns a short prose recap of the session.
	Summarise(ctx context.Context, d Digest) (string, error)
}

// LLMSummariser writes recaps with an LLM provider.
type LLMSummariser struct {
	llm llm.Provider
}

// NewLLMSummariser creates a new [LLMSummariser] backed by the given provider.
func NewLLMSummariser(provider llm.Provider) *LLMSummariser {
	return &LLMSummariser{llm: provider}
}

// Summarise formats the digest into a single user message and asks the model
// for a concise recap. A digest with no feedback yields an empty recap
// without calling the model; there is nothing to summarise from a session
// that never got past warm-up.
func (s *LLMSummariser) Summarise(ctx context.Context, d Digest) (string, error) {
	if len(d.Feedback) == 0 {
		return "", nil
	}

	resp, err := s.llm.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: recapPrompt,
		Messages: []types.Message{
			{
				Role:    "user",
				Content: formatDigest(d),
			},
		},
		Temperature: 0.3,
	})
	if err != nil {
		return "", fmt.Errorf("summarise session: %w", err)
	}

	return resp.Content, nil
}

// formatDigest renders the digest as a readable report for the model.
// Feedback lines carry their offset from session start so the model can see
// trajectory.
func formatDigest(d Digest) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Presenter: %s\n", d.SpeakerName)
	fmt.Fprintf(&sb, "Session length: %s\n", d.Duration.Round(time.Second))
	fmt.Fprintf(&sb, "Final overall score: %.0f/100 (%s)\n", d.OverallScore, types.PerformanceLevelFor(d.OverallScore))

	if len(d.Dimensions) > 0 {
		names := make([]string, 0, len(d.Dimensions))
		for name := range d.Dimensions {
			names = append(names, name)
		}
		sort.Strings(names)
		sb.WriteString("Final dimension scores:\n")
		for _, name := range names {
			fmt.Fprintf(&sb, "  %s: %.0f\n", name, d.Dimensions[name])
		}
	}

	sb.WriteString("Feedback given, in order:\n")
	for _, e := range d.Feedback {
		offset := e.Timestamp.Sub(d.StartedAt).Round(time.Second)
		if offset < 0 {
			offset = 0
		}
		fmt.Fprintf(&sb, "  [%s] (%s) %s\n", offset, e.PerformanceLevel, e.Message)
	}

	return sb.String()
}
