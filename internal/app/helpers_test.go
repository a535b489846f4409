package app

import (
	"fmt"
	"testing"

	"github.com/rostrumlabs/rostrum/internal/config"
	"github.com/rostrumlabs/rostrum/internal/feedback"
	"github.com/rostrumlabs/rostrum/internal/transcript"
	"github.com/rostrumlabs/rostrum/pkg/audio"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

func TestSanitizeName(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want string
	}{
		{"Jane Doe", "jane-doe"},
		{"  Ada Lovelace  ", "ada-lovelace"},
		{"solo", "solo"},
		{"Three Word Name", "three-word-name"},
	}
	for _, tt := range tests {
		if got := sanitizeName(tt.in); got != tt.want {
			t.Errorf("sanitizeName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestFeedbackPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		analysis types.AnalysisResult
		want     int
	}{
		{
			name:     "no improvements is encouragement",
			analysis: types.AnalysisResult{Strengths: []string{"great pace"}},
			want:     audio.PriorityEncouragement,
		},
		{
			name: "high priority improvement preempts",
			analysis: types.AnalysisResult{Improvements: []types.Improvement{
				{Area: "volume", Priority: types.PriorityHigh},
			}},
			want: audio.PriorityCorrection,
		},
		{
			name: "medium priority improvement is advice",
			analysis: types.AnalysisResult{Improvements: []types.Improvement{
				{Area: "pace", Priority: types.PriorityMedium},
			}},
			want: audio.PriorityAdvice,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			if got := feedbackPriority(tt.analysis); got != tt.want {
				t.Errorf("feedbackPriority() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRuleBasedResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		analysis types.AnalysisResult
		want     string
	}{
		{
			name: "top improvement message wins",
			analysis: types.AnalysisResult{
				Strengths: []string{"clear voice"},
				Improvements: []types.Improvement{
					{Area: "volume", Message: "Speak up a little."},
					{Area: "pace", Message: "Slow down."},
				},
			},
			want: "Speak up a little.",
		},
		{
			name:     "strength when nothing to fix",
			analysis: types.AnalysisResult{Strengths: []string{"clear voice"}},
			want:     "clear voice",
		},
		{
			name:     "canned line when analysis is empty",
			analysis: types.AnalysisResult{},
			want:     "Keep going, you're doing fine.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			resp := ruleBasedResponse(tt.analysis)
			if resp.Message != tt.want {
				t.Errorf("ruleBasedResponse().Message = %q, want %q", resp.Message, tt.want)
			}
			if resp.Analysis.OverallScore != tt.analysis.OverallScore {
				t.Error("ruleBasedResponse() dropped the analysis")
			}
		})
	}
}

func TestImprovementArea(t *testing.T) {
	t.Parallel()

	withArea := types.AnalysisResult{Improvements: []types.Improvement{{Area: "pace"}}}
	if got := improvementArea(withArea); got != "pace" {
		t.Errorf("improvementArea() = %q, want pace", got)
	}
	if got := improvementArea(types.AnalysisResult{}); got != "encouragement" {
		t.Errorf("improvementArea() = %q, want encouragement", got)
	}
}

func TestSuppressReason(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{feedback.ErrDuplicateMessage, "duplicate"},
		{feedback.ErrTooSimilar, "similar"},
		{feedback.ErrInputRepeated, "input-repeated"},
		{feedback.ErrRateLimited, "rate-limited"},
		{fmt.Errorf("accept: %w", feedback.ErrRateLimited), "rate-limited"},
		{fmt.Errorf("boom"), "other"},
	}
	for _, tt := range tests {
		if got := suppressReason(tt.err); got != tt.want {
			t.Errorf("suppressReason(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

func TestFillerKeywords(t *testing.T) {
	t.Parallel()

	boosts := fillerKeywords(transcript.NewDetector())
	if len(boosts) == 0 {
		t.Fatal("fillerKeywords() returned no keywords")
	}

	seen := make(map[string]bool, len(boosts))
	for _, b := range boosts {
		if b.Boost != fillerKeywordBoost {
			t.Errorf("boost for %q = %v, want %v", b.Keyword, b.Boost, fillerKeywordBoost)
		}
		seen[b.Keyword] = true
	}
	for _, word := range []string{"um", "like", "you know"} {
		if !seen[word] {
			t.Errorf("fillerKeywords() missing %q", word)
		}
	}
}

func TestConfigVoiceProfile(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Coach.Voice.VoiceID = "nova"
	cfg.Coach.Voice.Provider = "elevenlabs"
	cfg.Coach.Voice.PitchShift = 1.1
	cfg.Coach.Voice.SpeedFactor = 0.9

	profile := configVoiceProfile(cfg)
	if profile.ID != "nova" || profile.Provider != "elevenlabs" {
		t.Errorf("profile identity = %q/%q, want nova/elevenlabs", profile.ID, profile.Provider)
	}
	if profile.PitchShift != 1.1 || profile.SpeedFactor != 0.9 {
		t.Errorf("profile tuning = %v/%v, want 1.1/0.9", profile.PitchShift, profile.SpeedFactor)
	}
}

func TestSessionControlsPauseAndClear(t *testing.T) {
	t.Parallel()

	history := feedback.NewHistory()
	if _, err := history.Accept("opening", "Slow down a touch.", types.AnalysisResult{}); err != nil {
		t.Fatalf("Accept() error = %v", err)
	}

	ctl := &sessionControls{history: history}
	if ctl.feedbackPaused() {
		t.Error("feedbackPaused() = true before any pause")
	}
	ctl.PauseFeedback()
	if !ctl.feedbackPaused() {
		t.Error("feedbackPaused() = false after PauseFeedback")
	}
	ctl.ResumeFeedback()
	if ctl.feedbackPaused() {
		t.Error("feedbackPaused() = true after ResumeFeedback")
	}

	ctl.ClearHistory()
	if got := history.Len(); got != 0 {
		t.Errorf("history length after ClearHistory = %d, want 0", got)
	}
}
