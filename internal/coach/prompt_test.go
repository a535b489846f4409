package coach_test

import (
	"strings"
	"testing"
	"time"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

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
		Strengths: []string{
			"Your posture projects confidence.",
			"Crisp articulation, every word lands.",
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

func TestFormatSystemPrompt_Full(t *testing.T) {
	t.Parallel()

	data := coach.PromptData{
		Persona: rubric.Persona{
			Name:                 "Rostrum",
			Style:                "You are encouraging but direct.",
			MaxResponseSentences: 3,
		},
		Analysis: scenarioAnalysis(),
		RecentFeedback: []types.FeedbackEntry{
			{
				Message:   "Try lifting your chin when you address the back row.",
				Timestamp: time.Now().Add(-2 * time.Minute),
			},
		},
		Recalls: []coach.Recall{
			{
				Message:    "Your hands stay locked at your sides during openings.",
				When:       time.Now().Add(-3 * 24 * time.Hour),
				Similarity: 0.83,
			},
		},
		RecentSpeech: "So the migration shipped on time and under budget.",
	}

	result := coach.FormatSystemPrompt(data)

	if !strings.Contains(result, "Rostrum") {
		t.Errorf("output missing persona name 'Rostrum':\n%s", result)
	}
	if !strings.Contains(result, "You are encouraging but direct.") {
		t.Errorf("output missing persona style:\n%s", result)
	}
	if !strings.Contains(result, "at most 3 sentences") {
		t.Errorf("output missing sentence cap instruction:\n%s", result)
	}

	if !strings.Contains(result, "## Current Delivery") {
		t.Error("output missing '## Current Delivery' section")
	}
	if !strings.Contains(result, "Overall: 78/100 (good)") {
		t.Errorf("output missing overall score line:\n%s", result)
	}
	if !strings.Contains(result, "- gestures: 60") {
		t.Errorf("output missing gestures dimension line:\n%s", result)
	}
	if !strings.Contains(result, "Going well:") {
		t.Error("output missing strengths list")
	}
	if !strings.Contains(result, "gestures (60, low priority)") {
		t.Errorf("output missing improvement line with priority:\n%s", result)
	}

	if !strings.Contains(result, "## Feedback Already Given") {
		t.Error("output missing '## Feedback Already Given' section")
	}
	if !strings.Contains(result, "Try lifting your chin") {
		t.Errorf("output missing prior feedback message:\n%s", result)
	}
	if !strings.Contains(result, "Do not repeat these points word for word.") {
		t.Error("output missing no-repeat instruction")
	}

	if !strings.Contains(result, "## Past Sessions") {
		t.Error("output missing '## Past Sessions' section")
	}
	if !strings.Contains(result, "3d ago") {
		t.Errorf("output missing past-session relative time:\n%s", result)
	}
	if !strings.Contains(result, "hands stay locked") {
		t.Errorf("output missing recall message:\n%s", result)
	}

	if !strings.Contains(result, "## Speaker's Recent Words") {
		t.Error("output missing '## Speaker's Recent Words' section")
	}
	if !strings.Contains(result, "migration shipped on time") {
		t.Errorf("output missing transcript excerpt:\n%s", result)
	}
}

func TestFormatSystemPrompt_OmitsEmptySections(t *testing.T) {
	t.Parallel()

	data := coach.PromptData{
		Persona:  rubric.Persona{Name: "Rostrum"},
		Analysis: scenarioAnalysis(),
	}

	result := coach.FormatSystemPrompt(data)

	for _, header := range []string{
		"## Feedback Already Given",
		"## Past Sessions",
		"## Speaker's Recent Words",
	} {
		if strings.Contains(result, header) {
			t.Errorf("output should omit %q when its data is empty:\n%s", header, result)
		}
	}
	if !strings.Contains(result, "## Current Delivery") {
		t.Error("output should keep the analysis section")
	}
}

func TestFormatSystemPrompt_FallbackPersona(t *testing.T) {
	t.Parallel()

	result := coach.FormatSystemPrompt(coach.PromptData{})

	if !strings.Contains(result, "You are the coach, a live speech coach.") {
		t.Errorf("expected fallback opening line, got:\n%s", result)
	}
	if strings.Contains(result, "## Current Delivery") {
		t.Errorf("analysis section should be omitted with no dimensions:\n%s", result)
	}
}

func TestFormatSystemPrompt_RelativeTimes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		age  time.Duration
		want string
	}{
		{"just now", 2 * time.Second, "just now"},
		{"seconds", 30 * time.Second, "30s ago"},
		{"minutes", 2 * time.Minute, "2m ago"},
		{"hours", 3 * time.Hour, "3h ago"},
		{"days", 49 * time.Hour, "2d ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := coach.PromptData{
				RecentFeedback: []types.FeedbackEntry{
					{Message: "anything", Timestamp: time.Now().Add(-tt.age)},
				},
			}
			result := coach.FormatSystemPrompt(data)
			if !strings.Contains(result, "["+tt.want+"]") {
				t.Errorf("expected %q in output:\n%s", tt.want, result)
			}
		})
	}
}
