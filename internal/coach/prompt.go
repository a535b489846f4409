package coach

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// PromptData bundles everything [FormatSystemPrompt] renders into the system
// prompt for one completion call. All fields except Persona and Analysis are
// optional.
type PromptData struct {
	// Persona is the coach identity from the rubric.
	Persona rubric.Persona

	// Analysis is the aggregate for the current cycle.
	Analysis types.AnalysisResult

	// RecentFeedback is this session's accepted feedback, oldest first.
	RecentFeedback []types.FeedbackEntry

	// Recalls are similar messages from archived sessions, strongest first.
	Recalls []Recall

	// RecentSpeech is a short excerpt of the speaker's latest utterances.
	RecentSpeech string
}

// FormatSystemPrompt converts PromptData into the system prompt string sent
// with every coach completion.
//
// The formatter is pure: it performs no I/O, has no side effects, and is safe
// for concurrent use.
//
// Empty sections (no feedback yet, no recalls, no transcript) are omitted
// entirely rather than rendering as empty headers.
func FormatSystemPrompt(d PromptData) string {
	var sb strings.Builder

	// ── Opening line ──────────────────────────────────────────────────────────
	name := strings.TrimSpace(d.Persona.Name)
	if name == "" {
		name = "the coach"
	}
	style := strings.TrimSpace(d.Persona.Style)
	if style != "" {
		fmt.Fprintf(&sb, "You are %s, a live speech coach. %s", name, style)
	} else {
		fmt.Fprintf(&sb, "You are %s, a live speech coach.", name)
	}
	if d.Persona.MaxResponseSentences > 0 {
		fmt.Fprintf(&sb, " Reply in at most %d sentences, speaking directly to the speaker.",
			d.Persona.MaxResponseSentences)
	}

	// ── Current delivery section ──────────────────────────────────────────────
	if section := formatAnalysisSection(d.Analysis); section != "" {
		sb.WriteString("\n\n## Current Delivery\n")
		sb.WriteString(section)
	}

	// ── Feedback already given this session ───────────────────────────────────
	if len(d.RecentFeedback) > 0 {
		sb.WriteString("\n\n## Feedback Already Given\n")
		sb.WriteString(formatFeedbackSection(d.RecentFeedback))
		sb.WriteString("\nDo not repeat these points word for word.")
	}

	// ── Past-session recalls ──────────────────────────────────────────────────
	if len(d.Recalls) > 0 {
		sb.WriteString("\n\n## Past Sessions\n")
		sb.WriteString(formatRecallSection(d.Recalls))
	}

	// ── Speaker's recent words ────────────────────────────────────────────────
	if speech := strings.TrimSpace(d.RecentSpeech); speech != "" {
		sb.WriteString("\n\n## Speaker's Recent Words\n")
		fmt.Fprintf(&sb, "%q", speech)
	}

	return sb.String()
}

// ─────────────────────────────────────────────────────────────────────────────
// Internal helpers
// ─────────────────────────────────────────────────────────────────────────────

// formatAnalysisSection renders the overall score, the per-dimension scores
// in name order, and the strength/improvement lists. Returns an empty string
// when the analysis carries no measured dimensions.
func formatAnalysisSection(a types.AnalysisResult) string {
	if len(a.Dimensions) == 0 {
		return ""
	}

	var lines []string
	lines = append(lines, fmt.Sprintf("Overall: %.0f/100 (%s)",
		a.OverallScore, types.PerformanceLevelFor(a.OverallScore)))

	for _, name := range slices.Sorted(maps.Keys(a.Dimensions)) {
		lines = append(lines, fmt.Sprintf("- %s: %.0f", name, a.Dimensions[name]))
	}

	if len(a.Strengths) > 0 {
		lines = append(lines, "Going well:")
		for _, s := range a.Strengths {
			lines = append(lines, fmt.Sprintf("- %s", s))
		}
	}

	if len(a.Improvements) > 0 {
		lines = append(lines, "Needs work:")
		for _, imp := range a.Improvements {
			lines = append(lines, fmt.Sprintf("- %s (%.0f, %s priority): %s",
				imp.Area, imp.Score, imp.Priority, imp.Message))
		}
	}

	return strings.Join(lines, "\n")
}

// formatFeedbackSection renders this session's accepted feedback with
// relative timestamps and speaker-facing wording.
func formatFeedbackSection(entries []types.FeedbackEntry) string {
	now := time.Now()
	var lines []string
	for _, e := range entries {
		lines = append(lines, fmt.Sprintf("[%s] %s",
			formatRelativeTime(now.Sub(e.Timestamp)), e.Message))
	}
	return strings.Join(lines, "\n")
}

// formatRecallSection renders past-session matches from the semantic index.
func formatRecallSection(recalls []Recall) string {
	now := time.Now()
	var lines []string
	for _, r := range recalls {
		lines = append(lines, fmt.Sprintf("You have told this speaker before (%s): %q",
			formatRelativeTime(now.Sub(r.When)), r.Message))
	}
	return strings.Join(lines, "\n")
}

// formatRelativeTime converts a duration to a compact human-readable label
// such as "just now", "30s ago", "2m ago", "1h ago", "3d ago".
func formatRelativeTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	switch {
	case d < 5*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
}
