// Package command implements control-phrase detection on STT finals so
// spoken session commands bypass the analysis cycle. It checks final
// transcripts against a set of regex patterns and executes the matching
// session control when one is found.
//
// Matched phrases are consumed before they reach HandleUserInput, so
// "end the session" ends the session instead of being analyzed as
// presentation material.
package command

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// Controls is the session surface control phrases act on. The active
// coaching session implements it.
type Controls interface {
	// EndSession begins stopping the coaching session. End-of-session work
	// (summary, archive) may complete after it returns: the caller is
	// usually the session's own transcription worker, which the stop
	// path waits on.
	EndSession(ctx context.Context) error

	// PauseFeedback keeps analysis running but suppresses coach responses.
	PauseFeedback()

	// ResumeFeedback lifts a previous PauseFeedback.
	ResumeFeedback()

	// ClearHistory drops the accumulated feedback history.
	ClearHistory()
}

// Pattern pairs a compiled regex with the control to execute when it matches.
type Pattern struct {
	// Regex is the compiled pattern. Positional groups are passed to Action
	// as matches[1], matches[2], etc.
	Regex *regexp.Regexp

	// Name is a human-readable label for logging.
	Name string

	// Action executes the session control using the matched groups.
	// matches is the full submatch slice from Regex.FindStringSubmatch.
	Action func(ctx context.Context, ctl Controls, matches []string) (string, error)
}

// Filter checks STT finals against a set of patterns and executes matching
// session controls.
//
// All methods are safe for concurrent use. Filter is stateless; the session
// handles its own locking.
type Filter struct {
	patterns []Pattern
}

// New creates a Filter with the built-in control phrases.
func New() *Filter {
	return &Filter{patterns: defaultPatterns()}
}

// Check tests whether text matches a control phrase. If a match is found,
// the corresponding control is executed on ctl and Check returns (true, nil).
// If no pattern matches, it returns (false, nil). Errors from control
// execution are returned as (true, err); the phrase still counts as consumed.
func (f *Filter) Check(ctx context.Context, text string, ctl Controls) (bool, error) {
	trimmed := strings.TrimSpace(text)
	// Whisper finals carry sentence punctuation.
	trimmed = strings.TrimRight(trimmed, ".!?, ")
	if trimmed == "" {
		return false, nil
	}

	for _, p := range f.patterns {
		matches := p.Regex.FindStringSubmatch(trimmed)
		if matches == nil {
			continue
		}

		result, err := p.Action(ctx, ctl, matches)
		if err != nil {
			slog.Warn("command: control phrase failed",
				"pattern", p.Name,
				"text", trimmed,
				"error", err,
			)
			return true, fmt.Errorf("command: %s: %w", p.Name, err)
		}

		slog.Info("command: control phrase executed",
			"pattern", p.Name,
			"text", trimmed,
			"result", result,
		)
		return true, nil
	}

	return false, nil
}

// defaultPatterns returns the built-in set of session control phrases.
func defaultPatterns() []Pattern {
	return []Pattern{
		{
			Name:  "end-session",
			Regex: regexp.MustCompile(`(?i)^(?:end|stop|finish)(?:\s+the)?\s+(?:session|coaching)$`),
			Action: func(ctx context.Context, ctl Controls, _ []string) (string, error) {
				if err := ctl.EndSession(ctx); err != nil {
					return "", err
				}
				return "session ending", nil
			},
		},
		{
			Name:  "pause-coaching",
			Regex: regexp.MustCompile(`(?i)^pause(?:\s+the)?\s+(?:coaching|feedback)$`),
			Action: func(_ context.Context, ctl Controls, _ []string) (string, error) {
				ctl.PauseFeedback()
				return "feedback paused", nil
			},
		},
		{
			Name:  "resume-coaching",
			Regex: regexp.MustCompile(`(?i)^(?:resume|continue)(?:\s+the)?\s+(?:coaching|feedback)$`),
			Action: func(_ context.Context, ctl Controls, _ []string) (string, error) {
				ctl.ResumeFeedback()
				return "feedback resumed", nil
			},
		},
		{
			Name:  "clear-history",
			Regex: regexp.MustCompile(`(?i)^(?:clear|reset)\s+(?:my\s+)?(?:feedback\s+)?history$`),
			Action: func(_ context.Context, ctl Controls, _ []string) (string, error) {
				ctl.ClearHistory()
				return "history cleared", nil
			},
		},
	}
}
