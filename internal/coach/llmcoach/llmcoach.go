// Package llmcoach implements [coach.Engine] on top of an llm.Provider.
//
// Each Respond call assembles a fresh system prompt from the rubric persona,
// the cycle's analysis, feedback already given this session, and semantic
// recalls from the session archive, then issues a single non-streaming
// completion. A short multi-turn window keeps follow-up questions coherent
// within a session; Reset clears it between sessions.
package llmcoach

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/rostrumlabs/rostrum/internal/coach"
	"github.com/rostrumlabs/rostrum/internal/rubric"
	"github.com/rostrumlabs/rostrum/pkg/provider/llm"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	// defaultMaxTurns is how many user/assistant exchange pairs are replayed
	// to the model on each call.
	defaultMaxTurns = 6

	// defaultTemperature keeps replies varied but on-task.
	defaultTemperature = 0.7

	// defaultRecallLimit caps semantic recalls per prompt.
	defaultRecallLimit = 3

	// defaultFeedbackLimit caps the already-given feedback lines per prompt.
	defaultFeedbackLimit = 5

	// transcriptEntries is how many recent utterances feed the prompt excerpt.
	transcriptEntries = 5

	// checkInText stands in for the user message on scheduled feedback
	// cycles where the speaker did not ask anything.
	checkInText = "Give me one brief piece of feedback on my delivery right now."
)

// ErrEmptyCompletion is returned when the model produced no usable text.
// The flow manager substitutes its fallback message on this error.
var ErrEmptyCompletion = errors.New("llmcoach: model returned an empty completion")

// Engine is the LLM-backed coach. Create one per session with [New].
type Engine struct {
	llmP    llm.Provider
	catalog *rubric.Catalog

	history    coach.HistorySource
	recalls    coach.RecallSource
	transcript coach.TranscriptSource

	maxTurns    int
	temperature float64

	mu    sync.Mutex
	turns []types.Message
}

// Compile-time assertion that Engine satisfies coach.Engine.
var _ coach.Engine = (*Engine)(nil)

// Option is a functional option for configuring an Engine during construction.
type Option func(*Engine)

// WithHistory wires the session's feedback history into the prompt so the
// model sees what it has already told the speaker.
func WithHistory(h coach.HistorySource) Option {
	return func(e *Engine) { e.history = h }
}

// WithRecalls wires the session archive's semantic index into the prompt.
// Recall failures are logged and skipped, never fatal to a response.
func WithRecalls(r coach.RecallSource) Option {
	return func(e *Engine) { e.recalls = r }
}

// WithTranscript wires the utterance buffer into the prompt so the model can
// quote the speaker's own words.
func WithTranscript(t coach.TranscriptSource) Option {
	return func(e *Engine) { e.transcript = t }
}

// WithMaxTurns sets how many user/assistant exchange pairs are kept in the
// conversation window. Default is 6.
func WithMaxTurns(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// WithTemperature overrides the sampling temperature. Default is 0.7.
func WithTemperature(t float64) Option {
	return func(e *Engine) {
		if t >= 0 {
			e.temperature = t
		}
	}
}

// New constructs an Engine backed by the given provider and rubric catalog.
func New(p llm.Provider, catalog *rubric.Catalog, opts ...Option) *Engine {
	e := &Engine{
		llmP:        p,
		catalog:     catalog,
		maxTurns:    defaultMaxTurns,
		temperature: defaultTemperature,
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Respond implements [coach.Engine]. It assembles the prompt, issues one
// completion, clips the reply to the persona's sentence cap, and records the
// exchange in the conversation window.
func (e *Engine) Respond(ctx context.Context, analysis types.AnalysisResult, userText string) (types.CoachResponse, error) {
	persona := e.catalog.Persona()

	data := coach.PromptData{
		Persona:  persona,
		Analysis: analysis,
	}
	if e.history != nil {
		entries := e.history.Entries()
		if len(entries) > defaultFeedbackLimit {
			entries = entries[len(entries)-defaultFeedbackLimit:]
		}
		data.RecentFeedback = entries
	}
	if e.recalls != nil {
		if query := recallQuery(analysis, userText); query != "" {
			rc, err := e.recalls.Recall(ctx, query, defaultRecallLimit)
			if err != nil {
				slog.Warn("llmcoach: semantic recall failed", "error", err)
			} else {
				data.Recalls = rc
			}
		}
	}
	if e.transcript != nil {
		data.RecentSpeech = e.transcript.JoinRecent(transcriptEntries)
	}

	userMsg := strings.TrimSpace(userText)
	if userMsg == "" {
		userMsg = checkInText
	}

	e.mu.Lock()
	msgs := make([]types.Message, 0, len(e.turns)+1)
	msgs = append(msgs, e.turns...)
	e.mu.Unlock()
	msgs = append(msgs, types.Message{Role: "user", Content: userMsg})

	resp, err := e.llmP.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: coach.FormatSystemPrompt(data),
		Messages:     msgs,
		Temperature:  e.temperature,
	})
	if err != nil {
		return types.CoachResponse{}, fmt.Errorf("llmcoach: completion failed: %w", err)
	}
	if resp == nil {
		return types.CoachResponse{}, ErrEmptyCompletion
	}

	text := strings.TrimSpace(resp.Content)
	if text == "" {
		return types.CoachResponse{}, ErrEmptyCompletion
	}
	if persona.MaxResponseSentences > 0 {
		text = clipSentences(text, persona.MaxResponseSentences)
	}

	e.mu.Lock()
	e.turns = append(e.turns,
		types.Message{Role: "user", Content: userMsg},
		types.Message{Role: "assistant", Content: text},
	)
	if over := len(e.turns) - 2*e.maxTurns; over > 0 {
		e.turns = append(e.turns[:0], e.turns[over:]...)
	}
	e.mu.Unlock()

	return types.CoachResponse{Message: text, Analysis: analysis}, nil
}

// Reset implements [coach.Engine]. It drops the conversation window.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.turns = nil
}

// recallQuery picks the text used to search the semantic index: the
// speaker's own question when present, otherwise the top improvement's
// advice so similar past advice surfaces. Empty when neither exists.
func recallQuery(analysis types.AnalysisResult, userText string) string {
	if q := strings.TrimSpace(userText); q != "" {
		return q
	}
	if len(analysis.Improvements) > 0 {
		return analysis.Improvements[0].Message
	}
	return ""
}

// clipSentences truncates s after its nth sentence boundary. A boundary is a
// run of '.', '!', or '?' that ends the text or is followed by whitespace,
// so decimals like "78.5" do not count. Text with fewer boundaries is
// returned unchanged.
func clipSentences(s string, n int) string {
	count := 0
	for i := 0; i < len(s); i++ {
		if s[i] != '.' && s[i] != '!' && s[i] != '?' {
			continue
		}
		j := i
		for j+1 < len(s) && (s[j+1] == '.' || s[j+1] == '!' || s[j+1] == '?') {
			j++
		}
		if j+1 < len(s) && !isSpace(s[j+1]) {
			i = j
			continue
		}
		count++
		if count == n {
			return strings.TrimSpace(s[:j+1])
		}
		i = j
	}
	return s
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\n' || c == '\r' || c == '\t'
}
