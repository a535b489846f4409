// Package feedback guards the coaching history against spam. Every
// generated response passes the dedup and throttle rules before it is
// accepted as a history entry; accepted entries can additionally be
// persisted through a pluggable sink.
package feedback

import (
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	// DefaultHistoryLimit caps the in-memory history; the oldest entries
	// are trimmed past it.
	DefaultHistoryLimit = 200

	// DefaultOverlapLimit is the token-overlap similarity above which a
	// message counts as a repeat of recent feedback.
	DefaultOverlapLimit = 0.8

	// DefaultRepeatWindow is how long the same user input stays answered.
	DefaultRepeatWindow = 5 * time.Second

	// DefaultRateWindow and DefaultRateLimit bound global response
	// frequency: at most DefaultRateLimit accepted responses per window.
	DefaultRateWindow = 10 * time.Second
	DefaultRateLimit  = 3

	// recentComparisons is how many trailing entries the similarity rule
	// compares against.
	recentComparisons = 3
)

var (
	// ErrDuplicateMessage rejects a message identical to the previous one.
	ErrDuplicateMessage = errors.New("feedback: identical to previous message")
	// ErrTooSimilar rejects a message overlapping recent feedback too much.
	ErrTooSimilar = errors.New("feedback: too similar to recent feedback")
	// ErrInputRepeated rejects a response to input answered moments ago.
	ErrInputRepeated = errors.New("feedback: same input answered moments ago")
	// ErrRateLimited rejects a response past the global rate cap.
	ErrRateLimited = errors.New("feedback: response rate cap reached")
)

// Sink persists accepted entries. Persistence failures are logged, never
// turned into rejections.
type Sink interface {
	SaveEntry(entry types.FeedbackEntry) error
}

// Option customizes a History.
type Option func(*History)

// WithLimit overrides the history entry cap.
func WithLimit(n int) Option {
	return func(h *History) {
		if n > 0 {
			h.limit = n
		}
	}
}

// WithOverlapLimit overrides the similarity rejection boundary.
func WithOverlapLimit(v float64) Option {
	return func(h *History) {
		if v > 0 && v <= 1 {
			h.overlapLimit = v
		}
	}
}

// WithRepeatWindow overrides how long an input stays answered.
func WithRepeatWindow(d time.Duration) Option {
	return func(h *History) {
		if d > 0 {
			h.repeatWindow = d
		}
	}
}

// WithRateCap overrides the global response frequency bound.
func WithRateCap(limit int, window time.Duration) Option {
	return func(h *History) {
		if limit > 0 {
			h.rateLimit = limit
		}
		if window > 0 {
			h.rateWindow = window
		}
	}
}

// WithSink attaches a persistence sink for accepted entries.
func WithSink(s Sink) Option {
	return func(h *History) { h.sink = s }
}

// WithNow overrides the clock, which the window rules depend on.
func WithNow(now func() time.Time) Option {
	return func(h *History) {
		if now != nil {
			h.now = now
		}
	}
}

// History is the ordered feedback record of one session plus the dedup and
// throttle state protecting it. Thread-safe for concurrent use.
type History struct {
	mu            sync.Mutex
	entries       []types.FeedbackEntry
	recentInputs  map[string]time.Time
	responseTimes []time.Time

	limit        int
	overlapLimit float64
	repeatWindow time.Duration
	rateWindow   time.Duration
	rateLimit    int
	sink         Sink
	now          func() time.Time
}

// NewHistory returns an empty history with default rules.
func NewHistory(opts ...Option) *History {
	h := &History{
		recentInputs: make(map[string]time.Time),
		limit:        DefaultHistoryLimit,
		overlapLimit: DefaultOverlapLimit,
		repeatWindow: DefaultRepeatWindow,
		rateWindow:   DefaultRateWindow,
		rateLimit:    DefaultRateLimit,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Accept runs message through the dedup and throttle rules and, if it
// passes, appends it to history and returns the new entry. A returned
// error is one of the Err* sentinels naming the violated rule.
func (h *History) Accept(input, message string, analysis types.AnalysisResult) (types.FeedbackEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	now := h.now()

	if n := len(h.entries); n > 0 && h.entries[n-1].Message == message {
		return types.FeedbackEntry{}, ErrDuplicateMessage
	}

	start := len(h.entries) - recentComparisons
	if start < 0 {
		start = 0
	}
	for _, prev := range h.entries[start:] {
		if tokenOverlap(message, prev.Message) > h.overlapLimit {
			return types.FeedbackEntry{}, ErrTooSimilar
		}
	}

	key := normalizeInput(input)
	if answered, ok := h.recentInputs[key]; ok && now.Sub(answered) < h.repeatWindow {
		return types.FeedbackEntry{}, ErrInputRepeated
	}

	h.pruneLocked(now)
	if len(h.responseTimes) >= h.rateLimit {
		return types.FeedbackEntry{}, ErrRateLimited
	}

	entry := types.FeedbackEntry{
		ID:               uuid.NewString(),
		Timestamp:        now,
		Message:          message,
		Analysis:         analysis,
		PerformanceLevel: types.PerformanceLevelFor(analysis.OverallScore),
	}
	h.entries = append(h.entries, entry)
	if over := len(h.entries) - h.limit; over > 0 {
		h.entries = append(h.entries[:0], h.entries[over:]...)
	}
	h.recentInputs[key] = now
	h.responseTimes = append(h.responseTimes, now)

	if h.sink != nil {
		if err := h.sink.SaveEntry(entry); err != nil {
			slog.Warn("feedback: persist entry", "id", entry.ID, "error", err)
		}
	}
	return entry, nil
}

// Entries returns a copy of the history, oldest first.
func (h *History) Entries() []types.FeedbackEntry {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]types.FeedbackEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Last returns the most recent entry, if any.
func (h *History) Last() (types.FeedbackEntry, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.entries) == 0 {
		return types.FeedbackEntry{}, false
	}
	return h.entries[len(h.entries)-1], true
}

// Len reports the number of entries held.
func (h *History) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.entries)
}

// Clear wipes the history and every tracker. Session start calls this;
// nothing else deletes entries.
func (h *History) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = nil
	h.recentInputs = make(map[string]time.Time)
	h.responseTimes = nil
}

// pruneLocked drops tracker state older than the rule windows.
func (h *History) pruneLocked(now time.Time) {
	kept := h.responseTimes[:0]
	for _, t := range h.responseTimes {
		if now.Sub(t) < h.rateWindow {
			kept = append(kept, t)
		}
	}
	h.responseTimes = kept

	for key, t := range h.recentInputs {
		if now.Sub(t) >= h.repeatWindow {
			delete(h.recentInputs, key)
		}
	}
}

func normalizeInput(input string) string {
	return strings.ToLower(strings.TrimSpace(input))
}

// tokenOverlap computes |intersection| / max(|words a|, |words b|) over the
// unique lower-case tokens of both messages.
func tokenOverlap(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	common := 0
	for tok := range setA {
		if setB[tok] {
			common++
		}
	}
	larger := len(setA)
	if len(setB) > larger {
		larger = len(setB)
	}
	return float64(common) / float64(larger)
}

func tokenSet(s string) map[string]bool {
	set := make(map[string]bool)
	for _, tok := range strings.Fields(strings.ToLower(s)) {
		set[strings.Trim(tok, ".,!?;:\"'")] = true
	}
	delete(set, "")
	return set
}
