// Package mock provides in-memory test doubles for the memory layer interfaces.
//
// Each mock records every method call for assertion in tests and exposes
// exported fields that control what the mock returns. All mocks are safe for
// concurrent use via an internal [sync.Mutex].
//
// Typical usage:
//
//	archive := &mock.SessionArchive{}
//	archive.FeedbackHistoryResult = []types.FeedbackEntry{{Message: "slow down"}}
//
//	// inject archive into the system under test …
//
//	if got := archive.CallCount("WriteFeedback"); got != 1 {
//	    t.Errorf("expected 1 WriteFeedback call, got %d", got)
//	}
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/memory"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Call records the name and arguments of a single method invocation.
type Call struct {
	// Method is the name of the interface method that was called.
	Method string

	// Args holds the non-context arguments passed to the method, in order.
	Args []any
}

// ─────────────────────────────────────────────────────────────────────────────
// SessionArchive mock
// ─────────────────────────────────────────────────────────────────────────────

// SessionArchive is a configurable test double for [memory.SessionArchive].
// All exported *Err fields default to nil (success); all exported *Result
// slice fields default to nil (empty slice returned).
type SessionArchive struct {
	mu sync.Mutex

	// calls records every method invocation in order.
	calls []Call

	// BeginSessionErr is returned by [SessionArchive.BeginSession] when non-nil.
	BeginSessionErr error

	// FinishSessionErr is returned by [SessionArchive.FinishSession] when non-nil.
	FinishSessionErr error

	// GetSessionResult is returned by [SessionArchive.GetSession].
	// When nil (the default), GetSession reports a missing session.
	GetSessionResult *memory.SessionRecord

	// GetSessionErr is returned by [SessionArchive.GetSession] when non-nil.
	GetSessionErr error

	// ListSessionsResult is returned by [SessionArchive.ListSessions].
	// When nil, ListSessions returns an empty non-nil slice.
	ListSessionsResult []memory.SessionRecord

	// ListSessionsErr is returned by [SessionArchive.ListSessions] when non-nil.
	ListSessionsErr error

	// WriteTranscriptErr is returned by [SessionArchive.WriteTranscript] when non-nil.
	WriteTranscriptErr error

	// RecentTranscriptResult is returned by [SessionArchive.RecentTranscript].
	// When nil, RecentTranscript returns an empty non-nil slice.
	RecentTranscriptResult []memory.TranscriptEntry

	// RecentTranscriptErr is returned by [SessionArchive.RecentTranscript] when non-nil.
	RecentTranscriptErr error

	// SearchTranscriptResult is returned by [SessionArchive.SearchTranscript].
	// When nil, SearchTranscript returns an empty non-nil slice.
	SearchTranscriptResult []memory.TranscriptEntry

	// SearchTranscriptErr is returned by [SessionArchive.SearchTranscript] when non-nil.
	SearchTranscriptErr error

	// WriteFeedbackErr is returned by [SessionArchive.WriteFeedback] when non-nil.
	WriteFeedbackErr error

	// FeedbackHistoryResult is returned by [SessionArchive.FeedbackHistory].
	// When nil, FeedbackHistory returns an empty non-nil slice.
	FeedbackHistoryResult []types.FeedbackEntry

	// FeedbackHistoryErr is returned by [SessionArchive.FeedbackHistory] when non-nil.
	FeedbackHistoryErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *SessionArchive) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *SessionArchive) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *SessionArchive) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// BeginSession implements [memory.SessionArchive].
func (m *SessionArchive) BeginSession(_ context.Context, rec memory.SessionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "BeginSession", Args: []any{rec}})
	return m.BeginSessionErr
}

// FinishSession implements [memory.SessionArchive].
func (m *SessionArchive) FinishSession(_ context.Context, sessionID string, summary memory.SessionSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "FinishSession", Args: []any{sessionID, summary}})
	return m.FinishSessionErr
}

// GetSession implements [memory.SessionArchive].
func (m *SessionArchive) GetSession(_ context.Context, sessionID string) (*memory.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "GetSession", Args: []any{sessionID}})
	return m.GetSessionResult, m.GetSessionErr
}

// ListSessions implements [memory.SessionArchive].
func (m *SessionArchive) ListSessions(_ context.Context, limit int) ([]memory.SessionRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "ListSessions", Args: []any{limit}})
	if m.ListSessionsResult == nil {
		return []memory.SessionRecord{}, m.ListSessionsErr
	}
	out := make([]memory.SessionRecord, len(m.ListSessionsResult))
	copy(out, m.ListSessionsResult)
	return out, m.ListSessionsErr
}

// WriteTranscript implements [memory.SessionArchive].
func (m *SessionArchive) WriteTranscript(_ context.Context, sessionID string, entry memory.TranscriptEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "WriteTranscript", Args: []any{sessionID, entry}})
	return m.WriteTranscriptErr
}

// RecentTranscript implements [memory.SessionArchive].
func (m *SessionArchive) RecentTranscript(_ context.Context, sessionID string, window time.Duration) ([]memory.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "RecentTranscript", Args: []any{sessionID, window}})
	if m.RecentTranscriptResult == nil {
		return []memory.TranscriptEntry{}, m.RecentTranscriptErr
	}
	out := make([]memory.TranscriptEntry, len(m.RecentTranscriptResult))
	copy(out, m.RecentTranscriptResult)
	return out, m.RecentTranscriptErr
}

// SearchTranscript implements [memory.SessionArchive].
func (m *SessionArchive) SearchTranscript(_ context.Context, query string, opts memory.SearchOpts) ([]memory.TranscriptEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SearchTranscript", Args: []any{query, opts}})
	if m.SearchTranscriptResult == nil {
		return []memory.TranscriptEntry{}, m.SearchTranscriptErr
	}
	out := make([]memory.TranscriptEntry, len(m.SearchTranscriptResult))
	copy(out, m.SearchTranscriptResult)
	return out, m.SearchTranscriptErr
}

// WriteFeedback implements [memory.SessionArchive].
func (m *SessionArchive) WriteFeedback(_ context.Context, sessionID string, entry types.FeedbackEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "WriteFeedback", Args: []any{sessionID, entry}})
	return m.WriteFeedbackErr
}

// FeedbackHistory implements [memory.SessionArchive].
func (m *SessionArchive) FeedbackHistory(_ context.Context, sessionID string, limit int) ([]types.FeedbackEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "FeedbackHistory", Args: []any{sessionID, limit}})
	if m.FeedbackHistoryResult == nil {
		return []types.FeedbackEntry{}, m.FeedbackHistoryErr
	}
	out := make([]types.FeedbackEntry, len(m.FeedbackHistoryResult))
	copy(out, m.FeedbackHistoryResult)
	return out, m.FeedbackHistoryErr
}

// Ensure SessionArchive satisfies the interface at compile time.
var _ memory.SessionArchive = (*SessionArchive)(nil)

// ─────────────────────────────────────────────────────────────────────────────
// FeedbackIndex mock
// ─────────────────────────────────────────────────────────────────────────────

// FeedbackIndex is a configurable test double for [memory.FeedbackIndex].
type FeedbackIndex struct {
	mu sync.Mutex

	calls []Call

	// IndexFeedbackErr is returned by [FeedbackIndex.IndexFeedback] when non-nil.
	IndexFeedbackErr error

	// SearchSimilarResult is returned by [FeedbackIndex.SearchSimilar].
	// When nil, SearchSimilar returns an empty non-nil slice.
	SearchSimilarResult []memory.FeedbackMatch

	// SearchSimilarErr is returned by [FeedbackIndex.SearchSimilar] when non-nil.
	SearchSimilarErr error
}

// Calls returns a copy of all recorded method invocations.
func (m *FeedbackIndex) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Call, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns how many times the named method was invoked.
func (m *FeedbackIndex) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears all recorded calls without altering response configuration.
func (m *FeedbackIndex) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// IndexFeedback implements [memory.FeedbackIndex].
func (m *FeedbackIndex) IndexFeedback(_ context.Context, chunk memory.FeedbackChunk) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "IndexFeedback", Args: []any{chunk}})
	return m.IndexFeedbackErr
}

// SearchSimilar implements [memory.FeedbackIndex].
func (m *FeedbackIndex) SearchSimilar(_ context.Context, embedding []float32, topK int, filter memory.FeedbackFilter) ([]memory.FeedbackMatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, Call{Method: "SearchSimilar", Args: []any{embedding, topK, filter}})
	if m.SearchSimilarResult == nil {
		return []memory.FeedbackMatch{}, m.SearchSimilarErr
	}
	out := make([]memory.FeedbackMatch, len(m.SearchSimilarResult))
	copy(out, m.SearchSimilarResult)
	return out, m.SearchSimilarErr
}

// Ensure FeedbackIndex satisfies the interface at compile time.
var _ memory.FeedbackIndex = (*FeedbackIndex)(nil)
