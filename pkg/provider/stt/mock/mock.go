// Package mock provides test doubles for the stt package interfaces.
//
// Use Provider to verify that the caller starts sessions with the expected
// Config. Use Session to feed controlled Transcript values and inspect which
// windows were submitted.
//
// Example:
//
//	sess := &mock.Session{
//	    TranscribeResults: []types.Transcript{{Text: "um so basically", IsFinal: true}},
//	}
//	p := &mock.Provider{Session: sess}
//	handle, _ := p.StartSession(ctx, cfg)
package mock

import (
	"context"
	"sync"

	"github.com/rostrumlabs/rostrum/pkg/provider/stt"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// StartSessionCall records a single invocation of Provider.StartSession.
type StartSessionCall struct {
	// Ctx is the context passed to StartSession.
	Ctx context.Context
	// Cfg is the Config passed to StartSession.
	Cfg stt.Config
}

// Provider is a mock implementation of stt.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the Session returned by StartSession. If nil, StartSession
	// returns a new default Session with an empty result queue.
	Session stt.Session

	// StartSessionErr, if non-nil, is returned as the error from StartSession.
	StartSessionErr error

	// StartSessionCalls records every call to StartSession.
	StartSessionCalls []StartSessionCall
}

// StartSession records the call and returns Session, StartSessionErr.
func (p *Provider) StartSession(ctx context.Context, cfg stt.Config) (stt.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartSessionCalls = append(p.StartSessionCalls, StartSessionCall{Ctx: ctx, Cfg: cfg})
	if p.StartSessionErr != nil {
		return nil, p.StartSessionErr
	}
	if p.Session != nil {
		return p.Session, nil
	}
	return &Session{}, nil
}

// Reset clears all recorded calls. Thread-safe.
func (p *Provider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.StartSessionCalls = nil
}

// Ensure Provider implements stt.Provider at compile time.
var _ stt.Provider = (*Provider)(nil)

// TranscribeCall records a single invocation of Session.Transcribe.
type TranscribeCall struct {
	// Window is a copy of the audio window passed to Transcribe.
	Window types.AudioWindow
}

// SetKeywordsCall records a single invocation of Session.SetKeywords.
type SetKeywordsCall struct {
	// Keywords is a copy of the keyword list passed to SetKeywords.
	Keywords []types.KeywordBoost
}

// Session is a mock implementation of stt.Session.
// Callers should pre-populate TranscribeResults with the Transcript values
// they want returned, in order. When the queue is empty, Transcribe returns
// an empty-text Transcript stamped with the window's Timestamp and Duration,
// matching how real sessions report silent windows.
type Session struct {
	mu sync.Mutex

	// TranscribeResults is the queue of transcripts returned by successive
	// Transcribe calls. Each call pops the head.
	TranscribeResults []types.Transcript

	// TranscribeErr, if non-nil, is returned by every Transcribe call.
	TranscribeErr error

	// SetKeywordsErr, if non-nil, is returned by every SetKeywords call.
	SetKeywordsErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// TranscribeCalls records every call to Transcribe in order.
	TranscribeCalls []TranscribeCall

	// SetKeywordsCalls records every call to SetKeywords in order.
	SetKeywordsCalls []SetKeywordsCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// Transcribe records the call, then returns TranscribeErr or pops the next
// queued result.
func (s *Session) Transcribe(_ context.Context, window types.AudioWindow) (types.Transcript, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cp := window
	cp.Samples = make([]float32, len(window.Samples))
	copy(cp.Samples, window.Samples)
	s.TranscribeCalls = append(s.TranscribeCalls, TranscribeCall{Window: cp})

	if s.TranscribeErr != nil {
		return types.Transcript{}, s.TranscribeErr
	}
	if len(s.TranscribeResults) == 0 {
		return types.Transcript{
			IsFinal:   true,
			Timestamp: window.Timestamp,
			Duration:  window.Duration(),
		}, nil
	}
	t := s.TranscribeResults[0]
	s.TranscribeResults = s.TranscribeResults[1:]
	return t, nil
}

// SetKeywords records the call and returns SetKeywordsErr.
func (s *Session) SetKeywords(keywords []types.KeywordBoost) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kw := make([]types.KeywordBoost, len(keywords))
	copy(kw, keywords)
	s.SetKeywordsCalls = append(s.SetKeywordsCalls, SetKeywordsCall{Keywords: kw})
	return s.SetKeywordsErr
}

// TranscribeCallCount returns the number of Transcribe calls. Thread-safe.
func (s *Session) TranscribeCallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.TranscribeCalls)
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded calls. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.TranscribeCalls = nil
	s.SetKeywordsCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements stt.Session at compile time.
var _ stt.Session = (*Session)(nil)
