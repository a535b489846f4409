// Package mock provides test doubles for the pose package interfaces.
//
// Use Provider to verify that sessions are created with the expected Config.
// Use Session to inject keypoint sets and inspect the frames that were
// submitted for estimation.
package mock

import (
	"context"
	"sync"

	"github.com/rostrumlabs/rostrum/pkg/provider/pose"
	"github.com/rostrumlabs/rostrum/pkg/types"
)

// NewSessionCall records a single invocation of Provider.NewSession.
type NewSessionCall struct {
	// Cfg is the Config passed to NewSession.
	Cfg pose.Config
}

// Provider is a mock implementation of pose.Provider.
type Provider struct {
	mu sync.Mutex

	// Session is the SessionHandle returned by NewSession. If nil, NewSession
	// returns a new default Session.
	Session pose.SessionHandle

	// NewSessionErr, if non-nil, is returned as the error from NewSession.
	NewSessionErr error

	// NewSessionCalls records every call to NewSession in order.
	NewSessionCalls []NewSessionCall
}

// NewSession records the call and returns Session, NewSessionErr.
func (p *Provider) NewSession(_ context.Context, cfg pose.Config) (pose.SessionHandle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.NewSessionCalls = append(p.NewSessionCalls, NewSessionCall{Cfg: cfg})
	if p.NewSessionErr != nil {
		return nil, p.NewSessionErr
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
	p.NewSessionCalls = nil
}

// Ensure Provider implements pose.Provider at compile time.
var _ pose.Provider = (*Provider)(nil)

// EstimateCall records a single estimation invocation.
type EstimateCall struct {
	// Frame is the frame passed to the call.
	Frame pose.Frame
}

// Session is a mock implementation of pose.SessionHandle.
type Session struct {
	mu sync.Mutex

	// PosesResults, if non-empty, is consumed one result per EstimatePoses
	// call. Use it to script a sequence of frames (person present, person
	// slouching, person gone).
	PosesResults [][]types.KeypointSet

	// PosesResult is returned by EstimatePoses once PosesResults is exhausted.
	PosesResult []types.KeypointSet

	// PosesErr, if non-nil, is returned by every EstimatePoses call.
	PosesErr error

	// FacesResults, if non-empty, is consumed one result per EstimateFaces call.
	FacesResults [][]types.KeypointSet

	// FacesResult is returned by EstimateFaces once FacesResults is exhausted.
	FacesResult []types.KeypointSet

	// FacesErr, if non-nil, is returned by every EstimateFaces call.
	FacesErr error

	// CloseErr, if non-nil, is returned by Close.
	CloseErr error

	// --- Call records ---

	// EstimatePosesCalls records every call to EstimatePoses in order.
	EstimatePosesCalls []EstimateCall

	// EstimateFacesCalls records every call to EstimateFaces in order.
	EstimateFacesCalls []EstimateCall

	// CloseCallCount is the number of times Close was called.
	CloseCallCount int
}

// EstimatePoses records the call and returns the next scripted result, or
// PosesResult when no scripted results remain, along with PosesErr.
func (s *Session) EstimatePoses(_ context.Context, frame pose.Frame) ([]types.KeypointSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EstimatePosesCalls = append(s.EstimatePosesCalls, EstimateCall{Frame: frame})
	res := s.PosesResult
	if len(s.PosesResults) > 0 {
		res = s.PosesResults[0]
		s.PosesResults = s.PosesResults[1:]
	}
	return res, s.PosesErr
}

// EstimateFaces records the call and returns the next scripted result, or
// FacesResult when no scripted results remain, along with FacesErr.
func (s *Session) EstimateFaces(_ context.Context, frame pose.Frame) ([]types.KeypointSet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EstimateFacesCalls = append(s.EstimateFacesCalls, EstimateCall{Frame: frame})
	res := s.FacesResult
	if len(s.FacesResults) > 0 {
		res = s.FacesResults[0]
		s.FacesResults = s.FacesResults[1:]
	}
	return res, s.FacesErr
}

// Close records the call and returns CloseErr.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CloseCallCount++
	return s.CloseErr
}

// ResetCalls clears all recorded call history. Thread-safe.
func (s *Session) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.EstimatePosesCalls = nil
	s.EstimateFacesCalls = nil
	s.CloseCallCount = 0
}

// Ensure Session implements pose.SessionHandle at compile time.
var _ pose.SessionHandle = (*Session)(nil)
