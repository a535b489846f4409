// Package mock provides in-memory mock implementations of the [audio.Source],
// [audio.Sink], and [audio.Mixer] interfaces for use in unit tests.
//
// All mocks are safe for concurrent use. They record every method call so that
// tests can assert on call counts and arguments, and they expose exported
// fields that the test can set to control return values.
//
// Typical usage:
//
//	frames := make(chan audio.AudioFrame, 16)
//	src := &mock.Source{FramesCh: frames}
//	sink := &mock.Sink{}
//	frames <- audio.AudioFrame{Data: pcm, SampleRate: 48000, Channels: 1}
//	close(frames)
package mock

import (
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/audio"
)

// ─── Source ───────────────────────────────────────────────────────────────────

// Source is a mock implementation of [audio.Source].
// Set FramesCh before use and write captured frames to it from the test;
// close it to simulate the stream ending.
type Source struct {
	mu sync.Mutex

	// FramesCh is returned by [Source.Frames]. The test owns this channel:
	// write frames to simulate capture, close it to end the stream.
	FramesCh chan audio.AudioFrame

	// CloseErr is returned by [Source.Close].
	CloseErr error

	// CallCountFrames records how many times Frames was called.
	CallCountFrames int

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Frames implements [audio.Source]. Returns FramesCh.
func (s *Source) Frames() <-chan audio.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountFrames++
	return s.FramesCh
}

// Close implements [audio.Source]. Returns CloseErr.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// ─── Sink ─────────────────────────────────────────────────────────────────────

// Sink is a mock implementation of [audio.Sink]. It records every frame
// written so tests can assert on the playback stream.
type Sink struct {
	mu sync.Mutex

	// WriteErr is returned by [Sink.Write].
	WriteErr error

	// CloseErr is returned by [Sink.Close].
	CloseErr error

	// written holds deep copies of all frames passed to Write.
	written []audio.AudioFrame

	// CallCountClose records how many times Close was called.
	CallCountClose int
}

// Write implements [audio.Sink]. Records a deep copy of frame and returns
// WriteErr.
func (s *Sink) Write(frame audio.AudioFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := frame
	cp.Data = make([]byte, len(frame.Data))
	copy(cp.Data, frame.Data)
	s.written = append(s.written, cp)
	return s.WriteErr
}

// Close implements [audio.Sink]. Returns CloseErr.
func (s *Sink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.CallCountClose++
	return s.CloseErr
}

// Written returns a snapshot of all frames recorded by Write, in order.
func (s *Sink) Written() []audio.AudioFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]audio.AudioFrame, len(s.written))
	copy(out, s.written)
	return out
}

// Reset clears the recorded frames.
func (s *Sink) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.written = nil
	s.CallCountClose = 0
}

// ─── Mixer ────────────────────────────────────────────────────────────────────

// EnqueueCall records the arguments of a single [Mixer.Enqueue] invocation.
type EnqueueCall struct {
	// Utterance is the utterance passed to Enqueue.
	Utterance *audio.Utterance
	// Priority is the priority argument passed to Enqueue.
	Priority int
}

// InterruptCall records the arguments of a single [Mixer.Interrupt] invocation.
type InterruptCall struct {
	// Reason is the interrupt reason passed to Interrupt.
	Reason audio.InterruptReason
}

// SetGapCall records the arguments of a single [Mixer.SetGap] invocation.
type SetGapCall struct {
	// Duration is the gap duration passed to SetGap.
	Duration time.Duration
}

// Mixer is a mock implementation of [audio.Mixer].
type Mixer struct {
	mu sync.Mutex

	// EnqueueCalls records all Enqueue invocations.
	EnqueueCalls []EnqueueCall

	// InterruptCalls records all Interrupt invocations.
	InterruptCalls []InterruptCall

	// SetGapCalls records all SetGap invocations.
	SetGapCalls []SetGapCall

	// CallCountOnBargeIn records how many times OnBargeIn was called.
	CallCountOnBargeIn int

	// BargeInHandlers holds the handlers registered via OnBargeIn in
	// registration order.
	BargeInHandlers []func()
}

// Compile-time interface assertion.
var _ audio.Mixer = (*Mixer)(nil)

// Enqueue implements [audio.Mixer]. Records the call arguments.
func (m *Mixer) Enqueue(utterance *audio.Utterance, priority int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueueCalls = append(m.EnqueueCalls, EnqueueCall{Utterance: utterance, Priority: priority})
}

// Interrupt implements [audio.Mixer]. Records the reason.
func (m *Mixer) Interrupt(reason audio.InterruptReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.InterruptCalls = append(m.InterruptCalls, InterruptCall{Reason: reason})
}

// OnBargeIn implements [audio.Mixer]. Appends handler to BargeInHandlers.
func (m *Mixer) OnBargeIn(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.CallCountOnBargeIn++
	m.BargeInHandlers = append(m.BargeInHandlers, handler)
}

// SetGap implements [audio.Mixer]. Records the gap duration.
func (m *Mixer) SetGap(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.SetGapCalls = append(m.SetGapCalls, SetGapCall{Duration: d})
}

// TriggerBargeIn calls all registered barge-in handlers.
// Use this in tests to simulate the speaker interrupting the coach.
func (m *Mixer) TriggerBargeIn() {
	m.mu.Lock()
	handlers := make([]func(), len(m.BargeInHandlers))
	copy(handlers, m.BargeInHandlers)
	m.mu.Unlock()
	for _, h := range handlers {
		h()
	}
}
