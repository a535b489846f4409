// Package energy implements a pure-Go voice activity detector based on RMS
// energy levels with hysteresis.
//
// The detector classifies each frame by its root-mean-square level and debounces
// state changes: speech starts only after a run of consecutive loud frames, and
// ends only after a run of consecutive quiet frames. The two-threshold gap plus
// the frame counters keep brief level dips (plosives, short pauses for breath)
// from splitting an utterance into fragments.
//
// Because it needs no model weights and costs a few hundred multiplications per
// frame, the energy engine is the default gate for close-mic coaching sessions.
// It will misfire on keyboard noise and far-field audio; swap in a model-based
// engine behind the same vad.Engine interface when that matters.
//
// Thresholds in vad.Config are interpreted as normalized RMS levels in
// [0.0, 1.0] where 1.0 is a full-scale int16 signal. DefaultSpeechThreshold and
// DefaultSilenceThreshold are applied when the Config leaves them zero. The
// Probability reported on each event is the frame's normalized RMS level, not a
// calibrated speech probability.
package energy

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rostrumlabs/rostrum/pkg/provider/vad"
)

// Recommended thresholds for 16 kHz close-mic input. Applied automatically when
// the corresponding Config field is zero.
const (
	DefaultSpeechThreshold  = 0.015
	DefaultSilenceThreshold = 0.008
)

const (
	// defaultOnsetFrames is the number of consecutive loud frames required to
	// enter speech (~60ms at 20ms frames).
	defaultOnsetFrames = 3

	// defaultHangoverFrames is the number of consecutive quiet frames required
	// to leave speech (~600ms at 20ms frames). Long enough to ride out
	// mid-sentence pauses.
	defaultHangoverFrames = 30
)

// ErrSessionClosed is returned by ProcessFrame after the session has been closed.
var ErrSessionClosed = errors.New("energy: session is closed")

// Option configures an Engine.
type Option func(*Engine)

// WithOnsetFrames sets how many consecutive above-threshold frames are required
// before speech is considered started.
func WithOnsetFrames(n int) Option {
	return func(e *Engine) {
		e.onsetFrames = n
	}
}

// WithHangoverFrames sets how many consecutive below-threshold frames are
// required before an active speech segment is considered ended.
func WithHangoverFrames(n int) Option {
	return func(e *Engine) {
		e.hangoverFrames = n
	}
}

// Engine creates RMS-based VAD sessions. Safe for concurrent use; each session
// carries its own state.
type Engine struct {
	onsetFrames    int
	hangoverFrames int
}

// New creates an energy VAD engine.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		onsetFrames:    defaultOnsetFrames,
		hangoverFrames: defaultHangoverFrames,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.onsetFrames < 1 {
		return nil, fmt.Errorf("energy: onset frames must be at least 1, got %d", e.onsetFrames)
	}
	if e.hangoverFrames < 1 {
		return nil, fmt.Errorf("energy: hangover frames must be at least 1, got %d", e.hangoverFrames)
	}
	return e, nil
}

// NewSession creates a detection session for a single audio stream.
func (e *Engine) NewSession(cfg vad.Config) (vad.SessionHandle, error) {
	if cfg.SpeechThreshold == 0 {
		cfg.SpeechThreshold = DefaultSpeechThreshold
	}
	if cfg.SilenceThreshold == 0 {
		cfg.SilenceThreshold = DefaultSilenceThreshold
	}
	if cfg.SampleRate <= 0 {
		return nil, fmt.Errorf("energy: sample rate must be positive, got %d", cfg.SampleRate)
	}
	if cfg.FrameSizeMs <= 0 {
		return nil, fmt.Errorf("energy: frame size must be positive, got %dms", cfg.FrameSizeMs)
	}
	if cfg.SpeechThreshold < 0 || cfg.SpeechThreshold > 1 {
		return nil, fmt.Errorf("energy: speech threshold must be in [0,1], got %g", cfg.SpeechThreshold)
	}
	if cfg.SilenceThreshold < 0 || cfg.SilenceThreshold > cfg.SpeechThreshold {
		return nil, fmt.Errorf("energy: silence threshold must be in [0,%g], got %g", cfg.SpeechThreshold, cfg.SilenceThreshold)
	}
	samples := cfg.SampleRate * cfg.FrameSizeMs / 1000
	if samples == 0 {
		return nil, fmt.Errorf("energy: frame of %dms at %dHz contains no samples", cfg.FrameSizeMs, cfg.SampleRate)
	}
	return &session{
		frameBytes:       samples * 2,
		speechThreshold:  cfg.SpeechThreshold,
		silenceThreshold: cfg.SilenceThreshold,
		onsetFrames:      e.onsetFrames,
		hangoverFrames:   e.hangoverFrames,
	}, nil
}

// session holds the hysteresis state for one audio stream.
type session struct {
	mu sync.Mutex

	frameBytes       int
	speechThreshold  float64
	silenceThreshold float64
	onsetFrames      int
	hangoverFrames   int

	inSpeech     bool
	speechCount  int
	silenceCount int
	closed       bool
}

// ProcessFrame classifies a single PCM frame. The frame must be little-endian
// int16 mono at the configured sample rate and frame size.
func (s *session) ProcessFrame(frame []byte) (vad.VADEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return vad.VADEvent{}, ErrSessionClosed
	}
	if len(frame) != s.frameBytes {
		return vad.VADEvent{}, fmt.Errorf("energy: frame is %d bytes, want %d", len(frame), s.frameBytes)
	}

	level := rmsLevel(frame)
	ev := vad.VADEvent{Probability: level}

	if s.inSpeech {
		if level < s.silenceThreshold {
			s.silenceCount++
			s.speechCount = 0
			if s.silenceCount >= s.hangoverFrames {
				s.inSpeech = false
				s.silenceCount = 0
				ev.Type = vad.VADSpeechEnd
				return ev, nil
			}
		} else {
			s.silenceCount = 0
		}
		ev.Type = vad.VADSpeechContinue
		return ev, nil
	}

	if level >= s.speechThreshold {
		s.speechCount++
		s.silenceCount = 0
		if s.speechCount >= s.onsetFrames {
			s.inSpeech = true
			s.speechCount = 0
			ev.Type = vad.VADSpeechStart
			return ev, nil
		}
	} else {
		s.speechCount = 0
	}
	ev.Type = vad.VADSilence
	return ev, nil
}

// Reset clears the hysteresis state without closing the session.
func (s *session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	s.inSpeech = false
	s.speechCount = 0
	s.silenceCount = 0
}

// Close marks the session closed. Safe to call more than once.
func (s *session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// rmsLevel computes the root-mean-square level of a little-endian int16 PCM
// frame, normalized so that a full-scale signal reports 1.0.
func rmsLevel(frame []byte) float64 {
	n := len(frame) / 2
	if n == 0 {
		return 0
	}
	var sum float64
	for i := range n {
		sample := int16(frame[i*2]) | int16(frame[i*2+1])<<8
		v := float64(sample) / 32768.0
		sum += v * v
	}
	return math.Sqrt(sum / float64(n))
}

// Ensure the types implement the vad interfaces at compile time.
var (
	_ vad.Engine        = (*Engine)(nil)
	_ vad.SessionHandle = (*session)(nil)
)
