// Package stt defines the Provider interface for speech-to-text backends.
//
// An STT provider wraps a transcription service (e.g., Deepgram, or a local
// whisper.cpp build) and exposes a uniform window-based interface. The central
// abstraction is Session: once opened, a session accepts complete utterance
// windows — the voice-activity detector segments the live stream upstream —
// and returns one authoritative Transcript per window. Transcription is
// synchronous because the analysis loop needs the text for the window it is
// currently scoring, not a stream it has to re-correlate.
//
// Implementations must be safe for concurrent use, though the capture pipeline
// submits windows sequentially.
package stt

import (
	"context"
	"errors"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// Sentinel errors shared by all STT implementations. Providers wrap these with
// their own prefix; match with errors.Is.
var (
	// ErrSessionClosed is returned by Transcribe and SetKeywords after Close.
	ErrSessionClosed = errors.New("stt: session is closed")

	// ErrNotSupported is returned by SetKeywords when the backend has no
	// keyword-boosting API.
	ErrNotSupported = errors.New("stt: not supported by this backend")
)

// Config describes the audio format and recognition hints for a new STT
// session. All fields must be compatible with what the underlying provider
// supports; see each provider's documentation for valid ranges.
type Config struct {
	// SampleRate is the sample rate in Hz the backend transcribes at
	// (commonly 16000). Windows captured at a different rate are resampled
	// by the session before submission.
	SampleRate int

	// Language is the BCP-47 language tag for recognition (e.g., "en",
	// "de-DE"). An empty string lets the provider auto-detect the language,
	// if supported.
	Language string

	// Keywords is a list of vocabulary hints that increase recognition
	// probability for coaching vocabulary and filler words the fluency
	// detector watches for. See types.KeywordBoost for the boost semantics.
	Keywords []types.KeywordBoost
}

// Session represents an open STT session. It is an interface so that test
// code can provide mock implementations without a live provider connection.
//
// Callers must call Close when the session is no longer needed. Failing to do
// so may leak network connections inside the provider implementation.
type Session interface {
	// Transcribe submits one complete utterance window and returns the
	// authoritative transcript for it. The returned Transcript carries the
	// window's Timestamp and Duration so downstream consumers can line the
	// text up with the metric snapshots from the same span.
	//
	// Windows that contain no usable speech (empty or near-silent) yield an
	// empty-text Transcript and a nil error; callers should skip those
	// rather than treat them as failures. Transcribe returns
	// ErrSessionClosed after Close.
	Transcribe(ctx context.Context, window types.AudioWindow) (types.Transcript, error)

	// SetKeywords replaces the active keyword boost list without restarting
	// the session, e.g. after a rubric reload changes the filler-word
	// lexicon. Backends without a keyword API return ErrNotSupported; the
	// session remains usable after that.
	SetKeywords(keywords []types.KeywordBoost) error

	// Close terminates the session and releases all associated resources.
	// Calling Close more than once is safe and returns nil.
	Close() error
}

// Provider is the abstraction over any STT backend.
//
// Implementations must be safe for concurrent use. Multiple sessions may be
// open simultaneously (e.g., one per coaching session on a shared server).
type Provider interface {
	// StartSession opens a new transcription session with the given audio
	// format and recognition configuration. The returned Session is ready to
	// accept windows immediately.
	//
	// Returns an error if the provider cannot establish the session (e.g.,
	// authentication failure, unsupported configuration, or ctx already
	// cancelled). The caller owns the Session and must call Close when done.
	StartSession(ctx context.Context, cfg Config) (Session, error)
}
