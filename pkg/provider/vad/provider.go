// Package vad defines the Engine interface for voice activity detection backends.
//
// A VAD engine wraps a frame-level speech detector (an energy detector, WebRTC
// VAD, or a trained model such as Silero) and surfaces it as a stateful,
// per-stream session. Each session maintains its own internal state (hysteresis
// counters, smoothing history) so that multiple concurrent audio streams can be
// processed independently.
//
// In the coaching pipeline the detector gates the listening stage: speech-start
// moves an idle session into active listening, and speech-end marks the point at
// which the accumulated utterance is handed to analysis. VAD is synchronous by
// design: ProcessFrame returns immediately with a detection result, making it
// suitable for low-latency stages that run ahead of STT windowing.
//
// Implementations must be safe for concurrent use across different sessions.
// A single SessionHandle should not be shared across goroutines unless the
// implementation explicitly documents thread safety for that type.
package vad

// Config holds the parameters for a VAD session. Thresholds are expressed in
// each engine's native score scale; see the engine's documentation for
// recommended starting values.
type Config struct {
	// SampleRate is the audio sample rate in Hz. Must match the rate of the PCM
	// frames passed to ProcessFrame. Common values: 8000, 16000, 48000.
	SampleRate int

	// FrameSizeMs is the duration of each audio frame in milliseconds. Detectors
	// operate on fixed frame sizes (typically 10, 20, or 30 ms). ProcessFrame
	// returns an error if the supplied frame does not match this size.
	FrameSizeMs int

	// SpeechThreshold is the score above which a frame is classified as speech.
	// Higher values reduce false positives at the cost of increased speech-start
	// latency.
	SpeechThreshold float64

	// SilenceThreshold is the score below which a frame is classified as silence
	// while a speech segment is active. Must be ≤ SpeechThreshold; the gap between
	// the two forms the hysteresis band that keeps brief dips in level from
	// splitting an utterance.
	SilenceThreshold float64
}

// SessionHandle represents an active VAD session for a single audio stream. It
// is an interface so that test code can supply mock implementations without a
// live engine. Each session maintains its own detection state; Reset clears this
// state without closing the session.
//
// A SessionHandle should not be shared between goroutines unless the
// implementation explicitly guarantees concurrent safety.
type SessionHandle interface {
	// ProcessFrame analyses a single audio frame and returns the detection result.
	// The frame must be raw little-endian PCM at the SampleRate and FrameSizeMs
	// configured when the session was created. Returns an error if the frame size
	// is wrong or if the engine encounters an internal failure.
	//
	// This method is designed to be called synchronously in the audio pipeline
	// loop; it must not block.
	ProcessFrame(frame []byte) (VADEvent, error)

	// Reset clears all accumulated detection state (hysteresis counters,
	// speech-start history) without closing the session. Use this when the audio
	// stream is interrupted or restarted to avoid stale state from the previous
	// segment affecting subsequent frames.
	Reset()

	// Close releases all resources associated with the session. After Close,
	// ProcessFrame must return an error and Reset must be a no-op. Calling Close
	// more than once is safe and returns nil.
	Close() error
}

// Engine is the factory for VAD sessions. It is the top-level interface
// implemented by each VAD backend.
//
// Implementations must be safe for concurrent use: multiple goroutines may call
// NewSession simultaneously to create independent sessions.
type Engine interface {
	// NewSession creates a new VAD session with the given configuration. The
	// session is immediately ready to accept audio frames.
	//
	// Returns an error if the configuration is invalid (unsupported sample rate,
	// frame size, or threshold ordering) or if the engine cannot allocate
	// resources for the session.
	NewSession(cfg Config) (SessionHandle, error)
}
