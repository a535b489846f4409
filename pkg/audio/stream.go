// Package audio defines the interfaces and types for audio capture, playback,
// and stream management within Rostrum.
//
// The primary abstractions are:
//
//   - [Source] — a live stream of captured microphone frames.
//   - [Sink] — the playback path for synthesized coach speech.
//   - [Mixer] — arbitrates between queued coach utterances, handling priority
//     preemption and speaker barge-in.
//
// Implementations of [Source] and [Sink] are provided by transport-specific
// adapter packages (e.g., the WebSocket ingest server). The interfaces are
// intentionally narrow to keep the session orchestrator decoupled from
// transport details.
//
// This package lives under pkg/ because external code (third-party capture
// adapters) is expected to implement [Source] and [Sink].
package audio

// EventType classifies speaker lifecycle events emitted by a capture transport.
type EventType int

const (
	// EventConnect is emitted when a speaker's capture stream comes online.
	EventConnect EventType = iota

	// EventDisconnect is emitted when a speaker's capture stream ends.
	EventDisconnect
)

// String returns the human-readable name of the event type.
func (e EventType) String() string {
	switch e {
	case EventConnect:
		return "CONNECT"
	case EventDisconnect:
		return "DISCONNECT"
	default:
		return "UNKNOWN"
	}
}

// Event describes a speaker lifecycle change on a capture transport.
// Callbacks registered with the transport receive values of this type.
type Event struct {
	// Type indicates whether the speaker connected or disconnected.
	Type EventType

	// SpeakerID is the transport-specific unique identifier for the speaker.
	SpeakerID string

	// Name is the human-readable display name of the speaker, if the
	// transport provides one.
	Name string
}

// Source is a live stream of captured audio from a single speaker.
//
// A Source is obtained from a capture transport (e.g., a WebSocket ingest
// session) and remains valid until [Source.Close] is called or the underlying
// transport disconnects. The frames channel is closed automatically when the
// stream terminates.
//
// Implementations must be safe for concurrent use.
type Source interface {
	// Frames returns the read-only channel that delivers [AudioFrame] values
	// as they arrive from the speaker. The channel is closed when the stream
	// ends; callers should range over it rather than polling.
	Frames() <-chan AudioFrame

	// Close tears down the stream and closes the frames channel. It is safe
	// to call Close more than once; subsequent calls are no-ops and return nil.
	Close() error
}

// Sink is the playback path for synthesized coach speech.
//
// Frames written to a Sink are delivered to the speaker's playback device
// (over the capture transport's return leg, or a local output device).
// Writes after Close return an error rather than panicking.
//
// Implementations must be safe for concurrent use.
type Sink interface {
	// Write delivers frame for playback. Implementations may buffer; Write
	// must not block indefinitely.
	Write(frame AudioFrame) error

	// Close flushes buffered frames and tears down the playback path. It is
	// safe to call Close more than once; subsequent calls are no-ops and
	// return nil.
	Close() error
}
