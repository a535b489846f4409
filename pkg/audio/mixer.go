package audio

import (
	"sync/atomic"
	"time"
)

// InterruptReason identifies why the current coach utterance was cut short.
// It is passed to [Mixer.Interrupt] so that the mixer can apply
// reason-specific behaviour (e.g., whether queued utterances survive).
type InterruptReason int

const (
	// UrgentCorrection indicates that a higher-priority utterance forcibly
	// stopped playback, typically because the analyzer flagged a delivery
	// problem that cannot wait (inaudible volume, runaway pace). Queued
	// utterances are preserved and resume afterwards.
	UrgentCorrection InterruptReason = iota

	// SpeakerBargeIn indicates that the speaker started talking while the
	// coach was still speaking. The mixer honours conversational turn-taking
	// and yields the floor: playback stops and the queue is cleared, since
	// stale feedback read out after the speaker resumes would be noise.
	SpeakerBargeIn
)

// String returns the human-readable name of the interrupt reason.
func (r InterruptReason) String() string {
	switch r {
	case UrgentCorrection:
		return "URGENT_CORRECTION"
	case SpeakerBargeIn:
		return "SPEAKER_BARGE_IN"
	default:
		return "UNKNOWN"
	}
}

// Priority tiers for coach utterances. Higher values preempt lower ones;
// use these rather than raw integers so that call sites agree on ordering.
const (
	// PriorityEncouragement is ambient positive feedback that can wait out
	// anything else in the queue.
	PriorityEncouragement = 1

	// PriorityAdvice is regular coaching feedback delivered between the
	// speaker's pauses.
	PriorityAdvice = 5

	// PriorityCorrection is urgent delivery feedback that preempts whatever
	// is currently playing.
	PriorityCorrection = 10
)

// Utterance is a unit of synthesized coach speech submitted to a [Mixer].
// Audio is streamed — chunks arrive incrementally on the Audio channel —
// so the mixer can begin playback before synthesis is complete.
type Utterance struct {
	// FeedbackID identifies the feedback message this utterance voices,
	// linking playback back to the analysis event that produced it.
	FeedbackID string

	// Audio is a read-only channel of raw audio bytes (PCM chunks as they
	// leave the synthesizer). The channel is closed by the producer when the
	// utterance ends or when a mid-stream error occurs. After the channel
	// closes, call [Utterance.Err] to check whether synthesis completed cleanly.
	Audio <-chan []byte

	// SampleRate is the sample rate in Hz of the PCM data on the Audio channel
	// (e.g., 22050, 44100, 48000). Must be > 0.
	SampleRate int

	// Channels is the number of audio channels (1 = mono, 2 = stereo).
	// Must be > 0.
	Channels int

	// Priority controls scheduling when multiple utterances are queued.
	// Higher values preempt lower ones. Equal-priority utterances are played
	// in FIFO order. See the Priority* constants.
	Priority int

	// streamErr stores the error that caused the Audio channel to close early.
	// Access via Err and SetStreamErr.
	streamErr atomic.Pointer[error]
}

// Err returns the error that caused the Audio channel to close prematurely,
// or nil if the stream completed successfully. Callers should check Err after
// the Audio channel is closed.
func (u *Utterance) Err() error {
	if p := u.streamErr.Load(); p != nil {
		return *p
	}
	return nil
}

// SetStreamErr records a mid-stream error. The producer should call this
// before closing the Audio channel so that the [Mixer] can distinguish a
// clean completion from a failure.
func (u *Utterance) SetStreamErr(err error) {
	u.streamErr.Store(&err)
}

// Mixer manages the coach's speech output queue. It sits between feedback
// synthesis and the playback [Sink], ensuring that the coach voices one
// utterance at a time, that urgent corrections can interrupt queued
// encouragement, and that barge-in from the speaker is detected and surfaced
// to the session orchestrator.
//
// Implementations must be safe for concurrent use.
type Mixer interface {
	// Enqueue schedules utterance for playback. The priority parameter
	// overrides the priority embedded in utterance.Priority, allowing
	// call-site context to elevate or demote an utterance without mutating
	// the struct.
	//
	// If a higher-priority utterance is already playing, the new utterance
	// is buffered; if the new utterance has higher priority than the current
	// one, the current utterance is interrupted with [UrgentCorrection]
	// semantics.
	Enqueue(utterance *Utterance, priority int)

	// Interrupt immediately stops the currently playing utterance for the
	// given reason. [UrgentCorrection] advances to the next queued utterance;
	// [SpeakerBargeIn] also clears the queue. If nothing is playing,
	// Interrupt is a no-op.
	Interrupt(reason InterruptReason)

	// OnBargeIn registers handler as the callback to invoke when voice
	// activity detection determines that the speaker has started talking
	// while the coach is playing.
	//
	// Only one handler may be registered at a time; subsequent calls replace
	// the previous registration. The handler is invoked on an internal
	// goroutine and must not block.
	OnBargeIn(handler func())

	// SetGap configures the minimum silence duration inserted between
	// consecutive utterances. A gap of zero means utterances are played
	// back-to-back. Changes take effect before the next utterance starts.
	SetGap(d time.Duration)
}
