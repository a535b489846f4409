package mixer

import (
	"container/heap"
	"log/slog"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/audio"
)

// Compile-time interface assertion.
var _ audio.Mixer = (*PriorityMixer)(nil)

const (
	// DefaultGap is the base silence duration inserted between consecutive
	// utterances when no explicit gap is configured via [WithGap].
	DefaultGap = 300 * time.Millisecond

	// defaultQueueCap is the initial capacity hint for the priority queue.
	defaultQueueCap = 16
)

// Option configures a [PriorityMixer] during construction.
type Option func(*PriorityMixer)

// WithGap sets the base silence gap inserted between consecutive utterances.
// Jitter of ±1/6 of the gap is applied automatically. A gap of zero disables
// inter-utterance silence entirely.
func WithGap(d time.Duration) Option {
	return func(m *PriorityMixer) {
		m.gap = d
	}
}

// WithQueueCapacity sets the initial capacity hint for the internal priority
// queue. This does not impose a hard limit — the queue grows as needed.
func WithQueueCapacity(n int) Option {
	return func(m *PriorityMixer) {
		if n > 0 {
			m.queue = make(utteranceHeap, 0, n)
		}
	}
}

// PriorityMixer is a concrete [audio.Mixer] that schedules [audio.Utterance]
// playback using a priority queue backed by [container/heap].
//
// Higher-priority utterances preempt lower-priority ones currently playing,
// so an urgent correction does not wait behind queued encouragement.
// Equal-priority utterances are played in FIFO order. A configurable silence
// gap (with jitter) is inserted between consecutive utterances so the coach
// does not sound machine-gunned.
//
// All exported methods are safe for concurrent use.
type PriorityMixer struct {
	output func(audio.AudioFrame) // callback that receives audio frames for playback

	mu             sync.Mutex
	queue          utteranceHeap
	seq            uint64           // monotonic counter for FIFO ordering
	gap            time.Duration    // base silence gap between utterances
	playing        *audio.Utterance // currently playing utterance, or nil
	playingPri     int              // priority of the currently playing utterance
	cancelPlaying  chan struct{}    // closed to interrupt the current utterance
	bargeInHandler func()           // last-writer-wins barge-in callback

	notify chan struct{} // signalled when a new utterance is enqueued or interrupt fires
	done   chan struct{} // closed by Close to stop the dispatch goroutine
	closed bool
}

// New creates a [PriorityMixer] that delivers audio frames to the output
// callback. The mixer starts a background dispatch goroutine immediately.
//
// output must not be nil; it is called sequentially from the dispatch goroutine
// and must not block for extended periods. Each frame carries the sample rate
// and channel count of the utterance it came from.
//
// Call [PriorityMixer.Close] to stop the background goroutine and release
// resources.
func New(output func(audio.AudioFrame), opts ...Option) *PriorityMixer {
	m := &PriorityMixer{
		output: output,
		queue:  make(utteranceHeap, 0, defaultQueueCap),
		gap:    DefaultGap,
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
	for _, o := range opts {
		o(m)
	}
	heap.Init(&m.queue)
	go m.dispatch()
	return m
}

// Enqueue schedules utterance for playback at the given priority. If the
// utterance has higher priority than the one currently playing, the current
// utterance is interrupted with [audio.UrgentCorrection] semantics and the new
// utterance begins immediately.
//
// The priority parameter overrides utterance.Priority, allowing call-site
// context to elevate or demote an utterance without mutating the struct.
//
// Utterances with an invalid format (zero sample rate or channels) are
// rejected and their audio channel drained.
func (m *PriorityMixer) Enqueue(utterance *audio.Utterance, priority int) {
	if utterance.SampleRate <= 0 || utterance.Channels <= 0 {
		slog.Warn("mixer: rejecting utterance with invalid format",
			"feedbackID", utterance.FeedbackID,
			"sampleRate", utterance.SampleRate,
			"channels", utterance.Channels,
		)
		go audio.Drain(utterance.Audio)
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		go audio.Drain(utterance.Audio)
		return
	}

	m.seq++
	heap.Push(&m.queue, entry{
		utterance: utterance,
		priority:  priority,
		seq:       m.seq,
	})

	// Preempt the current utterance if the new one has higher priority.
	if m.playing != nil && priority > m.playingPri {
		m.interruptLocked(audio.UrgentCorrection, false)
	}

	// Wake the dispatch goroutine.
	select {
	case m.notify <- struct{}{}:
	default:
	}
}

// Interrupt immediately stops the currently playing utterance for the given
// reason. If nothing is playing, Interrupt is a no-op.
//
// For [audio.SpeakerBargeIn], the queue is also cleared — the speaker is
// taking the floor and queued feedback would arrive stale. For
// [audio.UrgentCorrection], queued utterances are preserved.
func (m *PriorityMixer) Interrupt(reason audio.InterruptReason) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.interruptLocked(reason, reason == audio.SpeakerBargeIn)
}

// OnBargeIn registers handler as the callback to invoke when [BargeIn] is
// called. Only one handler may be active at a time; subsequent calls replace
// the previous registration. The handler is invoked on a new goroutine and
// must not block.
func (m *PriorityMixer) OnBargeIn(handler func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.bargeInHandler = handler
}

// BargeIn signals that the speaker started talking while a coach utterance is
// playing. It interrupts the current utterance with [audio.SpeakerBargeIn]
// semantics, clears the queue, and invokes the registered barge-in handler
// (if any) on a new goroutine.
//
// This method is intended to be called by the capture pipeline when voice
// activity detection fires during coach playback.
func (m *PriorityMixer) BargeIn() {
	m.mu.Lock()
	handler := m.bargeInHandler
	m.interruptLocked(audio.SpeakerBargeIn, true)
	m.mu.Unlock()

	if handler != nil {
		go handler()
	}
}

// SetGap configures the base silence duration inserted between consecutive
// utterances. Jitter of ±1/6 of the gap is applied automatically. A gap of
// zero disables inter-utterance silence entirely. Changes take effect before
// the next utterance starts.
func (m *PriorityMixer) SetGap(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.gap = d
}

// Close stops the background dispatch goroutine, drains any remaining queued
// utterances, and releases resources. Close is idempotent — subsequent calls
// are no-ops and return nil.
func (m *PriorityMixer) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true

	// Interrupt current playback if any.
	if m.playing != nil {
		m.interruptLocked(audio.UrgentCorrection, false)
	}

	// Drain the queue.
	for m.queue.Len() > 0 {
		e := heap.Pop(&m.queue).(entry)
		go audio.Drain(e.utterance.Audio)
	}
	m.mu.Unlock()

	close(m.done)
	return nil
}

// interruptLocked cancels the currently playing utterance and optionally
// clears the queue. Must be called with m.mu held.
func (m *PriorityMixer) interruptLocked(reason audio.InterruptReason, clearQueue bool) {
	_ = reason // available for future reason-specific behaviour (e.g., fade-out)

	if m.cancelPlaying != nil {
		close(m.cancelPlaying)
		m.cancelPlaying = nil
	}
	m.playing = nil

	if clearQueue {
		for m.queue.Len() > 0 {
			e := heap.Pop(&m.queue).(entry)
			go audio.Drain(e.utterance.Audio)
		}
	}
}

// dispatch is the background goroutine that pulls utterances from the queue
// and streams their audio chunks to the output callback. It runs until [Close]
// is called.
func (m *PriorityMixer) dispatch() {
	var lastPlayed bool // true if an utterance was just played (for gap insertion)

	// Reusable timer for inter-utterance gaps — avoids allocating a new
	// time.Timer on every utterance transition.
	gapTimer := time.NewTimer(0)
	if !gapTimer.Stop() {
		<-gapTimer.C
	}
	defer gapTimer.Stop()

	for {
		// Wait for work or shutdown.
		select {
		case <-m.done:
			return
		case <-m.notify:
		}

		for {
			utt, cancel, ok := m.dequeue()
			if !ok {
				break
			}

			// Insert gap between consecutive utterances.
			if lastPlayed {
				gapDur := m.gapWithJitter()
				if gapDur > 0 {
					gapTimer.Reset(gapDur)
					select {
					case <-m.done:
						if !gapTimer.Stop() {
							<-gapTimer.C
						}
						// Drain the utterance we just dequeued.
						go audio.Drain(utt.Audio)
						return
					case <-cancel:
						if !gapTimer.Stop() {
							<-gapTimer.C
						}
						// Interrupted during gap — utterance was preempted.
						go audio.Drain(utt.Audio)
						continue
					case <-gapTimer.C:
					}
				}
			}

			m.play(utt, cancel)
			lastPlayed = true

			// Clear the playing state after the utterance finishes.
			m.mu.Lock()
			if m.playing == utt {
				m.playing = nil
				m.cancelPlaying = nil
			}
			m.mu.Unlock()
		}
	}
}

// dequeue pops the highest-priority utterance from the queue and marks it as
// currently playing. Returns ok=false if the queue is empty.
func (m *PriorityMixer) dequeue() (utt *audio.Utterance, cancel chan struct{}, ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.queue.Len() == 0 {
		return nil, nil, false
	}

	e := heap.Pop(&m.queue).(entry)
	cancel = make(chan struct{})
	m.playing = e.utterance
	m.playingPri = e.priority
	m.cancelPlaying = cancel
	return e.utterance, cancel, true
}

// play streams audio chunks from utt to the output callback until the
// utterance ends or cancel is closed (interrupt). Each chunk is wrapped in an
// [audio.AudioFrame] carrying the utterance's format so the sink knows how to
// play it.
func (m *PriorityMixer) play(utt *audio.Utterance, cancel chan struct{}) {
	for {
		select {
		case <-m.done:
			go audio.Drain(utt.Audio)
			return
		case <-cancel:
			go audio.Drain(utt.Audio)
			return
		case chunk, ok := <-utt.Audio:
			if !ok {
				return // utterance finished naturally
			}
			m.output(audio.AudioFrame{
				Data:       chunk,
				SampleRate: utt.SampleRate,
				Channels:   utt.Channels,
			})
		}
	}
}

// gapWithJitter returns the configured gap duration with ±1/6 jitter applied.
// Returns zero if the base gap is zero.
func (m *PriorityMixer) gapWithJitter() time.Duration {
	m.mu.Lock()
	base := m.gap
	m.mu.Unlock()

	if base <= 0 {
		return 0
	}

	jitterRange := base / 6
	if jitterRange <= 0 {
		return base
	}

	// rand/v2 is concurrency-safe with the global source.
	jitter := time.Duration(rand.Int64N(int64(2*jitterRange+1))) - jitterRange
	return base + jitter
}
