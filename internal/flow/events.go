package flow

import (
	"slices"
	"sync"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

// topic is a single-type subscription list. Subscribers are invoked
// synchronously in registration order on every publish; publishes from
// different goroutines are serialized per topic so no subscriber observes
// interleaved callbacks.
type topic[T any] struct {
	mu   sync.Mutex
	subs []func(T)
}

func (t *topic[T]) subscribe(fn func(T)) {
	if fn == nil {
		return
	}
	t.mu.Lock()
	t.subs = append(t.subs, fn)
	t.mu.Unlock()
}

func (t *topic[T]) publish(v T) {
	t.mu.Lock()
	subs := slices.Clone(t.subs)
	t.mu.Unlock()
	for _, fn := range subs {
		fn(v)
	}
}

// Events is the typed subscription hub the pipeline exposes to the UI layer.
// It replaces per-event mutable callback fields: each topic supports any
// number of subscribers, invoked synchronously in registration order.
// Subscription is append-only; the hub is session-scoped and dropped
// wholesale on session end.
//
// Callbacks run on the publishing goroutine and must not block.
type Events struct {
	state    topic[State]
	voice    topic[types.VoiceMetrics]
	vision   topic[types.VisionMetrics]
	analysis topic[types.AnalysisResult]
	response topic[types.CoachResponse]
	errs     topic[error]
}

// NewEvents creates an empty hub.
func NewEvents() *Events {
	return &Events{}
}

// OnStateChange subscribes to conversation state transitions.
func (e *Events) OnStateChange(fn func(State)) { e.state.subscribe(fn) }

// OnVoiceAnalysis subscribes to voice metric snapshots.
func (e *Events) OnVoiceAnalysis(fn func(types.VoiceMetrics)) { e.voice.subscribe(fn) }

// OnAnalysisUpdate subscribes to vision metric snapshots.
func (e *Events) OnAnalysisUpdate(fn func(types.VisionMetrics)) { e.vision.subscribe(fn) }

// OnAnalysisComplete subscribes to completed aggregation results, one per
// analyzing cycle.
func (e *Events) OnAnalysisComplete(fn func(types.AnalysisResult)) { e.analysis.subscribe(fn) }

// OnResponseReady subscribes to generated coach responses, one per responding
// cycle.
func (e *Events) OnResponseReady(fn func(types.CoachResponse)) { e.response.subscribe(fn) }

// OnError subscribes to pipeline errors. Errors are advisory; publication
// never implies the session stopped.
func (e *Events) OnError(fn func(error)) { e.errs.subscribe(fn) }

// PublishStateChange fans a state transition out to subscribers.
func (e *Events) PublishStateChange(s State) { e.state.publish(s) }

// PublishVoiceAnalysis fans a voice snapshot out to subscribers.
func (e *Events) PublishVoiceAnalysis(m types.VoiceMetrics) { e.voice.publish(m) }

// PublishAnalysisUpdate fans a vision snapshot out to subscribers.
func (e *Events) PublishAnalysisUpdate(m types.VisionMetrics) { e.vision.publish(m) }

// PublishAnalysisComplete fans a completed aggregate out to subscribers.
func (e *Events) PublishAnalysisComplete(r types.AnalysisResult) { e.analysis.publish(r) }

// PublishResponseReady fans a coach response out to subscribers.
func (e *Events) PublishResponseReady(r types.CoachResponse) { e.response.publish(r) }

// PublishError fans an error out to subscribers.
func (e *Events) PublishError(err error) {
	if err == nil {
		return
	}
	e.errs.publish(err)
}
