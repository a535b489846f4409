// Package flow owns the conversation state machine of a coaching session
// and the event hub that fans its outputs to subscribers. One cycle runs
// at a time: user input is accepted only in the waiting state, everything
// else is dropped.
package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rostrumlabs/rostrum/pkg/types"
)

const (
	// DefaultCooldown holds the conversation in StateResponding after a
	// response is delivered so consecutive coaching turns stay paced.
	DefaultCooldown = 2 * time.Second

	// fallbackResponse is spoken when response generation fails after a
	// successful analysis.
	fallbackResponse = "I couldn't put feedback into words just now. Keep going, you're doing fine."
)

var (
	// ErrNoAnalyzeHook is published when a cycle starts without an analyze
	// hook configured.
	ErrNoAnalyzeHook = errors.New("flow: analyze hook not configured")
	// ErrNoRespondHook is published when a cycle reaches response generation
	// without a respond hook configured.
	ErrNoRespondHook = errors.New("flow: respond hook not configured")
)

// AnalyzeFunc aggregates the session's collected metrics into one result.
// Called once per cycle while the manager is in StateAnalyzing.
type AnalyzeFunc func(ctx context.Context, userText string) (types.AnalysisResult, error)

// RespondFunc turns an analysis result into the coach response for the turn.
type RespondFunc func(ctx context.Context, analysis types.AnalysisResult, userText string) (types.CoachResponse, error)

// DeliverFunc hands the finished response to the output side (speech, UI,
// history). A delivery error is published but does not abort the cycle.
type DeliverFunc func(ctx context.Context, resp types.CoachResponse) error

// Option customizes a Manager.
type Option func(*Manager)

// WithCooldown overrides the pause held in StateResponding after delivery.
func WithCooldown(d time.Duration) Option {
	return func(m *Manager) {
		if d >= 0 {
			m.cooldown = d
		}
	}
}

// Manager is the conversation state machine. It is the single writer of the
// session state; subscribers observe transitions through the event hub.
type Manager struct {
	events   *Events
	analyze  AnalyzeFunc
	respond  RespondFunc
	deliver  DeliverFunc
	cooldown time.Duration

	mu    sync.Mutex
	state State
}

// NewManager wires the state machine to its cycle hooks. The zero state is
// StateInactive; call Start to begin accepting input.
func NewManager(events *Events, analyze AnalyzeFunc, respond RespondFunc, deliver DeliverFunc, opts ...Option) *Manager {
	if events == nil {
		events = NewEvents()
	}
	m := &Manager{
		events:   events,
		analyze:  analyze,
		respond:  respond,
		deliver:  deliver,
		cooldown: DefaultCooldown,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Events returns the hub this manager publishes to.
func (m *Manager) Events() *Events { return m.events }

// Start begins a session, entering StateWaiting. Calling Start while a
// session is already active is a logged no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.state != StateInactive {
		st := m.state
		m.mu.Unlock()
		slog.Debug("flow: start ignored, session already active", "state", st)
		return
	}
	m.state = StateWaiting
	m.mu.Unlock()
	m.events.PublishStateChange(StateWaiting)
}

// End terminates the session from any state. An in-flight cycle notices on
// its next transition attempt and stops without publishing further states.
func (m *Manager) End() {
	m.mu.Lock()
	if m.state == StateInactive {
		m.mu.Unlock()
		return
	}
	m.state = StateInactive
	m.mu.Unlock()
	m.events.PublishStateChange(StateInactive)
}

// CurrentState reports the conversation state.
func (m *Manager) CurrentState() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// transition moves from→to and reports whether it applied. It fails when
// the state changed underneath the caller, which happens when End ran
// during a suspension point.
func (m *Manager) transition(from, to State) bool {
	m.mu.Lock()
	if m.state != from {
		m.mu.Unlock()
		return false
	}
	m.state = to
	m.mu.Unlock()
	m.events.PublishStateChange(to)
	return true
}

// HandleUserInput runs one full coaching cycle for the given user text.
// Outside StateWaiting the input is dropped silently. The call blocks
// through analysis, response delivery, and the cool-down; calls arriving
// during that time fail the state guard and drop their input the same way.
func (m *Manager) HandleUserInput(ctx context.Context, text string) {
	if !m.transition(StateWaiting, StateListening) {
		slog.Debug("flow: input rejected", "state", m.CurrentState())
		return
	}
	if !m.transition(StateListening, StateAnalyzing) {
		return
	}

	analysis, err := m.runAnalyze(ctx, text)
	if err != nil {
		m.events.PublishError(fmt.Errorf("flow: analysis failed: %w", err))
		m.transition(StateAnalyzing, StateWaiting)
		return
	}
	m.events.PublishAnalysisComplete(analysis)

	if !m.transition(StateAnalyzing, StateResponding) {
		return
	}

	resp, err := m.runRespond(ctx, analysis, text)
	if err != nil {
		m.events.PublishError(fmt.Errorf("flow: response generation failed: %w", err))
		resp = types.CoachResponse{Message: fallbackResponse, Analysis: analysis}
	}
	if m.deliver != nil {
		if err := m.deliver(ctx, resp); err != nil {
			m.events.PublishError(fmt.Errorf("flow: response delivery failed: %w", err))
		}
	}
	m.events.PublishResponseReady(resp)

	select {
	case <-time.After(m.cooldown):
	case <-ctx.Done():
	}
	m.transition(StateResponding, StateWaiting)
}

func (m *Manager) runAnalyze(ctx context.Context, text string) (types.AnalysisResult, error) {
	if m.analyze == nil {
		return types.AnalysisResult{}, ErrNoAnalyzeHook
	}
	return m.analyze(ctx, text)
}

func (m *Manager) runRespond(ctx context.Context, analysis types.AnalysisResult, text string) (types.CoachResponse, error) {
	if m.respond == nil {
		return types.CoachResponse{}, ErrNoRespondHook
	}
	return m.respond(ctx, analysis, text)
}
