package flow

// State is the conversation phase of a coaching session. Transitions are
// owned exclusively by Manager; everything else observes them through
// Events.OnStateChange.
type State int

const (
	// StateInactive means no session is running. Terminal until the next
	// Start call.
	StateInactive State = iota
	// StateWaiting accepts user input. The only state HandleUserInput acts in.
	StateWaiting
	// StateListening is the brief capture phase after input arrives.
	StateListening
	// StateAnalyzing runs aggregation over the collected metrics.
	StateAnalyzing
	// StateResponding generates and delivers the coach response, then holds
	// through the cool-down before returning to StateWaiting.
	StateResponding
)

func (s State) String() string {
	switch s {
	case StateInactive:
		return "inactive"
	case StateWaiting:
		return "waiting"
	case StateListening:
		return "listening"
	case StateAnalyzing:
		return "analyzing"
	case StateResponding:
		return "responding"
	default:
		return "unknown"
	}
}
