package media

// State is the lifecycle state of a playback channel's media element.
type State int

const (
	StateEmpty State = iota
	StateLoading
	StateReady
	StatePlaying
	StatePaused
	StateErrored
)

// String returns the state name for logging
func (s State) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateLoading:
		return "loading"
	case StateReady:
		return "ready"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// EventType identifies a media element event.
type EventType int

const (
	// EventLoadStarted fires when a new source is assigned
	EventLoadStarted EventType = iota
	// EventReady fires once enough is buffered to start playback
	EventReady
	// EventPlay fires when playback starts or resumes
	EventPlay
	// EventPause fires when playback is paused
	EventPause
	// EventEnded fires when the track plays to completion
	EventEnded
	// EventError fires on a decode or source failure
	EventError
	// EventReset fires when the element is cleared
	EventReset
)

// String returns the event name for logging
func (e EventType) String() string {
	switch e {
	case EventLoadStarted:
		return "load_started"
	case EventReady:
		return "ready"
	case EventPlay:
		return "play"
	case EventPause:
		return "pause"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	case EventReset:
		return "reset"
	default:
		return "unknown"
	}
}

// ApplyEvent returns the state after applying event to current, and whether
// the transition is legal. Illegal transitions leave the state unchanged so
// callers can log and continue.
func ApplyEvent(current State, event EventType) (State, bool) {
	switch event {
	case EventLoadStarted:
		return StateLoading, true
	case EventReady:
		if current == StateLoading {
			return StateReady, true
		}
	case EventPlay:
		if current == StateReady || current == StatePaused {
			return StatePlaying, true
		}
	case EventPause:
		if current == StatePlaying {
			return StatePaused, true
		}
	case EventEnded:
		if current == StatePlaying {
			return StatePaused, true
		}
	case EventError:
		if current != StateEmpty {
			return StateErrored, true
		}
	case EventReset:
		return StateEmpty, true
	}
	return current, false
}
