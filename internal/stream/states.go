package stream

// State is the lifecycle of one change-stream subscription. Every failure
// state schedules a fresh SUBSCRIBING attempt; only process shutdown stops
// the listener for good.
type State int

const (
	StateDisconnected State = iota
	StateSubscribing
	StateSubscribed
	StateError
	StateTimedOut
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateDisconnected:
		return "DISCONNECTED"
	case StateSubscribing:
		return "SUBSCRIBING"
	case StateSubscribed:
		return "SUBSCRIBED"
	case StateError:
		return "ERROR"
	case StateTimedOut:
		return "TIMED_OUT"
	case StateClosed:
		return "CLOSED"
	default:
		return "UNKNOWN"
	}
}
