package server

// State is where the connection loop currently is
type State int32

const (
	StateIdle State = iota
	StateAccepting
	StateHandling
	StateResponding
	StateClosing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAccepting:
		return "accepting"
	case StateHandling:
		return "handling"
	case StateResponding:
		return "responding"
	case StateClosing:
		return "closing"
	default:
		return "unknown"
	}
}
