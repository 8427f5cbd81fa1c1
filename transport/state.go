// Package transport maintains one live source of raw state packets across
// streaming, polling, and local-generation strategies, recovering from
// transport failures without involving the render path.
package transport

// State is the connection state of the manager. Exactly one of Streaming,
// Polling, or Simulating is active at a time.
type State int

const (
	Idle State = iota
	Connecting
	Streaming
	Retrying
	Polling
	Simulating
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Connecting:
		return "connecting"
	case Streaming:
		return "streaming"
	case Retrying:
		return "retrying"
	case Polling:
		return "polling"
	case Simulating:
		return "simulating"
	case Closed:
		return "closed"
	default:
		return "unknown"
	}
}

// Active reports whether the state has a live data source.
func (s State) Active() bool {
	return s == Streaming || s == Polling || s == Simulating
}
