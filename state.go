package relay

// State is the relay lifecycle state
type State int32

const (
	StateInit         State = iota // opening transports
	StateRunning                   // alternating drain and dispatch cycles
	StateShuttingDown              // releasing transports
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "INIT"
	case StateRunning:
		return "RUNNING"
	case StateShuttingDown:
		return "SHUTTING_DOWN"
	case StateStopped:
		return "STOPPED"
	default:
		return "UNKNOWN"
	}
}
