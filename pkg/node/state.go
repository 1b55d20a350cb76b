package node

// State is the lifecycle state of a Node.
type State int

const (
	// StateInitialized means the node is created but not started.
	StateInitialized State = iota
	// StateRunning means the event loop and the transport are up.
	StateRunning
	// StateStopped means the node has been shut down. It cannot be restarted.
	StateStopped
)

// String returns a human-readable name for the state.
func (s State) String() string {
	switch s {
	case StateInitialized:
		return "Initialized"
	case StateRunning:
		return "Running"
	case StateStopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}
