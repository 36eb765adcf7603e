package audio

// State represents the current state of a recording session
type State string

const (
	StateIdle      State = "IDLE"
	StateRecording State = "RECORDING"
	StateStopped   State = "STOPPED"
	StateCancelled State = "CANCELLED"
	StateFailed    State = "FAILED"
)

// Terminal reports whether no further transitions can happen from s.
func (s State) Terminal() bool {
	switch s {
	case StateStopped, StateCancelled, StateFailed:
		return true
	default:
		return false
	}
}

// Outcome is how a successful Record call ended. Failures are returned as errors.
type Outcome int

const (
	OutcomeStopped Outcome = iota + 1
	OutcomeCancelled
)

func (o Outcome) String() string {
	switch o {
	case OutcomeStopped:
		return "stopped"
	case OutcomeCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// State returns the state an outcome leaves the session in.
func (o Outcome) State() State {
	if o == OutcomeCancelled {
		return StateCancelled
	}
	return StateStopped
}
