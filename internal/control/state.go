package control

import "time"

// State is the runtime state of a recording session
type State int32

const (
	StateIdle State = iota
	StateBuilding
	StatePlaying
	StateDraining
	StateStopped
	StateFailed
)

// String returns a human-readable string representation of the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateBuilding:
		return "building"
	case StatePlaying:
		return "playing"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the session is over
func (s State) Terminal() bool {
	return s == StateStopped || s == StateFailed
}

// expectsPlaying reports whether the framework pipeline must be PLAYING
func (s State) expectsPlaying() bool {
	return s == StatePlaying || s == StateDraining
}

// allowed lists the legal transitions
var allowed = map[State][]State{
	StateIdle:     {StateBuilding},
	StateBuilding: {StatePlaying, StateFailed},
	StatePlaying:  {StateDraining, StateStopped, StateFailed},
	StateDraining: {StateStopped, StateFailed},
}

func canTransition(from, to State) bool {
	for _, s := range allowed[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition is a state change observed by the controller
type Transition struct {
	RunID  string
	From   State
	To     State
	Reason string
	At     time.Time
}

// Observer is notified of every transition, synchronously from the control loop.
// Implementations must not block.
type Observer interface {
	OnTransition(Transition)
}

// ObserverFunc adapts a function to Observer
type ObserverFunc func(Transition)

// OnTransition implements Observer
func (f ObserverFunc) OnTransition(t Transition) { f(t) }
