package reactor

import "sync/atomic"

// State represents the current state of a reactor.
//
// Transitions:
//
//	StateAwake → StateRunning            [Run]
//	StateRunning ⇄ StateSleeping         [loop blocks / wakes, via CAS]
//	StateRunning|StateSleeping|StateAwake → StateTerminating  [Shutdown/Close]
//	StateTerminating → StateTerminated   [loop exit; at once if stopped while Awake]
//
// Temporary states (Running, Sleeping) are entered only via CAS; the
// terminal state is stored unconditionally once the loop has exited.
type State uint32

const (
	// StateAwake indicates the reactor has been created but not started.
	StateAwake State = iota
	// StateRunning indicates the loop is actively processing work.
	StateRunning
	// StateSleeping indicates the loop is blocked waiting for work or a
	// timer deadline.
	StateSleeping
	// StateTerminating indicates shutdown has been requested but the loop
	// has not yet exited.
	StateTerminating
	// StateTerminated indicates the loop has fully stopped.
	StateTerminated
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateAwake:
		return "Awake"
	case StateRunning:
		return "Running"
	case StateSleeping:
		return "Sleeping"
	case StateTerminating:
		return "Terminating"
	case StateTerminated:
		return "Terminated"
	default:
		return "Unknown"
	}
}

// stateMachine is a lock-free state holder.
type stateMachine struct {
	v atomic.Uint32
}

func (s *stateMachine) Load() State {
	return State(s.v.Load())
}

func (s *stateMachine) Store(state State) {
	s.v.Store(uint32(state))
}

// TryTransition attempts to atomically transition from one state to
// another, reporting success.
func (s *stateMachine) TryTransition(from, to State) bool {
	return s.v.CompareAndSwap(uint32(from), uint32(to))
}

// CanAcceptWork reports whether the reactor can accept new jobs.
func (s *stateMachine) CanAcceptWork() bool {
	switch s.Load() {
	case StateAwake, StateRunning, StateSleeping:
		return true
	default:
		return false
	}
}
