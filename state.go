package evloop

import (
	"sync/atomic"
)

// DriverState represents the current state of a [Driver].
//
// State machine:
//
//	StateAwake      → StateRunning      [Run()]
//	StateRunning    → StateSleeping     [dispatch(blocking) via CAS]
//	StateRunning    → StateTerminating  [Stop()]
//	StateSleeping   → StateRunning      [dispatch wake via CAS]
//	StateSleeping   → StateTerminating  [Stop()]
//	StateTerminating → StateTerminated  [tick loop exit]
//	StateTerminated → (terminal)
type DriverState uint64

const (
	// StateAwake indicates the driver has been created but Run has not been called.
	StateAwake DriverState = 0
	// StateTerminated indicates the driver has stopped and will not run again.
	StateTerminated DriverState = 1
	// StateSleeping indicates the tick loop is blocked in the backend's dispatch call.
	StateSleeping DriverState = 2
	// StateRunning indicates the tick loop is actively processing a tick.
	StateRunning DriverState = 3
	// StateTerminating indicates Stop has been requested but the loop hasn't exited yet.
	StateTerminating DriverState = 4
)

// String returns a human-readable representation of the state.
func (s DriverState) String() string {
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

// atomicState is a small atomic CAS-based state machine guarding the
// driver's lifecycle. Transitions between the transient states (Running,
// Sleeping) go through TryTransition; Terminated is set once via Store and
// never leaves that state.
type atomicState struct {
	v atomic.Uint64
}

func newAtomicState() *atomicState {
	s := &atomicState{}
	s.v.Store(uint64(StateAwake))
	return s
}

func (s *atomicState) Load() DriverState {
	return DriverState(s.v.Load())
}

func (s *atomicState) Store(state DriverState) {
	s.v.Store(uint64(state))
}

// TryTransition attempts to atomically move from `from` to `to`.
func (s *atomicState) TryTransition(from, to DriverState) bool {
	return s.v.CompareAndSwap(uint64(from), uint64(to))
}

// IsTerminal reports whether the driver has fully stopped.
func (s *atomicState) IsTerminal() bool {
	return s.Load() == StateTerminated
}

// CanAcceptWork reports whether new callbacks may still be registered.
func (s *atomicState) CanAcceptWork() bool {
	switch s.Load() {
	case StateAwake, StateRunning, StateSleeping, StateTerminating:
		return true
	default:
		return false
	}
}
