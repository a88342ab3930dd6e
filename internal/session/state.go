// File: internal/session/state.go
package session

import "errors"

// State is the admission state of one target. Every target runs its own
// independent automaton.
type State int

const (
	// NoSession means no login has ever been processed for the target.
	NoSession State = iota
	// Idle means a session record exists and no action is in flight.
	Idle
	// Busy means an action (or an in-progress login repair) holds the
	// target's page.
	Busy
)

func (s State) String() string {
	switch s {
	case NoSession:
		return "no-session"
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Event is an input to the per-target automaton.
type Event int

const (
	// EventAcquire is a gated action request asking for exclusive access.
	EventAcquire Event = iota
	// EventEstablish is a login request, which may create the session.
	EventEstablish
	// EventRelease marks the completion of the in-flight action.
	EventRelease
)

func (e Event) String() string {
	switch e {
	case EventAcquire:
		return "acquire"
	case EventEstablish:
		return "establish"
	case EventRelease:
		return "release"
	default:
		return "unknown"
	}
}

var (
	// ErrNoSession rejects gated requests for targets that never logged in.
	ErrNoSession = errors.New("admin missing, login to continue")
	// ErrBusy rejects requests while another action holds the target.
	ErrBusy = errors.New("the site is busy")
	// ErrAuthExpired reports a failed repair login: the panel no longer
	// accepts the stored credentials.
	ErrAuthExpired = errors.New("admin updated, login again")

	errInvalidTransition = errors.New("invalid state transition")
)

// Next is the explicit transition function of the automaton. The gate never
// flips flags directly; every decision goes through here so the control plane
// is unit-testable without HTTP or browser plumbing.
func Next(s State, e Event) (State, error) {
	switch s {
	case NoSession:
		if e == EventEstablish {
			return Busy, nil
		}
		if e == EventAcquire {
			return NoSession, ErrNoSession
		}
	case Idle:
		if e == EventAcquire || e == EventEstablish {
			return Busy, nil
		}
	case Busy:
		if e == EventRelease {
			return Idle, nil
		}
		return Busy, ErrBusy
	}
	return s, errInvalidTransition
}
