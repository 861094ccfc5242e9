package bridge

// State enumerates the progress of a verification request.
//
// The machine starts in StateWaitingForConnection and moves forward only:
// waiting → awaiting confirmation → confirmed or failed. Waiting may also
// move directly to failed (a connection failure detected while polling), and
// awaiting confirmation may hold across multiple polls. Confirmed and failed
// are terminal; there are no transitions out of them. The machine has no
// internal timers: the caller supplies the polling cadence and decides when
// to give up.
type State int

const (
	// StateWaitingForConnection means the World App has not yet retrieved
	// the request.
	StateWaitingForConnection State = iota

	// StateAwaitingConfirmation means the request was retrieved and the
	// user has not yet confirmed it.
	StateAwaitingConfirmation

	// StateConfirmed means the user confirmed the request and a proof is
	// available.
	StateConfirmed

	// StateFailed means the request terminally failed.
	StateFailed
)

// Terminal reports whether no further state transitions are possible.
func (s State) Terminal() bool {
	return s == StateConfirmed || s == StateFailed
}

// String returns a human-readable state name.
func (s State) String() string {
	switch s {
	case StateWaitingForConnection:
		return "waiting_for_connection"
	case StateAwaitingConfirmation:
		return "awaiting_confirmation"
	case StateConfirmed:
		return "confirmed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Status is the outcome of a single poll of the bridge.
type Status struct {
	// State is the current position in the protocol state machine.
	State State

	// Proof carries the proof of verification. Set only when State is
	// StateConfirmed.
	Proof *Proof

	// Error carries the rejection reason. Set only when State is
	// StateFailed.
	Error AppError
}
