package supervisor

import (
	"errors"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/intake"
)

// Supervisor errors.
var (
	// ErrAttemptsExhausted ends a session that reached its attempt limit.
	// The access point stays up until the session is restarted.
	ErrAttemptsExhausted = errors.New("provisioning attempts exhausted")

	// ErrAlreadyRunning is returned when Run is called during a session.
	ErrAlreadyRunning = errors.New("provisioning session already running")

	// ErrSessionEnded is returned by Enqueue once the session is terminal.
	ErrSessionEnded = errors.New("provisioning session has ended")
)

// State is the provisioning state of a session.
type State uint8

const (
	// StateIdle means no session has started.
	StateIdle State = iota

	// StateHostingAP means the access point is being brought up.
	StateHostingAP

	// StateAwaitingCandidate means intakes are armed and the supervisor
	// waits for credentials.
	StateAwaitingCandidate

	// StateApplyingClient means the radio is switching to the client role.
	StateApplyingClient

	// StateVerifying means the client role is up and connectivity is checked.
	StateVerifying

	// StateConnected means provisioning succeeded. Terminal.
	StateConnected

	// StateRollingBack means the attempt failed and the AP is restored.
	StateRollingBack

	// StateFailedTerminal means the attempt limit was reached. Terminal.
	StateFailedTerminal
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateHostingAP:
		return "HOSTING_AP"
	case StateAwaitingCandidate:
		return "AWAITING_CANDIDATE"
	case StateApplyingClient:
		return "APPLYING_CLIENT"
	case StateVerifying:
		return "VERIFYING"
	case StateConnected:
		return "CONNECTED"
	case StateRollingBack:
		return "ROLLING_BACK"
	case StateFailedTerminal:
		return "FAILED_TERMINAL"
	default:
		return "UNKNOWN"
	}
}

// Terminal reports whether the state ends a session.
func (s State) Terminal() bool {
	return s == StateConnected || s == StateFailedTerminal
}

// InFlight reports whether a candidate is being applied or verified.
func (s State) InFlight() bool {
	return s == StateApplyingClient || s == StateVerifying
}

// Outcome is how Run ended.
type Outcome uint8

const (
	// OutcomeNone means Run returned before the session reached a result.
	OutcomeNone Outcome = iota

	// OutcomeConnected means a candidate was verified and persisted.
	OutcomeConnected

	// OutcomeExhausted means every allowed attempt failed.
	OutcomeExhausted

	// OutcomeCancelled means the context ended while awaiting a candidate.
	OutcomeCancelled
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "NONE"
	case OutcomeConnected:
		return "CONNECTED"
	case OutcomeExhausted:
		return "EXHAUSTED"
	case OutcomeCancelled:
		return "CANCELLED"
	default:
		return "UNKNOWN"
	}
}

// Session is a snapshot of a provisioning session.
type Session struct {
	// ID identifies the session (UUID).
	ID string

	// State is the current state.
	State State

	// AttemptCount is the number of failed attempts so far.
	AttemptCount int

	// LastError is the reason of the most recent failed attempt.
	LastError error

	// ActiveCandidate is the candidate being applied or verified, or the
	// one that connected. Zero otherwise.
	ActiveCandidate intake.Candidate

	// Queued is the number of candidates waiting for the next attempt.
	Queued int

	// StartedAt is when the session started.
	StartedAt time.Time
}

// EventType identifies a supervisor event.
type EventType uint8

const (
	// EventStateChanged - the session state changed.
	EventStateChanged EventType = iota

	// EventCandidateReceived - an intake delivered a candidate.
	EventCandidateReceived

	// EventAttemptFailed - an apply or verify failed.
	EventAttemptFailed

	// EventConnected - provisioning succeeded.
	EventConnected

	// EventExhausted - the attempt limit was reached.
	EventExhausted
)

// String returns the event type name.
func (e EventType) String() string {
	switch e {
	case EventStateChanged:
		return "STATE_CHANGED"
	case EventCandidateReceived:
		return "CANDIDATE_RECEIVED"
	case EventAttemptFailed:
		return "ATTEMPT_FAILED"
	case EventConnected:
		return "CONNECTED"
	case EventExhausted:
		return "EXHAUSTED"
	default:
		return "UNKNOWN"
	}
}

// Event is delivered to OnEvent handlers.
type Event struct {
	// Type is the event type.
	Type EventType

	// SessionID is the session the event belongs to.
	SessionID string

	// OldState and NewState are set for EventStateChanged.
	OldState State
	NewState State

	// SSID and Source describe the candidate involved, if any.
	SSID   string
	Source intake.Source

	// Attempt is the attempt count when the event occurred.
	Attempt int

	// Error is set for EventAttemptFailed and EventExhausted.
	Error error
}

// EventHandler handles supervisor events.
type EventHandler func(Event)
