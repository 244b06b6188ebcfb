package log

import "time"

// Event is one entry of the provisioning trace. Exactly one of the payload
// pointers is set, matching Category.
type Event struct {
	// Timestamp is when the event occurred.
	Timestamp time.Time `cbor:"1,keyasint"`

	// SessionID is the provisioning session (UUID).
	SessionID string `cbor:"2,keyasint"`

	// Component is where the event originated.
	Component Component `cbor:"3,keyasint"`

	// Category classifies the payload.
	Category Category `cbor:"4,keyasint"`

	// Attempt is the session's attempt count when the event occurred.
	Attempt int `cbor:"5,keyasint,omitempty"`

	StateChange *StateChangeEvent `cbor:"10,keyasint,omitempty"`
	Candidate   *CandidateEvent   `cbor:"11,keyasint,omitempty"`
	Outcome     *AttemptEvent     `cbor:"12,keyasint,omitempty"`
	Error       *ErrorEventData   `cbor:"13,keyasint,omitempty"`
	Status      *StatusEvent      `cbor:"14,keyasint,omitempty"`
}

// Component identifies the part of the system that produced an event.
type Component uint8

const (
	ComponentSupervisor Component = 0
	ComponentRadio      Component = 1
	ComponentIntake     Component = 2
	ComponentVerifier   Component = 3
	ComponentStore      Component = 4
)

// String returns the component name.
func (c Component) String() string {
	switch c {
	case ComponentSupervisor:
		return "SUPERVISOR"
	case ComponentRadio:
		return "RADIO"
	case ComponentIntake:
		return "INTAKE"
	case ComponentVerifier:
		return "VERIFIER"
	case ComponentStore:
		return "STORE"
	default:
		return "UNKNOWN"
	}
}

// Category classifies an event.
type Category uint8

const (
	// CategoryState is a state machine or radio role change.
	CategoryState Category = 0
	// CategoryCandidate is a candidate arriving from an intake.
	CategoryCandidate Category = 1
	// CategoryAttempt is the outcome of an apply/verify cycle.
	CategoryAttempt Category = 2
	// CategoryError is a failure worth recording.
	CategoryError Category = 3
	// CategoryStatus is a terminal status report.
	CategoryStatus Category = 4
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryState:
		return "STATE"
	case CategoryCandidate:
		return "CANDIDATE"
	case CategoryAttempt:
		return "ATTEMPT"
	case CategoryError:
		return "ERROR"
	case CategoryStatus:
		return "STATUS"
	default:
		return "UNKNOWN"
	}
}

// StateChangeEvent records a transition.
type StateChangeEvent struct {
	Entity   StateEntity `cbor:"1,keyasint"`
	OldState string      `cbor:"2,keyasint,omitempty"`
	NewState string      `cbor:"3,keyasint"`
	Reason   string      `cbor:"4,keyasint,omitempty"`
}

// StateEntity is what changed state.
type StateEntity uint8

const (
	// StateEntitySession is the supervisor's provisioning state.
	StateEntitySession StateEntity = 0
	// StateEntityRadio is the radio role.
	StateEntityRadio StateEntity = 1
)

// String returns the entity name.
func (s StateEntity) String() string {
	switch s {
	case StateEntitySession:
		return "SESSION"
	case StateEntityRadio:
		return "RADIO"
	default:
		return "UNKNOWN"
	}
}

// CandidateEvent records a candidate received from an intake.
type CandidateEvent struct {
	Source string `cbor:"1,keyasint"`
	SSID   string `cbor:"2,keyasint"`

	// Queued is set when the candidate arrived during an attempt.
	Queued bool `cbor:"3,keyasint,omitempty"`
}

// AttemptEvent records how an apply/verify cycle ended.
type AttemptEvent struct {
	Number   int           `cbor:"1,keyasint"`
	SSID     string        `cbor:"2,keyasint"`
	Source   string        `cbor:"3,keyasint"`
	Outcome  string        `cbor:"4,keyasint"`
	Error    string        `cbor:"5,keyasint,omitempty"`
	Duration time.Duration `cbor:"6,keyasint"`
}

// ErrorEventData records a failure.
type ErrorEventData struct {
	Component Component `cbor:"1,keyasint"`
	Message   string    `cbor:"2,keyasint"`

	// Context names the operation that failed.
	Context string `cbor:"3,keyasint,omitempty"`
}

// StatusEvent records the terminal status line of a session.
type StatusEvent struct {
	Status   string `cbor:"1,keyasint"`
	SSID     string `cbor:"2,keyasint,omitempty"`
	Attempts int    `cbor:"3,keyasint"`
	Line     string `cbor:"4,keyasint"`
}
