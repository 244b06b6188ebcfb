package journal

import (
	"errors"
	"fmt"
	"time"
)

// Backend names accepted by Open.
const (
	BackendNone   = "none"
	BackendBolt   = "bolt"
	BackendSQLite = "sqlite"
)

// ErrUnknownBackend is returned by Open for an unsupported backend name.
var ErrUnknownBackend = errors.New("unknown journal backend")

// Outcome is how an attempt ended.
type Outcome uint8

const (
	// OutcomeConnected means the candidate was verified and persisted.
	OutcomeConnected Outcome = iota + 1

	// OutcomeRejected means the candidate failed validation.
	OutcomeRejected

	// OutcomeApplyFailed means the client role could not be started.
	OutcomeApplyFailed

	// OutcomeVerifyFailed means the network was joined but not reachable.
	OutcomeVerifyFailed
)

// String returns the outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomeConnected:
		return "CONNECTED"
	case OutcomeRejected:
		return "REJECTED"
	case OutcomeApplyFailed:
		return "APPLY_FAILED"
	case OutcomeVerifyFailed:
		return "VERIFY_FAILED"
	default:
		return "UNKNOWN"
	}
}

// ParseOutcome converts a name from String back to an Outcome.
func ParseOutcome(s string) (Outcome, error) {
	for o := OutcomeConnected; o <= OutcomeVerifyFailed; o++ {
		if o.String() == s {
			return o, nil
		}
	}
	return 0, fmt.Errorf("unknown outcome %q", s)
}

// Attempt is one apply/verify cycle.
type Attempt struct {
	// Seq is assigned by the journal on Record.
	Seq uint64 `cbor:"1,keyasint"`

	SessionID  string    `cbor:"2,keyasint"`
	Number     int       `cbor:"3,keyasint"`
	Source     string    `cbor:"4,keyasint"`
	SSID       string    `cbor:"5,keyasint"`
	Outcome    Outcome   `cbor:"6,keyasint"`
	Error      string    `cbor:"7,keyasint,omitempty"`
	StartedAt  time.Time `cbor:"8,keyasint"`
	FinishedAt time.Time `cbor:"9,keyasint"`
}

// Duration returns how long the attempt took.
func (a Attempt) Duration() time.Duration {
	return a.FinishedAt.Sub(a.StartedAt)
}

// Journal stores attempts.
type Journal interface {
	// Record appends an attempt.
	Record(a Attempt) error

	// List returns up to limit attempts, newest first. limit <= 0 means all.
	List(limit int) ([]Attempt, error)

	// Close releases the backing store.
	Close() error
}

// Open opens a journal of the named backend at path.
func Open(backend, path string) (Journal, error) {
	switch backend {
	case "", BackendNone:
		return Nop{}, nil
	case BackendBolt:
		return OpenBolt(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}

// Nop discards attempts.
type Nop struct{}

// Record implements Journal.
func (Nop) Record(Attempt) error { return nil }

// List implements Journal.
func (Nop) List(int) ([]Attempt, error) { return nil, nil }

// Close implements Journal.
func (Nop) Close() error { return nil }
