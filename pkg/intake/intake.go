package intake

import (
	"context"
	"errors"
)

// Intake errors.
var (
	// ErrNoCredentialsFound means a channel was used but yielded nothing
	// usable. The window stays open.
	ErrNoCredentialsFound = errors.New("no credentials found")

	// ErrAlreadyStarted is returned by Start while a window is open.
	ErrAlreadyStarted = errors.New("intake already started")

	// ErrNotArmed is returned when input arrives with no open window.
	ErrNotArmed = errors.New("intake not accepting credentials")
)

// Intake is a channel that produces candidate credentials.
type Intake interface {
	// Source identifies the channel.
	Source() Source

	// Start opens an activation window. The returned stream carries at most
	// one Candidate and is closed after it or when Stop is called.
	Start(ctx context.Context) (<-chan Result, error)

	// Stop closes the current window. It is safe to call when none is open.
	Stop() error
}
