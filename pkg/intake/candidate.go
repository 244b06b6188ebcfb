package intake

import (
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

// Source identifies the channel a candidate came from.
type Source uint8

const (
	// SourceWeb is the captive web form.
	SourceWeb Source = iota

	// SourceBluetooth is a paired phone.
	SourceBluetooth

	// SourceConsole is the operator shell.
	SourceConsole
)

// String returns the source name.
func (s Source) String() string {
	switch s {
	case SourceWeb:
		return "web"
	case SourceBluetooth:
		return "bluetooth"
	case SourceConsole:
		return "console"
	default:
		return "unknown"
	}
}

// Candidate is a credential pair offered by an intake. It is immutable.
type Candidate struct {
	ssid       string
	passphrase string
	source     Source
	receivedAt time.Time
}

// NewCandidate validates ssid and passphrase and returns a candidate stamped
// with the current time.
func NewCandidate(ssid, passphrase string, source Source) (Candidate, error) {
	if err := radio.ValidateCredentials(ssid, passphrase); err != nil {
		return Candidate{}, err
	}
	return Candidate{
		ssid:       ssid,
		passphrase: passphrase,
		source:     source,
		receivedAt: time.Now(),
	}, nil
}

// SSID returns the network name.
func (c Candidate) SSID() string { return c.ssid }

// Passphrase returns the WPA2 passphrase.
func (c Candidate) Passphrase() string { return c.passphrase }

// Source returns the channel the candidate came from.
func (c Candidate) Source() Source { return c.source }

// ReceivedAt returns when the candidate was accepted.
func (c Candidate) ReceivedAt() time.Time { return c.receivedAt }

// IsZero reports whether c is the zero Candidate.
func (c Candidate) IsZero() bool { return c.ssid == "" }

// String describes the candidate without its passphrase.
func (c Candidate) String() string {
	return c.source.String() + ":" + c.ssid
}

// Result is one item on an intake stream: either a Candidate or an error.
type Result struct {
	Candidate Candidate
	Err       error
}
