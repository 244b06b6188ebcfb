package intake

import (
	"context"
	"errors"
	"testing"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

func TestConsoleIntake(t *testing.T) {
	c := NewConsoleIntake()

	if err := c.Submit("HomeNet", "testpass123"); !errors.Is(err, ErrNotArmed) {
		t.Fatalf("Submit() before Start = %v, want ErrNotArmed", err)
	}

	results, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if _, err := c.Start(context.Background()); !errors.Is(err, ErrAlreadyStarted) {
		t.Errorf("second Start() = %v, want ErrAlreadyStarted", err)
	}

	if err := c.Submit("HomeNet", "short"); !radio.IsValidationError(err) {
		t.Errorf("Submit() with short passphrase = %v, want validation error", err)
	}
	if !c.Armed() {
		t.Fatal("invalid submission disarmed the intake")
	}

	if err := c.Submit("HomeNet", "testpass123"); err != nil {
		t.Fatalf("Submit() error = %v", err)
	}
	if c.Armed() {
		t.Error("intake still armed after a candidate")
	}

	r := <-results
	if r.Err != nil || r.Candidate.SSID() != "HomeNet" || r.Candidate.Source() != SourceConsole {
		t.Errorf("result = %+v", r)
	}
	if _, ok := <-results; ok {
		t.Error("stream not closed")
	}

	// A new window can be opened after the previous one delivered.
	if _, err := c.Start(context.Background()); err != nil {
		t.Fatalf("restart Start() error = %v", err)
	}
	if err := c.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := c.Submit("HomeNet", "testpass123"); !errors.Is(err, ErrNotArmed) {
		t.Errorf("Submit() after Stop = %v, want ErrNotArmed", err)
	}
}

func TestCandidateString(t *testing.T) {
	c, err := NewCandidate("HomeNet", "testpass123", SourceWeb)
	if err != nil {
		t.Fatal(err)
	}
	if got := c.String(); got != "web:HomeNet" {
		t.Errorf("String() = %q, want %q", got, "web:HomeNet")
	}
	if c.ReceivedAt().IsZero() {
		t.Error("ReceivedAt() is zero")
	}
	if !(Candidate{}).IsZero() {
		t.Error("zero Candidate IsZero() = false")
	}
}
