package discovery

import (
	"context"
	"errors"
	"testing"
)

func TestMDNSAdvertiserRejectsBadInput(t *testing.T) {
	a := NewMDNSAdvertiser(DefaultAdvertiserConfig())
	if a.Name() != "mdns" {
		t.Errorf("Name() = %q", a.Name())
	}

	if err := a.Advertise(context.Background(), &SetupInfo{}); !errors.Is(err, ErrMissingName) {
		t.Errorf("Advertise() with no name = %v, want ErrMissingName", err)
	}

	a = NewMDNSAdvertiser(AdvertiserConfig{Interface: "does-not-exist0"})
	if err := a.Advertise(context.Background(), &SetupInfo{Name: "PiWiFiSetup"}); err == nil {
		t.Error("Advertise() on a missing interface succeeded")
	}

	if err := a.Stop(); err != nil {
		t.Errorf("Stop() when idle = %v", err)
	}
}
