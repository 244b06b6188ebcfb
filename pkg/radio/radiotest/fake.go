// Package radiotest provides an in-memory radio.ServiceManager for tests.
package radiotest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

// ErrBothRolesActive is returned when a role is started while the other is up.
var ErrBothRolesActive = errors.New("access point and client running at the same time")

// FakeServiceManager records service calls and keeps the running state of
// both roles in memory. Hooks let a test fail or delay individual calls.
type FakeServiceManager struct {
	mu sync.Mutex

	apUp       bool
	clientUp   bool
	clientSSID string
	apConfig   radio.APConfig

	calls      []string
	violations int

	// StartClientHook, when set, decides the result of StartClient.
	StartClientHook func(ctx context.Context, ssid, passphrase string) error

	// StartAccessPointHook, when set, decides the result of StartAccessPoint.
	StartAccessPointHook func(ctx context.Context, cfg radio.APConfig) error

	// StopClientHook, when set, decides the result of StopClient. The client
	// keeps running when it fails.
	StopClientHook func(ctx context.Context) error

	// Delay is applied to every call; the call returns ctx.Err() if the
	// context ends first.
	Delay time.Duration
}

// New creates a FakeServiceManager with nothing running.
func New() *FakeServiceManager {
	return &FakeServiceManager{}
}

// StartAccessPoint marks the access point as running.
func (f *FakeServiceManager) StartAccessPoint(ctx context.Context, cfg radio.APConfig) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.record(fmt.Sprintf("StartAccessPoint(%s)", cfg.SSID))

	f.mu.Lock()
	hook := f.StartAccessPointHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, cfg); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.clientUp {
		f.violations++
		return ErrBothRolesActive
	}
	f.apUp = true
	f.apConfig = cfg
	return nil
}

// StopAccessPoint marks the access point as stopped.
func (f *FakeServiceManager) StopAccessPoint(ctx context.Context) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.record("StopAccessPoint")

	f.mu.Lock()
	defer f.mu.Unlock()
	f.apUp = false
	return nil
}

// StartClient marks the client as associated with ssid.
func (f *FakeServiceManager) StartClient(ctx context.Context, ssid, passphrase string) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.record(fmt.Sprintf("StartClient(%s)", ssid))

	f.mu.Lock()
	hook := f.StartClientHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx, ssid, passphrase); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.apUp {
		f.violations++
		return ErrBothRolesActive
	}
	f.clientUp = true
	f.clientSSID = ssid
	return nil
}

// StopClient marks the client as stopped.
func (f *FakeServiceManager) StopClient(ctx context.Context) error {
	if err := f.wait(ctx); err != nil {
		return err
	}
	f.record("StopClient")

	f.mu.Lock()
	hook := f.StopClientHook
	f.mu.Unlock()
	if hook != nil {
		if err := hook(ctx); err != nil {
			return err
		}
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.clientUp = false
	f.clientSSID = ""
	return nil
}

// SetStartClientHook replaces StartClientHook while calls may be in flight.
func (f *FakeServiceManager) SetStartClientHook(fn func(ctx context.Context, ssid, passphrase string) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StartClientHook = fn
}

// SetStopClientHook replaces StopClientHook while calls may be in flight.
func (f *FakeServiceManager) SetStopClientHook(fn func(ctx context.Context) error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.StopClientHook = fn
}

// APRunning reports whether the access point is up.
func (f *FakeServiceManager) APRunning() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.apUp
}

// ClientRunning reports whether the client is up and the network it joined.
func (f *FakeServiceManager) ClientRunning() (bool, string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.clientUp, f.clientSSID
}

// Calls returns the recorded calls in order.
func (f *FakeServiceManager) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.calls))
	copy(out, f.calls)
	return out
}

// CountCalls returns how many recorded calls equal name.
func (f *FakeServiceManager) CountCalls(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, c := range f.calls {
		if c == name {
			n++
		}
	}
	return n
}

// ResetCalls clears the call log.
func (f *FakeServiceManager) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = nil
}

// Violations returns how many times a role was started while the other ran.
func (f *FakeServiceManager) Violations() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.violations
}

func (f *FakeServiceManager) record(call string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, call)
}

func (f *FakeServiceManager) wait(ctx context.Context) error {
	f.mu.Lock()
	d := f.Delay
	f.mu.Unlock()
	if d <= 0 {
		return ctx.Err()
	}
	select {
	case <-time.After(d):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

var _ radio.ServiceManager = (*FakeServiceManager)(nil)
