package intake

import (
	"context"
	"sync"
)

// ConsoleIntake accepts credentials typed at the device's operator shell.
type ConsoleIntake struct {
	mu  sync.Mutex
	win *window
}

// NewConsoleIntake creates a console intake.
func NewConsoleIntake() *ConsoleIntake {
	return &ConsoleIntake{}
}

// Source implements Intake.
func (c *ConsoleIntake) Source() Source { return SourceConsole }

// Start opens a window.
func (c *ConsoleIntake) Start(ctx context.Context) (<-chan Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.win != nil && c.win.State() == WindowOpen {
		return nil, ErrAlreadyStarted
	}
	c.win = newWindow()
	return c.win.results, nil
}

// Stop closes the window.
func (c *ConsoleIntake) Stop() error {
	c.mu.Lock()
	win := c.win
	c.mu.Unlock()

	if win != nil {
		win.shutdown()
	}
	return nil
}

// Armed reports whether a window is open.
func (c *ConsoleIntake) Armed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.win != nil && c.win.State() == WindowOpen
}

// Submit offers credentials. Invalid input returns a validation error and
// leaves the window open; ErrNotArmed means no window is open.
func (c *ConsoleIntake) Submit(ssid, passphrase string) error {
	cand, err := NewCandidate(ssid, passphrase, SourceConsole)
	if err != nil {
		return err
	}

	c.mu.Lock()
	win := c.win
	c.mu.Unlock()

	if win == nil || !win.deliver(cand) {
		return ErrNotArmed
	}
	return nil
}
