package intake

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// DefaultExtractTimeout bounds one extraction attempt.
const DefaultExtractTimeout = 15 * time.Second

// PairingEvent is an inbound Bluetooth pairing or connection.
type PairingEvent struct {
	// Address is the remote device address.
	Address string

	// Name is the remote device name, if known.
	Name string

	// At is when the event was observed.
	At time.Time
}

// PairingSource reports inbound pairings. The channel is closed when ctx
// is done or the source fails.
type PairingSource interface {
	Events(ctx context.Context) (<-chan PairingEvent, error)
}

// Extractor tries to obtain credentials from a paired device. It returns
// an error wrapping ErrNoCredentialsFound when the device offered nothing.
type Extractor interface {
	Extract(ctx context.Context, ev PairingEvent) (ssid, passphrase string, err error)
}

// ExtractorFunc adapts a function to the Extractor interface.
type ExtractorFunc func(ctx context.Context, ev PairingEvent) (string, string, error)

// Extract implements Extractor.
func (f ExtractorFunc) Extract(ctx context.Context, ev PairingEvent) (string, string, error) {
	return f(ctx, ev)
}

// BluetoothConfig configures a BluetoothIntake.
type BluetoothConfig struct {
	// ExtractTimeout bounds each extraction (default 15s).
	ExtractTimeout time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// BluetoothIntake pulls credentials from phones that pair with the device.
// Extraction is best effort: most pairings yield ErrNoCredentialsFound,
// which is reported on the stream while the window stays open.
type BluetoothIntake struct {
	source    PairingSource
	extractor Extractor
	timeout   time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	win    *window
	cancel context.CancelFunc
	done   chan struct{}
}

// NewBluetoothIntake creates a Bluetooth intake.
func NewBluetoothIntake(source PairingSource, extractor Extractor, config BluetoothConfig) *BluetoothIntake {
	if config.ExtractTimeout <= 0 {
		config.ExtractTimeout = DefaultExtractTimeout
	}
	return &BluetoothIntake{
		source:    source,
		extractor: extractor,
		timeout:   config.ExtractTimeout,
		logger:    config.Logger,
	}
}

// Source implements Intake.
func (b *BluetoothIntake) Source() Source { return SourceBluetooth }

// Start subscribes to pairing events and opens a window.
func (b *BluetoothIntake) Start(ctx context.Context) (<-chan Result, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.win != nil && b.win.State() == WindowOpen {
		return nil, ErrAlreadyStarted
	}

	ctx, cancel := context.WithCancel(ctx)
	events, err := b.source.Events(ctx)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("bluetooth intake: %w", err)
	}

	win := newWindow()
	done := make(chan struct{})
	b.win, b.cancel, b.done = win, cancel, done

	go b.run(ctx, win, events, done)
	return win.results, nil
}

// Stop closes the window and unsubscribes from pairing events.
func (b *BluetoothIntake) Stop() error {
	b.mu.Lock()
	win, cancel, done := b.win, b.cancel, b.done
	b.cancel, b.done = nil, nil
	b.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if win != nil {
		win.shutdown()
	}
	if done != nil {
		<-done
	}
	return nil
}

func (b *BluetoothIntake) run(ctx context.Context, win *window, events <-chan PairingEvent, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				b.debugLog("bluetooth intake: pairing source closed")
				return
			}
			if b.handle(ctx, win, ev) {
				return
			}
		}
	}
}

// handle runs the extractor for one event and reports whether a candidate
// was delivered.
func (b *BluetoothIntake) handle(ctx context.Context, win *window, ev PairingEvent) bool {
	b.debugLog("bluetooth intake: device paired", "address", ev.Address, "name", ev.Name)

	exCtx, cancel := context.WithTimeout(ctx, b.timeout)
	ssid, passphrase, err := b.extractor.Extract(exCtx, ev)
	cancel()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = fmt.Errorf("%w: %s: extraction timed out", ErrNoCredentialsFound, ev.Address)
		}
		b.debugLog("bluetooth intake: extraction failed", "address", ev.Address, "error", err)
		win.report(err)
		return false
	}

	c, err := NewCandidate(ssid, passphrase, SourceBluetooth)
	if err != nil {
		b.debugLog("bluetooth intake: invalid credentials", "address", ev.Address, "error", err)
		win.report(fmt.Errorf("%s: %w", ev.Address, err))
		return false
	}

	if win.deliver(c) {
		b.debugLog("bluetooth intake: accepted candidate", "address", ev.Address, "ssid", ssid)
		return true
	}
	return win.State() != WindowOpen
}

func (b *BluetoothIntake) debugLog(msg string, args ...any) {
	if b.logger != nil {
		b.logger.Debug(msg, args...)
	}
}
