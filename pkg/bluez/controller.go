package bluez

import (
	"context"
	"log/slog"
	"sync"

	"github.com/mash-protocol/wifiprov-go/pkg/discovery"
	"github.com/mash-protocol/wifiprov-go/pkg/hostsvc"
)

// DefaultAlias is the adapter name phones see.
const DefaultAlias = "PiWiFiSetup"

// ControllerConfig configures a Controller.
type ControllerConfig struct {
	// Alias is the adapter name (default DefaultAlias).
	Alias string

	// Runner executes bluetoothctl (default hostsvc.ExecRunner).
	Runner hostsvc.CommandRunner

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// Controller toggles the adapter's alias, discoverable and pairable modes.
// It implements discovery.Advertiser so it starts and stops together with
// the mDNS announcement.
type Controller struct {
	alias  string
	run    hostsvc.CommandRunner
	logger *slog.Logger

	mu     sync.Mutex
	active bool
}

// NewController creates a Controller.
func NewController(config ControllerConfig) *Controller {
	if config.Alias == "" {
		config.Alias = DefaultAlias
	}
	if config.Runner == nil {
		config.Runner = hostsvc.ExecRunner{}
	}
	return &Controller{
		alias:  config.Alias,
		run:    config.Runner,
		logger: config.Logger,
	}
}

// Name implements discovery.Advertiser.
func (c *Controller) Name() string { return "bluetooth" }

// Alias returns the configured adapter alias.
func (c *Controller) Alias() string { return c.alias }

// Advertise powers the adapter on, sets the alias and makes it discoverable
// and pairable until Stop. The adapter's discoverable timeout is cleared
// first; BlueZ hides the adapter after 180s otherwise. Pairable has no
// bluetoothctl timeout command and BlueZ defaults PairableTimeout to 0.
func (c *Controller) Advertise(ctx context.Context, _ *discovery.SetupInfo) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.run.Run(ctx, "bluetoothctl", "power", "on"); err != nil {
		return err
	}
	if _, err := c.run.Run(ctx, "bluetoothctl", "system-alias", c.alias); err != nil {
		return err
	}
	// Older bluetoothctl builds lack discoverable-timeout.
	if _, err := c.run.Run(ctx, "bluetoothctl", "discoverable-timeout", "0"); err != nil {
		c.warn("bluetooth: could not clear discoverable timeout", "error", err)
	}
	if _, err := c.run.Run(ctx, "bluetoothctl", "pairable", "on"); err != nil {
		return err
	}
	if _, err := c.run.Run(ctx, "bluetoothctl", "discoverable", "on"); err != nil {
		return err
	}
	c.active = true
	c.debugLog("bluetooth: adapter discoverable", "alias", c.alias)
	return nil
}

// Stop turns discoverable and pairable off. It is a no-op when not active.
func (c *Controller) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return nil
	}
	c.active = false

	ctx := context.Background()
	_, errDisc := c.run.Run(ctx, "bluetoothctl", "discoverable", "off")
	_, errPair := c.run.Run(ctx, "bluetoothctl", "pairable", "off")
	c.debugLog("bluetooth: adapter hidden")
	if errDisc != nil {
		return errDisc
	}
	return errPair
}

// Active reports whether the adapter is currently discoverable.
func (c *Controller) Active() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

func (c *Controller) warn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}

func (c *Controller) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}

var _ discovery.Advertiser = (*Controller)(nil)
