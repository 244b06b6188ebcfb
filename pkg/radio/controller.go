package radio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Controller errors.
var (
	ErrValidation    = errors.New("invalid credentials")
	ErrApply         = errors.New("failed to apply radio configuration")
	ErrInterfaceBusy = errors.New("radio transition already in progress")
)

const (
	// DefaultOperationTimeout bounds a single transition.
	DefaultOperationTimeout = 20 * time.Second

	// restoreAttempts bounds the retries of a client stop and of the AP
	// start after a failed client start, before the AP is reported degraded.
	restoreAttempts = 3
)

// ControllerConfig configures a ModeController.
type ControllerConfig struct {
	// AccessPoint is the hotspot restored after a failed client start when
	// no EnterAPHost call has provided one yet.
	AccessPoint APConfig

	// OperationTimeout bounds each transition (default 20s).
	OperationTimeout time.Duration

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// ModeController switches the wireless interface between AP and STA roles.
//
// Only one transition runs at a time; a concurrent call fails with
// ErrInterfaceBusy instead of queuing behind the first.
type ModeController struct {
	svc     ServiceManager
	timeout time.Duration
	logger  *slog.Logger

	// transition is held for the whole of one transition.
	transition sync.Mutex

	mu         sync.RWMutex
	role       Role
	apConfig   APConfig
	apHealthy  bool
	clientSSID string

	// clientLive is set from a client start until a client stop succeeds.
	clientLive bool

	onRoleChange func(old, new Role)
}

// NewModeController creates a controller driving svc.
func NewModeController(svc ServiceManager, config ControllerConfig) *ModeController {
	if config.OperationTimeout <= 0 {
		config.OperationTimeout = DefaultOperationTimeout
	}
	if config.AccessPoint.SSID == "" {
		config.AccessPoint = DefaultAPConfig()
	}
	return &ModeController{
		svc:      svc,
		timeout:  config.OperationTimeout,
		logger:   config.Logger,
		role:     RoleUnset,
		apConfig: config.AccessPoint,
	}
}

// OnRoleChange sets a callback invoked after every role change.
func (c *ModeController) OnRoleChange(fn func(old, new Role)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRoleChange = fn
}

// CurrentRole returns the current role.
func (c *ModeController) CurrentRole() Role {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.role
}

// ClientSSID returns the network joined in STA role, or "".
func (c *ModeController) ClientSSID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientSSID
}

// EnterAPHost makes the interface host the setup access point.
// It is a no-op when the access point is already up.
func (c *ModeController) EnterAPHost(ctx context.Context, cfg APConfig) (Role, error) {
	if !c.transition.TryLock() {
		return c.CurrentRole(), ErrInterfaceBusy
	}
	defer c.transition.Unlock()

	c.mu.RLock()
	prev, healthy := c.role, c.apHealthy
	c.mu.RUnlock()

	if prev == RoleAP && healthy {
		return RoleAP, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.setRole(RoleTransitioning)
	c.debugLog("EnterAPHost: starting", "from", prev, "ssid", cfg.SSID)

	// A degraded AP may still have the client running from a failed restore.
	// The AP never starts while the client may still be running.
	if err := c.stopClient(opCtx); err != nil && c.isClientLive() {
		c.mu.Lock()
		c.apConfig = cfg
		c.apHealthy = false
		c.clientSSID = ""
		c.mu.Unlock()
		c.setRole(RoleAP)
		return RoleAP, fmt.Errorf("%w: stop client: %v", ErrApply, err)
	} else if err != nil {
		c.debugLog("EnterAPHost: stop client failed", "error", err)
	}

	var stopErr error
	if prev == RoleAP {
		stopErr = c.svc.StopAccessPoint(opCtx)
	}

	startErr := c.svc.StartAccessPoint(opCtx, cfg)

	c.mu.Lock()
	c.apConfig = cfg
	c.apHealthy = startErr == nil && stopErr == nil
	c.clientSSID = ""
	c.mu.Unlock()
	c.setRole(RoleAP)

	if startErr != nil {
		return RoleAP, fmt.Errorf("%w: start access point: %v", ErrApply, startErr)
	}
	if stopErr != nil {
		return RoleAP, fmt.Errorf("%w: stop previous role: %v", ErrApply, stopErr)
	}
	return RoleAP, nil
}

// EnterSTAClient joins the given network as a client.
//
// Invalid credentials fail with ErrValidation before any service is touched.
// If the client cannot be started the access point is restored and the
// returned role is AP.
func (c *ModeController) EnterSTAClient(ctx context.Context, ssid, passphrase string) (Role, error) {
	if err := ValidateCredentials(ssid, passphrase); err != nil {
		return c.CurrentRole(), err
	}

	if !c.transition.TryLock() {
		return c.CurrentRole(), ErrInterfaceBusy
	}
	defer c.transition.Unlock()

	c.mu.RLock()
	prev, current := c.role, c.clientSSID
	c.mu.RUnlock()

	if prev == RoleSTA && current == ssid {
		return RoleSTA, nil
	}

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.setRole(RoleTransitioning)
	c.debugLog("EnterSTAClient: starting", "from", prev, "ssid", ssid)

	if prev == RoleSTA {
		if err := c.stopClient(opCtx); err != nil {
			c.debugLog("EnterSTAClient: stop previous client failed", "error", err)
		}
	} else {
		if err := c.svc.StopAccessPoint(opCtx); err != nil {
			c.restoreAP(ctx)
			return RoleAP, fmt.Errorf("%w: stop access point: %v", ErrApply, err)
		}
	}

	c.mu.Lock()
	c.clientLive = true
	c.mu.Unlock()

	if err := c.svc.StartClient(opCtx, ssid, passphrase); err != nil {
		c.restoreAP(ctx)
		return RoleAP, fmt.Errorf("%w: start client: %v", ErrApply, err)
	}

	c.mu.Lock()
	c.clientSSID = ssid
	c.apHealthy = false
	c.mu.Unlock()
	c.setRole(RoleSTA)
	return RoleSTA, nil
}

// Teardown stops whichever role is active and leaves the controller unset.
// It waits for an in-flight transition to finish.
func (c *ModeController) Teardown(ctx context.Context) error {
	c.transition.Lock()
	defer c.transition.Unlock()

	c.mu.RLock()
	prev := c.role
	c.mu.RUnlock()

	opCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var err error
	switch prev {
	case RoleAP:
		err = c.svc.StopAccessPoint(opCtx)
		if c.isClientLive() {
			err = errors.Join(err, c.stopClient(opCtx))
		}
	case RoleSTA:
		err = c.stopClient(opCtx)
	}

	c.mu.Lock()
	c.apHealthy = false
	c.clientSSID = ""
	c.mu.Unlock()
	c.setRole(RoleUnset)
	return err
}

// restoreAP returns the radio to AP after a failed client start. It runs on
// its own deadline because the caller's may already have expired, and always
// leaves the role at AP.
func (c *ModeController) restoreAP(ctx context.Context) {
	c.mu.RLock()
	cfg := c.apConfig
	c.mu.RUnlock()

	base := context.WithoutCancel(ctx)

	stopCtx, cancel := context.WithTimeout(base, c.timeout)
	stopErr := c.stopClient(stopCtx)
	cancel()
	if stopErr != nil {
		c.debugLog("restoreAP: stop client failed", "error", stopErr)
	}

	var err error
	if c.isClientLive() {
		err = fmt.Errorf("client still running: %w", stopErr)
	} else {
		for attempt := 1; attempt <= restoreAttempts; attempt++ {
			startCtx, cancel := context.WithTimeout(base, c.timeout)
			err = c.svc.StartAccessPoint(startCtx, cfg)
			cancel()
			if err == nil {
				break
			}
			c.debugLog("restoreAP: start access point failed", "attempt", attempt, "error", err)
		}
	}

	if err != nil && c.logger != nil {
		c.logger.Error("access point could not be restored", "error", err)
	}

	c.mu.Lock()
	c.apHealthy = err == nil
	c.clientSSID = ""
	c.mu.Unlock()
	c.setRole(RoleAP)
}

// stopClient stops the client, retrying a bounded number of times.
func (c *ModeController) stopClient(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= restoreAttempts; attempt++ {
		if err = c.svc.StopClient(ctx); err == nil {
			c.mu.Lock()
			c.clientLive = false
			c.mu.Unlock()
			return nil
		}
		if ctx.Err() != nil {
			return err
		}
		c.debugLog("stop client failed", "attempt", attempt, "error", err)
	}
	return err
}

func (c *ModeController) isClientLive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.clientLive
}

func (c *ModeController) setRole(role Role) {
	c.mu.Lock()
	old := c.role
	c.role = role
	fn := c.onRoleChange
	c.mu.Unlock()

	if fn != nil && old != role {
		fn(old, role)
	}
}

func (c *ModeController) debugLog(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
