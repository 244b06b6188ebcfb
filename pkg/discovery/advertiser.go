package discovery

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"
)

// Service constants.
const (
	// ServiceTypePortal is the DNS-SD type of the setup page.
	ServiceTypePortal = "_http._tcp"

	// Domain is the mDNS domain.
	Domain = "local."

	// DefaultPortalPort is the HTTP port of the setup page.
	DefaultPortalPort = 80

	// TXTVersion is the TXT record format version.
	TXTVersion = 1
)

// TXT record keys.
const (
	TXTKeyPath    = "path"
	TXTKeySSID    = "ssid"
	TXTKeyVersion = "ver"
)

// Discovery errors.
var (
	ErrMissingName     = errors.New("setup info has no name")
	ErrNotAdvertising  = errors.New("not advertising")
	ErrNoAdvertiserRan = errors.New("no advertiser could start")
)

// SetupInfo describes what is advertised.
type SetupInfo struct {
	// Name is the instance name and Bluetooth alias, normally the hotspot SSID.
	Name string

	// Port is the portal HTTP port (default 80).
	Port int

	// Path is the portal page path (default "/").
	Path string
}

// Validate checks the setup info.
func (i *SetupInfo) Validate() error {
	if i.Name == "" {
		return ErrMissingName
	}
	if i.Port < 0 || i.Port > 65535 {
		return fmt.Errorf("invalid port %d", i.Port)
	}
	return nil
}

// TXTRecordMap is a map of TXT record key-value pairs.
type TXTRecordMap map[string]string

// EncodeSetupTXT creates the portal TXT records.
func EncodeSetupTXT(info *SetupInfo) TXTRecordMap {
	path := info.Path
	if path == "" {
		path = "/"
	}
	return TXTRecordMap{
		TXTKeyPath:    path,
		TXTKeySSID:    info.Name,
		TXTKeyVersion: strconv.Itoa(TXTVersion),
	}
}

// Strings returns the records as sorted "key=value" strings.
func (m TXTRecordMap) Strings() []string {
	keys := []string{TXTKeyPath, TXTKeySSID, TXTKeyVersion}
	out := make([]string, 0, len(m))
	for _, k := range keys {
		if v, ok := m[k]; ok {
			out = append(out, k+"="+v)
		}
	}
	return out
}

// Advertiser announces the setup portal on one channel.
type Advertiser interface {
	// Name identifies the advertiser in logs.
	Name() string

	// Advertise starts announcing info. Calling it again replaces the
	// previous announcement.
	Advertise(ctx context.Context, info *SetupInfo) error

	// Stop withdraws the announcement. It is a no-op when not advertising.
	Stop() error
}

// AdvertiserConfig configures the mDNS advertiser.
type AdvertiserConfig struct {
	// Interface restricts advertising to one interface (the AP interface).
	// Empty means all interfaces.
	Interface string

	// TTL is the DNS record TTL (default 120s).
	TTL time.Duration
}

// DefaultAdvertiserConfig returns the default advertiser configuration.
func DefaultAdvertiserConfig() AdvertiserConfig {
	return AdvertiserConfig{TTL: 120 * time.Second}
}

// State is the manager's advertising state.
type State uint8

const (
	// StateIdle means nothing is advertised.
	StateIdle State = iota

	// StateAdvertising means at least one advertiser is running.
	StateAdvertising
)

// String returns the state name.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateAdvertising:
		return "ADVERTISING"
	default:
		return "UNKNOWN"
	}
}

// Manager runs a set of advertisers together. Advertising is best effort:
// one failing advertiser does not stop the others.
type Manager struct {
	mu sync.Mutex

	state       State
	advertisers []Advertiser
	active      []Advertiser
	info        SetupInfo
	logger      *slog.Logger

	onStateChange func(old, new State)
}

// NewManager creates a manager for the given advertisers.
func NewManager(info SetupInfo, logger *slog.Logger, advertisers ...Advertiser) *Manager {
	return &Manager{
		state:       StateIdle,
		advertisers: advertisers,
		info:        info,
		logger:      logger,
	}
}

// State returns the current state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// OnStateChange sets a callback for state changes.
func (m *Manager) OnStateChange(fn func(old, new State)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onStateChange = fn
}

// Start runs every advertiser. It returns ErrNoAdvertiserRan joined with
// the individual errors when none started; partial failures are logged.
// Starting while advertising is a no-op.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateAdvertising || len(m.advertisers) == 0 {
		return nil
	}
	if err := m.info.Validate(); err != nil {
		return err
	}

	var errs []error
	m.active = m.active[:0]
	for _, a := range m.advertisers {
		if err := a.Advertise(ctx, &m.info); err != nil {
			m.warn("advertiser failed to start", "advertiser", a.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
			continue
		}
		m.active = append(m.active, a)
	}

	if len(m.active) == 0 {
		return errors.Join(append([]error{ErrNoAdvertiserRan}, errs...)...)
	}
	m.setState(StateAdvertising)
	return nil
}

// Stop withdraws every running advertisement.
func (m *Manager) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAdvertising {
		return nil
	}

	var errs []error
	for _, a := range m.active {
		if err := a.Stop(); err != nil {
			m.warn("advertiser failed to stop", "advertiser", a.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", a.Name(), err))
		}
	}
	m.active = m.active[:0]
	m.setState(StateIdle)
	return errors.Join(errs...)
}

// setState must be called with m.mu held.
func (m *Manager) setState(s State) {
	old := m.state
	m.state = s
	if m.onStateChange != nil && old != s {
		m.onStateChange(old, s)
	}
}

func (m *Manager) warn(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Warn(msg, args...)
	}
}
