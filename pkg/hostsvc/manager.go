package hostsvc

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

// Default unit and interface names.
const (
	DefaultInterface      = "wlan0"
	DefaultHostapdUnit    = "hostapd"
	DefaultDnsmasqUnit    = "dnsmasq"
	DefaultSupplicantUnit = "wpa_supplicant"
	DefaultDHCPClientUnit = "dhcpcd"
)

// ErrSupplicant is returned when wpa_cli rejects a command.
var ErrSupplicant = errors.New("wpa_supplicant rejected command")

// Config configures a SystemdManager.
type Config struct {
	// Interface is the wireless interface (default "wlan0").
	Interface string

	// Unit names (defaults: hostapd, dnsmasq, wpa_supplicant, dhcpcd).
	HostapdUnit    string
	DnsmasqUnit    string
	SupplicantUnit string
	DHCPClientUnit string

	// Runner executes commands (default ExecRunner).
	Runner CommandRunner

	// ConfigWriter, when set, writes daemon configuration before the AP starts.
	ConfigWriter ConfigWriter

	// Logger is the optional logger for debug output.
	Logger *slog.Logger
}

// SystemdManager implements radio.ServiceManager with ip, systemctl and
// wpa_cli.
type SystemdManager struct {
	config Config
	run    CommandRunner
	logger *slog.Logger
}

// NewSystemdManager creates a manager, filling unset fields with defaults.
func NewSystemdManager(config Config) *SystemdManager {
	if config.Interface == "" {
		config.Interface = DefaultInterface
	}
	if config.HostapdUnit == "" {
		config.HostapdUnit = DefaultHostapdUnit
	}
	if config.DnsmasqUnit == "" {
		config.DnsmasqUnit = DefaultDnsmasqUnit
	}
	if config.SupplicantUnit == "" {
		config.SupplicantUnit = DefaultSupplicantUnit
	}
	if config.DHCPClientUnit == "" {
		config.DHCPClientUnit = DefaultDHCPClientUnit
	}
	if config.Runner == nil {
		config.Runner = ExecRunner{}
	}
	return &SystemdManager{
		config: config,
		run:    config.Runner,
		logger: config.Logger,
	}
}

// StartAccessPoint assigns the gateway address and starts hostapd and dnsmasq.
func (m *SystemdManager) StartAccessPoint(ctx context.Context, cfg radio.APConfig) error {
	if m.config.ConfigWriter != nil {
		if err := m.config.ConfigWriter.WriteAccessPoint(m.config.Interface, cfg); err != nil {
			return err
		}
	}

	iface := m.config.Interface
	addr := cfg.Gateway + "/" + strconv.Itoa(cfg.PrefixLen)
	steps := [][]string{
		{"ip", "addr", "flush", "dev", iface},
		{"ip", "addr", "add", addr, "dev", iface},
		{"ip", "link", "set", iface, "up"},
		{"systemctl", "start", m.config.HostapdUnit},
		{"systemctl", "start", m.config.DnsmasqUnit},
	}
	for _, s := range steps {
		if _, err := m.run.Run(ctx, s[0], s[1:]...); err != nil {
			return err
		}
	}
	m.debugLog("access point started", "interface", iface, "ssid", cfg.SSID, "address", addr)
	return nil
}

// StopAccessPoint stops dnsmasq and hostapd and flushes the gateway address.
// Every step runs even when an earlier one fails.
func (m *SystemdManager) StopAccessPoint(ctx context.Context) error {
	var errs []error
	for _, unit := range []string{m.config.DnsmasqUnit, m.config.HostapdUnit} {
		if _, err := m.run.Run(ctx, "systemctl", "stop", unit); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := m.run.Run(ctx, "ip", "addr", "flush", "dev", m.config.Interface); err != nil {
		errs = append(errs, err)
	}
	m.debugLog("access point stopped", "interface", m.config.Interface, "errors", len(errs))
	return errors.Join(errs...)
}

// StartClient starts the supplicant, replaces its networks with ssid and
// restarts the DHCP client. The passphrase is converted to a PSK so it never
// appears on a command line.
func (m *SystemdManager) StartClient(ctx context.Context, ssid, passphrase string) error {
	iface := m.config.Interface
	if _, err := m.run.Run(ctx, "ip", "link", "set", iface, "up"); err != nil {
		return err
	}
	if _, err := m.run.Run(ctx, "systemctl", "start", m.config.SupplicantUnit); err != nil {
		return err
	}

	if _, err := m.wpaCLI(ctx, "remove_network", "all"); err != nil {
		return err
	}
	out, err := m.wpaCLI(ctx, "add_network")
	if err != nil {
		return err
	}
	id, err := networkID(out)
	if err != nil {
		return err
	}

	cmds := [][]string{
		{"set_network", id, "ssid", hex.EncodeToString([]byte(ssid))},
		{"set_network", id, "psk", PSK(ssid, passphrase)},
		{"enable_network", id},
		{"select_network", id},
	}
	for _, c := range cmds {
		if _, err := m.wpaCLI(ctx, c...); err != nil {
			return err
		}
	}

	if _, err := m.run.Run(ctx, "systemctl", "restart", m.config.DHCPClientUnit); err != nil {
		return err
	}
	m.debugLog("client started", "interface", iface, "ssid", ssid, "network", id)
	return nil
}

// StopClient disconnects, stops the DHCP client and the supplicant, and
// flushes the interface. Every step runs even when an earlier one fails.
func (m *SystemdManager) StopClient(ctx context.Context) error {
	var errs []error
	// The supplicant may not be running yet; a failed disconnect is expected then.
	if _, err := m.wpaCLI(ctx, "disconnect"); err != nil {
		m.debugLog("wpa_cli disconnect failed", "error", err)
	}
	for _, unit := range []string{m.config.DHCPClientUnit, m.config.SupplicantUnit} {
		if _, err := m.run.Run(ctx, "systemctl", "stop", unit); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := m.run.Run(ctx, "ip", "addr", "flush", "dev", m.config.Interface); err != nil {
		errs = append(errs, err)
	}
	m.debugLog("client stopped", "interface", m.config.Interface, "errors", len(errs))
	return errors.Join(errs...)
}

// wpaCLI runs a wpa_cli command on the interface. wpa_cli exits zero even
// when the supplicant answers FAIL, so the reply is checked too.
func (m *SystemdManager) wpaCLI(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-i", m.config.Interface}, args...)
	out, err := m.run.Run(ctx, "wpa_cli", full...)
	if err != nil {
		return "", err
	}
	reply := lastLine(string(out))
	if strings.HasPrefix(reply, "FAIL") {
		return reply, fmt.Errorf("%w: %s", ErrSupplicant, args[0])
	}
	return reply, nil
}

// PSK derives the WPA pre-shared key for ssid and passphrase as 64 hex digits.
func PSK(ssid, passphrase string) string {
	return hex.EncodeToString(pbkdf2.Key([]byte(passphrase), []byte(ssid), 4096, 32, sha1.New))
}

func networkID(reply string) (string, error) {
	if _, err := strconv.Atoi(reply); err != nil {
		return "", fmt.Errorf("%w: add_network returned %q", ErrSupplicant, reply)
	}
	return reply, nil
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	return strings.TrimSpace(lines[len(lines)-1])
}

func (m *SystemdManager) debugLog(msg string, args ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, args...)
	}
}

var _ radio.ServiceManager = (*SystemdManager)(nil)
