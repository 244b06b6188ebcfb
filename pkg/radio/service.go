package radio

import (
	"context"
	"fmt"
	"net/netip"
)

// Default access point settings.
const (
	DefaultHotspotSSID    = "PiWiFiSetup"
	DefaultChannel        = 6
	DefaultGateway        = "192.168.4.1"
	DefaultDHCPRangeStart = "192.168.4.2"
	DefaultDHCPRangeEnd   = "192.168.4.20"
	DefaultPrefixLen      = 24
)

// APConfig describes the setup access point.
type APConfig struct {
	// SSID is the hotspot name phones see.
	SSID string

	// Passphrase secures the hotspot. Empty means an open network.
	Passphrase string

	// Channel is the 2.4 GHz channel (1-13).
	Channel int

	// Gateway is the address the device takes on the AP subnet.
	Gateway string

	// PrefixLen is the AP subnet prefix length.
	PrefixLen int

	// DHCPRangeStart and DHCPRangeEnd bound the leases handed to phones.
	DHCPRangeStart string
	DHCPRangeEnd   string

	// DNS lists resolvers handed out with leases. Empty means the gateway.
	DNS []string
}

// DefaultAPConfig returns the default hotspot configuration.
func DefaultAPConfig() APConfig {
	return APConfig{
		SSID:           DefaultHotspotSSID,
		Channel:        DefaultChannel,
		Gateway:        DefaultGateway,
		PrefixLen:      DefaultPrefixLen,
		DHCPRangeStart: DefaultDHCPRangeStart,
		DHCPRangeEnd:   DefaultDHCPRangeEnd,
	}
}

// Validate checks the access point configuration.
func (c APConfig) Validate() error {
	if c.SSID == "" || len(c.SSID) > MaxSSIDBytes {
		return fmt.Errorf("hotspot ssid must be 1-%d bytes", MaxSSIDBytes)
	}
	if c.Passphrase != "" && (len(c.Passphrase) < MinPassphraseLen || len(c.Passphrase) > MaxPassphraseLen) {
		return fmt.Errorf("hotspot passphrase must be empty or %d-%d characters", MinPassphraseLen, MaxPassphraseLen)
	}
	if c.Channel < 1 || c.Channel > 13 {
		return fmt.Errorf("hotspot channel must be 1-13, got %d", c.Channel)
	}
	if c.PrefixLen < 8 || c.PrefixLen > 30 {
		return fmt.Errorf("hotspot prefix length must be 8-30, got %d", c.PrefixLen)
	}

	gw, err := netip.ParseAddr(c.Gateway)
	if err != nil || !gw.Is4() {
		return fmt.Errorf("hotspot gateway %q is not an IPv4 address", c.Gateway)
	}
	subnet := netip.PrefixFrom(gw, c.PrefixLen).Masked()

	start, err := netip.ParseAddr(c.DHCPRangeStart)
	if err != nil {
		return fmt.Errorf("dhcp range start %q: %w", c.DHCPRangeStart, err)
	}
	end, err := netip.ParseAddr(c.DHCPRangeEnd)
	if err != nil {
		return fmt.Errorf("dhcp range end %q: %w", c.DHCPRangeEnd, err)
	}
	if !subnet.Contains(start) || !subnet.Contains(end) {
		return fmt.Errorf("dhcp range %s-%s is outside %s", start, end, subnet)
	}
	if end.Less(start) {
		return fmt.Errorf("dhcp range end %s is before start %s", end, start)
	}
	if !gw.Less(start) && !end.Less(gw) {
		return fmt.Errorf("dhcp range %s-%s contains the gateway %s", start, end, gw)
	}

	for _, d := range c.DNS {
		if _, err := netip.ParseAddr(d); err != nil {
			return fmt.Errorf("dns resolver %q: %w", d, err)
		}
	}
	return nil
}

// ServiceManager starts and stops the OS services behind each role.
// Every method must return once ctx is done.
type ServiceManager interface {
	// StartAccessPoint brings up the access point daemon and DHCP/DNS.
	StartAccessPoint(ctx context.Context, cfg APConfig) error

	// StopAccessPoint stops the access point daemon and DHCP/DNS.
	StopAccessPoint(ctx context.Context) error

	// StartClient associates with the given network and requests a lease.
	StartClient(ctx context.Context, ssid, passphrase string) error

	// StopClient disassociates and stops the supplicant.
	StopClient(ctx context.Context) error
}
