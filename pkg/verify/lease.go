package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
)

// Lease errors.
var (
	// ErrInterfaceMissing means the client interface does not exist.
	// Retrying cannot fix it.
	ErrInterfaceMissing = errors.New("client interface not found")

	// ErrNoLease means the interface exists but has no usable IPv4 address yet.
	ErrNoLease = errors.New("no IPv4 lease on client interface")
)

// LeaseChecker reports the IPv4 address leased on the client interface.
type LeaseChecker interface {
	Lease(ctx context.Context) (netip.Addr, error)
}

// InterfaceLeaseChecker reads the addresses of a network interface.
type InterfaceLeaseChecker struct {
	// Interface is the client interface name, e.g. "wlan0".
	Interface string

	// gateway is the hotspot gateway address, which is never a client lease.
	gateway netip.Addr

	// addrs is replaceable in tests.
	addrs func(name string) ([]net.Addr, error)
}

// NewInterfaceLeaseChecker creates a checker for iface. The hotspot gateway
// address is ignored, since it can linger on the interface until the client
// lease replaces it. Other addresses in the hotspot subnet count, so a home
// network sharing that subnet still verifies. A zero gateway disables the
// exclusion.
func NewInterfaceLeaseChecker(iface string, apGateway netip.Addr) *InterfaceLeaseChecker {
	return &InterfaceLeaseChecker{
		Interface: iface,
		gateway:   apGateway,
		addrs:     interfaceAddrs,
	}
}

// Lease returns the first global unicast IPv4 address on the interface.
func (c *InterfaceLeaseChecker) Lease(ctx context.Context) (netip.Addr, error) {
	if err := ctx.Err(); err != nil {
		return netip.Addr{}, err
	}

	addrs, err := c.addrs(c.Interface)
	if err != nil {
		return netip.Addr{}, err
	}

	for _, a := range addrs {
		ipnet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip, ok := netip.AddrFromSlice(ipnet.IP)
		if !ok {
			continue
		}
		ip = ip.Unmap()
		if !ip.Is4() || !ip.IsGlobalUnicast() || ip.IsLinkLocalUnicast() {
			continue
		}
		if c.gateway.IsValid() && ip == c.gateway {
			continue
		}
		return ip, nil
	}
	return netip.Addr{}, fmt.Errorf("%w: %s", ErrNoLease, c.Interface)
}

func interfaceAddrs(name string) ([]net.Addr, error) {
	iface, err := net.InterfaceByName(name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInterfaceMissing, name, err)
	}
	return iface.Addrs()
}
