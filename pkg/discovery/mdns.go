package discovery

import (
	"context"
	"fmt"
	"net"
	"sync"

	"github.com/enbility/zeroconf/v3"
)

// MDNSAdvertiser announces the portal over mDNS using zeroconf.
type MDNSAdvertiser struct {
	config AdvertiserConfig

	mu     sync.Mutex
	server *zeroconf.Server
}

// NewMDNSAdvertiser creates an mDNS advertiser.
func NewMDNSAdvertiser(config AdvertiserConfig) *MDNSAdvertiser {
	return &MDNSAdvertiser{config: config}
}

// Name implements Advertiser.
func (a *MDNSAdvertiser) Name() string { return "mdns" }

// getInterfaces returns the interfaces to advertise on, or nil for all.
func (a *MDNSAdvertiser) getInterfaces() ([]net.Interface, error) {
	if a.config.Interface == "" {
		return nil, nil
	}
	iface, err := net.InterfaceByName(a.config.Interface)
	if err != nil {
		return nil, fmt.Errorf("advertise interface %s: %w", a.config.Interface, err)
	}
	return []net.Interface{*iface}, nil
}

// Advertise implements Advertiser.
func (a *MDNSAdvertiser) Advertise(ctx context.Context, info *SetupInfo) error {
	if err := info.Validate(); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}

	port := info.Port
	if port == 0 {
		port = DefaultPortalPort
	}

	var opts []zeroconf.ServerOption
	if a.config.TTL > 0 {
		opts = append(opts, zeroconf.TTL(uint32(a.config.TTL.Seconds())))
	}

	ifaces, err := a.getInterfaces()
	if err != nil {
		return err
	}

	server, err := zeroconf.Register(
		info.Name,
		ServiceTypePortal,
		Domain,
		port,
		EncodeSetupTXT(info).Strings(),
		ifaces,
		opts...,
	)
	if err != nil {
		return fmt.Errorf("failed to register portal service: %w", err)
	}

	a.server = server
	return nil
}

// Stop implements Advertiser.
func (a *MDNSAdvertiser) Stop() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.server != nil {
		a.server.Shutdown()
		a.server = nil
	}
	return nil
}

var _ Advertiser = (*MDNSAdvertiser)(nil)
