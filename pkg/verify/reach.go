package verify

import (
	"context"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/miekg/dns"
)

// Check defaults.
const (
	// DefaultCheckHost is resolved by the DNS check.
	DefaultCheckHost = "connectivitycheck.gstatic.com"

	// DefaultResolvConf is read for resolvers when none are configured.
	DefaultResolvConf = "/etc/resolv.conf"
)

// ErrUnreachable is returned when a reachability check fails.
var ErrUnreachable = errors.New("network unreachable")

// ReachCheck checks that the joined network reaches beyond the access point.
type ReachCheck interface {
	// Name identifies the check in logs.
	Name() string

	// Check returns nil if the target was reached.
	Check(ctx context.Context) error
}

// ReachCheckFunc adapts a function to the ReachCheck interface.
type ReachCheckFunc func(ctx context.Context) error

// Name implements ReachCheck.
func (f ReachCheckFunc) Name() string { return "func" }

// Check implements ReachCheck.
func (f ReachCheckFunc) Check(ctx context.Context) error { return f(ctx) }

// DNSCheck resolves a well-known host through the network's resolvers.
type DNSCheck struct {
	// Host is the name to resolve (default DefaultCheckHost).
	Host string

	// Resolvers are "host:port" addresses. When empty they are read from
	// ResolvConf on every check, because DHCP rewrites it after the lease.
	Resolvers []string

	// ResolvConf is the resolver file (default DefaultResolvConf).
	ResolvConf string

	client *dns.Client
}

// NewDNSCheck creates a DNS check for host using resolvers.
func NewDNSCheck(host string, resolvers []string) *DNSCheck {
	if host == "" {
		host = DefaultCheckHost
	}
	return &DNSCheck{
		Host:       host,
		Resolvers:  normalizeResolvers(resolvers),
		ResolvConf: DefaultResolvConf,
		client:     &dns.Client{Net: "udp", Timeout: 2 * time.Second},
	}
}

// Name implements ReachCheck.
func (p *DNSCheck) Name() string { return "dns" }

// Check sends an A query to each resolver until one answers.
func (p *DNSCheck) Check(ctx context.Context) error {
	resolvers, err := p.resolvers()
	if err != nil {
		return err
	}

	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(p.Host), dns.TypeA)
	m.RecursionDesired = true

	var lastErr error
	for _, addr := range resolvers {
		r, _, err := p.client.ExchangeContext(ctx, m, addr)
		if err != nil {
			lastErr = fmt.Errorf("%s: %w", addr, err)
			continue
		}
		if r.Rcode != dns.RcodeSuccess {
			lastErr = fmt.Errorf("%s: %s", addr, dns.RcodeToString[r.Rcode])
			continue
		}
		for _, rr := range r.Answer {
			if _, ok := rr.(*dns.A); ok {
				return nil
			}
		}
		lastErr = fmt.Errorf("%s: no A record for %s", addr, p.Host)
	}
	return fmt.Errorf("%w: dns: %v", ErrUnreachable, lastErr)
}

func (p *DNSCheck) resolvers() ([]string, error) {
	if len(p.Resolvers) > 0 {
		return p.Resolvers, nil
	}
	path := p.ResolvConf
	if path == "" {
		path = DefaultResolvConf
	}
	cc, err := dns.ClientConfigFromFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: dns: %v", ErrUnreachable, err)
	}
	if len(cc.Servers) == 0 {
		return nil, fmt.Errorf("%w: dns: no resolvers in %s", ErrUnreachable, path)
	}
	out := make([]string, 0, len(cc.Servers))
	for _, s := range cc.Servers {
		out = append(out, net.JoinHostPort(s, cc.Port))
	}
	return out, nil
}

func normalizeResolvers(in []string) []string {
	out := make([]string, 0, len(in))
	for _, r := range in {
		if _, _, err := net.SplitHostPort(r); err != nil {
			r = net.JoinHostPort(r, "53")
		}
		out = append(out, r)
	}
	return out
}

// TCPCheck dials a known host and port.
type TCPCheck struct {
	// Targets are "host:port" addresses; any successful dial passes.
	Targets []string

	dialer net.Dialer
}

// NewTCPCheck creates a TCP check for targets.
func NewTCPCheck(targets ...string) *TCPCheck {
	return &TCPCheck{
		Targets: targets,
		dialer:  net.Dialer{Timeout: 3 * time.Second},
	}
}

// Name implements ReachCheck.
func (p *TCPCheck) Name() string { return "tcp" }

// Check dials each target until one connects.
func (p *TCPCheck) Check(ctx context.Context) error {
	if len(p.Targets) == 0 {
		return fmt.Errorf("%w: tcp: no targets", ErrUnreachable)
	}
	var lastErr error
	for _, target := range p.Targets {
		conn, err := p.dialer.DialContext(ctx, "tcp", target)
		if err != nil {
			lastErr = err
			continue
		}
		conn.Close()
		return nil
	}
	return fmt.Errorf("%w: tcp: %v", ErrUnreachable, lastErr)
}
