package hostsvc

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/mash-protocol/wifiprov-go/pkg/radio"
)

// Default daemon configuration paths.
const (
	DefaultHostapdConf = "/etc/hostapd/hostapd.conf"
	DefaultDnsmasqConf = "/etc/dnsmasq.d/wifiprov.conf"
)

// ConfigWriter writes the daemon configuration for the access point role
// before the daemons are started.
type ConfigWriter interface {
	WriteAccessPoint(iface string, cfg radio.APConfig) error
}

// FileConfigWriter renders hostapd and dnsmasq configuration files.
type FileConfigWriter struct {
	HostapdPath string
	DnsmasqPath string
}

// NewFileConfigWriter creates a writer using the default paths.
func NewFileConfigWriter() *FileConfigWriter {
	return &FileConfigWriter{
		HostapdPath: DefaultHostapdConf,
		DnsmasqPath: DefaultDnsmasqConf,
	}
}

// WriteAccessPoint writes both files.
func (w *FileConfigWriter) WriteAccessPoint(iface string, cfg radio.APConfig) error {
	if err := writeFile(w.HostapdPath, HostapdConfig(iface, cfg), 0600); err != nil {
		return fmt.Errorf("write hostapd config: %w", err)
	}
	if err := writeFile(w.DnsmasqPath, DnsmasqConfig(iface, cfg), 0644); err != nil {
		return fmt.Errorf("write dnsmasq config: %w", err)
	}
	return nil
}

// HostapdConfig renders a hostapd.conf for cfg. An empty passphrase yields an
// open network.
func HostapdConfig(iface string, cfg radio.APConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", iface)
	b.WriteString("driver=nl80211\n")
	fmt.Fprintf(&b, "ssid=%s\n", cfg.SSID)
	b.WriteString("hw_mode=g\n")
	fmt.Fprintf(&b, "channel=%d\n", cfg.Channel)
	b.WriteString("wmm_enabled=0\n")
	b.WriteString("macaddr_acl=0\n")
	b.WriteString("auth_algs=1\n")
	b.WriteString("ignore_broadcast_ssid=0\n")
	if cfg.Passphrase != "" {
		b.WriteString("wpa=2\n")
		fmt.Fprintf(&b, "wpa_passphrase=%s\n", cfg.Passphrase)
		b.WriteString("wpa_key_mgmt=WPA-PSK\n")
		b.WriteString("rsn_pairwise=CCMP\n")
	}
	return b.String()
}

// DnsmasqConfig renders a dnsmasq drop-in serving DHCP on the AP subnet and
// answering every name with the gateway so phones land on the setup page.
func DnsmasqConfig(iface string, cfg radio.APConfig) string {
	var b strings.Builder
	fmt.Fprintf(&b, "interface=%s\n", iface)
	b.WriteString("bind-interfaces\n")
	fmt.Fprintf(&b, "dhcp-range=%s,%s,%s,24h\n", cfg.DHCPRangeStart, cfg.DHCPRangeEnd, prefixMask(cfg.PrefixLen))
	fmt.Fprintf(&b, "dhcp-option=option:router,%s\n", cfg.Gateway)
	dns := cfg.DNS
	if len(dns) == 0 {
		dns = []string{cfg.Gateway}
	}
	fmt.Fprintf(&b, "dhcp-option=option:dns-server,%s\n", strings.Join(dns, ","))
	fmt.Fprintf(&b, "address=/#/%s\n", cfg.Gateway)
	return b.String()
}

func prefixMask(bits int) string {
	var m uint32
	if bits > 0 {
		m = ^uint32(0) << (32 - bits)
	}
	return fmt.Sprintf("%d.%d.%d.%d", m>>24, (m>>16)&0xff, (m>>8)&0xff, m&0xff)
}

// writeFile writes data atomically through a temp file in the same directory.
func writeFile(path, data string, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".wifiprov-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.WriteString(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Chmod(perm); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
