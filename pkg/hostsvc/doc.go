// Package hostsvc starts and stops the host daemons behind each radio role.
//
// SystemdManager implements radio.ServiceManager on a systemd host: hostapd
// and dnsmasq serve the access point, wpa_supplicant and a DHCP client serve
// the client role. Commands go through a CommandRunner so tests can script
// the host.
package hostsvc
