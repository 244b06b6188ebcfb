// Package radio owns the role of the device's single wireless interface.
//
// The radio is either hosting its own access point (AP) so a phone can reach
// the setup page, or it is a client (STA) of the network the user chose. The
// hardware cannot do both, so every transition fully stops one role's
// services before starting the other's.
//
// # Roles
//
//   - AP: hostapd plus DHCP/DNS are running, the gateway address is assigned
//   - STA: the supplicant is associated and a DHCP client is running
//   - TRANSITIONING: a ModeController call is in progress
//
// TRANSITIONING is never observable as connected and never outlives the
// controller's operation timeout. Any failed client start restores the AP
// role, which keeps the device reachable.
//
// # Service Management
//
// The controller does not start daemons itself. It drives a ServiceManager,
// which the hostsvc package implements on top of systemd and wpa_cli and the
// radiotest package implements in memory.
package radio
