// Package discovery makes the setup portal findable while the device hosts
// its access point.
//
// Phones joining the setup network normally land on the portal through the
// captive-portal redirect. Discovery adds two more ways in:
//
// # mDNS (_http._tcp)
//
// MDNSAdvertiser registers the portal as an HTTP service on the AP
// interface. Instance name is the hotspot name; TXT records:
//
//	path=/        page path on the gateway
//	ssid=<name>   the setup network
//	ver=1         TXT format version
//
// # Bluetooth
//
// The bluez package provides an Advertiser that makes the adapter
// discoverable under a recognizable alias, so phones can pair and hand over
// credentials.
//
// Manager starts and stops all advertisers together and tracks whether the
// device is currently advertising.
package discovery
