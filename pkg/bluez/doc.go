// Package bluez connects the provisioning flow to the host Bluetooth stack
// through bluetoothctl.
//
// Controller makes the adapter visible under the setup alias while the
// device waits for credentials. Monitor turns bluetoothctl device events into
// pairing events. InboxExtractor reads a WiFi share code that the paired
// phone sent over Bluetooth file transfer.
package bluez
