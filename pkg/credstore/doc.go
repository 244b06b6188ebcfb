// Package credstore persists the last WiFi credential that passed
// connectivity verification.
//
// The record is a small JSON file (default /etc/wifi_credentials.json) with
// mode 0600, replaced atomically on every write:
//
//	{
//	  "version": 1,
//	  "ssid": "HomeNet",
//	  "passphrase": "testpass123",
//	  "saved_at": "2026-10-19T08:12:44Z"
//	}
//
// With a Sealer configured the passphrase is stored encrypted under
// "passphrase_sealed" instead, keyed to the machine.
package credstore
