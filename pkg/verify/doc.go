// Package verify confirms that a client association actually reaches the
// target network.
//
// An interface that reports "connected" is not enough: the access point may
// have accepted the association and still refuse a DHCP lease, or the
// network may have no upstream. Verifier therefore requires both:
//
//   - an IPv4 lease on the client interface (LeaseChecker), and
//   - at least one passing reachability check (ReachCheck), such as a DNS query
//     through the leased resolvers or a TCP dial to a known host.
//
// Checks are retried with exponential backoff and jitter until the caller's
// timeout expires.
package verify
