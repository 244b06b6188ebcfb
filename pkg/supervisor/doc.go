// Package supervisor runs headless WiFi provisioning sessions.
//
// A session starts by hosting the setup access point and arming every
// credential intake. The first candidate to arrive disarms the intakes and is
// applied: the radio joins the network as a client and connectivity is
// verified. Success persists the credential and ends the session. Failure
// rolls the radio back to the access point and re-arms the intakes, until the
// attempt limit is reached.
//
// # States
//
//	HOSTING_AP -> AWAITING_CANDIDATE -> APPLYING_CLIENT -> VERIFYING -> CONNECTED
//	                                          |                |
//	                                          +--> ROLLING_BACK <+
//	ROLLING_BACK -> HOSTING_AP, or FAILED_TERMINAL once the limit is reached
//
// CONNECTED and FAILED_TERMINAL end the session. FAILED_TERMINAL leaves the
// access point up; a new session starts only when Run is called again.
//
// # Queueing
//
// Candidates that arrive while an attempt is in flight are queued. After a
// rollback the oldest queued candidate becomes the next attempt without
// re-arming the intakes; after CONNECTED the queue is discarded.
//
// # Status Lines
//
// Each finished session writes exactly one line to Config.StatusWriter,
// starting with WIFIPROV_STATUS=CONNECTED or WIFIPROV_STATUS=FAILED_TERMINAL,
// for scripts that wait on provisioning.
package supervisor
