// Package log captures provisioning events in a machine-readable trace.
//
// It is separate from operational logging (slog): where slog lines are for
// people watching the console, the event trace records every state change,
// candidate, attempt outcome and status line of a provisioning session so a
// failed setup can be reconstructed afterwards.
//
// # Basic Usage
//
//	// Console during development
//	cfg.EventLogger = log.NewSlogAdapter(slog.Default())
//
//	// Binary trace on the device
//	cfg.EventLogger, _ = log.NewFileLogger("/var/log/wifiprov/events.plog")
//
//	// Both
//	cfg.EventLogger = log.NewMultiLogger(console, file)
//
// Candidate events carry the network name and source but never the
// passphrase.
//
// # File Format
//
// Trace files are a stream of CBOR-encoded Events with integer keys, using
// the .plog extension. The wifiprov-log tool views, filters and exports them.
package log
