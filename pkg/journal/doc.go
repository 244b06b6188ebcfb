// Package journal records every provisioning attempt for later inspection.
//
// An Attempt captures which session and attempt number it was, the intake
// that supplied the candidate, the network name, the outcome and timings.
// Passphrases are never recorded.
//
// Two backends are provided: BoltJournal (go.etcd.io/bbolt, CBOR values) for
// devices that want a single pure-Go file, and SQLiteJournal
// (github.com/mattn/go-sqlite3) for devices that already ship sqlite and
// want to query history with SQL.
package journal
