// Package journal persists bridge activity to SQLite.
//
// Two record kinds are kept:
//   - Sync runs: one row per registry sweep or single-device sync, with
//     the outcome tallies and any terminal error.
//   - Ticket events: one row per ticket created or commented through the
//     bridge, with the reporting source (api, mqtt).
//
// The journal is an audit trail, not remote state. RT remains the system
// of record for tickets and assets; nothing here is read back to make
// sync or dedup decisions.
package journal
