// Package assets reconciles the device inventory with the RT asset catalog.
//
// Each physical device is mirrored as one active asset, joined by the
// DeviceId custom field. The engine never holds state between invocations:
// every sync reads fresh data from the registry and from RT, searches before
// creating, and overwrites attributes idempotently.
//
// Failure containment: a full sweep applies SyncDevice to every device and
// counts outcomes; one device's failure never aborts the remainder. Orphaned
// assets (device gone or no longer physical) are retired by transitioning
// their status to "deleted" — assets are never hard-deleted.
//
// The search-then-create pattern races under concurrent invocation for the
// same device; RT offers no compare-and-swap here, so duplicate assets from
// simultaneous syncs are an accepted limitation.
package assets
