// Package tickets files deduplicated RT tickets for device events.
//
// For a (device, subject) pair the filer searches the queue for an open
// ticket before creating one: a match gets the new text appended as a
// comment, otherwise a ticket is created and, when the device has an asset,
// linked to it. Within a queue there is thus at most one open ticket per
// device and subject — recurrences accumulate as comments instead of
// duplicates.
//
// Device attributes, area label, asset and device-info URL are enrichments
// resolved best-effort; their absence never blocks filing. The dedup search
// is only as strong as RT's read-after-write consistency: simultaneous
// filings for the same pair may race and create two tickets, an accepted
// limitation.
package tickets
