package influxdb

import (
	"time"

	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/AlexHacksAround/ha-rt/internal/assets"
)

// WriteSyncSweep records the outcome of one sync pass.
//
// The write is non-blocking; data is batched and sent asynchronously.
//
// Parameters:
//   - triggeredBy: What started the pass (startup, interval, manual, event)
//   - tallies: Per-device outcome counts for the pass
//   - duration: Wall-clock time the pass took
func (c *Client) WriteSyncSweep(triggeredBy string, tallies assets.Tallies, duration time.Duration) {
	c.WritePoint(
		"sync_sweep",
		map[string]string{
			"triggered_by": triggeredBy,
		},
		map[string]interface{}{
			"synced":      tallies.Synced,
			"failed":      tallies.Failed,
			"skipped":     tallies.Skipped,
			"deleted":     tallies.Deleted,
			"duration_ms": duration.Milliseconds(),
		},
	)
}

// WriteTicketEvent records a ticket created or commented through the bridge.
//
// Parameters:
//   - deviceID: The reporting device
//   - outcome: created or commented
//   - source: Where the report came from (api, mqtt)
//   - ticketID: The RT ticket number
func (c *Client) WriteTicketEvent(deviceID, outcome, source string, ticketID int) {
	c.WritePoint(
		"ticket_events",
		map[string]string{
			"device_id": deviceID,
			"outcome":   outcome,
			"source":    source,
		},
		map[string]interface{}{
			"ticket_id": ticketID,
		},
	)
}

// WritePoint writes a custom point with full control over tags and fields.
//
// Use this for measurements that don't fit the helper methods.
//
// Parameters:
//   - measurement: The measurement name (table)
//   - tags: Key-value pairs for indexing (low cardinality)
//   - fields: Key-value pairs for the actual data
func (c *Client) WritePoint(measurement string, tags map[string]string, fields map[string]interface{}) {
	c.WritePointWithTime(measurement, tags, fields, time.Now())
}

// WritePointWithTime writes a custom point with a specific timestamp.
//
// Use this when the timestamp is not "now" (e.g., delayed data).
func (c *Client) WritePointWithTime(measurement string, tags map[string]string, fields map[string]interface{}, timestamp time.Time) {
	if !c.IsConnected() {
		return
	}

	point := write.NewPoint(measurement, tags, fields, timestamp)
	c.writeAPI.WritePoint(point)
}
