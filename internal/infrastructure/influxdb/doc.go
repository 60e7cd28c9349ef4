// Package influxdb provides time-series metric writing for the HA-RT bridge.
//
// This package manages:
//   - Connection to InfluxDB v2 with token authentication
//   - Non-blocking, batched metric writes
//   - Connection health monitoring
//
// # Measurements
//
//   - sync_sweep: Outcome tallies and duration of each sync pass,
//     tagged by trigger (startup, interval, manual, event)
//   - ticket_events: Tickets created or commented through the bridge,
//     tagged by device, outcome, and source
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	client.WriteSyncSweep("interval", tallies, elapsed)
//	client.WriteTicketEvent("abc123def456", "created", "mqtt", 42)
//
// Writes are buffered and flushed asynchronously. The bridge tolerates an
// unavailable InfluxDB: the integration is optional and metric loss never
// blocks syncing or ticket filing.
package influxdb
