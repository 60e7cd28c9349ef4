// Package registry defines the device and area inventory consumed by the
// bridge: the data types, the Source interface a backend must implement,
// and the change events a backend may deliver.
//
// The registry is read-only to this system. The production backend is the
// Home Assistant WebSocket API client in internal/hass; tests substitute
// in-memory fakes.
package registry
