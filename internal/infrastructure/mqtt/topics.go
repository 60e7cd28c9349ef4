package mqtt

import "fmt"

// Topic prefixes for the bridge's MQTT surface.
//
// All topics use the scheme: hart/{category}/{device_id_or_suffix}
const (
	// TopicPrefixReport is the base for inbound fault reports.
	TopicPrefixReport = "hart/report"

	// TopicPrefixTicket is the base for outbound ticket results.
	TopicPrefixTicket = "hart/ticket"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "hart/system"
)

// Topics provides builders for the bridge's MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// TicketResult returns the topic ticket outcomes are published on.
//
// Example: hart/ticket/abc123def456/result
func (Topics) TicketResult(deviceID string) string {
	return fmt.Sprintf("%s/%s/result", TopicPrefixTicket, deviceID)
}

// SyncStatus returns the topic sweep summaries are published on.
//
// Example: hart/system/sync
func (Topics) SyncStatus() string {
	return fmt.Sprintf("%s/sync", TopicPrefixSystem)
}

// SystemStatus returns the system status topic. The broker publishes the
// LWT here when the bridge disconnects unexpectedly.
//
// Example: hart/system/status
func (Topics) SystemStatus() string {
	return fmt.Sprintf("%s/status", TopicPrefixSystem)
}

// AllReports returns a pattern matching all inbound fault reports.
//
// Pattern: hart/report/+
func (Topics) AllReports() string {
	return fmt.Sprintf("%s/+", TopicPrefixReport)
}
