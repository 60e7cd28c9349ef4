package rt

import (
	"fmt"
	"strings"
)

// Custom field names used on RT tickets and assets.
const (
	// FieldDeviceID is the join key between a Home Assistant device and its
	// RT asset and tickets.
	FieldDeviceID = "DeviceId"

	// FieldDeviceInfo holds a link to the device page in the HA frontend.
	FieldDeviceInfo = "Device Information"

	// FieldArea holds the human-readable area name.
	FieldArea = "Area"

	// FieldAddress holds the operator-configured site address label.
	FieldAddress = "Address"

	// Asset attribute custom fields.
	FieldManufacturer    = "Manufacturer"
	FieldModel           = "Model"
	FieldSerialNumber    = "Serial Number"
	FieldFirmwareVersion = "Firmware Version"
	FieldHardwareVersion = "Hardware Version"
	FieldMAC             = "MAC Address"
)

// StatusDeleted is the terminal asset status this bridge writes. Assets are
// retired by status transition, never hard-deleted.
const StatusDeleted = "deleted"

// OpenStatuses are the ticket states considered unresolved for
// deduplication purposes.
var OpenStatuses = []string{"new", "open", "stalled"}

// EscapeLiteral escapes a string for embedding in a double-quoted TicketSQL
// literal. Backslashes are escaped before double quotes; reversing the order
// would double-escape the backslashes introduced for the quotes.
//
// This is the sole injection defense for search queries and must be applied
// to every user- or device-supplied value. It is total: any input string,
// including the empty string, yields a safe literal.
func EscapeLiteral(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	value = strings.ReplaceAll(value, `"`, `\"`)
	return value
}

// quoteLiteral returns the escaped value wrapped in double quotes, ready for
// interpolation into a TicketSQL expression.
func quoteLiteral(value string) string {
	return `"` + EscapeLiteral(value) + `"`
}

// openStatusClause returns the OR-joined open status disjunction, e.g.
// (Status="new" OR Status="open" OR Status="stalled"). Status names are
// fixed constants but pass through the escaper anyway.
func openStatusClause() string {
	parts := make([]string, 0, len(OpenStatuses))
	for _, s := range OpenStatuses {
		parts = append(parts, "Status="+quoteLiteral(s))
	}
	return "(" + strings.Join(parts, " OR ") + ")"
}

// openTicketQuery builds the TicketSQL for open tickets in a queue joined to
// a device via the DeviceId custom field. Subject narrows the match when
// non-empty.
func openTicketQuery(queue, deviceID, subject string) string {
	q := fmt.Sprintf("Queue=%s AND %s AND CF.{%s}=%s",
		quoteLiteral(queue), openStatusClause(), FieldDeviceID, quoteLiteral(deviceID))
	if subject != "" {
		q += " AND Subject=" + quoteLiteral(subject)
	}
	return q
}

// openTicketForAssetQuery builds the TicketSQL for open tickets in a queue
// referring to an asset. Subject narrows the match when non-empty.
func openTicketForAssetQuery(queue string, assetID int, subject string) string {
	q := fmt.Sprintf("Queue=%s AND %s AND RefersTo=%s",
		quoteLiteral(queue), openStatusClause(), quoteLiteral(assetRef(assetID)))
	if subject != "" {
		q += " AND Subject=" + quoteLiteral(subject)
	}
	return q
}

// assetQuery builds the TicketSQL for an asset in a catalog joined to a
// device via the DeviceId custom field.
func assetQuery(catalog, deviceID string) string {
	return fmt.Sprintf("Catalog=%s AND CF.{%s}=%s",
		quoteLiteral(catalog), FieldDeviceID, quoteLiteral(deviceID))
}

// catalogQuery builds the TicketSQL matching every asset in a catalog. RT
// excludes deleted and stolen assets from search results unless Status is
// queried explicitly, so this enumerates only active assets.
func catalogQuery(catalog string) string {
	return "Catalog=" + quoteLiteral(catalog)
}

// assetRef is the reference notation RT uses to link tickets to assets.
func assetRef(assetID int) string {
	return fmt.Sprintf("asset:%d", assetID)
}
