package registry

// ConnectionTypeMAC tags a connection entry carrying a MAC address.
const ConnectionTypeMAC = "mac"

// Connection is one (type, value) pair from a device's connections set,
// e.g. ("mac", "aa:bb:cc:dd:ee:ff") or ("upnp", "uuid:...").
type Connection struct {
	Type  string `json:"connection_type"`
	Value string `json:"value"`
}

// Device is a read-only view of one registry entry.
//
// EntryType distinguishes physical hardware (empty) from integrations,
// services and add-ons (non-empty); only physical devices are mirrored to
// RT.
type Device struct {
	ID               string       `json:"id"`
	Name             string       `json:"name"`
	NameByUser       string       `json:"name_by_user"`
	Manufacturer     string       `json:"manufacturer"`
	Model            string       `json:"model"`
	SerialNumber     string       `json:"serial_number"`
	SWVersion        string       `json:"sw_version"`
	HWVersion        string       `json:"hw_version"`
	ConfigurationURL string       `json:"configuration_url"`
	Connections      []Connection `json:"connections"`
	AreaID           string       `json:"area_id"`
	EntryType        string       `json:"entry_type"`
}

// DisplayName returns the user override if set, else the vendor-reported
// name, else the identifier.
func (d *Device) DisplayName() string {
	if d.NameByUser != "" {
		return d.NameByUser
	}
	if d.Name != "" {
		return d.Name
	}
	return d.ID
}

// MAC returns the first MAC-typed connection value, or the empty string if
// the device reports none. Plain linear scan; connection sets are tiny.
func (d *Device) MAC() string {
	for _, conn := range d.Connections {
		if conn.Type == ConnectionTypeMAC {
			return conn.Value
		}
	}
	return ""
}

// IsPhysical reports whether the device represents physical hardware.
func (d *Device) IsPhysical() bool {
	return d.EntryType == ""
}

// Area maps an area identifier to its human-readable name.
type Area struct {
	ID   string `json:"area_id"`
	Name string `json:"name"`
}

// Action is the kind of registry change carried by an Event.
type Action string

// Registry change actions.
const (
	ActionCreate Action = "create"
	ActionUpdate Action = "update"
	ActionRemove Action = "remove"
)

// Event is one registry change notification.
type Event struct {
	Action   Action `json:"action"`
	DeviceID string `json:"device_id"`
}
