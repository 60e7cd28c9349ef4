package rt

import (
	"bytes"
	"strconv"
)

// ID is a numeric RT object identifier. RT returns ids as JSON numbers in
// some payloads and as strings in search results, so it unmarshals from
// either form.
type ID int

// UnmarshalJSON accepts both 123 and "123".
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.Trim(data, `"`)
	n, err := strconv.Atoi(string(data))
	if err != nil {
		return err
	}
	*id = ID(n)
	return nil
}

// CustomField is a named extensible field on an RT ticket or asset.
type CustomField struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// Asset is an RT asset record. Search and list endpoints return sparse
// references (id only); GetAsset returns the full record including custom
// fields.
type Asset struct {
	ID           ID            `json:"id"`
	Name         string        `json:"Name"`
	Status       string        `json:"Status"`
	CustomFields []CustomField `json:"CustomFields"`
}

// CustomFieldValue returns the first value of the named custom field, or
// the empty string if the field is absent or empty.
func (a *Asset) CustomFieldValue(name string) string {
	for _, cf := range a.CustomFields {
		if cf.Name == name && len(cf.Values) > 0 {
			return cf.Values[0]
		}
	}
	return ""
}

// DeviceID returns the Home Assistant device identifier stored on the
// asset, or the empty string for assets created outside this bridge.
func (a *Asset) DeviceID() string {
	return a.CustomFieldValue(FieldDeviceID)
}

// Ticket is an RT ticket reference as returned by ticket search. Search
// results are ordered by id ascending, so the first element is the oldest
// matching ticket.
type Ticket struct {
	ID      ID     `json:"id"`
	Subject string `json:"Subject"`
	Status  string `json:"Status"`
}

// AssetAttributes is the optional-field set written to an asset on create
// and update. Empty fields are omitted from the request, so RT keeps any
// existing value for them.
type AssetAttributes struct {
	Manufacturer    string
	Model           string
	SerialNumber    string
	FirmwareVersion string
	HardwareVersion string
	ConfigURL       string
	MAC             string
	Area            string
	Address         string

	// Status transitions the asset lifecycle state. The only status this
	// bridge writes is StatusDeleted.
	Status string
}

// customFields maps the present attribute fields to RT custom field names.
func (a AssetAttributes) customFields() map[string]string {
	fields := make(map[string]string)
	set := func(name, value string) {
		if value != "" {
			fields[name] = value
		}
	}
	set(FieldManufacturer, a.Manufacturer)
	set(FieldModel, a.Model)
	set(FieldSerialNumber, a.SerialNumber)
	set(FieldFirmwareVersion, a.FirmwareVersion)
	set(FieldHardwareVersion, a.HardwareVersion)
	set(FieldDeviceInfo, a.ConfigURL)
	set(FieldMAC, a.MAC)
	set(FieldArea, a.Area)
	set(FieldAddress, a.Address)
	return fields
}

// TicketRequest describes a new ticket. DeviceInfoURL, Area and Address are
// optional; when present they are written as custom fields and Area/Address
// are appended to the ticket body as a location trailer.
type TicketRequest struct {
	Queue         string
	Subject       string
	Text          string
	DeviceID      string
	DeviceInfoURL string
	Area          string
	Address       string
}
