package registry

import "testing"

func TestDisplayName(t *testing.T) {
	tests := []struct {
		name   string
		device Device
		want   string
	}{
		{
			name:   "user override wins",
			device: Device{ID: "dev-1", Name: "Vendor Name", NameByUser: "Boiler"},
			want:   "Boiler",
		},
		{
			name:   "vendor name fallback",
			device: Device{ID: "dev-1", Name: "Vendor Name"},
			want:   "Vendor Name",
		},
		{
			name:   "identifier fallback",
			device: Device{ID: "dev-1"},
			want:   "dev-1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.device.DisplayName(); got != tt.want {
				t.Errorf("DisplayName() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestMAC(t *testing.T) {
	tests := []struct {
		name        string
		connections []Connection
		want        string
	}{
		{
			name: "first mac entry wins",
			connections: []Connection{
				{Type: "upnp", Value: "uuid:abc"},
				{Type: "mac", Value: "aa:bb:cc:dd:ee:ff"},
				{Type: "mac", Value: "11:22:33:44:55:66"},
			},
			want: "aa:bb:cc:dd:ee:ff",
		},
		{
			name:        "no mac entry",
			connections: []Connection{{Type: "zigbee", Value: "0x1234"}},
			want:        "",
		},
		{
			name: "empty connections",
			want: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := Device{Connections: tt.connections}
			if got := d.MAC(); got != tt.want {
				t.Errorf("MAC() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsPhysical(t *testing.T) {
	physical := Device{ID: "dev-1"}
	if !physical.IsPhysical() {
		t.Error("IsPhysical() = false for empty entry type, want true")
	}

	service := Device{ID: "dev-2", EntryType: "service"}
	if service.IsPhysical() {
		t.Error("IsPhysical() = true for service entry type, want false")
	}
}
