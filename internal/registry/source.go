package registry

import "context"

// Source is the read-only device/area inventory the engines consume.
//
// Implementations must be safe for concurrent use; the ticket filer and the
// reconciliation sweep may query simultaneously.
type Source interface {
	// GetDevice retrieves a device by identifier.
	// Returns ErrDeviceNotFound if it does not exist.
	GetDevice(ctx context.Context, id string) (*Device, error)

	// ListDevices retrieves every device known to the registry.
	ListDevices(ctx context.Context) ([]Device, error)

	// GetArea resolves an area identifier to its record.
	// Returns ErrAreaNotFound if it does not exist.
	GetArea(ctx context.Context, id string) (*Area, error)
}
