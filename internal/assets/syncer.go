package assets

import (
	"context"
	"errors"
	"fmt"

	"github.com/AlexHacksAround/ha-rt/internal/registry"
	"github.com/AlexHacksAround/ha-rt/internal/rt"
)

// Outcome classifies the result of syncing one device.
type Outcome string

// Sync outcomes.
const (
	// OutcomeSynced means the asset was created or updated.
	OutcomeSynced Outcome = "synced"

	// OutcomeFailed means the device should have synced but an RT call or
	// registry lookup failed.
	OutcomeFailed Outcome = "failed"

	// OutcomeSkipped means the device is non-physical and excluded from sync.
	OutcomeSkipped Outcome = "skipped"
)

// Tallies aggregates the outcome counts of a full inventory sweep.
type Tallies struct {
	Synced  int `json:"synced"`
	Failed  int `json:"failed"`
	Skipped int `json:"skipped"`
	Deleted int `json:"deleted"`
}

// Gateway is the subset of the RT client the reconciliation engine uses.
type Gateway interface {
	SearchAsset(ctx context.Context, catalog, deviceID string) *rt.Asset
	CreateAsset(ctx context.Context, catalog, name, deviceID string, attrs rt.AssetAttributes) (int, error)
	UpdateAsset(ctx context.Context, assetID int, name string, attrs rt.AssetAttributes) error
	ListAssets(ctx context.Context, catalog string) ([]rt.Asset, error)
	GetAsset(ctx context.Context, assetID int) *rt.Asset
}

// Logger is the optional logging interface accepted by SetLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// Config holds the reconciliation settings.
type Config struct {
	// Catalog is the RT asset catalog devices are mirrored into.
	Catalog string

	// Address is the operator-configured site address label, written to
	// every asset. Optional.
	Address string

	// Cleanup enables orphan retirement at the end of SyncAll.
	Cleanup bool
}

// Syncer is the asset reconciliation engine.
//
// It is stateless between invocations and safe for concurrent use, with the
// documented caveat that concurrent syncs of the same device may race on
// search-then-create.
type Syncer struct {
	gateway Gateway
	source  registry.Source
	cfg     Config
	logger  Logger
}

// NewSyncer creates a reconciliation engine over the given RT gateway and
// device source.
func NewSyncer(gateway Gateway, source registry.Source, cfg Config) *Syncer {
	return &Syncer{
		gateway: gateway,
		source:  source,
		cfg:     cfg,
	}
}

// SetLogger attaches a logger. Optional.
func (s *Syncer) SetLogger(l Logger) {
	s.logger = l
}

// SyncDevice mirrors one device into the catalog.
//
// Non-physical devices are skipped. A device absent from the registry is
// logged and counted as failed, matching the sweep's view that it should
// have synced. Otherwise the device's attributes are written to its
// existing active asset, or a new asset is created if none matches.
//
// The returned error, when non-nil, explains an OutcomeFailed; callers that
// only tally outcomes may ignore it.
func (s *Syncer) SyncDevice(ctx context.Context, deviceID string) (Outcome, error) {
	device, err := s.source.GetDevice(ctx, deviceID)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			s.warn("device not found", "device_id", deviceID)
			return OutcomeFailed, err
		}
		return OutcomeFailed, fmt.Errorf("looking up device %s: %w", deviceID, err)
	}

	return s.syncOne(ctx, device)
}

// syncOne mirrors an already-fetched device record into the catalog. The
// sweep calls it directly so listed devices are not re-fetched one by one.
func (s *Syncer) syncOne(ctx context.Context, device *registry.Device) (Outcome, error) {
	if !device.IsPhysical() {
		s.debug("skipping non-physical device",
			"device_id", device.ID, "entry_type", device.EntryType)
		return OutcomeSkipped, nil
	}

	name := device.DisplayName()
	attrs := s.deviceAttributes(ctx, device)

	existing := s.gateway.SearchAsset(ctx, s.cfg.Catalog, device.ID)
	if existing != nil {
		if err := s.gateway.UpdateAsset(ctx, int(existing.ID), name, attrs); err != nil {
			return OutcomeFailed, fmt.Errorf("updating asset %d: %w", existing.ID, err)
		}
		s.debug("updated asset", "asset_id", int(existing.ID), "device_id", device.ID)
		return OutcomeSynced, nil
	}

	assetID, err := s.gateway.CreateAsset(ctx, s.cfg.Catalog, name, device.ID, attrs)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("creating asset: %w", err)
	}
	s.debug("created asset", "asset_id", assetID, "device_id", device.ID)
	return OutcomeSynced, nil
}

// deviceAttributes extracts the asset attribute set from a device record.
// The area label is resolved best-effort; a failed lookup leaves it empty.
func (s *Syncer) deviceAttributes(ctx context.Context, device *registry.Device) rt.AssetAttributes {
	areaName := ""
	if device.AreaID != "" {
		area, err := s.source.GetArea(ctx, device.AreaID)
		if err != nil {
			s.debug("area lookup failed", "area_id", device.AreaID, "error", err)
		} else {
			areaName = area.Name
		}
	}

	return rt.AssetAttributes{
		Manufacturer:    device.Manufacturer,
		Model:           device.Model,
		SerialNumber:    device.SerialNumber,
		FirmwareVersion: device.SWVersion,
		HardwareVersion: device.HWVersion,
		ConfigURL:       device.ConfigurationURL,
		MAC:             device.MAC(),
		Area:            areaName,
		Address:         s.cfg.Address,
	}
}

// SyncAll sweeps the whole inventory, syncing every listed device
// sequentially and tallying outcomes. The registry is listed once; devices
// are not re-fetched individually. One device's failure is counted and
// the sweep continues. When cleanup is enabled, orphaned assets are retired
// afterwards and counted in Tallies.Deleted.
//
// The only hard failure is being unable to list devices at all.
func (s *Syncer) SyncAll(ctx context.Context) (Tallies, error) {
	devices, err := s.source.ListDevices(ctx)
	if err != nil {
		return Tallies{}, fmt.Errorf("listing devices: %w", err)
	}

	var tallies Tallies
	for _, device := range devices {
		outcome, syncErr := s.syncOne(ctx, &device)
		switch outcome {
		case OutcomeSynced:
			tallies.Synced++
		case OutcomeSkipped:
			tallies.Skipped++
		default:
			tallies.Failed++
			if syncErr != nil {
				s.error("device sync failed", "device_id", device.ID, "error", syncErr)
			}
		}
	}

	if s.cfg.Cleanup {
		deleted, cleanupErr := s.cleanupOrphans(ctx, devices)
		tallies.Deleted = deleted
		if cleanupErr != nil {
			s.warn("orphan cleanup incomplete", "error", cleanupErr)
		}
	}

	s.info("asset sync complete",
		"synced", tallies.Synced,
		"failed", tallies.Failed,
		"skipped", tallies.Skipped,
		"deleted", tallies.Deleted,
	)
	return tallies, nil
}

// cleanupOrphans retires active assets whose DeviceId custom field is
// missing or no longer names a physical, present device. Each asset's
// detail fetch is independent; an unreadable asset is left for the next
// sweep. Returns the number of assets transitioned to deleted.
func (s *Syncer) cleanupOrphans(ctx context.Context, devices []registry.Device) (int, error) {
	valid := make(map[string]bool, len(devices))
	for _, device := range devices {
		if device.IsPhysical() {
			valid[device.ID] = true
		}
	}

	refs, err := s.gateway.ListAssets(ctx, s.cfg.Catalog)
	if err != nil {
		return 0, fmt.Errorf("listing assets: %w", err)
	}

	deleted := 0
	for _, ref := range refs {
		if ref.ID == 0 {
			continue
		}

		asset := s.gateway.GetAsset(ctx, int(ref.ID))
		if asset == nil {
			continue
		}

		deviceID := asset.DeviceID()
		if deviceID != "" && valid[deviceID] {
			continue
		}

		err := s.gateway.UpdateAsset(ctx, int(asset.ID), "", rt.AssetAttributes{Status: rt.StatusDeleted})
		if err != nil {
			s.warn("failed to retire orphaned asset", "asset_id", int(asset.ID), "error", err)
			continue
		}
		s.info("retired orphaned asset", "asset_id", int(asset.ID), "device_id", deviceID)
		deleted++
	}
	return deleted, nil
}

// MarkRemoved transitions the asset joined to deviceID to deleted status,
// typically on a registry remove event. Reports whether an asset was found
// and updated.
func (s *Syncer) MarkRemoved(ctx context.Context, deviceID string) bool {
	asset := s.gateway.SearchAsset(ctx, s.cfg.Catalog, deviceID)
	if asset == nil {
		s.debug("no asset found for removed device", "device_id", deviceID)
		return false
	}

	err := s.gateway.UpdateAsset(ctx, int(asset.ID), "", rt.AssetAttributes{Status: rt.StatusDeleted})
	if err != nil {
		s.warn("failed to mark asset deleted", "asset_id", int(asset.ID), "error", err)
		return false
	}
	s.info("marked asset deleted", "asset_id", int(asset.ID), "device_id", deviceID)
	return true
}

// Nil-safe logging helpers.

func (s *Syncer) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}

func (s *Syncer) info(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Info(msg, args...)
	}
}

func (s *Syncer) warn(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Warn(msg, args...)
	}
}

func (s *Syncer) error(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Error(msg, args...)
	}
}
