package tickets

import (
	"context"
	"fmt"
	"strings"

	"github.com/AlexHacksAround/ha-rt/internal/registry"
	"github.com/AlexHacksAround/ha-rt/internal/rt"
)

// Outcome classifies how a filing was resolved.
type Outcome string

// Filing outcomes.
const (
	// OutcomeCreated means a new ticket was opened.
	OutcomeCreated Outcome = "created"

	// OutcomeCommented means the text was appended to an existing open
	// ticket for the same device and subject.
	OutcomeCommented Outcome = "commented"
)

// Result is the outcome of one filing.
type Result struct {
	TicketID  int     `json:"ticket_id"`
	TicketURL string  `json:"ticket_url"`
	Outcome   Outcome `json:"outcome"`
}

// Gateway is the subset of the RT client the filer uses.
type Gateway interface {
	SearchAsset(ctx context.Context, catalog, deviceID string) *rt.Asset
	SearchTickets(ctx context.Context, queue, deviceID, subject string) ([]rt.Ticket, error)
	SearchTicketsForAsset(ctx context.Context, queue string, assetID int, subject string) ([]rt.Ticket, error)
	CreateTicket(ctx context.Context, req rt.TicketRequest) (int, error)
	AddComment(ctx context.Context, ticketID int, text string) error
	LinkTicketToAsset(ctx context.Context, ticketID, assetID int) bool
	TicketDisplayURL(ticketID int) string
}

// Logger is the optional logging interface accepted by SetLogger.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

// Config holds the filing settings.
type Config struct {
	// Queue is the RT queue tickets are filed into.
	Queue string

	// Catalog is the asset catalog consulted to link tickets to assets.
	Catalog string

	// Address is the operator-configured site address label. Optional.
	Address string

	// UIBaseURL is the operator-configured Home Assistant frontend base URL
	// for device-information links. Optional.
	UIBaseURL string

	// AutoBaseURL is the detected Home Assistant base URL, used when
	// UIBaseURL is not set. Optional; with both empty the link is omitted.
	AutoBaseURL string
}

// Filer is the ticket deduplication engine.
//
// Stateless per invocation and safe for concurrent use; concurrent filings
// for the same (device, subject) may race, see the package comment.
type Filer struct {
	gateway Gateway
	source  registry.Source
	cfg     Config
	logger  Logger
}

// NewFiler creates a filer over the given RT gateway and device source.
func NewFiler(gateway Gateway, source registry.Source, cfg Config) *Filer {
	return &Filer{
		gateway: gateway,
		source:  source,
		cfg:     cfg,
	}
}

// SetLogger attaches a logger. Optional.
func (f *Filer) SetLogger(l Logger) {
	f.logger = l
}

// File files a ticket for (deviceID, subject, text) with deduplication.
//
// If an open ticket for the same device (or its asset) and subject already
// exists, text is appended to the oldest match and the outcome is
// OutcomeCommented. Otherwise a ticket is created, linked to the device's
// asset when one exists, and the outcome is OutcomeCreated.
//
// Ticket creation and commenting are central and return errors; every
// enrichment (device attributes, area label, asset, device-info URL)
// degrades silently.
func (f *Filer) File(ctx context.Context, deviceID, subject, text string) (Result, error) {
	if deviceID == "" {
		return Result{}, fmt.Errorf("%w: device id is required", ErrInvalidInput)
	}
	if subject == "" {
		return Result{}, fmt.Errorf("%w: subject is required", ErrInvalidInput)
	}

	areaName := ""
	if device, err := f.source.GetDevice(ctx, deviceID); err != nil {
		// Proceed with the identifier only.
		f.debug("device lookup failed", "device_id", deviceID, "error", err)
	} else if device.AreaID != "" {
		if area, areaErr := f.source.GetArea(ctx, device.AreaID); areaErr == nil {
			areaName = area.Name
		}
	}

	assetID := 0
	if asset := f.gateway.SearchAsset(ctx, f.cfg.Catalog, deviceID); asset != nil {
		assetID = int(asset.ID)
		f.debug("found asset for device", "asset_id", assetID, "device_id", deviceID)
	} else {
		f.warn("no asset found for device, filing unlinked ticket", "device_id", deviceID)
	}

	var existing []rt.Ticket
	var err error
	if assetID != 0 {
		existing, err = f.gateway.SearchTicketsForAsset(ctx, f.cfg.Queue, assetID, subject)
	} else {
		existing, err = f.gateway.SearchTickets(ctx, f.cfg.Queue, deviceID, subject)
	}
	if err != nil {
		return Result{}, fmt.Errorf("searching open tickets: %w", err)
	}

	if len(existing) > 0 {
		// Oldest open ticket first, as ordered by the RT search.
		ticketID := int(existing[0].ID)
		if err := f.gateway.AddComment(ctx, ticketID, text); err != nil {
			return Result{}, fmt.Errorf("commenting ticket %d: %w", ticketID, err)
		}
		return Result{
			TicketID:  ticketID,
			TicketURL: f.gateway.TicketDisplayURL(ticketID),
			Outcome:   OutcomeCommented,
		}, nil
	}

	ticketID, err := f.gateway.CreateTicket(ctx, rt.TicketRequest{
		Queue:         f.cfg.Queue,
		Subject:       subject,
		Text:          text,
		DeviceID:      deviceID,
		DeviceInfoURL: f.deviceInfoURL(deviceID),
		Area:          areaName,
		Address:       f.cfg.Address,
	})
	if err != nil {
		return Result{}, fmt.Errorf("creating ticket: %w", err)
	}

	if assetID != 0 {
		if f.gateway.LinkTicketToAsset(ctx, ticketID, assetID) {
			f.debug("linked ticket to asset", "ticket_id", ticketID, "asset_id", assetID)
		}
	}

	return Result{
		TicketID:  ticketID,
		TicketURL: f.gateway.TicketDisplayURL(ticketID),
		Outcome:   OutcomeCreated,
	}, nil
}

// deviceInfoURL builds the link to the device page in the HA frontend.
// The operator-configured base wins over the detected one; with neither the
// link is omitted.
func (f *Filer) deviceInfoURL(deviceID string) string {
	base := f.cfg.UIBaseURL
	if base == "" {
		base = f.cfg.AutoBaseURL
	}
	if base == "" {
		f.warn("no frontend URL configured, omitting device information link")
		return ""
	}
	return strings.TrimRight(base, "/") + "/config/devices/device/" + deviceID
}

func (f *Filer) debug(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Debug(msg, args...)
	}
}

func (f *Filer) warn(msg string, args ...any) {
	if f.logger != nil {
		f.logger.Warn(msg, args...)
	}
}
