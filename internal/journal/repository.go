package journal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/AlexHacksAround/ha-rt/internal/assets"
)

// Sync run triggers.
const (
	TriggerStartup  = "startup"
	TriggerInterval = "interval"
	TriggerManual   = "manual"
	TriggerEvent    = "event"
)

// Ticket event sources.
const (
	SourceAPI  = "api"
	SourceMQTT = "mqtt"
)

// Pagination limits for List queries.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// SyncRun records one sync pass, full sweep or single device.
type SyncRun struct {
	ID          string         `json:"id"`
	TriggeredBy string         `json:"triggered_by"`
	DeviceID    string         `json:"device_id,omitempty"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  *time.Time     `json:"finished_at,omitempty"`
	Tallies     assets.Tallies `json:"tallies"`
	Error       string         `json:"error,omitempty"`
}

// TicketEvent records one ticket created or commented through the bridge.
type TicketEvent struct {
	ID        int64     `json:"id"`
	DeviceID  string    `json:"device_id"`
	Subject   string    `json:"subject"`
	TicketID  int       `json:"ticket_id"`
	Outcome   string    `json:"outcome"`
	Source    string    `json:"source"`
	CreatedAt time.Time `json:"created_at"`
}

// RunFilter controls which sync runs to return.
type RunFilter struct {
	TriggeredBy string // optional: filter by trigger (startup, interval, manual, event)
	Limit       int    // default 50, max 200
	Offset      int    // pagination offset
}

// Repository defines the persistence operations used by the bridge.
type Repository interface {
	StartRun(ctx context.Context, triggeredBy, deviceID string) (*SyncRun, error)
	FinishRun(ctx context.Context, runID string, tallies assets.Tallies, runErr error) error
	ListRuns(ctx context.Context, filter RunFilter) ([]SyncRun, error)
	RecordTicketEvent(ctx context.Context, event *TicketEvent) error
}

// SQLiteRepository stores journal records in SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new journal repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// StartRun inserts a new in-progress sync run and returns it.
// deviceID is empty for full sweeps.
func (r *SQLiteRepository) StartRun(ctx context.Context, triggeredBy, deviceID string) (*SyncRun, error) {
	run := &SyncRun{
		ID:          "run-" + uuid.NewString()[:8],
		TriggeredBy: triggeredBy,
		DeviceID:    deviceID,
		StartedAt:   time.Now().UTC(),
	}

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO sync_runs (id, triggered_by, device_id, started_at)
		 VALUES (?, ?, ?, ?)`,
		run.ID, run.TriggeredBy, nullableString(run.DeviceID),
		run.StartedAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting sync run: %w", err)
	}

	return run, nil
}

// FinishRun records the outcome of a sync run. runErr may be nil.
func (r *SQLiteRepository) FinishRun(ctx context.Context, runID string, tallies assets.Tallies, runErr error) error {
	var errText any
	if runErr != nil {
		errText = runErr.Error()
	}

	result, err := r.db.ExecContext(ctx,
		`UPDATE sync_runs
		 SET finished_at = ?, synced = ?, failed = ?, skipped = ?, deleted = ?, error = ?
		 WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		tallies.Synced, tallies.Failed, tallies.Skipped, tallies.Deleted,
		errText, runID,
	)
	if err != nil {
		return fmt.Errorf("finishing sync run: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking sync run update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("sync run %s not found", runID)
	}

	return nil
}

// ListRuns returns sync runs matching the filter, most recent first.
func (r *SQLiteRepository) ListRuns(ctx context.Context, filter RunFilter) ([]SyncRun, error) {
	if filter.Limit <= 0 {
		filter.Limit = defaultListLimit
	}
	if filter.Limit > maxListLimit {
		filter.Limit = maxListLimit
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	var conditions []string
	var args []any
	if filter.TriggeredBy != "" {
		conditions = append(conditions, "triggered_by = ?")
		args = append(args, filter.TriggeredBy)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		`SELECT id, triggered_by, device_id, started_at, finished_at,
		        synced, failed, skipped, deleted, error
		 FROM sync_runs %s ORDER BY started_at DESC, id DESC LIMIT ? OFFSET ?`,
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying sync runs: %w", err)
	}
	defer rows.Close()

	var runs []SyncRun
	for rows.Next() {
		var run SyncRun
		var deviceID, finishedAt, errText sql.NullString
		var startedAt string

		if err := rows.Scan(&run.ID, &run.TriggeredBy, &deviceID, &startedAt, &finishedAt,
			&run.Tallies.Synced, &run.Tallies.Failed, &run.Tallies.Skipped, &run.Tallies.Deleted,
			&errText); err != nil {
			return nil, fmt.Errorf("scanning sync run: %w", err)
		}

		if deviceID.Valid {
			run.DeviceID = deviceID.String
		}
		if errText.Valid {
			run.Error = errText.String
		}

		run.StartedAt, err = time.Parse(time.RFC3339, startedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing sync run timestamp %q: %w", startedAt, err)
		}
		if finishedAt.Valid {
			t, err := time.Parse(time.RFC3339, finishedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing sync run timestamp %q: %w", finishedAt.String, err)
			}
			run.FinishedAt = &t
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating sync runs: %w", err)
	}

	if runs == nil {
		runs = []SyncRun{}
	}
	return runs, nil
}

// RecordTicketEvent inserts a ticket event. CreatedAt is set if zero.
func (r *SQLiteRepository) RecordTicketEvent(ctx context.Context, event *TicketEvent) error {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	}

	result, err := r.db.ExecContext(ctx,
		`INSERT INTO ticket_events (device_id, subject, ticket_id, outcome, source, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		event.DeviceID, event.Subject, event.TicketID, event.Outcome, event.Source,
		event.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting ticket event: %w", err)
	}

	event.ID, err = result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading ticket event id: %w", err)
	}
	return nil
}

// nullableString returns nil for empty strings, for nullable TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
