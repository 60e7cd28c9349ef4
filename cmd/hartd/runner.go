package main

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/AlexHacksAround/ha-rt/internal/assets"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/influxdb"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/logging"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/mqtt"
	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/registry"
)

// syncRunner wraps the reconciliation engine with journaling, metrics, and
// MQTT sweep summaries. It implements the API server's SyncRunner interface
// and is shared by the scheduler and the registry event loop.
type syncRunner struct {
	syncer  *assets.Syncer
	journal journal.Repository
	metrics *influxdb.Client // nil when InfluxDB is disabled
	broker  *mqtt.Client     // nil when MQTT is disabled
	qos     byte
	logger  *logging.Logger
}

// RunSweep runs a full inventory sweep and records it in the journal.
//
// The returned run carries the outcome tallies. A non-nil error means the
// sweep could not run at all (registry listing failed); partial per-device
// failures are reported through the tallies instead.
func (r *syncRunner) RunSweep(ctx context.Context, triggeredBy string) (*journal.SyncRun, error) {
	run, err := r.journal.StartRun(ctx, triggeredBy, "")
	if err != nil {
		return nil, fmt.Errorf("starting sync run: %w", err)
	}

	start := time.Now()
	tallies, sweepErr := r.syncer.SyncAll(ctx)
	duration := time.Since(start)

	r.finish(ctx, run, tallies, sweepErr)

	if r.metrics != nil {
		r.metrics.WriteSyncSweep(triggeredBy, tallies, duration)
	}
	r.publishSummary(run)

	if sweepErr != nil {
		return nil, fmt.Errorf("sync sweep: %w", sweepErr)
	}

	r.logger.Info("sync sweep complete",
		"run_id", run.ID,
		"triggered_by", triggeredBy,
		"synced", tallies.Synced,
		"failed", tallies.Failed,
		"skipped", tallies.Skipped,
		"deleted", tallies.Deleted,
		"duration", duration,
	)
	return run, nil
}

// RunDevice syncs a single device and records it in the journal.
func (r *syncRunner) RunDevice(ctx context.Context, deviceID, triggeredBy string) (*journal.SyncRun, error) {
	run, err := r.journal.StartRun(ctx, triggeredBy, deviceID)
	if err != nil {
		return nil, fmt.Errorf("starting sync run: %w", err)
	}

	outcome, syncErr := r.syncer.SyncDevice(ctx, deviceID)

	var tallies assets.Tallies
	switch outcome {
	case assets.OutcomeSynced:
		tallies.Synced = 1
	case assets.OutcomeFailed:
		tallies.Failed = 1
	case assets.OutcomeSkipped:
		tallies.Skipped = 1
	}

	r.finish(ctx, run, tallies, syncErr)

	if syncErr != nil {
		return nil, fmt.Errorf("syncing device %s: %w", deviceID, syncErr)
	}
	return run, nil
}

// finish closes out the run record, mirroring the result onto the in-memory
// run so callers see what the journal stored.
func (r *syncRunner) finish(ctx context.Context, run *journal.SyncRun, tallies assets.Tallies, runErr error) {
	if err := r.journal.FinishRun(ctx, run.ID, tallies, runErr); err != nil {
		r.logger.Error("failed to finish sync run", "run_id", run.ID, "error", err)
	}

	now := time.Now().UTC()
	run.FinishedAt = &now
	run.Tallies = tallies
	if runErr != nil {
		run.Error = runErr.Error()
	}
}

// publishSummary publishes the completed sweep to the sync status topic.
func (r *syncRunner) publishSummary(run *journal.SyncRun) {
	if r.broker == nil {
		return
	}

	payload, err := json.Marshal(run)
	if err != nil {
		r.logger.Error("failed to marshal sweep summary", "run_id", run.ID, "error", err)
		return
	}

	topic := mqtt.Topics{}.SyncStatus()
	if err := r.broker.Publish(topic, payload, r.qos, false); err != nil {
		r.logger.Warn("failed to publish sweep summary", "topic", topic, "error", err)
	}
}

// runScheduler triggers full sweeps at the configured interval until the
// context is cancelled. Callers run it in its own goroutine.
func runScheduler(ctx context.Context, runner *syncRunner, interval time.Duration, log *logging.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info("sync scheduler started", "interval", interval)

	for {
		select {
		case <-ctx.Done():
			log.Info("sync scheduler stopped")
			return
		case <-ticker.C:
			if _, err := runner.RunSweep(ctx, journal.TriggerInterval); err != nil {
				log.Error("scheduled sync sweep failed", "error", err)
			}
		}
	}
}

// runEventLoop drains registry change events, syncing changed devices and
// retiring assets for removed ones. It returns when the event channel closes
// or the context is cancelled. Callers run it in its own goroutine.
func runEventLoop(ctx context.Context, events <-chan registry.Event, runner *syncRunner, log *logging.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				log.Warn("registry event stream closed")
				return
			}

			log.Debug("registry event received",
				"action", string(event.Action), "device_id", event.DeviceID)

			switch event.Action {
			case registry.ActionRemove:
				runner.syncer.MarkRemoved(ctx, event.DeviceID)
			case registry.ActionCreate, registry.ActionUpdate:
				if _, err := runner.RunDevice(ctx, event.DeviceID, journal.TriggerEvent); err != nil {
					log.Warn("event-driven sync failed",
						"device_id", event.DeviceID, "error", err)
				}
			}
		}
	}
}
