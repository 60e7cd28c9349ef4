package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/registry"
)

// handleSync runs a full registry sweep and returns the finished run.
func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	run, err := s.syncer.RunSweep(r.Context(), journal.TriggerManual)
	if err != nil {
		s.logger.Error("manual sync failed",
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeUpstreamError(w, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleSyncDevice syncs a single device and returns the finished run.
func (s *Server) handleSyncDevice(w http.ResponseWriter, r *http.Request) {
	deviceID := chi.URLParam(r, "deviceID")
	if deviceID == "" {
		writeBadRequest(w, "device id is required")
		return
	}

	run, err := s.syncer.RunDevice(r.Context(), deviceID, journal.TriggerManual)
	if err != nil {
		if errors.Is(err, registry.ErrDeviceNotFound) {
			writeNotFound(w, "device not found")
			return
		}
		s.logger.Error("device sync failed",
			"device_id", deviceID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeUpstreamError(w, "sync failed")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

// handleListRuns returns sync run history from the journal.
func (s *Server) handleListRuns(w http.ResponseWriter, r *http.Request) {
	if s.runs == nil {
		writeNotFound(w, "sync history is disabled")
		return
	}

	filter := journal.RunFilter{
		TriggeredBy: r.URL.Query().Get("triggered_by"),
	}
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "limit must be an integer")
			return
		}
		filter.Limit = n
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeBadRequest(w, "offset must be an integer")
			return
		}
		filter.Offset = n
	}

	runs, err := s.runs.ListRuns(r.Context(), filter)
	if err != nil {
		s.logger.Error("listing sync runs", "error", err)
		writeInternalError(w, "listing sync runs failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}
