package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/tickets"
)

// fileTicketRequest is the body of POST /api/v1/tickets.
type fileTicketRequest struct {
	DeviceID string `json:"device_id"`
	Subject  string `json:"subject"`
	Message  string `json:"message"`
}

// handleFileTicket files a ticket for a fault report.
//
// Returns 201 when a new ticket was opened, 200 when the report was
// appended to an existing open ticket.
func (s *Server) handleFileTicket(w http.ResponseWriter, r *http.Request) {
	var req fileTicketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}
	if req.DeviceID == "" {
		writeBadRequest(w, "device_id is required")
		return
	}
	if req.Subject == "" {
		writeBadRequest(w, "subject is required")
		return
	}

	result, err := s.filer.File(r.Context(), req.DeviceID, req.Subject, req.Message)
	if err != nil {
		if errors.Is(err, tickets.ErrInvalidInput) {
			writeBadRequest(w, err.Error())
			return
		}
		s.logger.Error("filing ticket",
			"device_id", req.DeviceID,
			"error", err,
			"request_id", r.Context().Value(ctxKeyRequestID),
		)
		writeUpstreamError(w, "filing ticket failed")
		return
	}

	s.recordTicketEvent(r, req, result)

	status := http.StatusOK
	if result.Outcome == tickets.OutcomeCreated {
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// recordTicketEvent journals the filing and writes the outcome metric.
// Journal failures are logged, not fatal.
func (s *Server) recordTicketEvent(r *http.Request, req fileTicketRequest, result tickets.Result) {
	if s.metrics != nil {
		s.metrics.WriteTicketEvent(req.DeviceID, string(result.Outcome), journal.SourceAPI, result.TicketID)
	}

	if s.journal == nil {
		return
	}
	event := &journal.TicketEvent{
		DeviceID: req.DeviceID,
		Subject:  req.Subject,
		TicketID: result.TicketID,
		Outcome:  string(result.Outcome),
		Source:   journal.SourceAPI,
	}
	if err := s.journal.RecordTicketEvent(r.Context(), event); err != nil {
		s.logger.Warn("recording ticket event", "device_id", req.DeviceID, "error", err)
	}
}
