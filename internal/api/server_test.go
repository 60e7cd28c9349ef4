package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/config"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/logging"
	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/registry"
	"github.com/AlexHacksAround/ha-rt/internal/tickets"
)

// mockFiler returns a canned result or error.
type mockFiler struct {
	result tickets.Result
	err    error
	calls  int
}

func (m *mockFiler) File(_ context.Context, deviceID, subject, _ string) (tickets.Result, error) {
	m.calls++
	if deviceID == "" || subject == "" {
		return tickets.Result{}, fmt.Errorf("%w: missing fields", tickets.ErrInvalidInput)
	}
	if m.err != nil {
		return tickets.Result{}, m.err
	}
	return m.result, nil
}

// mockSyncer returns canned runs keyed by kind of call.
type mockSyncer struct {
	sweepRun  *journal.SyncRun
	sweepErr  error
	deviceRun *journal.SyncRun
	deviceErr error
}

func (m *mockSyncer) RunSweep(_ context.Context, _ string) (*journal.SyncRun, error) {
	return m.sweepRun, m.sweepErr
}

func (m *mockSyncer) RunDevice(_ context.Context, _, _ string) (*journal.SyncRun, error) {
	return m.deviceRun, m.deviceErr
}

// mockRuns returns canned history.
type mockRuns struct {
	runs   []journal.SyncRun
	err    error
	filter journal.RunFilter
}

func (m *mockRuns) ListRuns(_ context.Context, filter journal.RunFilter) ([]journal.SyncRun, error) {
	m.filter = filter
	return m.runs, m.err
}

// mockRecorder captures journal writes.
type mockRecorder struct {
	events []journal.TicketEvent
}

func (m *mockRecorder) RecordTicketEvent(_ context.Context, event *journal.TicketEvent) error {
	m.events = append(m.events, *event)
	return nil
}

// mockMetrics captures ticket outcome points.
type mockMetrics struct {
	points []metricPoint
}

type metricPoint struct {
	deviceID string
	outcome  string
	source   string
	ticketID int
}

func (m *mockMetrics) WriteTicketEvent(deviceID, outcome, source string, ticketID int) {
	m.points = append(m.points, metricPoint{
		deviceID: deviceID,
		outcome:  outcome,
		source:   source,
		ticketID: ticketID,
	})
}

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stderr"}, "test")
}

// newTestServer builds a server around the mocks and returns its handler.
func newTestServer(t *testing.T, deps Deps) http.Handler {
	t.Helper()

	if deps.Logger == nil {
		deps.Logger = testLogger()
	}
	if deps.Filer == nil {
		deps.Filer = &mockFiler{}
	}
	if deps.Syncer == nil {
		deps.Syncer = &mockSyncer{sweepRun: &journal.SyncRun{ID: "run-1"}}
	}
	deps.Version = "test"

	server, err := New(deps)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return server.buildRouter()
}

func TestNewRequiresDependencies(t *testing.T) {
	logger := testLogger()

	tests := []struct {
		name string
		deps Deps
	}{
		{name: "missing logger", deps: Deps{Filer: &mockFiler{}, Syncer: &mockSyncer{}}},
		{name: "missing filer", deps: Deps{Logger: logger, Syncer: &mockSyncer{}}},
		{name: "missing syncer", deps: Deps{Logger: logger, Filer: &mockFiler{}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(tt.deps); err == nil {
				t.Error("New() expected error")
			}
		})
	}
}

func TestHealthNoAuth(t *testing.T) {
	handler := newTestServer(t, Deps{Config: config.APIConfig{Token: "secret"}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body["status"] != "ok" || body["version"] != "test" {
		t.Errorf("unexpected health body: %v", body)
	}
}

func TestAuthRequired(t *testing.T) {
	handler := newTestServer(t, Deps{Config: config.APIConfig{Token: "secret"}})

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{name: "missing header", header: "", want: http.StatusUnauthorized},
		{name: "wrong scheme", header: "Basic secret", want: http.StatusUnauthorized},
		{name: "wrong token", header: "Bearer nope", want: http.StatusUnauthorized},
		{name: "valid token", header: "Bearer secret", want: http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestAuthDisabledWithoutToken(t *testing.T) {
	handler := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 with auth disabled", rec.Code)
	}
}

func TestFileTicketCreated(t *testing.T) {
	filer := &mockFiler{result: tickets.Result{
		TicketID:  42,
		TicketURL: "https://rt.example.com/Ticket/Display.html?id=42",
		Outcome:   tickets.OutcomeCreated,
	}}
	recorder := &mockRecorder{}
	metrics := &mockMetrics{}
	handler := newTestServer(t, Deps{Filer: filer, Journal: recorder, Metrics: metrics})

	body := bytes.NewBufferString(`{"device_id":"dev-1","subject":"water leak","message":"sensor tripped"}`)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/tickets", body)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	var result tickets.Result
	if err := json.Unmarshal(rec.Body.Bytes(), &result); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if result.TicketID != 42 || result.Outcome != tickets.OutcomeCreated {
		t.Errorf("unexpected result: %+v", result)
	}

	if len(recorder.events) != 1 {
		t.Fatalf("expected 1 journal event, got %d", len(recorder.events))
	}
	event := recorder.events[0]
	if event.DeviceID != "dev-1" || event.TicketID != 42 || event.Source != journal.SourceAPI {
		t.Errorf("unexpected journal event: %+v", event)
	}

	if len(metrics.points) != 1 {
		t.Fatalf("expected 1 metric point, got %d", len(metrics.points))
	}
	point := metrics.points[0]
	if point.deviceID != "dev-1" || point.outcome != "created" || point.source != journal.SourceAPI || point.ticketID != 42 {
		t.Errorf("unexpected metric point: %+v", point)
	}
}

func TestFileTicketCommented(t *testing.T) {
	filer := &mockFiler{result: tickets.Result{TicketID: 7, Outcome: tickets.OutcomeCommented}}
	handler := newTestServer(t, Deps{Filer: filer})

	body := bytes.NewBufferString(`{"device_id":"dev-1","subject":"water leak"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tickets", body))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 for commented outcome", rec.Code)
	}
}

func TestFileTicketValidation(t *testing.T) {
	handler := newTestServer(t, Deps{})

	tests := []struct {
		name string
		body string
	}{
		{name: "invalid json", body: `not json`},
		{name: "missing device_id", body: `{"subject":"fault"}`},
		{name: "missing subject", body: `{"device_id":"dev-1"}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tickets", bytes.NewBufferString(tt.body)))
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
		})
	}
}

func TestFileTicketUpstreamFailure(t *testing.T) {
	filer := &mockFiler{err: errors.New("rt unreachable")}
	handler := newTestServer(t, Deps{Filer: filer})

	body := bytes.NewBufferString(`{"device_id":"dev-1","subject":"fault"}`)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/tickets", body))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
	var apiErr Error
	if err := json.Unmarshal(rec.Body.Bytes(), &apiErr); err != nil {
		t.Fatalf("decoding error body: %v", err)
	}
	if apiErr.Code != ErrCodeUpstream {
		t.Errorf("error code = %q, want %q", apiErr.Code, ErrCodeUpstream)
	}
}

func TestSyncRunsSweep(t *testing.T) {
	syncer := &mockSyncer{sweepRun: &journal.SyncRun{ID: "run-7", TriggeredBy: journal.TriggerManual}}
	handler := newTestServer(t, Deps{Syncer: syncer})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var run journal.SyncRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.ID != "run-7" {
		t.Errorf("run ID = %q, want run-7", run.ID)
	}
}

func TestSyncSweepFailure(t *testing.T) {
	syncer := &mockSyncer{sweepErr: errors.New("registry unreachable")}
	handler := newTestServer(t, Deps{Syncer: syncer})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync", nil))

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", rec.Code)
	}
}

func TestSyncDevice(t *testing.T) {
	syncer := &mockSyncer{deviceRun: &journal.SyncRun{ID: "run-9", DeviceID: "dev-1"}}
	handler := newTestServer(t, Deps{Syncer: syncer})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/dev-1", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var run journal.SyncRun
	if err := json.Unmarshal(rec.Body.Bytes(), &run); err != nil {
		t.Fatalf("decoding run: %v", err)
	}
	if run.DeviceID != "dev-1" {
		t.Errorf("run device = %q, want dev-1", run.DeviceID)
	}
}

func TestSyncDeviceNotFound(t *testing.T) {
	syncer := &mockSyncer{deviceErr: fmt.Errorf("syncing: %w", registry.ErrDeviceNotFound)}
	handler := newTestServer(t, Deps{Syncer: syncer})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/sync/missing", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestListRuns(t *testing.T) {
	runs := &mockRuns{runs: []journal.SyncRun{
		{ID: "run-2", TriggeredBy: journal.TriggerInterval},
		{ID: "run-1", TriggeredBy: journal.TriggerStartup},
	}}
	handler := newTestServer(t, Deps{Runs: runs})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs?triggered_by=interval&limit=10&offset=5", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if runs.filter.TriggeredBy != "interval" || runs.filter.Limit != 10 || runs.filter.Offset != 5 {
		t.Errorf("unexpected filter: %+v", runs.filter)
	}

	var body struct {
		Runs []journal.SyncRun `json:"runs"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if len(body.Runs) != 2 {
		t.Errorf("expected 2 runs, got %d", len(body.Runs))
	}
}

func TestListRunsBadLimit(t *testing.T) {
	handler := newTestServer(t, Deps{Runs: &mockRuns{}})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs?limit=ten", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestListRunsDisabled(t *testing.T) {
	handler := newTestServer(t, Deps{})

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/sync/runs", nil))

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404 when journal disabled", rec.Code)
	}
}
