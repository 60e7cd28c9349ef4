// Package api provides the local HTTP API for the HA-RT bridge.
//
// It exposes ticket filing, manual sync triggers, and sync history to
// Home Assistant automations and operators on the local network.
//
// The server follows the same lifecycle pattern as other infrastructure
// components:
//
//	server, err := api.New(deps)
//	server.Start(ctx)
//	defer server.Close()
//
// Thread Safety: All methods are safe for concurrent use from multiple goroutines.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/config"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/logging"
	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/tickets"
)

// gracefulShutdownTimeout is the maximum time to wait for in-flight requests
// to complete during shutdown.
const gracefulShutdownTimeout = 10 * time.Second

// Filer files tickets for fault reports.
type Filer interface {
	File(ctx context.Context, deviceID, subject, text string) (tickets.Result, error)
}

// SyncRunner runs registry sync passes.
type SyncRunner interface {
	RunSweep(ctx context.Context, triggeredBy string) (*journal.SyncRun, error)
	RunDevice(ctx context.Context, deviceID, triggeredBy string) (*journal.SyncRun, error)
}

// RunLister reads sync run history from the journal.
type RunLister interface {
	ListRuns(ctx context.Context, filter journal.RunFilter) ([]journal.SyncRun, error)
}

// TicketRecorder persists ticket events to the journal.
type TicketRecorder interface {
	RecordTicketEvent(ctx context.Context, event *journal.TicketEvent) error
}

// TicketMetrics records ticket outcomes as measurement points.
type TicketMetrics interface {
	WriteTicketEvent(deviceID, outcome, source string, ticketID int)
}

// Deps holds the dependencies required by the API server.
type Deps struct {
	Config  config.APIConfig
	Logger  *logging.Logger
	Filer   Filer
	Syncer  SyncRunner
	Runs    RunLister      // optional: nil disables GET /sync/runs
	Journal TicketRecorder // optional: nil disables ticket event journaling
	Metrics TicketMetrics  // optional: nil disables ticket outcome metrics
	Version string
}

// Server is the local HTTP API server.
//
// It manages the HTTP listener, routes, and middleware. The server is
// created with New() and started with Start().
type Server struct {
	cfg     config.APIConfig
	logger  *logging.Logger
	filer   Filer
	syncer  SyncRunner
	runs    RunLister
	journal TicketRecorder
	metrics TicketMetrics
	version string
	server  *http.Server
}

// New creates a new API server with the given dependencies.
//
// The server is not started until Start() is called.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if deps.Filer == nil {
		return nil, fmt.Errorf("ticket filer is required")
	}
	if deps.Syncer == nil {
		return nil, fmt.Errorf("sync runner is required")
	}

	return &Server{
		cfg:     deps.Config,
		logger:  deps.Logger,
		filer:   deps.Filer,
		syncer:  deps.Syncer,
		runs:    deps.Runs,
		journal: deps.Journal,
		metrics: deps.Metrics,
		version: deps.Version,
	}, nil
}

// Start begins listening for HTTP connections.
//
// The listener runs in a background goroutine; stop it with Close().
//
// Returns:
//   - error: If the server fails to start (port in use, etc.)
func (s *Server) Start(_ context.Context) error {
	if s.cfg.Token == "" {
		s.logger.Warn("API token not set, accepting unauthenticated requests")
	}

	router := s.buildRouter()

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           router,
		ReadTimeout:       time.Duration(s.cfg.Timeouts.Read) * time.Second,
		ReadHeaderTimeout: time.Duration(s.cfg.Timeouts.Read) * time.Second,
		WriteTimeout:      time.Duration(s.cfg.Timeouts.Write) * time.Second,
		IdleTimeout:       time.Duration(s.cfg.Timeouts.Idle) * time.Second,
	}

	go func() {
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("API server error", "error", err)
		}
	}()

	s.logger.Info("API server started", "address", s.server.Addr)
	return nil
}

// Close gracefully shuts down the API server.
//
// It waits up to 10 seconds for in-flight requests to complete,
// then forcefully closes remaining connections.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()

	s.logger.Info("API server shutting down")
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("shutting down API server: %w", err)
	}
	return nil
}
