// HA-RT Bridge
//
// This is the main entry point for the Home Assistant to Request Tracker
// bridge daemon. The bridge mirrors the Home Assistant device registry into
// an RT asset catalog and files deduplicated RT tickets for fault reports
// arriving over HTTP or MQTT.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/AlexHacksAround/ha-rt/migrations"

	"github.com/AlexHacksAround/ha-rt/internal/api"
	"github.com/AlexHacksAround/ha-rt/internal/assets"
	"github.com/AlexHacksAround/ha-rt/internal/events"
	"github.com/AlexHacksAround/ha-rt/internal/hass"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/config"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/database"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/influxdb"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/logging"
	"github.com/AlexHacksAround/ha-rt/internal/infrastructure/mqtt"
	"github.com/AlexHacksAround/ha-rt/internal/journal"
	"github.com/AlexHacksAround/ha-rt/internal/rt"
	"github.com/AlexHacksAround/ha-rt/internal/tickets"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"     // Semantic version (e.g., "1.0.0")
	commit  = "unknown" // Git commit hash
	date    = "unknown" // Build date
)

// Default configuration file path
const defaultConfigPath = "configs/config.yaml"

func main() {
	// Create a context that cancels on interrupt signals (Ctrl+C, SIGTERM)
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting HA-RT bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	// Load configuration
	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	// Reinitialise logger with config settings
	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)

	// Validate the RT endpoint before building any client around it
	endpoint, err := rt.ValidateEndpoint(cfg.RT.URL, cfg.RT.AllowHTTP)
	if err != nil {
		return fmt.Errorf("validating RT endpoint: %w", err)
	}

	rtClient := rt.NewClient(endpoint, cfg.RT.Token)
	rtClient.SetLogger(log)

	if probeErr := rtClient.Probe(ctx); probeErr != nil {
		return fmt.Errorf("probing RT: %w", probeErr)
	}
	log.Info("RT connected", "url", endpoint, "queue", cfg.RT.Queue, "catalog", cfg.RT.Catalog)

	// Open the journal database
	db, err := database.Open(database.Config{
		Path:        cfg.Database.Path,
		WALMode:     cfg.Database.WALMode,
		BusyTimeout: cfg.Database.BusyTimeout,
	})
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	log.Info("database connected", "path", cfg.Database.Path)

	// Run migrations
	if migrateErr := db.Migrate(ctx); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database migrations complete")

	journalRepo := journal.NewSQLiteRepository(db.DB)

	// Connect to Home Assistant
	haClient, err := hass.Connect(ctx, cfg.HomeAssistant)
	if err != nil {
		return fmt.Errorf("connecting to Home Assistant: %w", err)
	}
	defer func() {
		log.Info("disconnecting from Home Assistant")
		if closeErr := haClient.Close(); closeErr != nil {
			log.Error("error closing Home Assistant connection", "error", closeErr)
		}
	}()
	haClient.SetLogger(log)
	log.Info("Home Assistant connected", "url", cfg.HomeAssistant.URL)

	// Connect to MQTT broker (optional)
	var mqttClient *mqtt.Client
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT)
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
	} else {
		log.Info("MQTT disabled")
	}

	// Connect to InfluxDB (optional)
	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
	} else {
		log.Info("InfluxDB disabled")
	}

	// Build the domain engines over the RT gateway and HA registry
	filer := tickets.NewFiler(rtClient, haClient, tickets.Config{
		Queue:       cfg.RT.Queue,
		Catalog:     cfg.RT.Catalog,
		Address:     cfg.Site.Address,
		UIBaseURL:   cfg.HomeAssistant.UIURL,
		AutoBaseURL: cfg.HomeAssistant.URL,
	})
	filer.SetLogger(log)

	syncer := assets.NewSyncer(rtClient, haClient, assets.Config{
		Catalog: cfg.RT.Catalog,
		Address: cfg.Site.Address,
		Cleanup: cfg.Sync.Cleanup,
	})
	syncer.SetLogger(log)

	runner := &syncRunner{
		syncer:  syncer,
		journal: journalRepo,
		metrics: influxClient,
		broker:  mqttClient,
		qos:     byte(cfg.MQTT.QoS),
		logger:  log,
	}

	// Start fault-report intake over MQTT
	if mqttClient != nil {
		intake := events.NewIntake(filer, mqttClient, journalRepo, byte(cfg.MQTT.QoS))
		intake.SetLogger(log)
		if influxClient != nil {
			intake.SetMetrics(influxClient)
		}
		if startErr := intake.Start(); startErr != nil {
			return fmt.Errorf("starting MQTT intake: %w", startErr)
		}
		log.Info("MQTT fault-report intake started")
	}

	// Start the HTTP API
	apiDeps := api.Deps{
		Config:  cfg.API,
		Logger:  log,
		Filer:   filer,
		Syncer:  runner,
		Runs:    journalRepo,
		Journal: journalRepo,
		Version: version,
	}
	if influxClient != nil {
		apiDeps.Metrics = influxClient
	}
	apiServer, err := api.New(apiDeps)
	if err != nil {
		return fmt.Errorf("creating API server: %w", err)
	}
	if startErr := apiServer.Start(ctx); startErr != nil {
		return fmt.Errorf("starting API server: %w", startErr)
	}
	defer func() {
		if closeErr := apiServer.Close(); closeErr != nil {
			log.Error("error closing API server", "error", closeErr)
		}
	}()

	// Follow registry changes so assets track the inventory between sweeps
	registryEvents, err := haClient.SubscribeRegistryEvents(ctx)
	if err != nil {
		return fmt.Errorf("subscribing to registry events: %w", err)
	}
	go runEventLoop(ctx, registryEvents, runner, log)

	// Verify infrastructure connections are healthy
	if err := healthCheck(ctx, db, mqttClient, influxClient); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	log.Info("all health checks passed")

	// Startup sweep brings the catalog up to date before the interval kicks in
	if cfg.Sync.OnStart {
		go func() {
			if _, sweepErr := runner.RunSweep(ctx, journal.TriggerStartup); sweepErr != nil {
				log.Error("startup sync sweep failed", "error", sweepErr)
			}
		}()
	}

	// Periodic full sweeps
	if cfg.Sync.IntervalHours > 0 {
		interval := time.Duration(cfg.Sync.IntervalHours) * time.Hour
		go runScheduler(ctx, runner, interval, log)
	} else {
		log.Info("sync scheduler disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	// Wait for shutdown signal
	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")

	// Deferred Close() calls run in reverse order:
	// 1. API server
	// 2. InfluxDB (if enabled)
	// 3. MQTT (if enabled)
	// 4. Home Assistant
	// 5. Database

	log.Info("HA-RT bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses HART_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HART_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// healthCheck verifies infrastructure connections are healthy.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - db: Database connection to check
//   - mqttClient: MQTT client to check (may be nil if disabled)
//   - influxClient: InfluxDB client to check (may be nil if disabled)
//
// Returns:
//   - error: First health check failure, or nil if all healthy
func healthCheck(ctx context.Context, db *database.DB, mqttClient *mqtt.Client, influxClient *influxdb.Client) error {
	if err := db.HealthCheck(ctx); err != nil {
		return fmt.Errorf("database: %w", err)
	}

	if mqttClient != nil {
		if err := mqttClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("mqtt: %w", err)
		}
	}

	if influxClient != nil {
		if err := influxClient.HealthCheck(ctx); err != nil {
			return fmt.Errorf("influxdb: %w", err)
		}
	}

	// RT and Home Assistant were probed during startup; their clients fail
	// fast on the next call if either has since gone away.

	return nil
}
