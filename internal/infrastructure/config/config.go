package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the HA-RT bridge.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site          SiteConfig     `yaml:"site"`
	RT            RTConfig       `yaml:"rt"`
	HomeAssistant HAConfig       `yaml:"home_assistant"`
	Sync          SyncConfig     `yaml:"sync"`
	API           APIConfig      `yaml:"api"`
	MQTT          MQTTConfig     `yaml:"mqtt"`
	Database      DatabaseConfig `yaml:"database"`
	InfluxDB      InfluxDBConfig `yaml:"influxdb"`
	Logging       LoggingConfig  `yaml:"logging"`
}

// SiteConfig contains site-specific information attached to tickets and assets.
type SiteConfig struct {
	Name string `yaml:"name"`

	// Address is a free-text location label written into the Address custom
	// field and the "Location:" line of ticket bodies. Optional.
	Address string `yaml:"address"`
}

// RTConfig contains Request Tracker connection settings.
type RTConfig struct {
	// URL is the RT base URL, e.g. "https://rt.example.com".
	// It is validated by rt.ValidateEndpoint before any client is built.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// Queue is the ticket queue used for filing and deduplication.
	Queue string `yaml:"queue"`

	// Catalog is the asset catalog devices are mirrored into.
	Catalog string `yaml:"catalog"`

	// AllowHTTP permits plaintext http:// endpoints. Test environments only.
	AllowHTTP bool `yaml:"allow_http"`
}

// HAConfig contains Home Assistant connection settings.
type HAConfig struct {
	// URL is the Home Assistant base URL, e.g. "http://homeassistant.local:8123".
	// The WebSocket API endpoint is derived from it.
	URL   string `yaml:"url"`
	Token string `yaml:"token"`

	// UIURL overrides the base URL used to build device-information links in
	// tickets and assets. When empty, URL is used instead.
	UIURL string `yaml:"ui_url"`
}

// SyncConfig contains asset synchronisation settings.
type SyncConfig struct {
	// IntervalHours is the period between full inventory sweeps. 0 disables
	// the scheduler (event-driven and manual syncs still work).
	IntervalHours int `yaml:"interval_hours"`

	// Cleanup enables orphan-asset retirement at the end of each full sweep.
	Cleanup bool `yaml:"cleanup"`

	// OnStart triggers a full sweep immediately after startup.
	OnStart bool `yaml:"on_start"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Token    string           `yaml:"token"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// MQTTConfig contains MQTT broker connection settings for fault-report intake.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// DatabaseConfig contains SQLite journal database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings for sync metrics.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from the specified YAML file.
//
// The loading order is:
//  1. Defaults
//  2. YAML file contents
//  3. Environment variable overrides (HART_* variables)
//  4. Validation
//
// Returns an error if the file cannot be read, parsed, or fails validation.
func Load(path string) (*Config, error) {
	// Start with defaults
	cfg := defaultConfig()

	// Read and parse YAML file
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns the baseline configuration before YAML and
// environment overrides are applied.
func defaultConfig() *Config {
	return &Config{
		RT: RTConfig{
			Queue:   "Facility Management",
			Catalog: "HA Murten",
		},
		Sync: SyncConfig{
			IntervalHours: 24,
			Cleanup:       true,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8321,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 120, // full sweeps answer on the request path
				Idle:  60,
			},
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hart-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
				MaxAttempts:  0,
			},
		},
		Database: DatabaseConfig{
			Path:        "./data/hart.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies HART_* environment variables on top of the
// loaded configuration. Secrets should always arrive this way rather than
// living in the YAML file.
func applyEnvOverrides(cfg *Config) {
	// RT
	if v := os.Getenv("HART_RT_URL"); v != "" {
		cfg.RT.URL = v
	}
	if v := os.Getenv("HART_RT_TOKEN"); v != "" {
		cfg.RT.Token = v
	}

	// Home Assistant
	if v := os.Getenv("HART_HA_URL"); v != "" {
		cfg.HomeAssistant.URL = v
	}
	if v := os.Getenv("HART_HA_TOKEN"); v != "" {
		cfg.HomeAssistant.Token = v
	}

	// API
	if v := os.Getenv("HART_API_TOKEN"); v != "" {
		cfg.API.Token = v
	}

	// MQTT
	if v := os.Getenv("HART_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HART_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// Database
	if v := os.Getenv("HART_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// InfluxDB
	if v := os.Getenv("HART_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for completeness and consistency.
// Endpoint safety checks (the SSRF policy) are the rt package's job and run
// in main before any client is constructed; this only covers presence and
// ranges.
func (c *Config) Validate() error {
	var errs []string

	// RT validation
	if c.RT.URL == "" {
		errs = append(errs, "rt.url is required")
	}
	if c.RT.Token == "" {
		errs = append(errs, "rt.token is required (set HART_RT_TOKEN environment variable)")
	}
	if c.RT.Queue == "" {
		errs = append(errs, "rt.queue is required")
	}
	if c.RT.Catalog == "" {
		errs = append(errs, "rt.catalog is required")
	}

	// Home Assistant validation
	if c.HomeAssistant.URL == "" {
		errs = append(errs, "home_assistant.url is required")
	}
	if c.HomeAssistant.Token == "" {
		errs = append(errs, "home_assistant.token is required (set HART_HA_TOKEN environment variable)")
	}

	// Sync validation
	if c.Sync.IntervalHours < 0 {
		errs = append(errs, "sync.interval_hours must not be negative")
	}

	// API validation
	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	// MQTT validation
	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	// Database validation
	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}
