package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// writeConfig writes a temporary config file and returns its path.
func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("writing config file: %v", err)
	}
	return path
}

const minimalConfig = `
rt:
  url: https://rt.example.com
  token: secret-rt-token
home_assistant:
  url: http://homeassistant.example:8123
  token: secret-ha-token
`

func TestLoadMinimalConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	// Defaults applied on top of the minimal file
	if cfg.RT.Queue != "Facility Management" {
		t.Errorf("RT.Queue = %q, want default queue", cfg.RT.Queue)
	}
	if cfg.RT.Catalog != "HA Murten" {
		t.Errorf("RT.Catalog = %q, want default catalog", cfg.RT.Catalog)
	}
	if cfg.Sync.IntervalHours != 24 {
		t.Errorf("Sync.IntervalHours = %d, want 24", cfg.Sync.IntervalHours)
	}
	if !cfg.Sync.Cleanup {
		t.Error("Sync.Cleanup = false, want true by default")
	}
	if cfg.API.Port != 8321 {
		t.Errorf("API.Port = %d, want 8321", cfg.API.Port)
	}
	if cfg.Database.Path == "" {
		t.Error("Database.Path is empty, want default path")
	}
}

func TestLoadFullConfig(t *testing.T) {
	content := `
site:
  name: Murten House
  address: Hauptgasse 1, 3280 Murten
rt:
  url: https://rt.example.com
  token: tok
  queue: Maintenance
  catalog: Devices
  allow_http: false
home_assistant:
  url: http://ha.example:8123
  token: hatok
  ui_url: https://ha.example.org
sync:
  interval_hours: 6
  cleanup: false
  on_start: true
api:
  host: 127.0.0.1
  port: 9000
  token: apitok
mqtt:
  enabled: true
  broker:
    host: broker.example
    port: 8883
    tls: true
    client_id: hart-1
  qos: 2
database:
  path: /var/lib/hart/hart.db
logging:
  level: debug
  format: text
`
	cfg, err := Load(writeConfig(t, content))
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.Site.Address != "Hauptgasse 1, 3280 Murten" {
		t.Errorf("Site.Address = %q", cfg.Site.Address)
	}
	if cfg.RT.Queue != "Maintenance" {
		t.Errorf("RT.Queue = %q, want Maintenance", cfg.RT.Queue)
	}
	if cfg.HomeAssistant.UIURL != "https://ha.example.org" {
		t.Errorf("HomeAssistant.UIURL = %q", cfg.HomeAssistant.UIURL)
	}
	if cfg.Sync.IntervalHours != 6 || cfg.Sync.Cleanup || !cfg.Sync.OnStart {
		t.Errorf("Sync = %+v, want interval 6, cleanup off, on_start on", cfg.Sync)
	}
	if !cfg.MQTT.Enabled || cfg.MQTT.QoS != 2 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil {
		t.Fatal("Load() = nil, want error for missing file")
	}
}

func TestLoadInvalidYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "rt: [not a mapping"))
	if err == nil {
		t.Fatal("Load() = nil, want parse error")
	}
}

func TestValidateErrors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantMsg string
	}{
		{
			name:    "missing rt url",
			mutate:  func(c *Config) { c.RT.URL = "" },
			wantMsg: "rt.url is required",
		},
		{
			name:    "missing rt token",
			mutate:  func(c *Config) { c.RT.Token = "" },
			wantMsg: "rt.token is required",
		},
		{
			name:    "missing ha url",
			mutate:  func(c *Config) { c.HomeAssistant.URL = "" },
			wantMsg: "home_assistant.url is required",
		},
		{
			name:    "negative sync interval",
			mutate:  func(c *Config) { c.Sync.IntervalHours = -1 },
			wantMsg: "sync.interval_hours",
		},
		{
			name:    "api port out of range",
			mutate:  func(c *Config) { c.API.Port = 70000 },
			wantMsg: "api.port",
		},
		{
			name:    "invalid qos",
			mutate:  func(c *Config) { c.MQTT.QoS = 3 },
			wantMsg: "mqtt.qos",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			cfg.RT.URL = "https://rt.example.com"
			cfg.RT.Token = "tok"
			cfg.HomeAssistant.URL = "http://ha.example:8123"
			cfg.HomeAssistant.Token = "hatok"
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatal("Validate() = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("Validate() = %q, want message containing %q", err, tt.wantMsg)
			}
		})
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("HART_RT_TOKEN", "env-rt-token")
	t.Setenv("HART_HA_TOKEN", "env-ha-token")
	t.Setenv("HART_DATABASE_PATH", "/tmp/override.db")

	cfg, err := Load(writeConfig(t, minimalConfig))
	if err != nil {
		t.Fatalf("Load() = %v, want nil", err)
	}

	if cfg.RT.Token != "env-rt-token" {
		t.Errorf("RT.Token = %q, want env override", cfg.RT.Token)
	}
	if cfg.HomeAssistant.Token != "env-ha-token" {
		t.Errorf("HomeAssistant.Token = %q, want env override", cfg.HomeAssistant.Token)
	}
	if cfg.Database.Path != "/tmp/override.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
}
