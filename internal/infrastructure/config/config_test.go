package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
bridge:
  id: "studio-a"
slobs:
  url: "ws://10.0.0.5:59650/api/websocket"
  token: "abc123"
  request_timeout: 3
database:
  path: "/tmp/test.db"
mqtt:
  broker:
    host: "broker.local"
    port: 1883
  qos: 1
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Bridge.ID != "studio-a" {
		t.Errorf("Bridge.ID = %q, want studio-a", cfg.Bridge.ID)
	}
	if cfg.SLOBS.URL != "ws://10.0.0.5:59650/api/websocket" {
		t.Errorf("SLOBS.URL = %q", cfg.SLOBS.URL)
	}
	if got := cfg.SLOBS.GetRequestTimeout(); got != 3*time.Second {
		t.Errorf("GetRequestTimeout() = %v, want 3s", got)
	}
	// Untouched fields keep their defaults.
	if cfg.SLOBS.WriteTimeout != 5 {
		t.Errorf("SLOBS.WriteTimeout = %d, want default 5", cfg.SLOBS.WriteTimeout)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q", cfg.MQTT.Broker.Host)
	}
}

func TestLoad_TokenFromEnvironment(t *testing.T) {
	path := writeConfig(t, "bridge:\n  id: \"x\"\n")
	t.Setenv("SLOBSBRIDGE_SLOBS_TOKEN", "from-env")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.SLOBS.Token != "from-env" {
		t.Errorf("SLOBS.Token = %q, want from-env", cfg.SLOBS.Token)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/path/config.yaml"); err == nil {
		t.Error("Load() expected error for missing file")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")
	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestLoad_MissingToken(t *testing.T) {
	path := writeConfig(t, "bridge:\n  id: \"x\"\n")

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error without a token")
	}
	if !strings.Contains(err.Error(), "slobs.token") {
		t.Errorf("error should name slobs.token: %v", err)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.SLOBS.Token = "token"
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"missing bridge id", func(c *Config) { c.Bridge.ID = "" }, "bridge.id"},
		{"zero health interval", func(c *Config) { c.Bridge.HealthInterval = 0 }, "health_interval"},
		{"missing url", func(c *Config) { c.SLOBS.URL = "" }, "slobs.url is required"},
		{"http url", func(c *Config) { c.SLOBS.URL = "http://127.0.0.1:59650/api" }, "ws://"},
		{"wss url", func(c *Config) { c.SLOBS.URL = "wss://obs.example/api/websocket" }, ""},
		{"negative request timeout", func(c *Config) { c.SLOBS.RequestTimeout = -1 }, "request_timeout"},
		{"zero request timeout", func(c *Config) { c.SLOBS.RequestTimeout = 0 }, ""},
		{"missing database path", func(c *Config) { c.Database.Path = "" }, "database.path"},
		{"invalid qos", func(c *Config) { c.MQTT.QoS = 3 }, "mqtt.qos"},
		{"invalid api port", func(c *Config) { c.API.Port = 70000 }, "api.port"},
		{"api disabled ignores port", func(c *Config) { c.API.Enabled = false; c.API.Port = 0 }, ""},
		{"short jwt secret", func(c *Config) { c.API.Auth.JWTSecret = "short" }, "jwt_secret"},
		{"jwt secret ok", func(c *Config) { c.API.Auth.JWTSecret = strings.Repeat("k", 32) }, ""},
		{"negative token ttl", func(c *Config) { c.API.Auth.TokenTTL = -5 }, "token_ttl"},
		{"influx without url", func(c *Config) { c.InfluxDB.Enabled = true; c.InfluxDB.Org = "o" }, "influxdb.url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()

			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error = %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Validate() expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want it to contain %q", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_ValidateReportsAllErrors(t *testing.T) {
	cfg := defaultConfig()
	cfg.Bridge.ID = ""
	cfg.Database.Path = ""

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"bridge.id", "database.path", "slobs.token"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error missing %q: %v", want, err)
		}
	}
}

func TestConfig_GetTimeouts(t *testing.T) {
	cfg := &Config{
		API: APIConfig{Timeouts: APITimeoutConfig{Read: 30, Write: 45, Idle: 60}},
		SLOBS: SLOBSConfig{ConnectTimeout: 7, WriteTimeout: 2},
		Bridge: BridgeConfig{HealthInterval: 15},
	}

	checks := []struct {
		name string
		got  time.Duration
		want time.Duration
	}{
		{"api read", cfg.GetReadTimeout(), 30 * time.Second},
		{"api write", cfg.GetWriteTimeout(), 45 * time.Second},
		{"api idle", cfg.GetIdleTimeout(), 60 * time.Second},
		{"slobs connect", cfg.SLOBS.GetConnectTimeout(), 7 * time.Second},
		{"slobs write", cfg.SLOBS.GetWriteTimeout(), 2 * time.Second},
		{"slobs request disabled", cfg.SLOBS.GetRequestTimeout(), 0},
		{"health", cfg.Bridge.GetHealthInterval(), 15 * time.Second},
	}
	for _, c := range checks {
		if c.got != c.want {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := defaultConfig()

	t.Setenv("SLOBSBRIDGE_BRIDGE_ID", "studio-b")
	t.Setenv("SLOBSBRIDGE_SLOBS_URL", "ws://obs:59650/api/websocket")
	t.Setenv("SLOBSBRIDGE_SLOBS_REQUEST_TIMEOUT", "4")
	t.Setenv("SLOBSBRIDGE_DATABASE_PATH", "/custom/path.db")
	t.Setenv("SLOBSBRIDGE_MQTT_HOST", "mqtt.example.com")
	t.Setenv("SLOBSBRIDGE_MQTT_PORT", "8883")
	t.Setenv("SLOBSBRIDGE_MQTT_PASSWORD", "testpass")
	t.Setenv("SLOBSBRIDGE_API_PORT", "not-a-number")
	t.Setenv("SLOBSBRIDGE_INFLUXDB_TOKEN", "secret-token")

	applyEnvOverrides(cfg)

	if cfg.Bridge.ID != "studio-b" {
		t.Errorf("Bridge.ID = %q", cfg.Bridge.ID)
	}
	if cfg.SLOBS.URL != "ws://obs:59650/api/websocket" {
		t.Errorf("SLOBS.URL = %q", cfg.SLOBS.URL)
	}
	if cfg.SLOBS.RequestTimeout != 4 {
		t.Errorf("SLOBS.RequestTimeout = %d, want 4", cfg.SLOBS.RequestTimeout)
	}
	if cfg.Database.Path != "/custom/path.db" {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
	if cfg.MQTT.Broker.Host != "mqtt.example.com" || cfg.MQTT.Broker.Port != 8883 {
		t.Errorf("MQTT broker = %s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port)
	}
	if cfg.MQTT.Auth.Password != "testpass" {
		t.Errorf("MQTT.Auth.Password = %q", cfg.MQTT.Auth.Password)
	}
	if cfg.API.Port != 8090 {
		t.Errorf("unparsable API port should keep default, got %d", cfg.API.Port)
	}
	if cfg.InfluxDB.Token != "secret-token" {
		t.Errorf("InfluxDB.Token = %q", cfg.InfluxDB.Token)
	}
}

func TestConfig_Redacted(t *testing.T) {
	cfg := defaultConfig()
	cfg.SLOBS.Token = "very-secret"
	cfg.MQTT.Auth.Password = "hunter2"
	cfg.API.Auth.JWTSecret = "jwt-secret-jwt-secret-jwt-secret-1"

	r := cfg.Redacted()

	if r.SLOBS.Token == "very-secret" || r.MQTT.Auth.Password == "hunter2" ||
		r.API.Auth.JWTSecret == cfg.API.Auth.JWTSecret {
		t.Error("Redacted() leaked a secret")
	}
	if r.InfluxDB.Token != "" {
		t.Error("empty secrets should stay empty")
	}
	if cfg.SLOBS.Token != "very-secret" {
		t.Error("Redacted() must not modify the receiver")
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	if cfg.SLOBS.URL != DefaultSLOBSURL {
		t.Errorf("default SLOBS.URL = %q", cfg.SLOBS.URL)
	}
	if cfg.SLOBS.RequestTimeout != 10 {
		t.Errorf("default RequestTimeout = %d, want 10", cfg.SLOBS.RequestTimeout)
	}
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("default MQTT port = %d", cfg.MQTT.Broker.Port)
	}
	if cfg.Database.Path == "" {
		t.Error("default Database.Path empty")
	}
}
