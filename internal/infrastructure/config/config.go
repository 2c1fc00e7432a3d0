package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvPrefix is prepended to every environment variable override.
const EnvPrefix = "SLOBSBRIDGE_"

// DefaultSLOBSURL is the raw websocket endpoint Streamlabs OBS exposes when
// remote control over websockets is enabled.
const DefaultSLOBSURL = "ws://127.0.0.1:59650/api/websocket"

// Config is the root configuration for the SLOBS bridge.
// Values come from YAML and may be overridden by environment variables.
type Config struct {
	Bridge   BridgeConfig   `yaml:"bridge"`
	SLOBS    SLOBSConfig    `yaml:"slobs"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	API      APIConfig      `yaml:"api"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// BridgeConfig identifies this bridge instance on the MQTT bus.
type BridgeConfig struct {
	ID string `yaml:"id"`
	// HealthInterval is seconds between health publications.
	HealthInterval int `yaml:"health_interval"`
}

// SLOBSConfig holds the Streamlabs OBS API connection settings.
type SLOBSConfig struct {
	URL string `yaml:"url"`
	// Token is the API token shown in SLOBS under Settings > Remote Control.
	// Prefer SLOBSBRIDGE_SLOBS_TOKEN over putting it in the file.
	Token string `yaml:"token"`

	// All timeouts are in seconds. RequestTimeout of 0 disables
	// per-request expiry.
	ConnectTimeout int `yaml:"connect_timeout"`
	RequestTimeout int `yaml:"request_timeout"`
	WriteTimeout   int `yaml:"write_timeout"`
}

// DatabaseConfig contains SQLite settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
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

// MQTTAuthConfig contains MQTT credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnectConfig contains MQTT reconnection settings, in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	Auth     APIAuthConfig    `yaml:"auth"`
}

// APIAuthConfig enables bearer-token auth on the API. An empty secret
// leaves the API open, which suits a loopback-only listener.
type APIAuthConfig struct {
	JWTSecret string `yaml:"jwt_secret"`
	// TokenTTL is the lifetime in minutes of tokens issued by
	// "slobsbridge token". Zero issues tokens that never expire.
	TokenTTL int `yaml:"token_ttl"`
}

// APITimeoutConfig contains HTTP timeouts in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig lists origins allowed to call the API from a browser.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
}

// InfluxDBConfig contains InfluxDB connection settings.
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

// Load reads configuration from a YAML file and applies environment overrides.
//
// Order of precedence, lowest first:
//  1. built-in defaults
//  2. YAML file
//  3. SLOBSBRIDGE_* environment variables
//
// Parameters:
//   - path: YAML configuration file
//
// Returns:
//   - *Config: loaded and validated configuration
//   - error: file unreadable, unparsable, or invalid
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		Bridge: BridgeConfig{
			ID:             "slobs-bridge-01",
			HealthInterval: 30,
		},
		SLOBS: SLOBSConfig{
			URL:            DefaultSLOBSURL,
			ConnectTimeout: 10,
			RequestTimeout: 10,
			WriteTimeout:   5,
		},
		Database: DatabaseConfig{
			Path:        "./data/slobsbridge.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "slobs-bridge",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8090,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Bucket:        "slobs",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies SLOBSBRIDGE_SECTION_KEY overrides.
func applyEnvOverrides(cfg *Config) {
	setString := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}

	setString("BRIDGE_ID", &cfg.Bridge.ID)

	setString("SLOBS_URL", &cfg.SLOBS.URL)
	setString("SLOBS_TOKEN", &cfg.SLOBS.Token)
	setInt("SLOBS_REQUEST_TIMEOUT", &cfg.SLOBS.RequestTimeout)

	setString("DATABASE_PATH", &cfg.Database.Path)

	setString("MQTT_HOST", &cfg.MQTT.Broker.Host)
	setInt("MQTT_PORT", &cfg.MQTT.Broker.Port)
	setString("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	setString("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	setString("API_HOST", &cfg.API.Host)
	setInt("API_PORT", &cfg.API.Port)
	setString("API_JWT_SECRET", &cfg.API.Auth.JWTSecret)

	setString("INFLUXDB_URL", &cfg.InfluxDB.URL)
	setString("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	setString("LOG_LEVEL", &cfg.Logging.Level)
}

// Validate checks the configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string

	if c.Bridge.ID == "" {
		errs = append(errs, "bridge.id is required")
	}
	if c.Bridge.HealthInterval < 1 {
		errs = append(errs, "bridge.health_interval must be at least 1 second")
	}

	if c.SLOBS.URL == "" {
		errs = append(errs, "slobs.url is required")
	} else if u, err := url.Parse(c.SLOBS.URL); err != nil || (u.Scheme != "ws" && u.Scheme != "wss") {
		errs = append(errs, "slobs.url must be a ws:// or wss:// URL")
	}
	if c.SLOBS.Token == "" {
		errs = append(errs, "slobs.token is required (set "+EnvPrefix+"SLOBS_TOKEN)")
	}
	if c.SLOBS.RequestTimeout < 0 {
		errs = append(errs, "slobs.request_timeout must not be negative")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Auth.JWTSecret != "" && len(c.API.Auth.JWTSecret) < minJWTSecretLength {
		errs = append(errs, fmt.Sprintf("api.auth.jwt_secret must be at least %d characters", minJWTSecretLength))
	}
	if c.API.Auth.TokenTTL < 0 {
		errs = append(errs, "api.auth.token_ttl must not be negative")
	}

	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Org == "" {
			errs = append(errs, "influxdb.org is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}
	return nil
}

func seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// GetConnectTimeout returns the websocket dial timeout.
func (s SLOBSConfig) GetConnectTimeout() time.Duration { return seconds(s.ConnectTimeout) }

// GetRequestTimeout returns the per-request reply deadline; zero disables it.
func (s SLOBSConfig) GetRequestTimeout() time.Duration { return seconds(s.RequestTimeout) }

// GetWriteTimeout returns the websocket write deadline.
func (s SLOBSConfig) GetWriteTimeout() time.Duration { return seconds(s.WriteTimeout) }

// GetHealthInterval returns the health publication period.
func (b BridgeConfig) GetHealthInterval() time.Duration { return seconds(b.HealthInterval) }

// GetReadTimeout returns the API read timeout.
func (c *Config) GetReadTimeout() time.Duration { return seconds(c.API.Timeouts.Read) }

// GetWriteTimeout returns the API write timeout.
func (c *Config) GetWriteTimeout() time.Duration { return seconds(c.API.Timeouts.Write) }

// GetIdleTimeout returns the API idle timeout.
func (c *Config) GetIdleTimeout() time.Duration { return seconds(c.API.Timeouts.Idle) }

const redacted = "[redacted]"

// minJWTSecretLength is the shortest accepted HS256 secret.
const minJWTSecretLength = 32

// Redacted returns a copy with secrets masked, safe to log.
func (c *Config) Redacted() Config {
	out := *c
	if out.SLOBS.Token != "" {
		out.SLOBS.Token = redacted
	}
	if out.MQTT.Auth.Password != "" {
		out.MQTT.Auth.Password = redacted
	}
	if out.InfluxDB.Token != "" {
		out.InfluxDB.Token = redacted
	}
	if out.API.Auth.JWTSecret != "" {
		out.API.Auth.JWTSecret = redacted
	}
	return out
}
