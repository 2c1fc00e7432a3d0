// slobsbridge connects Streamlabs OBS to the Gray Logic MQTT bus.
//
// It keeps a live copy of the Streamlabs scene list, republishes scene and
// streaming events on MQTT, and turns MQTT (or REST) commands into
// Streamlabs JSON-RPC calls.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/gray-logic-slobs/internal/api"
	"github.com/nerrad567/gray-logic-slobs/internal/audit"
	"github.com/nerrad567/gray-logic-slobs/internal/auth"
	"github.com/nerrad567/gray-logic-slobs/internal/bridges/slobs"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/database"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/logging"
	"github.com/nerrad567/gray-logic-slobs/internal/infrastructure/mqtt"
	"github.com/nerrad567/gray-logic-slobs/migrations"
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

// errStreamlabsClosed is returned by run when the Streamlabs connection
// drops. The connector does not reconnect; the service manager restarts us.
var errStreamlabsClosed = errors.New("streamlabs connection closed")

func main() {
	if len(os.Args) > 1 && os.Args[1] == "token" {
		if err := issueToken(os.Stdout, os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run is the actual application logic, separated from main for testability.
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	// Use default logger until config is loaded
	log := logging.Default()
	log.Info("starting slobs bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Debug("effective configuration", "config", cfg.Redacted())

	// Database and audit trail
	db, err := database.Open(cfg.Database)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer func() {
		log.Info("closing database")
		if closeErr := db.Close(); closeErr != nil {
			log.Error("error closing database", "error", closeErr)
		}
	}()
	if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
		return fmt.Errorf("running migrations: %w", migrateErr)
	}
	log.Info("database ready", "path", db.Path())

	auditRepo := audit.NewSQLiteRepository(db.DB)

	// MQTT, with an offline Last Will on the health topic
	lwt, err := json.Marshal(slobs.NewLWTMessage(cfg.Bridge.ID))
	if err != nil {
		return fmt.Errorf("encoding last will: %w", err)
	}
	mqttClient, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{
		Topic:    slobs.HealthTopic(),
		Payload:  lwt,
		QoS:      1,
		Retained: true,
	})
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

	// InfluxDB (optional)
	metrics, influxClient, err := connectInflux(cfg, log)
	if err != nil {
		return err
	}
	if influxClient != nil {
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
	}

	// Streamlabs connector and bridge
	transport := slobs.NewWebSocketTransport(slobs.WebSocketConfig{
		URL:            cfg.SLOBS.URL,
		ConnectTimeout: cfg.SLOBS.GetConnectTimeout(),
		WriteTimeout:   cfg.SLOBS.GetWriteTimeout(),
	})
	connector, err := slobs.NewConnector(slobs.Options{
		Transport:      transport,
		Token:          cfg.SLOBS.Token,
		RequestTimeout: cfg.SLOBS.GetRequestTimeout(),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating connector: %w", err)
	}
	defer func() {
		log.Info("closing streamlabs connection")
		if closeErr := connector.Close(); closeErr != nil {
			log.Error("error closing streamlabs connection", "error", closeErr)
		}
	}()

	bridge, err := slobs.NewBridge(slobs.BridgeOptions{
		BridgeID:       cfg.Bridge.ID,
		Version:        version,
		Address:        cfg.SLOBS.URL,
		HealthInterval: cfg.Bridge.GetHealthInterval(),
		MQTTClient:     &mqttBridgeAdapter{client: mqttClient},
		Controller:     connector,
		Metrics:        metrics,
		Audit:          audit.NewCommandRecorder(auditRepo),
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	// The bridge installs the connector callbacks, so it starts first.
	if startErr := bridge.Start(ctx); startErr != nil {
		return fmt.Errorf("starting bridge: %w", startErr)
	}
	defer func() {
		log.Info("stopping bridge")
		bridge.Stop()
	}()

	if startErr := connector.Start(ctx); startErr != nil {
		return fmt.Errorf("connecting to streamlabs: %w", startErr)
	}
	log.Info("streamlabs connected", "url", cfg.SLOBS.URL)

	// REST API (optional)
	if cfg.API.Enabled {
		checks := map[string]api.HealthChecker{
			"database": db,
			"mqtt":     mqttClient,
		}
		if influxClient != nil {
			checks["influxdb"] = influxClient
		}

		server, apiErr := api.New(api.Deps{
			Config:  cfg.API,
			Logger:  log,
			Scenes:  connector,
			Audit:   auditRepo,
			Checks:  checks,
			Version: version,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := server.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := server.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	} else {
		log.Info("API server disabled")
	}

	log.Info("initialisation complete, waiting for shutdown signal")

	select {
	case <-ctx.Done():
		log.Info("shutdown signal received, cleaning up")
	case <-transport.Done():
		log.Error("streamlabs connection lost, shutting down", "error", errStreamlabsClosed)
		return errStreamlabsClosed
	}

	// Deferred cleanup runs in reverse order:
	// API server, bridge, streamlabs, InfluxDB, MQTT, database.

	log.Info("slobs bridge stopped")
	return nil
}

// getConfigPath returns the configuration file path.
// Uses SLOBSBRIDGE_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv(config.EnvPrefix + "CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// issueToken prints an API token signed with the configured secret.
//
// Usage: slobsbridge token <subject> [viewer|operator]
func issueToken(out io.Writer, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		return errors.New("usage: slobsbridge token <subject> [viewer|operator]")
	}

	role := auth.RoleOperator
	if len(args) == 2 {
		var err error
		if role, err = auth.ParseRole(args[1]); err != nil {
			return err
		}
	}

	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if cfg.API.Auth.JWTSecret == "" {
		return errors.New("api.auth.jwt_secret is not set; the API is open")
	}

	ttl := time.Duration(cfg.API.Auth.TokenTTL) * time.Minute
	token, err := auth.GenerateToken(args[0], role, cfg.API.Auth.JWTSecret, ttl)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, token)
	return err
}

// connectInflux returns the metrics writer for the bridge. When InfluxDB is
// disabled both return values are nil; the writer is a true nil interface so
// the bridge skips metrics.
func connectInflux(cfg *config.Config, log *logging.Logger) (slobs.MetricsWriter, *influxdb.Client, error) {
	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Bridge.ID)
	if errors.Is(err, influxdb.ErrDisabled) {
		log.Info("InfluxDB disabled")
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
	}

	client.SetOnError(func(err error) {
		log.Error("InfluxDB write error", "error", err)
	})
	log.Info("InfluxDB connected",
		"url", cfg.InfluxDB.URL,
		"org", cfg.InfluxDB.Org,
		"bucket", cfg.InfluxDB.Bucket,
	)
	return client, client, nil
}

// mqttBridgeAdapter adapts the infrastructure MQTT client to the bridge's
// MQTTClient interface. The difference is the Subscribe handler signature:
//   - infrastructure mqtt: func(topic, payload []byte) error
//   - slobs bridge expects: func(topic, payload []byte)
type mqttBridgeAdapter struct {
	client *mqtt.Client
}

// Publish implements slobs.MQTTClient.
func (a *mqttBridgeAdapter) Publish(topic string, payload []byte, qos byte, retained bool) error {
	return a.client.Publish(topic, payload, qos, retained)
}

// Subscribe implements slobs.MQTTClient.
func (a *mqttBridgeAdapter) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	return a.client.Subscribe(topic, qos, func(t string, p []byte) error {
		handler(t, p)
		return nil
	})
}

// IsConnected implements slobs.MQTTClient.
func (a *mqttBridgeAdapter) IsConnected() bool {
	return a.client.IsConnected()
}
