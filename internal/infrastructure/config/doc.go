// Package config loads and validates the SLOBS bridge configuration.
//
// Configuration is read once at startup from a YAML file, layered over
// built-in defaults, then overridden by SLOBSBRIDGE_* environment
// variables. Validate reports every problem in a single error.
//
// Secrets (the SLOBS API token, the MQTT password, the InfluxDB token)
// belong in the environment, not the file. Use Config.Redacted before
// logging a configuration.
//
// Usage:
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	fmt.Println(cfg.SLOBS.URL)
package config
