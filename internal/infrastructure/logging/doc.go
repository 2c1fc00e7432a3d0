// Package logging sets up structured logging for the SLOBS bridge.
//
// It is a thin layer over log/slog: the handler (JSON or text), the level
// and the output stream come from the logging section of the config file,
// and every record carries service and version attributes.
//
//	logging:
//	  level: "info"      # debug, info, warn, error
//	  format: "json"     # json, text
//	  output: "stdout"   # stdout, stderr
//
// Usage:
//
//	logger := logging.New(cfg.Logging, version)
//	logger.Info("connected to streamlabs", "url", cfg.SLOBS.URL)
//
// The SLOBS API token must never be logged.
package logging
