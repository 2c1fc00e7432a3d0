// Package influxdb records SLOBS bridge activity as time series.
//
// Three measurements are written, each tagged with the bridge id:
//
//	slobs_scene_switch  tags: scene             fields: previous, count
//	slobs_stream        (no extra tags)         fields: live
//	slobs_command       tags: command, status   fields: target, matched
//
// Writes are non-blocking and batched by the client library; failures
// arrive through SetOnError wrapped in ErrWriteFailed. A closed client
// drops points silently.
//
// Usage:
//
//	client, err := influxdb.Connect(cfg.InfluxDB, cfg.Bridge.ID)
//	if errors.Is(err, influxdb.ErrDisabled) {
//	    // metrics off
//	}
//	defer client.Close()
//
//	client.WriteSceneSwitch("Live", "Starting Soon")
package influxdb
