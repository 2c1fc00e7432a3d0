// Package mqtt connects the SLOBS bridge to the Gray Logic message bus.
//
// The bridge receives commands and publishes acknowledgements, scene state,
// events and health over MQTT:
//
//	graylogic/command/slobs/{target}   in
//	graylogic/ack/slobs/{target}       out
//	graylogic/state/slobs/scenes       out, retained
//	graylogic/event/slobs/{event}      out
//	graylogic/health/slobs             out, retained, Last Will
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restore after reconnect, and panic recovery around handlers.
//
// Usage:
//
//	client, err := mqtt.Connect(cfg.MQTT, &mqtt.Will{Topic: t, Payload: p, QoS: 1, Retained: true})
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
// Use TLS (broker.tls) anywhere other than a local development broker.
package mqtt
