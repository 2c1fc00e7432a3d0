// Package audit records every command the bridge executes, whether it came
// from the MQTT bus or the HTTP API, in the audit_logs table.
package audit
