// Package events consumes fault reports from MQTT and files tickets.
//
// Home Assistant automations publish reports to hart/report/{device_id}
// with a JSON payload:
//
//	{"subject": "Water leak detected", "message": "Sensor tripped at 03:12"}
//
// For each report the intake files a ticket through the dedup engine,
// records the outcome in the journal, and publishes the result to
// hart/ticket/{device_id}/result so automations can react.
//
// Malformed payloads are logged and dropped; a bad report from one
// automation must not stall the intake.
package events
