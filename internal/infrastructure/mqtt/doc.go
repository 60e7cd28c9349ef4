// Package mqtt provides MQTT client connectivity for the HA-RT bridge.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//   - Connection health monitoring
//
// # Architecture
//
// The bridge accepts fault reports over MQTT so that Home Assistant
// automations can raise tickets without calling the HTTP API. Ticket
// outcomes and sweep summaries are published back for dashboards.
//
//	Home Assistant automations → hart/report/{device_id} → bridge
//	bridge → hart/ticket/{device_id}/result, hart/system/sync
//
// # Security Considerations
//
//   - TLS is required for production deployments (cfg.Broker.TLS=true)
//   - Credentials are validated against broker ACL
//   - Anonymous access is only for local development
//   - Message payloads are not encrypted beyond TLS transport
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	// Subscribe to all inbound fault reports
//	err = client.Subscribe(mqtt.Topics{}.AllReports(), 1,
//	    func(topic string, payload []byte) error {
//	        log.Printf("Received: %s = %s", topic, payload)
//	        return nil
//	    })
//
//	// Publish a ticket outcome
//	topic := mqtt.Topics{}.TicketResult("abc123def456")
//	client.Publish(topic, []byte(`{"ticket_id":42,"outcome":"created"}`), 1, false)
package mqtt
