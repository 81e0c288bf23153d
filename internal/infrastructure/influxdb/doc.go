// Package influxdb records relay telemetry in InfluxDB.
//
// It wraps the official influxdb-client-go v2 library for connection
// management and batched, non-blocking writes, and provides Telemetry, a
// relay observer that turns connection state changes, outbound deliveries
// and inbound hub events into points:
//
//	relay_state     tags: tenant_id          fields: state, state_code
//	relay_delivery  tags: tenant_id, data_type, outcome   fields: count
//	relay_inbound   tags: tenant_id, event   fields: count
//
// # Usage
//
//	client, err := influxdb.Connect(cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	telemetry := influxdb.NewTelemetry(client)
//	// pass telemetry as a relay.Observer
//
// # Error Handling
//
// Write errors are delivered asynchronously through SetOnError. Connection
// and health check errors are returned directly.
package influxdb
