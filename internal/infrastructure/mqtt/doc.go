// Package mqtt mirrors relay activity onto a local MQTT broker.
//
// Devices on the card-room floor (dealer tablets, table displays, the cage
// printer) receive hub events without holding their own hub connection by
// subscribing to the mirror's topics:
//
//	{prefix}/system/status                 retained, LWT-backed desk status
//	{prefix}/{tenant}/relay/state          retained connection state
//	{prefix}/{tenant}/events/{event}       inbound hub domain events
//	{prefix}/{tenant}/delivery/{dataType}  outbound delivery outcomes
//
// The mirror is optional and one-way: nothing published to the broker is
// relayed back to the hub.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	mirror := mqtt.NewMirror(client, mqtt.Topics{Prefix: cfg.MQTT.TopicPrefix}, byte(cfg.MQTT.QoS), logger)
//	go mirror.Run(ctx)
//	// pass mirror as a relay.Observer
package mqtt
