// Package mqtt connects the fog node to an MQTT broker.
//
// The node publishes access decisions, device registrations and telemetry
// under fog/{site}/..., keeps a retained status message on
// fog/{site}/system/status (with a Last Will for crashes) and listens for
// sync requests from the hotel backend. MQTT is optional: when disabled
// the node works the same, it just emits no events.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := client.Topics().AccessDecision("12")
//	err = client.PublishJSON(topic, decision)
package mqtt
