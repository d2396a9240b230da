// Package mqtt connects btscanner to an MQTT broker.
//
// The client wraps paho.mqtt.golang with auto-reconnect, subscription
// restoration after a reconnect, and a retained online/offline status backed
// by a Last Will so other services notice a crashed scanner.
//
// Topic layout, rooted at btscanner/{session}:
//
//	btscanner/{session}/status            online/offline (retained, LWT)
//	btscanner/{session}/state             session state (retained)
//	btscanner/{session}/device/{address}  one message per new device
//	btscanner/{session}/command           {"action":"scan"} or {"action":"stop"}
//
// Usage:
//
//	topics := mqtt.NewTopics(cfg.Session.ID)
//	client, err := mqtt.Connect(cfg.MQTT, topics)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(topics.Command(), 1, func(topic string, payload []byte) error {
//	    return handle(payload)
//	})
package mqtt
