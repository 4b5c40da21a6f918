// Package mqtt provides the MQTT connection used by the sequencer.
//
// This package manages:
//   - Connection to the broker with auto-reconnect and last will
//   - Publishing target commands and sequence lifecycle events
//   - Subscriptions to target state and remote sequencer commands,
//     restored after every reconnect
//   - Topic builders for every topic the sequencer touches
//
// # Architecture
//
// Presentation targets (display surfaces, animation rigs, media players)
// sit behind the broker like any other bridge device:
//
//	Sequencer ─ command/{kind}/{id} ─▶ Broker ─▶ Target
//	Sequencer ◀─ state/{kind}/{id} ─── Broker ◀─ Target
//	Panels/Core ─ command/sequencer/{id} ─▶ Broker ─▶ Sequencer
//	Sequencer ─ core/sequence/{id}/event ─▶ Broker ─▶ Panels/Core
//
// # Usage
//
//	client, err := mqtt.Connect(ctx, cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.TargetCommand(mqtt.KindSurface, "lobby-screen")
//	err = client.PublishJSON(topic, map[string]any{"command": "set_active", "active": true})
package mqtt
