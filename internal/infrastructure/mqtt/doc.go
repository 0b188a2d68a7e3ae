// Package mqtt connects Neogend to an MQTT broker.
//
// The broker carries session revocation events between Neogend instances
// and to external consumers such as game-server plugins that must drop a
// player whose credentials were just revoked.
//
//	neogend A ─┐                 ┌─ neogend B (closes local sockets)
//	           ├─ MQTT broker ───┤
//	ledger ────┘                 └─ game-server plugin
//
// The client reconnects with backoff, restores subscriptions after a
// reconnect and publishes a retained online/offline status with a Last
// Will so consumers notice a crashed instance.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Site.ID)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllSessionRevocations(), 1,
//	    func(topic string, payload []byte) error {
//	        return handle(payload)
//	    })
package mqtt
