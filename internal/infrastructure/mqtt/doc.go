// Package mqtt provides MQTT connectivity for SenseGrid Core.
//
// Core uses the broker in two directions:
//
//	devices  -> {prefix}/ingest/{device_id}/readings|light   -> Core (ingestion)
//	Core     -> {prefix}/devices/{device_id}/...             -> dashboards, rules
//
// Ingest topics carry the same JSON bodies as the HTTP ingestion endpoints,
// plus the device token. Outbound topics carry stored readings and retained
// output state. {prefix}/system/status holds Core's retained online/offline
// status; the broker publishes the offline LWT if Core dies uncleanly.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().AllIngestReadings(), 1, handler)
//
// Use TLS (cfg.Broker.TLS) and broker credentials outside local development.
package mqtt
