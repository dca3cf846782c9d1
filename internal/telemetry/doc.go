// Package telemetry ingests, classifies and stores device readings.
//
// A sensor reading flows through the Pipeline:
//
//	payload (HTTP or MQTT)
//	  -> PayloadParser (JSON Schema)
//	  -> device.Authenticator (device_id + shared token)
//	  -> Classify (SAFE / WARNING / DANGER)
//	  -> Repository (append-only insert, server timestamp)
//	  -> events.Publisher (best effort)
//
// Light readings follow the same gates without classification. Readings are
// immutable once stored; there is no update or delete path.
package telemetry
