// Package events fans SenseGrid domain events out to external sinks.
//
// An ingested reading or a switched output becomes an Event. Fanout hands
// the event to every configured sink (MQTT, AMQP, InfluxDB) and joins their
// errors. Delivery is best effort: callers log a failed Publish and carry
// on, because the durable store already holds the record.
package events
