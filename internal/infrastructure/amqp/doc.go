// Package amqp publishes SenseGrid domain events to RabbitMQ.
//
// Events go to a durable topic exchange with the event kind as routing key
// (reading.ingested, light.ingested, output.changed), so consumers bind
// queues to exactly the kinds they need.
package amqp
