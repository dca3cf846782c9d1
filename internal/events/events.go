package events

import (
	"context"
	"errors"
	"time"
)

// Kind names what happened.
type Kind string

// Event kinds. The value doubles as the AMQP routing key.
const (
	KindReadingIngested Kind = "reading.ingested"
	KindLightIngested   Kind = "light.ingested"
	KindOutputChanged   Kind = "output.changed"
)

// Event is a domain notification.
type Event struct {
	Kind     Kind      `json:"kind"`
	DeviceID string    `json:"device_id"`
	OwnerID  string    `json:"owner_id,omitempty"`
	OutputID int64     `json:"output_id,omitempty"`
	Time     time.Time `json:"time"`

	// Data is the JSON body for message sinks.
	Data any `json:"data"`

	// Tags and Fields describe the event as a time-series point.
	Tags   map[string]string `json:"-"`
	Fields map[string]any    `json:"-"`
}

// Publisher delivers events somewhere.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// Fanout publishes to every sink in turn.
type Fanout struct {
	sinks []Publisher
}

// NewFanout builds a Fanout over sinks. Nil entries are skipped.
func NewFanout(sinks ...Publisher) *Fanout {
	f := &Fanout{}
	for _, s := range sinks {
		if s != nil {
			f.sinks = append(f.sinks, s)
		}
	}
	return f
}

// Add appends a sink.
func (f *Fanout) Add(sink Publisher) {
	if sink != nil {
		f.sinks = append(f.sinks, sink)
	}
}

// Len returns the number of sinks.
func (f *Fanout) Len() int { return len(f.sinks) }

// Publish calls every sink even if earlier ones fail.
func (f *Fanout) Publish(ctx context.Context, e Event) error {
	var errs []error
	for _, s := range f.sinks {
		if err := s.Publish(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
