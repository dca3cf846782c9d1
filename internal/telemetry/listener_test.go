package telemetry

import (
	"context"
	"errors"
	"testing"

	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/infrastructure/mqtt"
)

type fakeSubscriber struct {
	topics   mqtt.Topics
	handlers map[string]mqtt.MessageHandler
	err      error
}

func (f *fakeSubscriber) Subscribe(topic string, _ byte, h mqtt.MessageHandler) error {
	if f.err != nil {
		return f.err
	}
	f.handlers[topic] = h
	return nil
}

func (f *fakeSubscriber) Topics() mqtt.Topics { return f.topics }

type ingestCall struct {
	deviceID, token string
	sample          Sample
	light           *LightSample
}

type fakeIngester struct {
	calls []ingestCall
	err   error
}

func (f *fakeIngester) Ingest(_ context.Context, id, token string, s Sample) (*SensorReading, error) {
	f.calls = append(f.calls, ingestCall{deviceID: id, token: token, sample: s})
	return &SensorReading{DeviceID: id}, f.err
}

func (f *fakeIngester) IngestLight(_ context.Context, id, token string, s LightSample) (*LightReading, error) {
	f.calls = append(f.calls, ingestCall{deviceID: id, token: token, light: &s})
	return &LightReading{DeviceID: id}, f.err
}

func newTestListener(t *testing.T) (*Listener, *fakeSubscriber, *fakeIngester) {
	t.Helper()
	sub := &fakeSubscriber{topics: mqtt.NewTopics("sensegrid"), handlers: map[string]mqtt.MessageHandler{}}
	ing := &fakeIngester{}
	l := NewListener(sub, newTestParser(t), ing, logging.Discard(), 1)
	if err := l.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return l, sub, ing
}

func TestListenerSubscribes(t *testing.T) {
	_, sub, _ := newTestListener(t)

	for _, topic := range []string{"sensegrid/ingest/+/readings", "sensegrid/ingest/+/light"} {
		if _, ok := sub.handlers[topic]; !ok {
			t.Errorf("no subscription for %s", topic)
		}
	}
}

func TestListenerStartError(t *testing.T) {
	sub := &fakeSubscriber{topics: mqtt.NewTopics(""), handlers: map[string]mqtt.MessageHandler{}, err: mqtt.ErrNotConnected}
	l := NewListener(sub, newTestParser(t), &fakeIngester{}, logging.Discard(), 1)

	if err := l.Start(context.Background()); !errors.Is(err, mqtt.ErrNotConnected) {
		t.Errorf("Start() error = %v, want ErrNotConnected", err)
	}
}

func TestListenerReading(t *testing.T) {
	l, _, ing := newTestListener(t)

	err := l.handle("sensegrid/ingest/esp32-01/readings", []byte(`{"device_token":"tok","gas":700}`))
	if err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if len(ing.calls) != 1 {
		t.Fatalf("calls = %d, want 1", len(ing.calls))
	}
	c := ing.calls[0]
	if c.deviceID != "esp32-01" || c.token != "tok" || c.sample.Gas != Some(700) {
		t.Errorf("call = %+v", c)
	}
}

func TestListenerLight(t *testing.T) {
	l, _, ing := newTestListener(t)

	err := l.handle("sensegrid/ingest/ldr-2/light", []byte(`{"device_token":"tok","digital_value":1,"analog_value":812}`))
	if err != nil {
		t.Fatalf("handle() error = %v", err)
	}
	if len(ing.calls) != 1 || ing.calls[0].light == nil {
		t.Fatalf("calls = %+v", ing.calls)
	}
	if got := *ing.calls[0].light; !got.DigitalValue || got.AnalogValue != 812 {
		t.Errorf("light = %+v", got)
	}
}

func TestListenerRejects(t *testing.T) {
	l, _, ing := newTestListener(t)

	if err := l.handle("sensegrid/other/x", []byte(`{}`)); err == nil {
		t.Error("handle(unknown topic) error = nil")
	}
	if err := l.handle("sensegrid/ingest/esp32-01/readings", []byte(`not json`)); !errors.Is(err, ErrMalformedPayload) {
		t.Errorf("handle(bad json) error = %v", err)
	}
	if len(ing.calls) != 0 {
		t.Errorf("rejected messages reached the pipeline: %+v", ing.calls)
	}

	ing.err = device.ErrInvalidDeviceToken
	if err := l.handle("sensegrid/ingest/esp32-01/readings", []byte(`{"device_token":"bad"}`)); !errors.Is(err, device.ErrInvalidDeviceToken) {
		t.Errorf("handle(bad token) error = %v", err)
	}
}

func TestListenerStopsAfterCancel(t *testing.T) {
	sub := &fakeSubscriber{topics: mqtt.NewTopics("sensegrid"), handlers: map[string]mqtt.MessageHandler{}}
	ing := &fakeIngester{}
	l := NewListener(sub, newTestParser(t), ing, logging.Discard(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	cancel()

	if err := l.handle("sensegrid/ingest/esp32-01/readings", []byte(`{"gas":1}`)); err != nil {
		t.Errorf("handle() after cancel error = %v", err)
	}
	if len(ing.calls) != 0 {
		t.Error("message processed after cancel")
	}
}
