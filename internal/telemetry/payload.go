package telemetry

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/tronix365/sensegrid/internal/validate"
)

//go:embed schemas/reading.json
var readingSchemaJSON string

//go:embed schemas/light.json
var lightSchemaJSON string

// ReadingPayload is a decoded sensor reading submission.
type ReadingPayload struct {
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token,omitempty"`
	Sample
}

// LightPayload is a decoded light reading submission.
type LightPayload struct {
	DeviceID    string `json:"device_id"`
	DeviceToken string `json:"device_token,omitempty"`
	LightSample LightSample
}

// lightWire is the JSON shape of a light payload; digital_value may be a
// boolean or 0/1 and analog_value may be written as 2048.0.
type lightWire struct {
	DeviceID     string  `json:"device_id"`
	DeviceToken  string  `json:"device_token"`
	DigitalValue Bit     `json:"digital_value"`
	AnalogValue  float64 `json:"analog_value"`
}

// PayloadParser validates device payloads against the embedded schemas.
// It is safe for concurrent use.
type PayloadParser struct {
	reading *jsonschema.Schema
	light   *jsonschema.Schema
}

// NewPayloadParser compiles the payload schemas.
func NewPayloadParser() (*PayloadParser, error) {
	reading, err := compileSchema("reading.json", readingSchemaJSON)
	if err != nil {
		return nil, err
	}
	light, err := compileSchema("light.json", lightSchemaJSON)
	if err != nil {
		return nil, err
	}
	return &PayloadParser{reading: reading, light: light}, nil
}

func compileSchema(name, src string) (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(name, strings.NewReader(src)); err != nil {
		return nil, fmt.Errorf("adding schema %s: %w", name, err)
	}
	schema, err := compiler.Compile(name)
	if err != nil {
		return nil, fmt.Errorf("compiling schema %s: %w", name, err)
	}
	return schema, nil
}

// ParseReading validates and decodes a sensor reading body. A non-empty
// deviceID (taken from an MQTT topic) replaces any device_id in the body.
func (p *PayloadParser) ParseReading(body []byte, deviceID string) (ReadingPayload, error) {
	var out ReadingPayload
	if err := p.parse(p.reading, body, deviceID, &out); err != nil {
		return ReadingPayload{}, err
	}
	return out, nil
}

// ParseLight validates and decodes a light reading body. deviceID behaves
// as in ParseReading.
func (p *PayloadParser) ParseLight(body []byte, deviceID string) (LightPayload, error) {
	var wire lightWire
	if err := p.parse(p.light, body, deviceID, &wire); err != nil {
		return LightPayload{}, err
	}
	return LightPayload{
		DeviceID:    wire.DeviceID,
		DeviceToken: wire.DeviceToken,
		LightSample: LightSample{
			DigitalValue: bool(wire.DigitalValue),
			AnalogValue:  int(wire.AnalogValue),
		},
	}, nil
}

func (p *PayloadParser) parse(schema *jsonschema.Schema, body []byte, deviceID string, out any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var doc any
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON value", ErrMalformedPayload)
	}

	if obj, ok := doc.(map[string]any); ok && deviceID != "" {
		obj["device_id"] = deviceID
	}

	if err := schema.Validate(doc); err != nil {
		return schemaError(err)
	}

	normalised, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	if err := json.Unmarshal(normalised, out); err != nil {
		return fmt.Errorf("%w: %w", ErrMalformedPayload, err)
	}
	return nil
}

var missingPropertyRe = regexp.MustCompile(`missing propert(?:y|ies): '([^']+)'`)

// schemaError turns a schema violation into a validate.Error naming the
// first offending field.
func schemaError(err error) error {
	var ve *jsonschema.ValidationError
	if !errors.As(err, &ve) {
		return validate.Field("body", "%v", err)
	}

	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}

	field := strings.TrimPrefix(leaf.InstanceLocation, "/")
	if m := missingPropertyRe.FindStringSubmatch(leaf.Message); m != nil {
		field = m[1]
		return validate.Field(field, "is required")
	}
	if field == "" {
		field = "body"
	}
	return validate.Field(field, "%s", leaf.Message)
}
