package device

import (
	"errors"
	"strings"
	"testing"

	"github.com/tronix365/sensegrid/internal/validate"
)

func TestValidateID(t *testing.T) {
	tests := []struct {
		id      string
		wantErr bool
	}{
		{"esp32-kitchen", false},
		{"node_7.rev2", false},
		{strings.Repeat("a", 64), false},
		{"", true},
		{strings.Repeat("a", 65), true},
		{"has space", true},
		{"slash/id", true},
		{"émoji", true},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			err := ValidateID(tt.id)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ValidateID(%q) error = %v, wantErr %v", tt.id, err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, validate.ErrInvalid) {
				t.Errorf("ValidateID(%q) error should be a validation error", tt.id)
			}
		})
	}
}

func TestParseType(t *testing.T) {
	tests := []struct {
		in      string
		want    Type
		wantErr bool
	}{
		{"", TypeSensor, false},
		{"sensor", TypeSensor, false},
		{"LDR", TypeLDR, false},
		{"camera", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseType(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseType(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseType(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestValidateOutput(t *testing.T) {
	tests := []struct {
		name      string
		outName   string
		pin       int
		wantField string
	}{
		{"valid", "porch", 4, ""},
		{"pin zero", "porch", 0, ""},
		{"pin max", "porch", 255, ""},
		{"blank name", "   ", 4, "output_name"},
		{"long name", strings.Repeat("x", 101), 4, "output_name"},
		{"negative pin", "porch", -1, "gpio_pin"},
		{"pin too high", "porch", 256, "gpio_pin"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateOutput(tt.outName, tt.pin)
			if tt.wantField == "" {
				if err != nil {
					t.Errorf("ValidateOutput() error = %v", err)
				}
				return
			}
			ve, ok := validate.As(err)
			if !ok || ve.Field != tt.wantField {
				t.Errorf("ValidateOutput() error = %v, want field %q", err, tt.wantField)
			}
		})
	}
}
