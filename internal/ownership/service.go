package ownership

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"unicode/utf8"

	"github.com/tronix365/sensegrid/internal/audit"
	"github.com/tronix365/sensegrid/internal/auth"
	"github.com/tronix365/sensegrid/internal/device"
	"github.com/tronix365/sensegrid/internal/events"
	"github.com/tronix365/sensegrid/internal/infrastructure/logging"
	"github.com/tronix365/sensegrid/internal/telemetry"
	"github.com/tronix365/sensegrid/internal/validate"
)

// Reading list limits.
const (
	DefaultReadingsLimit    = 20
	DefaultMaxReadingsLimit = 500
)

const (
	maxFullNameLength    = 100
	maxPhoneNumberLength = 32
)

// Users is the part of auth.UserRepository the service needs.
type Users interface {
	GetByID(ctx context.Context, id string) (*auth.User, error)
	Patch(ctx context.Context, id string, p auth.ProfilePatch) error
}

// Readings is the read side of telemetry.Repository.
type Readings interface {
	ListSensorReadings(ctx context.Context, deviceID string, limit int) ([]telemetry.SensorReading, error)
	ListLightReadings(ctx context.Context, deviceID string, limit int) ([]telemetry.LightReading, error)
}

// AuditLog stores the trail of changes each user makes.
type AuditLog interface {
	Create(ctx context.Context, e *audit.Entry) error
	List(ctx context.Context, f audit.Filter) (*audit.ListResult, error)
}

// Service implements the ownership-scoped operations.
type Service struct {
	users    Users
	devices  device.Repository
	outputs  device.OutputRepository
	readings Readings
	events   events.Publisher
	audit    AuditLog
	logger   *logging.Logger

	maxLimit int
	newToken func() (string, error)
}

// Option configures a Service.
type Option func(*Service)

// WithMaxReadingsLimit caps the limit accepted by the list operations.
func WithMaxReadingsLimit(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLimit = n
		}
	}
}

// WithPublisher sets the publisher notified of output changes.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) { s.events = p }
}

// WithAuditLog records device, output and profile changes to log.
func WithAuditLog(log AuditLog) Option {
	return func(s *Service) { s.audit = log }
}

// WithTokenGenerator overrides device token generation.
func WithTokenGenerator(gen func() (string, error)) Option {
	return func(s *Service) { s.newToken = gen }
}

// NewService wires the service.
func NewService(users Users, devices device.Repository, outputs device.OutputRepository, readings Readings, logger *logging.Logger, opts ...Option) *Service {
	s := &Service{
		users:    users,
		devices:  devices,
		outputs:  outputs,
		readings: readings,
		logger:   logger.With("component", "ownership"),
		maxLimit: DefaultMaxReadingsLimit,
		newToken: device.GenerateToken,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ownedDevice loads deviceID and checks it belongs to userID.
func (s *Service) ownedDevice(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	d, err := s.devices.GetByID(ctx, deviceID)
	if err != nil {
		if errors.Is(err, device.ErrDeviceNotFound) {
			return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
		}
		return nil, err
	}
	if d.OwnerID != userID {
		return nil, fmt.Errorf("%w: device %s", ErrNotFound, deviceID)
	}
	return d, nil
}

// ListDevices returns the user's devices, oldest first.
func (s *Service) ListDevices(ctx context.Context, userID string) ([]device.Device, error) {
	return s.devices.ListByOwner(ctx, userID)
}

// GetDevice returns one of the user's devices.
func (s *Service) GetDevice(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	return s.ownedDevice(ctx, userID, deviceID)
}

// RegisterDevice creates a device with a fresh token. Device IDs are
// global: an ID held by any owner is a conflict and nothing is written.
func (s *Service) RegisterDevice(ctx context.Context, userID, deviceID, deviceType string) (*device.Device, error) {
	if err := device.ValidateID(deviceID); err != nil {
		return nil, err
	}
	typ, err := device.ParseType(deviceType)
	if err != nil {
		return nil, err
	}

	if _, err := s.devices.GetByID(ctx, deviceID); err == nil {
		return nil, fmt.Errorf("%w: device %s already registered", ErrConflict, deviceID)
	} else if !errors.Is(err, device.ErrDeviceNotFound) {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}

	d := &device.Device{DeviceID: deviceID, OwnerID: userID, Token: token, Type: typ}
	if err := s.devices.Create(ctx, d); err != nil {
		if errors.Is(err, device.ErrDeviceExists) {
			return nil, fmt.Errorf("%w: device %s already registered", ErrConflict, deviceID)
		}
		return nil, err
	}

	s.logger.Info("device registered", "device_id", deviceID, "owner_id", userID, "device_type", typ)
	s.record(ctx, userID, audit.ActionDeviceRegistered, audit.EntityDevice, deviceID,
		map[string]any{"device_type": string(typ)})
	return d, nil
}

// RotateDeviceToken replaces a device's token. The previous token is
// rejected from the moment this returns.
func (s *Service) RotateDeviceToken(ctx context.Context, userID, deviceID string) (*device.Device, error) {
	d, err := s.ownedDevice(ctx, userID, deviceID)
	if err != nil {
		return nil, err
	}

	token, err := s.newToken()
	if err != nil {
		return nil, err
	}
	if err := s.devices.UpdateToken(ctx, deviceID, token); err != nil {
		return nil, err
	}
	d.Token = token

	s.logger.Info("device token rotated", "device_id", deviceID)
	s.record(ctx, userID, audit.ActionDeviceTokenRotate, audit.EntityDevice, deviceID, nil)
	return d, nil
}

// clampLimit maps limit <= 0 to the default and caps it at the maximum.
func (s *Service) clampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultReadingsLimit
	case limit > s.maxLimit:
		return s.maxLimit
	default:
		return limit
	}
}

// ListReadings returns up to limit sensor readings, newest first.
func (s *Service) ListReadings(ctx context.Context, userID, deviceID string, limit int) ([]telemetry.SensorReading, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	return s.readings.ListSensorReadings(ctx, deviceID, s.clampLimit(limit))
}

// ListLightReadings returns up to limit light readings, newest first.
func (s *Service) ListLightReadings(ctx context.Context, userID, deviceID string, limit int) ([]telemetry.LightReading, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	return s.readings.ListLightReadings(ctx, deviceID, s.clampLimit(limit))
}

// ListOutputs returns a device's outputs.
func (s *Service) ListOutputs(ctx context.Context, userID, deviceID string) ([]device.Output, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	return s.outputs.ListByDevice(ctx, deviceID)
}

// CreateOutput adds an output to a device. A GPIO pin can be assigned once
// per device.
func (s *Service) CreateOutput(ctx context.Context, userID, deviceID, name string, pin int, active bool) (*device.Output, error) {
	if _, err := s.ownedDevice(ctx, userID, deviceID); err != nil {
		return nil, err
	}
	if err := device.ValidateOutput(name, pin); err != nil {
		return nil, err
	}

	o := &device.Output{DeviceID: deviceID, Name: name, GPIOPin: pin, IsActive: active}
	if err := s.outputs.Create(ctx, o); err != nil {
		if errors.Is(err, device.ErrOutputExists) {
			return nil, fmt.Errorf("%w: gpio pin %d already assigned on %s", ErrConflict, pin, deviceID)
		}
		return nil, err
	}
	s.record(ctx, userID, audit.ActionOutputCreated, audit.EntityOutput, strconv.FormatInt(o.ID, 10),
		map[string]any{"device_id": deviceID, "output_name": name, "gpio_pin": pin, "is_active": active})
	return o, nil
}

// SetOutputState switches an output on or off. The output is resolved
// first, then its device, then ownership.
func (s *Service) SetOutputState(ctx context.Context, userID string, outputID int64, active bool) (*device.Output, error) {
	current, err := s.outputs.GetByID(ctx, outputID)
	if err != nil {
		if errors.Is(err, device.ErrOutputNotFound) {
			return nil, fmt.Errorf("%w: output %d", ErrNotFound, outputID)
		}
		return nil, err
	}
	d, err := s.ownedDevice(ctx, userID, current.DeviceID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, fmt.Errorf("%w: output %d", ErrNotFound, outputID)
		}
		return nil, err
	}

	updated, err := s.outputs.SetActive(ctx, outputID, active)
	if err != nil {
		if errors.Is(err, device.ErrOutputNotFound) {
			return nil, fmt.Errorf("%w: output %d", ErrNotFound, outputID)
		}
		return nil, err
	}

	if current.IsActive != updated.IsActive {
		s.publishOutputChange(ctx, d, updated)
		s.record(ctx, userID, audit.ActionOutputChanged, audit.EntityOutput, strconv.FormatInt(outputID, 10),
			map[string]any{"device_id": d.DeviceID, "is_active": updated.IsActive})
	}
	return updated, nil
}

func (s *Service) publishOutputChange(ctx context.Context, d *device.Device, o *device.Output) {
	if s.events == nil {
		return
	}
	active := int64(0)
	if o.IsActive {
		active = 1
	}
	err := s.events.Publish(ctx, events.Event{
		Kind:     events.KindOutputChanged,
		DeviceID: d.DeviceID,
		OwnerID:  d.OwnerID,
		OutputID: o.ID,
		Time:     o.UpdatedAt,
		Data:     o,
		Tags:     map[string]string{"output_name": o.Name},
		Fields:   map[string]any{"is_active": active, "gpio_pin": int64(o.GPIOPin)},
	})
	if err != nil {
		s.logger.Warn("event publish failed", "kind", events.KindOutputChanged, "output_id", o.ID, "error", err)
	}
}

// GetProfile returns the user's own record.
func (s *Service) GetProfile(ctx context.Context, userID string) (*auth.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}
	return u, nil
}

// UpdateProfile applies a partial update. Fields absent from patch keep
// their value; preferences, when present, replace the whole map.
// Concurrent updates are last-writer-wins per field.
func (s *Service) UpdateProfile(ctx context.Context, userID string, patch auth.ProfilePatch) (*auth.User, error) {
	if patch.FullName != nil && utf8.RuneCountInString(*patch.FullName) > maxFullNameLength {
		return nil, validate.Field("full_name", "must be at most %d characters", maxFullNameLength)
	}
	if patch.PhoneNumber != nil && utf8.RuneCountInString(*patch.PhoneNumber) > maxPhoneNumberLength {
		return nil, validate.Field("phone_number", "must be at most %d characters", maxPhoneNumberLength)
	}

	if err := s.users.Patch(ctx, userID, patch); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: user %s", ErrNotFound, userID)
		}
		return nil, err
	}
	s.record(ctx, userID, audit.ActionProfileUpdated, audit.EntityUser, userID,
		map[string]any{"fields": patch.FieldNames()})
	return s.GetProfile(ctx, userID)
}

// ListAudit returns one page of the user's own audit trail.
func (s *Service) ListAudit(ctx context.Context, userID string, f audit.Filter) (*audit.ListResult, error) {
	if s.audit == nil {
		return &audit.ListResult{Entries: []audit.Entry{}, Limit: f.Limit, Offset: f.Offset}, nil
	}
	f.UserID = userID
	return s.audit.List(ctx, f)
}

// record appends to the audit trail. Failures are logged and never undo
// the change being recorded.
func (s *Service) record(ctx context.Context, userID, action, entityType, entityID string, details map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Create(ctx, &audit.Entry{
		UserID:     userID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Source:     audit.SourceAPI,
		Details:    details,
	})
	if err != nil {
		s.logger.Warn("audit write failed", "action", action, "entity_id", entityID, "error", err)
	}
}
