package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nerrad567/fog-access-core/internal/device"
)

// Logger defines the logging interface used by the Gateway.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Authenticator is what the rest of the system depends on for device
// identity.
type Authenticator interface {
	Authenticate(ctx context.Context, deviceID, credential string) bool
	CreateDevice(ctx context.Context, req CreateDeviceRequest) (*device.Device, error)
}

// Registry is the subset of device.Registry the gateway needs.
type Registry interface {
	Register(ctx context.Context, req device.RegisterRequest) (*device.Device, error)
	Find(ctx context.Context, deviceID, presented string) (*device.Device, error)
	Touch(ctx context.Context, deviceID string) error
}

// Result labels an authentication outcome for observers.
type Result string

// Authentication results.
const (
	ResultSuccess     Result = "success"
	ResultInvalid     Result = "invalid"
	ResultMissing     Result = "missing"
	ResultStorageDown Result = "storage_error"
)

// Observer is notified of authentication attempts and new registrations.
type Observer interface {
	ObserveAuth(ctx context.Context, deviceID string, result Result)
	ObserveRegistration(ctx context.Context, d device.Device)
}

// Gateway authenticates devices against the registry.
type Gateway struct {
	registry Registry
	logger   Logger

	mu        sync.RWMutex
	observers []Observer
}

var _ Authenticator = (*Gateway)(nil)

// NewGateway creates a Gateway over registry.
func NewGateway(registry Registry) *Gateway {
	return &Gateway{registry: registry, logger: noopLogger{}}
}

// SetLogger sets the logger for the gateway.
func (g *Gateway) SetLogger(logger Logger) {
	g.logger = logger
}

// AddObserver registers an observer. Observers must not block.
func (g *Gateway) AddObserver(o Observer) {
	g.mu.Lock()
	g.observers = append(g.observers, o)
	g.mu.Unlock()
}

// Authenticate reports whether the pair identifies a registered device.
// Empty inputs and storage faults deny.
func (g *Gateway) Authenticate(ctx context.Context, deviceID, credential string) bool {
	_, err := g.Identify(ctx, deviceID, credential)
	return err == nil
}

// Identify resolves the presented pair to its device.
//
// Errors:
//   - ErrUnauthenticated: missing input, unknown device or wrong credential
//   - database.ErrUnavailable / database.ErrTimeout: storage fault
//
// On success the device's last-seen time is refreshed; a failure to do so
// is logged and otherwise ignored.
func (g *Gateway) Identify(ctx context.Context, deviceID, credential string) (*device.Device, error) {
	if deviceID == "" || credential == "" {
		g.notifyAuth(ctx, deviceID, ResultMissing)
		return nil, ErrUnauthenticated
	}

	d, err := g.registry.Find(ctx, deviceID, credential)
	switch {
	case err == nil:
	case errors.Is(err, device.ErrDeviceNotFound):
		g.logger.Debug("device authentication rejected", "device_id", deviceID)
		g.notifyAuth(ctx, deviceID, ResultInvalid)
		return nil, ErrUnauthenticated
	default:
		g.logger.Error("device authentication failed, denying", "device_id", deviceID, "error", err)
		g.notifyAuth(ctx, deviceID, ResultStorageDown)
		return nil, fmt.Errorf("authenticating device %q: %w", deviceID, err)
	}

	_ = g.registry.Touch(ctx, d.DeviceID) //nolint:errcheck // logged by the registry, never affects the outcome
	g.notifyAuth(ctx, deviceID, ResultSuccess)
	return d, nil
}

// CreateDevice registers a new device and returns it with its raw
// credential. The credential is never retrievable again.
//
// Errors:
//   - ErrMissingDeviceID: device_id absent or blank
//   - device.ErrInvalidDevice: other fields failed validation
//   - device.ErrDuplicateDevice: device_id already registered
//   - database.ErrUnavailable / database.ErrTimeout: storage fault
func (g *Gateway) CreateDevice(ctx context.Context, req CreateDeviceRequest) (*device.Device, error) {
	if strings.TrimSpace(req.DeviceID) == "" {
		return nil, ErrMissingDeviceID
	}

	d, err := g.registry.Register(ctx, req.RegisterRequest())
	if err != nil {
		return nil, err
	}

	g.mu.RLock()
	observers := g.observers
	g.mu.RUnlock()
	for _, o := range observers {
		o.ObserveRegistration(ctx, d.Redacted())
	}
	return d, nil
}

func (g *Gateway) notifyAuth(ctx context.Context, deviceID string, result Result) {
	g.mu.RLock()
	observers := g.observers
	g.mu.RUnlock()
	for _, o := range observers {
		o.ObserveAuth(ctx, deviceID, result)
	}
}
