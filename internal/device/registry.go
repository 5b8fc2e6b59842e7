package device

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/nerrad567/fog-access-core/internal/credential"
)

// Logger defines the logging interface used by the Registry.
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

// Registry issues credentials to devices and resolves presented identities.
//
// The Registry holds no mutable state of its own; uniqueness of device_id
// under concurrent registration is enforced by the repository's primary
// key. All methods are safe for concurrent use.
type Registry struct {
	repo     Repository
	hasher   *credential.Hasher
	logger   Logger
	generate func() string
	now      func() time.Time
}

// NewRegistry creates a device registry. Credentials are digested with
// hasher before they reach repo.
func NewRegistry(repo Repository, hasher *credential.Hasher) *Registry {
	return &Registry{
		repo:     repo,
		hasher:   hasher,
		logger:   noopLogger{},
		generate: credential.Generate,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the registry.
func (r *Registry) SetLogger(logger Logger) {
	r.logger = logger
}

// Register creates a device and issues its credential.
//
// The returned Device carries the raw credential in Identity.Credential.
// This is the only time it is available; storage holds only its digest.
//
// Errors:
//   - ErrInvalidDevice: the request failed validation
//   - ErrDuplicateDevice: the device_id is already registered
//   - database.ErrUnavailable / database.ErrTimeout: storage fault, retryable
func (r *Registry) Register(ctx context.Context, req RegisterRequest) (*Device, error) {
	if err := normaliseRegistration(&req); err != nil {
		return nil, err
	}

	raw := r.generate()
	d := &Device{
		Identity:  Identity{DeviceID: req.DeviceID},
		Kind:      req.Kind,
		RoomID:    req.RoomID,
		Network:   req.Network,
		CreatedAt: r.now(),
	}

	if err := r.repo.Create(ctx, d, r.hasher.Digest(raw)); err != nil {
		return nil, fmt.Errorf("registering device %q: %w", req.DeviceID, err)
	}

	r.logger.Info("device registered",
		"device_id", d.DeviceID,
		"kind", d.Kind,
		"room_id", d.RoomID,
	)

	d.Credential = raw
	return d, nil
}

// Find resolves a presented identity. Unknown device and wrong credential
// both yield ErrDeviceNotFound. Empty inputs never reach storage.
func (r *Registry) Find(ctx context.Context, deviceID, presented string) (*Device, error) {
	if deviceID == "" || presented == "" {
		return nil, ErrDeviceNotFound
	}
	return r.repo.FindByCredential(ctx, deviceID, r.hasher.Digest(presented))
}

// Get returns a device by identifier.
func (r *Registry) Get(ctx context.Context, deviceID string) (*Device, error) {
	if deviceID == "" {
		return nil, ErrDeviceNotFound
	}
	return r.repo.GetByID(ctx, deviceID)
}

// Touch records that deviceID authenticated just now. Failures are logged
// and returned but never affect the authentication outcome.
func (r *Registry) Touch(ctx context.Context, deviceID string) error {
	if err := r.repo.TouchLastSeen(ctx, deviceID, r.now()); err != nil {
		r.logger.Warn("updating last seen failed", "device_id", deviceID, "error", err)
		return err
	}
	return nil
}

// ListByRoom returns the devices assigned to a room.
func (r *Registry) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, fmt.Errorf("%w: room_id is required", ErrInvalidDevice)
	}
	return r.repo.ListByRoom(ctx, roomID)
}

// Count returns the number of registered devices.
func (r *Registry) Count(ctx context.Context) (int, error) {
	return r.repo.Count(ctx)
}
