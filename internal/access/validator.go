package access

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/internal/infrastructure/logging"
)

// Logger defines the logging interface used by the Validator.
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

// DecisionObserver is notified of every access decision. Implementations
// must not block; they run on the request path.
type DecisionObserver interface {
	ObserveDecision(ctx context.Context, d Decision)
}

// GrantObserver is notified of every grant written through RegisterGrant.
type GrantObserver interface {
	ObserveGrant(ctx context.Context, g Grant)
}

// Validator answers access questions and records grants.
//
// Thread Safety:
//   - All methods are safe for concurrent use. Observers may be added at
//     any time.
type Validator struct {
	repo   Repository
	logger Logger
	now    func() time.Time

	mu        sync.RWMutex
	decisions []DecisionObserver
	grants    []GrantObserver
}

// NewValidator creates a Validator backed by repo.
func NewValidator(repo Repository) *Validator {
	return &Validator{
		repo:   repo,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the validator.
func (v *Validator) SetLogger(logger Logger) {
	v.logger = logger
}

// OnDecision registers an observer for access decisions.
func (v *Validator) OnDecision(o DecisionObserver) {
	v.mu.Lock()
	v.decisions = append(v.decisions, o)
	v.mu.Unlock()
}

// OnGrant registers an observer for newly created grants.
func (v *Validator) OnGrant(o GrantObserver) {
	v.mu.Lock()
	v.grants = append(v.grants, o)
	v.mu.Unlock()
}

// ValidateAccess reports whether the card uid may open roomID.
//
// It never returns an error: invalid input, a missing grant and a storage
// fault all deny. Use Check to learn which.
func (v *Validator) ValidateAccess(ctx context.Context, uid, roomID string) bool {
	d, _ := v.Check(ctx, uid, roomID) //nolint:errcheck // folded into d.Granted, which is false on any error
	return d.Granted
}

// Check decides an access request and explains the outcome.
//
// Empty input is rejected before storage is touched. The returned error is
// nil for both grant and plain denial; it is ErrInvalidInput,
// database.ErrTimeout or database.ErrUnavailable otherwise. Decision.Granted
// is false whenever err is non-nil.
func (v *Validator) Check(ctx context.Context, uid, roomID string) (Decision, error) {
	d := Decision{
		UID:       Normalize(uid),
		RoomID:    strings.TrimSpace(roomID),
		DecidedAt: v.now(),
	}

	if d.UID == "" || d.RoomID == "" {
		d.Reason = ReasonInvalidInput
		v.notifyDecision(ctx, d)
		return d, fmt.Errorf("%w: rfid_uid and room_id are required", ErrInvalidInput)
	}

	ok, err := v.repo.Exists(ctx, d.UID, d.RoomID)
	if err != nil {
		d.Reason = ReasonStorageUnavailable
		if errors.Is(err, database.ErrTimeout) {
			d.Reason = ReasonStorageTimeout
		}
		v.logger.Error("access check failed, denying",
			"room_id", d.RoomID,
			"uid", logging.Redact(d.UID),
			"reason", d.Reason,
			"error", err,
		)
		v.notifyDecision(ctx, d)
		return d, err
	}

	d.Granted = ok
	d.Reason = ReasonNoGrant
	if ok {
		d.Reason = ReasonGranted
	}
	v.logger.Debug("access decided", "room_id", d.RoomID, "granted", d.Granted)
	v.notifyDecision(ctx, d)
	return d, nil
}

// RegisterGrant stores a grant for a card.
//
// All four request fields are required; the error names every missing one.
// The UID is normalised before storage. A UID that already has a grant
// yields ErrDuplicateGrant.
func (v *Validator) RegisterGrant(ctx context.Context, req GrantRequest) (*Grant, error) {
	g := &Grant{
		RoomID:    strings.TrimSpace(req.RoomID),
		HolderID:  strings.TrimSpace(req.HolderID),
		BookingID: strings.TrimSpace(req.BookingID),
		UID:       Normalize(req.UID),
		Source:    SourceAPI,
		CreatedAt: v.now(),
	}

	var missing []string
	for _, f := range []struct{ name, value string }{
		{"room_id", g.RoomID},
		{"guest_id", g.HolderID},
		{"booking_id", g.BookingID},
		{"uuid", g.UID},
	} {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: missing %s", ErrInvalidInput, strings.Join(missing, ", "))
	}

	if err := v.repo.Create(ctx, g); err != nil {
		if !errors.Is(err, ErrDuplicateGrant) {
			v.logger.Error("storing grant failed", "room_id", g.RoomID, "error", err)
		}
		return nil, fmt.Errorf("registering grant for room %s: %w", g.RoomID, err)
	}

	v.logger.Info("grant created", "grant_id", g.ID, "room_id", g.RoomID, "booking_id", g.BookingID)
	v.notifyGrant(ctx, *g)
	return g, nil
}

// CacheGrant stores a grant fetched from the hotel backend unless its UID
// is already known locally. It reports whether a row was written.
func (v *Validator) CacheGrant(ctx context.Context, g Grant) (bool, error) {
	g.UID = Normalize(g.UID)
	g.RoomID = strings.TrimSpace(g.RoomID)
	if g.UID == "" || g.RoomID == "" {
		return false, fmt.Errorf("%w: cached grant needs uuid and room_id", ErrInvalidInput)
	}
	g.Source = SourceBackendSync
	if g.CreatedAt.IsZero() {
		g.CreatedAt = v.now()
	}
	return v.repo.InsertIfAbsent(ctx, &g)
}

// ListByRoom returns the grants for a room.
func (v *Validator) ListByRoom(ctx context.Context, roomID string) ([]Grant, error) {
	roomID = strings.TrimSpace(roomID)
	if roomID == "" {
		return nil, fmt.Errorf("%w: room_id is required", ErrInvalidInput)
	}
	return v.repo.ListByRoom(ctx, roomID)
}

func (v *Validator) notifyDecision(ctx context.Context, d Decision) {
	v.mu.RLock()
	observers := v.decisions
	v.mu.RUnlock()
	for _, o := range observers {
		o.ObserveDecision(ctx, d)
	}
}

func (v *Validator) notifyGrant(ctx context.Context, g Grant) {
	v.mu.RLock()
	observers := v.grants
	v.mu.RUnlock()
	for _, o := range observers {
		o.ObserveGrant(ctx, g)
	}
}
