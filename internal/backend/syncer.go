package backend

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/nerrad567/fog-access-core/internal/access"
)

// Logger defines the logging interface used by the Syncer.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Source fetches cards from the hotel backend. *Client satisfies it.
type Source interface {
	HotelID() string
	SignIn(ctx context.Context) (string, error)
	FetchRFIDCards(ctx context.Context, token string) ([]Card, error)
}

// GrantCache is the subset of access.Validator used by the Syncer.
type GrantCache interface {
	CacheGrant(ctx context.Context, g access.Grant) (bool, error)
	ListByRoom(ctx context.Context, roomID string) ([]access.Grant, error)
}

// Result summarises one synchronisation.
type Result struct {
	RoomID   string         `json:"room_id,omitempty"`
	Fetched  int            `json:"fetched"`
	Inserted int            `json:"inserted"`
	Skipped  int            `json:"skipped"`
	Invalid  int            `json:"invalid"`
	Grants   []access.Grant `json:"grants,omitempty"`
	SyncedAt time.Time      `json:"synced_at"`
}

// pullTimeout bounds one sign-in, card fetch and caching pass.
const pullTimeout = 2 * time.Minute

// Syncer copies backend cards into the local grant store.
//
// Thread Safety:
//   - Safe for concurrent use. Overlapping syncs share a single backend
//     round trip and caching pass.
type Syncer struct {
	source Source
	cache  GrantCache
	group  singleflight.Group
	logger Logger
	now    func() time.Time
}

// NewSyncer creates a Syncer that reads from source and writes to cache.
func NewSyncer(source Source, cache GrantCache) *Syncer {
	return &Syncer{
		source: source,
		cache:  cache,
		logger: noopLogger{},
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetLogger sets the logger for the syncer.
func (s *Syncer) SetLogger(logger Logger) {
	s.logger = logger
}

// SyncAll fetches every card for the hotel and caches those not yet known.
//
// The pull runs detached from any one caller, bounded by pullTimeout.
// Cancelling ctx returns ctx.Err() to this caller only; callers sharing
// the pull still receive its result.
func (s *Syncer) SyncAll(ctx context.Context) (Result, error) {
	ch := s.group.DoChan("hotel:"+s.source.HotelID(), func() (any, error) {
		pullCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), pullTimeout)
		defer cancel()
		return s.pull(pullCtx)
	})

	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return Result{}, res.Err
		}
		r, _ := res.Val.(Result) //nolint:errcheck // pull always returns Result
		if res.Shared {
			s.logger.Info("backend sync shared with concurrent caller", "hotel_id", s.source.HotelID())
		}
		return r, nil
	}
}

// SyncRoom runs SyncAll and then returns the room's locally cached grants.
//
// Parameters:
//   - ctx: bounds the backend round trip and the storage writes
//   - roomID: room whose grants are returned; must not be blank
//
// Returns:
//   - Result: counts for the whole hotel plus the room's grants
//   - error: access.ErrInvalidInput for a blank room, backend errors
//     (ErrAuthFailed, ErrUnreachable, ErrUnexpectedStatus, ErrBadResponse)
//     or storage faults
func (s *Syncer) SyncRoom(ctx context.Context, roomID string) (Result, error) {
	if roomID == "" {
		return Result{}, fmt.Errorf("%w: room_id is required", access.ErrInvalidInput)
	}

	r, err := s.SyncAll(ctx)
	if err != nil {
		return Result{}, err
	}

	grants, err := s.cache.ListByRoom(ctx, roomID)
	if err != nil {
		return Result{}, fmt.Errorf("listing grants for room %s: %w", roomID, err)
	}
	r.RoomID = roomID
	r.Grants = grants
	return r, nil
}

func (s *Syncer) pull(ctx context.Context) (Result, error) {
	token, err := s.source.SignIn(ctx)
	if err != nil {
		return Result{}, err
	}
	cards, err := s.source.FetchRFIDCards(ctx, token)
	if err != nil {
		return Result{}, err
	}

	r := Result{Fetched: len(cards)}
	for _, card := range cards {
		inserted, err := s.cache.CacheGrant(ctx, card.Grant())
		switch {
		case errors.Is(err, access.ErrInvalidInput):
			r.Invalid++
			s.logger.Warn("skipping malformed backend card", "card_id", card.ID.String())
		case err != nil:
			s.logger.Error("caching backend card failed", "card_id", card.ID.String(), "error", err)
			return Result{}, fmt.Errorf("caching card %s: %w", card.ID, err)
		case inserted:
			r.Inserted++
		default:
			r.Skipped++
		}
	}
	r.SyncedAt = s.now()

	s.logger.Info("backend sync complete",
		"hotel_id", s.source.HotelID(),
		"fetched", r.Fetched,
		"inserted", r.Inserted,
		"skipped", r.Skipped,
		"invalid", r.Invalid,
	)
	return r, nil
}

// Run calls SyncAll every interval until ctx is cancelled. Failures are
// logged and retried on the next tick. A non-positive interval returns
// immediately.
func (s *Syncer) Run(ctx context.Context, interval time.Duration, done func(Result)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r, err := s.SyncAll(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.logger.Warn("periodic backend sync failed", "error", err)
				}
				continue
			}
			if done != nil {
				done(r)
			}
		}
	}
}
