package access

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
)

// Repository defines grant persistence. UIDs passed in are already
// normalised.
type Repository interface {
	// Create inserts a grant. Returns ErrDuplicateGrant if the UID exists.
	Create(ctx context.Context, g *Grant) error

	// InsertIfAbsent inserts g unless its UID already has a grant, and
	// reports whether a row was written.
	InsertIfAbsent(ctx context.Context, g *Grant) (bool, error)

	// Exists reports whether uid may open roomID.
	Exists(ctx context.Context, uid, roomID string) (bool, error)

	// ListByRoom returns grants for roomID, oldest first.
	ListByRoom(ctx context.Context, roomID string) ([]Grant, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteRepository creates a SQLite-backed grant repository. Every call
// is bounded by queryTimeout.
func NewSQLiteRepository(db *sql.DB, queryTimeout time.Duration) *SQLiteRepository {
	return &SQLiteRepository{db: db, timeout: queryTimeout}
}

const insertGrant = `
	INSERT INTO access_grants (id, room_id, holder_id, booking_id, uuid, source, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?)`

// prepareGrant fills the generated fields of g.
func prepareGrant(g *Grant) {
	if g.ID == "" {
		g.ID = "grt-" + uuid.NewString()
	}
	if g.CreatedAt.IsZero() {
		g.CreatedAt = time.Now().UTC()
	}
	if g.Source == "" {
		g.Source = SourceAPI
	}
}

// Create inserts a new grant.
func (r *SQLiteRepository) Create(ctx context.Context, g *Grant) error {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	prepareGrant(g)
	_, err := r.db.ExecContext(ctx, insertGrant,
		g.ID, g.RoomID, g.HolderID, g.BookingID, g.UID, string(g.Source),
		g.CreatedAt.UTC().Format(database.TimeFormat),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateGrant
		}
		return database.Classify("inserting grant", err)
	}
	return nil
}

// InsertIfAbsent inserts g unless the UID is already present.
func (r *SQLiteRepository) InsertIfAbsent(ctx context.Context, g *Grant) (bool, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	prepareGrant(g)
	result, err := r.db.ExecContext(ctx, insertGrant+` ON CONFLICT(uuid) DO NOTHING`,
		g.ID, g.RoomID, g.HolderID, g.BookingID, g.UID, string(g.Source),
		g.CreatedAt.UTC().Format(database.TimeFormat),
	)
	if err != nil {
		return false, database.Classify("caching grant", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, database.Classify("caching grant", err)
	}
	return n == 1, nil
}

// Exists checks for a grant matching both uid and roomID.
func (r *SQLiteRepository) Exists(ctx context.Context, uid, roomID string) (bool, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	var found int
	err := r.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM access_grants WHERE uuid = ? AND room_id = ?)`,
		uid, roomID,
	).Scan(&found)
	if err != nil {
		return false, database.Classify("checking grant", err)
	}
	return found == 1, nil
}

// ListByRoom returns all grants for a room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Grant, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, room_id, holder_id, booking_id, uuid, source, created_at
		FROM access_grants
		WHERE room_id = ?
		ORDER BY created_at, id`, roomID)
	if err != nil {
		return nil, database.Classify("listing grants", err)
	}
	defer rows.Close()

	grants := []Grant{}
	for rows.Next() {
		var (
			g         Grant
			source    string
			createdAt string
		)
		if err := rows.Scan(&g.ID, &g.RoomID, &g.HolderID, &g.BookingID, &g.UID, &source, &createdAt); err != nil {
			return nil, database.Classify("scanning grant", err)
		}
		g.Source = Source(source)
		if g.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parsing grant created_at %q: %w", createdAt, err)
		}
		grants = append(grants, g)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("iterating grants", err)
	}
	return grants, nil
}
