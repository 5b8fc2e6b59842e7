package device

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
)

// Repository defines device persistence. Credentials cross this boundary
// only as digests.
type Repository interface {
	// Create inserts a device with the digest of its credential.
	// Returns ErrDuplicateDevice if the device_id is taken.
	Create(ctx context.Context, d *Device, credentialHash string) error

	// FindByCredential returns the device whose id and credential digest
	// both match. Returns ErrDeviceNotFound otherwise.
	FindByCredential(ctx context.Context, deviceID, credentialHash string) (*Device, error)

	// GetByID returns a device by id. Returns ErrDeviceNotFound if absent.
	GetByID(ctx context.Context, deviceID string) (*Device, error)

	// ListByRoom returns devices assigned to roomID, ordered by id.
	ListByRoom(ctx context.Context, roomID string) ([]Device, error)

	// TouchLastSeen records a successful authentication.
	TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error

	// Count returns the number of registered devices.
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db      *sql.DB
	timeout time.Duration
}

// NewSQLiteRepository creates a SQLite-backed repository. Every call is
// bounded by queryTimeout (database.DefaultQueryTimeout if zero).
func NewSQLiteRepository(db *sql.DB, queryTimeout time.Duration) *SQLiteRepository {
	return &SQLiteRepository{db: db, timeout: queryTimeout}
}

const selectDevice = `
	SELECT device_id, kind, room_id, ip_address, mac_address, created_at, last_seen_at
	FROM devices`

// Create inserts a new device row.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device, credentialHash string) error {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO devices (device_id, credential_hash, kind, room_id, ip_address, mac_address, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.DeviceID, credentialHash, string(d.Kind),
		nullableString(d.RoomID),
		nullableString(d.Network.IPAddress),
		nullableString(d.Network.MACAddress),
		d.CreatedAt.UTC().Format(database.TimeFormat),
	)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return ErrDuplicateDevice
		}
		return database.Classify("inserting device", err)
	}
	return nil
}

// FindByCredential matches on id and digest in a single indexed query, so
// an unknown id and a wrong credential take the same path.
func (r *SQLiteRepository) FindByCredential(ctx context.Context, deviceID, credentialHash string) (*Device, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx,
		selectDevice+` WHERE device_id = ? AND credential_hash = ?`,
		deviceID, credentialHash,
	)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, database.Classify("finding device", err)
	}
	return d, nil
}

// GetByID retrieves a device by identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, deviceID string) (*Device, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	row := r.db.QueryRowContext(ctx, selectDevice+` WHERE device_id = ?`, deviceID)
	d, err := scanDevice(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrDeviceNotFound
		}
		return nil, database.Classify("querying device by id", err)
	}
	return d, nil
}

// ListByRoom retrieves all devices in a room.
func (r *SQLiteRepository) ListByRoom(ctx context.Context, roomID string) ([]Device, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	rows, err := r.db.QueryContext(ctx, selectDevice+` WHERE room_id = ? ORDER BY device_id`, roomID)
	if err != nil {
		return nil, database.Classify("listing devices by room", err)
	}
	defer rows.Close()

	devices := []Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, database.Classify("scanning device", err)
		}
		devices = append(devices, *d)
	}
	if err := rows.Err(); err != nil {
		return nil, database.Classify("iterating devices", err)
	}
	return devices, nil
}

// TouchLastSeen sets last_seen_at.
func (r *SQLiteRepository) TouchLastSeen(ctx context.Context, deviceID string, at time.Time) error {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	result, err := r.db.ExecContext(ctx,
		`UPDATE devices SET last_seen_at = ? WHERE device_id = ?`,
		at.UTC().Format(database.TimeFormat), deviceID,
	)
	if err != nil {
		return database.Classify("updating last_seen_at", err)
	}
	if n, _ := result.RowsAffected(); n == 0 { //nolint:errcheck // sqlite3 always reports rows affected
		return ErrDeviceNotFound
	}
	return nil
}

// Count returns the number of devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	ctx, cancel := database.WithQueryTimeout(ctx, r.timeout)
	defer cancel()

	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM devices`).Scan(&n); err != nil {
		return 0, database.Classify("counting devices", err)
	}
	return n, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanDevice(row rowScanner) (*Device, error) {
	var (
		d                     Device
		kind                  string
		roomID, ip, mac, seen sql.NullString
		createdAt             string
	)
	if err := row.Scan(&d.DeviceID, &kind, &roomID, &ip, &mac, &createdAt, &seen); err != nil {
		return nil, err
	}

	d.Kind = Kind(kind)
	d.RoomID = roomID.String
	d.Network = Network{IPAddress: ip.String, MACAddress: mac.String}

	var err error
	if d.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at %q: %w", createdAt, err)
	}
	if seen.Valid {
		t, err := time.Parse(time.RFC3339Nano, seen.String)
		if err != nil {
			return nil, fmt.Errorf("parsing last_seen_at %q: %w", seen.String, err)
		}
		d.LastSeenAt = &t
	}
	return &d, nil
}

// nullableString maps "" to NULL for optional TEXT columns.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
