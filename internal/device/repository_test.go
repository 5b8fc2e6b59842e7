package device

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/migrations"
)

// setupTestDB opens a temporary SQLite database with the production schema.
func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "devices.db"),
		WALMode:     true,
		BusyTimeout: 5,
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { db.Close() }) //nolint:errcheck // Test cleanup

	if err := db.Migrate(ctx, migrations.FS); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}
	return db
}

func setupRepo(t *testing.T) *SQLiteRepository {
	t.Helper()
	db := setupTestDB(t)
	return NewSQLiteRepository(db.DB, db.QueryTimeout())
}

func TestSQLiteRepository_CreateAndFind(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	d := &Device{
		Identity: Identity{DeviceID: "thermo-101"},
		Kind:     KindThermostat,
		RoomID:   "101",
		Network:  Network{IPAddress: "10.0.0.5", MACAddress: "aa:bb:cc:dd:ee:ff"},
	}
	if err := repo.Create(ctx, d, "digest-1"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if d.CreatedAt.IsZero() {
		t.Error("Create() should set CreatedAt")
	}

	got, err := repo.FindByCredential(ctx, "thermo-101", "digest-1")
	if err != nil {
		t.Fatalf("FindByCredential() error = %v", err)
	}
	if got.DeviceID != "thermo-101" || got.Kind != KindThermostat || got.RoomID != "101" {
		t.Errorf("FindByCredential() = %+v", got)
	}
	if got.Network.MACAddress != "aa:bb:cc:dd:ee:ff" {
		t.Errorf("MACAddress = %q", got.Network.MACAddress)
	}
	if got.Credential != "" {
		t.Error("stored record must not carry a credential")
	}
	if !got.CreatedAt.Equal(d.CreatedAt) {
		t.Errorf("CreatedAt = %v, want %v", got.CreatedAt, d.CreatedAt)
	}
}

func TestSQLiteRepository_FindMismatchIsNotFound(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{Identity: Identity{DeviceID: "d1"}, Kind: KindGeneric}, "right"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	tests := []struct {
		name     string
		deviceID string
		hash     string
	}{
		{"wrong credential", "d1", "wrong"},
		{"unknown device", "d2", "right"},
		{"both wrong", "d2", "wrong"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := repo.FindByCredential(ctx, tt.deviceID, tt.hash)
			if !errors.Is(err, ErrDeviceNotFound) {
				t.Errorf("FindByCredential() error = %v, want ErrDeviceNotFound", err)
			}
		})
	}
}

func TestSQLiteRepository_CreateDuplicate(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	first := &Device{Identity: Identity{DeviceID: "abc123"}, Kind: KindGeneric}
	if err := repo.Create(ctx, first, "h1"); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}

	second := &Device{Identity: Identity{DeviceID: "abc123"}, Kind: KindGeneric}
	err := repo.Create(ctx, second, "h2")
	if !errors.Is(err, ErrDuplicateDevice) {
		t.Fatalf("second Create() error = %v, want ErrDuplicateDevice", err)
	}

	// The original credential still authenticates.
	if _, err := repo.FindByCredential(ctx, "abc123", "h1"); err != nil {
		t.Errorf("original credential no longer works: %v", err)
	}
	if _, err := repo.FindByCredential(ctx, "abc123", "h2"); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("rejected credential authenticates: %v", err)
	}
}

func TestSQLiteRepository_ListByRoomAndCount(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	for _, d := range []*Device{
		{Identity: Identity{DeviceID: "b"}, Kind: KindSmokeSensor, RoomID: "12"},
		{Identity: Identity{DeviceID: "a"}, Kind: KindThermostat, RoomID: "12"},
		{Identity: Identity{DeviceID: "c"}, Kind: KindRFIDReader, RoomID: "13"},
		{Identity: Identity{DeviceID: "d"}, Kind: KindGeneric},
	} {
		if err := repo.Create(ctx, d, "h-"+d.DeviceID); err != nil {
			t.Fatalf("Create(%s) error = %v", d.DeviceID, err)
		}
	}

	got, err := repo.ListByRoom(ctx, "12")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(got) != 2 || got[0].DeviceID != "a" || got[1].DeviceID != "b" {
		t.Errorf("ListByRoom(12) = %+v, want [a b]", got)
	}

	empty, err := repo.ListByRoom(ctx, "99")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListByRoom(99) = %#v, want empty non-nil slice", empty)
	}

	n, err := repo.Count(ctx)
	if err != nil {
		t.Fatalf("Count() error = %v", err)
	}
	if n != 4 {
		t.Errorf("Count() = %d, want 4", n)
	}
}

func TestSQLiteRepository_TouchLastSeen(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Device{Identity: Identity{DeviceID: "d1"}, Kind: KindGeneric}, "h"); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	if err := repo.TouchLastSeen(ctx, "d1", at); err != nil {
		t.Fatalf("TouchLastSeen() error = %v", err)
	}

	got, err := repo.GetByID(ctx, "d1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if got.LastSeenAt == nil || !got.LastSeenAt.Equal(at) {
		t.Errorf("LastSeenAt = %v, want %v", got.LastSeenAt, at)
	}

	if err := repo.TouchLastSeen(ctx, "ghost", at); !errors.Is(err, ErrDeviceNotFound) {
		t.Errorf("TouchLastSeen(ghost) error = %v, want ErrDeviceNotFound", err)
	}
}

func TestSQLiteRepository_StorageFault(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB, db.QueryTimeout())
	db.Close() //nolint:errcheck // Closing early to force a storage fault

	_, err := repo.FindByCredential(context.Background(), "d1", "h")
	if !errors.Is(err, database.ErrUnavailable) {
		t.Fatalf("FindByCredential() on closed db error = %v, want database.ErrUnavailable", err)
	}
	if errors.Is(err, ErrDeviceNotFound) {
		t.Error("storage fault must not look like a missing device")
	}

	err = repo.Create(context.Background(), &Device{Identity: Identity{DeviceID: "d1"}, Kind: KindGeneric}, "h")
	if !errors.Is(err, database.ErrUnavailable) {
		t.Errorf("Create() on closed db error = %v, want database.ErrUnavailable", err)
	}
}

func TestSQLiteRepository_Timeout(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB, db.QueryTimeout())

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := repo.FindByCredential(ctx, "d1", "h")
	if !errors.Is(err, database.ErrTimeout) {
		t.Errorf("FindByCredential() with expired ctx error = %v, want database.ErrTimeout", err)
	}
}
