package access

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/nerrad567/fog-access-core/internal/infrastructure/database"
	"github.com/nerrad567/fog-access-core/migrations"
)

func setupTestDB(t *testing.T) *database.DB {
	t.Helper()

	ctx := context.Background()
	db, err := database.Open(ctx, database.Config{
		Path:        filepath.Join(t.TempDir(), "access.db"),
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

func TestSQLiteRepository_CreateAndExists(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	g := &Grant{RoomID: "12", HolderID: "1", BookingID: "9", UID: "ABCD"}
	if err := repo.Create(ctx, g); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if g.ID == "" || g.CreatedAt.IsZero() || g.Source != SourceAPI {
		t.Errorf("Create() did not fill generated fields: %+v", g)
	}

	tests := []struct {
		uid, room string
		want      bool
	}{
		{"ABCD", "12", true},
		{"ABCD", "13", false},
		{"ABCE", "12", false},
		{"abcd", "12", false}, // repository expects normalised input
	}
	for _, tt := range tests {
		got, err := repo.Exists(ctx, tt.uid, tt.room)
		if err != nil {
			t.Fatalf("Exists(%q, %q) error = %v", tt.uid, tt.room, err)
		}
		if got != tt.want {
			t.Errorf("Exists(%q, %q) = %v, want %v", tt.uid, tt.room, got, tt.want)
		}
	}
}

func TestSQLiteRepository_CreateDuplicateUID(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	if err := repo.Create(ctx, &Grant{RoomID: "12", HolderID: "1", BookingID: "9", UID: "ABCD"}); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	err := repo.Create(ctx, &Grant{RoomID: "14", HolderID: "2", BookingID: "10", UID: "ABCD"})
	if !errors.Is(err, ErrDuplicateGrant) {
		t.Fatalf("second Create() error = %v, want ErrDuplicateGrant", err)
	}
	if ok, _ := repo.Exists(ctx, "ABCD", "14"); ok { //nolint:errcheck // asserted via ok
		t.Error("rejected grant must not be stored")
	}
}

func TestSQLiteRepository_InsertIfAbsent(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	inserted, err := repo.InsertIfAbsent(ctx, &Grant{RoomID: "12", HolderID: "1", BookingID: "9", UID: "ABCD", Source: SourceBackendSync})
	if err != nil {
		t.Fatalf("InsertIfAbsent() error = %v", err)
	}
	if !inserted {
		t.Fatal("first InsertIfAbsent() should insert")
	}

	inserted, err = repo.InsertIfAbsent(ctx, &Grant{RoomID: "15", HolderID: "1", BookingID: "9", UID: "ABCD", Source: SourceBackendSync})
	if err != nil {
		t.Fatalf("second InsertIfAbsent() error = %v", err)
	}
	if inserted {
		t.Error("second InsertIfAbsent() with known uid should be skipped")
	}

	grants, err := repo.ListByRoom(ctx, "12")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(grants) != 1 || grants[0].Source != SourceBackendSync {
		t.Errorf("ListByRoom(12) = %+v", grants)
	}
}

func TestSQLiteRepository_ListByRoom(t *testing.T) {
	repo := setupRepo(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, uid := range []string{"C1", "A1", "B1"} {
		g := &Grant{RoomID: "12", HolderID: "h", BookingID: "b", UID: uid, CreatedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := repo.Create(ctx, g); err != nil {
			t.Fatalf("Create(%s) error = %v", uid, err)
		}
	}

	got, err := repo.ListByRoom(ctx, "12")
	if err != nil {
		t.Fatalf("ListByRoom() error = %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("len(ListByRoom) = %d, want 3", len(got))
	}
	for i, want := range []string{"C1", "A1", "B1"} {
		if got[i].UID != want {
			t.Errorf("got[%d].UID = %q, want %q", i, got[i].UID, want)
		}
	}
	if !got[0].CreatedAt.Equal(base) {
		t.Errorf("CreatedAt = %v, want %v", got[0].CreatedAt, base)
	}

	empty, err := repo.ListByRoom(ctx, "99")
	if err != nil {
		t.Fatalf("ListByRoom(99) error = %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("ListByRoom(99) = %#v, want empty non-nil slice", empty)
	}
}

func TestSQLiteRepository_StorageFault(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSQLiteRepository(db.DB, db.QueryTimeout())
	db.Close() //nolint:errcheck // Closing early to force a storage fault

	_, err := repo.Exists(context.Background(), "ABCD", "12")
	if !errors.Is(err, database.ErrUnavailable) {
		t.Errorf("Exists() on closed db error = %v, want database.ErrUnavailable", err)
	}
}

func TestSQLiteRepository_Timeout(t *testing.T) {
	repo := setupRepo(t)

	ctx, cancel := context.WithDeadline(context.Background(), time.Now().Add(-time.Second))
	defer cancel()

	_, err := repo.Exists(ctx, "ABCD", "12")
	if !errors.Is(err, database.ErrTimeout) {
		t.Errorf("Exists() with expired ctx error = %v, want database.ErrTimeout", err)
	}
}
