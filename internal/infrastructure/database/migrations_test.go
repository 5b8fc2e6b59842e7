package database

import (
	"context"
	"testing"
	"testing/fstest"
	"time"
)

// testMigrations holds two versions so ordering and single-step rollback
// can both be observed.
var testMigrations = fstest.MapFS{
	"20260301_090000_create_widgets.up.sql": {
		Data: []byte("CREATE TABLE widgets (id TEXT PRIMARY KEY);"),
	},
	"20260301_090000_create_widgets.down.sql": {
		Data: []byte("DROP TABLE widgets;"),
	},
	"20260302_090000_create_gadgets.up.sql": {
		Data: []byte("CREATE TABLE gadgets (id TEXT PRIMARY KEY, widget_id TEXT REFERENCES widgets(id));"),
	},
	"20260302_090000_create_gadgets.down.sql": {
		Data: []byte("DROP TABLE gadgets;"),
	},
	"README.md": {Data: []byte("ignored")},
}

func tableExists(t *testing.T, db *DB, name string) bool {
	t.Helper()
	var count int
	err := db.QueryRowContext(context.Background(),
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name=?", name,
	).Scan(&count)
	if err != nil {
		t.Fatalf("querying sqlite_master: %v", err)
	}
	return count == 1
}

func TestMigrate(t *testing.T) {
	db := openTestDB(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	for _, table := range []string{"widgets", "gadgets"} {
		if !tableExists(t, db, table) {
			t.Errorf("table %s not created", table)
		}
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 2 {
		t.Errorf("expected 2 applied migrations, got %d", len(applied))
	}
	if len(pending) != 0 {
		t.Errorf("expected 0 pending migrations, got %d", len(pending))
	}
	if applied[0].Version != "20260301_090000" {
		t.Errorf("applied[0].Version = %q, want oldest first", applied[0].Version)
	}

	// Running again should be idempotent
	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("second Migrate() error = %v", err)
	}
}

func TestMigrate_FailureRollsBackThatMigration(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	broken := fstest.MapFS{
		"20260301_090000_ok.up.sql":     {Data: []byte("CREATE TABLE ok_table (id INTEGER);")},
		"20260302_090000_broken.up.sql": {Data: []byte("CREATE TABLE half (id INTEGER); THIS IS NOT SQL;")},
	}

	if err := db.Migrate(ctx, broken); err == nil {
		t.Fatal("Migrate() expected error for broken migration")
	}
	if !tableExists(t, db, "ok_table") {
		t.Error("earlier migration should remain committed")
	}
	if tableExists(t, db, "half") {
		t.Error("failed migration should be rolled back")
	}

	_, pending, err := db.MigrationStatus(ctx, broken)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(pending) != 1 || pending[0].Name != "broken" {
		t.Errorf("pending = %+v, want only the broken migration", pending)
	}
}

func TestMigrateDown(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, testMigrations); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	version, err := db.MigrateDown(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if version != "20260302_090000" {
		t.Errorf("MigrateDown() version = %q, want newest", version)
	}
	if tableExists(t, db, "gadgets") {
		t.Error("table gadgets should have been dropped")
	}
	if !tableExists(t, db, "widgets") {
		t.Error("table widgets should survive a single rollback")
	}

	applied, pending, err := db.MigrationStatus(ctx, testMigrations)
	if err != nil {
		t.Fatalf("MigrationStatus() error = %v", err)
	}
	if len(applied) != 1 || len(pending) != 1 {
		t.Errorf("applied=%d pending=%d, want 1/1", len(applied), len(pending))
	}
}

func TestMigrateDown_NothingApplied(t *testing.T) {
	db := openTestDB(t)

	version, err := db.MigrateDown(context.Background(), testMigrations)
	if err != nil {
		t.Fatalf("MigrateDown() error = %v", err)
	}
	if version != "" {
		t.Errorf("MigrateDown() version = %q, want empty", version)
	}
}

func TestMigrateDown_MissingDownSQL(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	upOnly := fstest.MapFS{
		"20260301_090000_one_way.up.sql": {Data: []byte("CREATE TABLE one_way (id INTEGER);")},
	}
	if err := db.Migrate(ctx, upOnly); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if _, err := db.MigrateDown(ctx, upOnly); err == nil {
		t.Error("MigrateDown() expected error when no down SQL exists")
	}
}

func TestMigrateNoMigrations(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	if err := db.Migrate(ctx, nil); err != nil {
		t.Fatalf("Migrate(nil) error = %v", err)
	}
	if err := db.Migrate(ctx, fstest.MapFS{}); err != nil {
		t.Fatalf("Migrate(empty) error = %v", err)
	}
}

func TestParseMigrationFilename(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		wantVersion string
		wantIsUp    bool
		wantOk      bool
	}{
		{"valid up migration", "20260301_090000_devices.up.sql", "20260301_090000", true, true},
		{"valid down migration", "20260301_090000_devices.down.sql", "20260301_090000", false, true},
		{"not sql file", "readme.txt", "", false, false},
		{"missing direction", "20260301_090000_devices.sql", "", false, false},
		{"invalid format", "invalid.up.sql", "", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, isUp, ok := parseMigrationFilename(tt.filename)
			if ok != tt.wantOk {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOk)
			}
			if !ok {
				return
			}
			if version != tt.wantVersion {
				t.Errorf("version = %v, want %v", version, tt.wantVersion)
			}
			if isUp != tt.wantIsUp {
				t.Errorf("isUp = %v, want %v", isUp, tt.wantIsUp)
			}
		})
	}
}

func TestExtractMigrationName(t *testing.T) {
	tests := []struct {
		filename string
		want     string
	}{
		{"20260301_090000_devices.up.sql", "devices"},
		{"20260301_090000_access_grants.down.sql", "access_grants"},
		{"20260301_090000_add_last_seen_to_devices.up.sql", "add_last_seen_to_devices"},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			if got := extractMigrationName(tt.filename); got != tt.want {
				t.Errorf("extractMigrationName(%q) = %q, want %q", tt.filename, got, tt.want)
			}
		})
	}
}
