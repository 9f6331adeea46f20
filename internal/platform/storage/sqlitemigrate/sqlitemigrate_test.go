package sqlitemigrate

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"testing/fstest"

	_ "modernc.org/sqlite"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	sqlDB, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { sqlDB.Close() })
	return sqlDB
}

func TestApplyRunsMigrationsInOrder(t *testing.T) {
	migrationFS := fstest.MapFS{
		"0002_add_column.sql": {Data: []byte("-- +migrate Up\nALTER TABLE things ADD COLUMN name TEXT;\n-- +migrate Down\nSELECT 1;\n")},
		"0001_things.sql":     {Data: []byte("-- +migrate Up\nCREATE TABLE things (id TEXT PRIMARY KEY);\n")},
	}
	sqlDB := openTestDB(t)

	if err := Apply(context.Background(), sqlDB, migrationFS); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if _, err := sqlDB.Exec("INSERT INTO things (id, name) VALUES ('t1', 'widget')"); err != nil {
		t.Fatalf("schema incomplete: %v", err)
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 2 {
		t.Fatalf("applied = %d, want 2", count)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	migrationFS := fstest.MapFS{
		"0001_things.sql": {Data: []byte("-- +migrate Up\nCREATE TABLE things (id TEXT PRIMARY KEY);\n")},
	}
	sqlDB := openTestDB(t)

	for i := 0; i < 3; i++ {
		if err := Apply(context.Background(), sqlDB, migrationFS); err != nil {
			t.Fatalf("apply %d: %v", i, err)
		}
	}

	var count int
	if err := sqlDB.QueryRow("SELECT COUNT(*) FROM schema_migrations").Scan(&count); err != nil {
		t.Fatalf("count migrations: %v", err)
	}
	if count != 1 {
		t.Fatalf("applied = %d, want 1", count)
	}
}

func TestUpSectionSplitsMarkers(t *testing.T) {
	content := "-- +migrate Up\nCREATE TABLE a (id TEXT);\n-- +migrate Down\nDROP TABLE a;\n"
	got := upSection(content)
	if got != "\nCREATE TABLE a (id TEXT);\n" {
		t.Fatalf("up section = %q", got)
	}
	if upSection("SELECT 1;") != "SELECT 1;" {
		t.Fatal("file without markers should run whole")
	}
}
