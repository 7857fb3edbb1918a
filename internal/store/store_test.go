package store

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

func migrationsDir() string {
	_, f, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(f), "..", "..", "migrations")
}

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	dir := migrationsDir()
	if _, err := os.Stat(dir); err != nil {
		t.Fatalf("migrations dir: %v", err)
	}
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
	return s
}

func TestMigrateIdempotent(t *testing.T) {
	s := newTestStore(t)
	if err := s.Migrate(migrationsDir()); err != nil {
		t.Fatalf("second Migrate: %v", err)
	}
	if err := s.Ping(); err != nil {
		t.Fatalf("Ping: %v", err)
	}
}

func newBareStore(t *testing.T) *Store {
	t.Helper()
	s, err := New(":memory:")
	if err != nil {
		t.Fatalf("store.New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func writeMigration(t *testing.T, dir, name, ddl string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(ddl), 0644); err != nil {
		t.Fatalf("writing %s: %v", name, err)
	}
}

func TestMigrateOrdersByVersion(t *testing.T) {
	dir := t.TempDir()
	// Lexical order would run 10 before 2 and fail on the missing table.
	writeMigration(t, dir, "2_create.sql", "CREATE TABLE things (id INTEGER PRIMARY KEY);")
	writeMigration(t, dir, "10_alter.sql", "ALTER TABLE things ADD COLUMN label TEXT;")

	s := newBareStore(t)
	if err := s.Migrate(dir); err != nil {
		t.Fatalf("Migrate: %v", err)
	}
}

func TestMigrateRejectsUnnumberedFile(t *testing.T) {
	dir := t.TempDir()
	writeMigration(t, dir, "init.sql", "CREATE TABLE t (id INTEGER);")

	s := newBareStore(t)
	if err := s.Migrate(dir); err == nil {
		t.Fatal("expected error for migration without numeric version prefix")
	}
}
