package store

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// migration is one numbered .sql file waiting to run.
type migration struct {
	version int
	name    string
}

// Migrate applies the pending migrations under dir, lowest version first.
// Each file runs inside its own transaction and is recorded in
// schema_migrations, so re-running is a no-op.
func (s *Store) Migrate(dir string) error {
	ctx := context.Background()

	if _, err := s.db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_migrations: %w", err)
	}

	pending, err := migrationFiles(dir)
	if err != nil {
		return err
	}

	for _, m := range pending {
		applied, err := s.migrationApplied(ctx, m.version)
		if err != nil {
			return err
		}
		if applied {
			continue
		}
		if err := s.applyMigration(ctx, dir, m); err != nil {
			return err
		}
		log.Printf("store: applied migration %s", m.name)
	}
	return nil
}

// migrationFiles lists the .sql files under dir ordered by their numeric
// version prefix. Ordering by version, not filename, keeps "10_x.sql" after
// "2_x.sql".
func migrationFiles(dir string) ([]migration, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading migrations dir: %w", err)
	}

	var out []migration
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".sql") {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.Atoi(strings.TrimSuffix(prefix, ".sql"))
		if err != nil {
			return nil, fmt.Errorf("migration %q has no numeric version prefix", name)
		}
		out = append(out, migration{version: version, name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].version < out[j].version })
	return out, nil
}

func (s *Store) migrationApplied(ctx context.Context, version int) (bool, error) {
	var v int
	err := s.db.QueryRowContext(ctx,
		`SELECT version FROM schema_migrations WHERE version = ?`, version).Scan(&v)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("checking migration %d: %w", version, err)
	}
	return true, nil
}

func (s *Store) applyMigration(ctx context.Context, dir string, m migration) error {
	ddl, err := os.ReadFile(filepath.Join(dir, m.name))
	if err != nil {
		return fmt.Errorf("reading migration %s: %w", m.name, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, string(ddl)); err != nil {
		tx.Rollback()
		return fmt.Errorf("applying migration %s: %w", m.name, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO schema_migrations (version) VALUES (?)`, m.version); err != nil {
		tx.Rollback()
		return fmt.Errorf("recording migration %s: %w", m.name, err)
	}
	return tx.Commit()
}
