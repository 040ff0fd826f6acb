package storage

import (
	"database/sql"
	"fmt"
)

// migration represents a single schema migration.
type migration struct {
	Version int
	Name    string
	Apply   func(tx *sql.Tx) error
}

// MigrationRunner applies pending migrations to a SQLite database.
type MigrationRunner struct {
	db         *sql.DB
	migrations []migration
}

// NewMigrationRunner creates a MigrationRunner with all registered migrations.
func NewMigrationRunner(db *sql.DB) *MigrationRunner {
	return &MigrationRunner{
		db: db,
		migrations: []migration{
			{Version: 1, Name: "activity_log", Apply: migrateV001},
		},
	}
}

// Run enables WAL mode, creates the schema_migrations tracking table and
// applies each migration that hasn't been recorded yet, in version order.
func (r *MigrationRunner) Run() error {
	// In-memory databases report "memory" and ignore the request.
	if _, err := r.db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return fmt.Errorf("set WAL mode: %w", err)
	}

	if _, err := r.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version    INTEGER PRIMARY KEY,
			name       TEXT NOT NULL,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)
	`); err != nil {
		return fmt.Errorf("create schema_migrations table: %w", err)
	}

	current, err := r.Version()
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}

	for _, m := range r.migrations {
		if m.Version <= current {
			continue
		}
		if err := r.apply(m); err != nil {
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Name, err)
		}
	}

	return nil
}

// Version returns the highest applied migration version, 0 for a fresh database.
func (r *MigrationRunner) Version() (int, error) {
	var v sql.NullInt64
	if err := r.db.QueryRow("SELECT MAX(version) FROM schema_migrations").Scan(&v); err != nil {
		return 0, err
	}
	return int(v.Int64), nil
}

// apply executes a migration inside a transaction and records it.
func (r *MigrationRunner) apply(m migration) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := m.Apply(tx); err != nil {
		return err
	}

	if _, err := tx.Exec(
		"INSERT INTO schema_migrations (version, name) VALUES (?, ?)",
		m.Version, m.Name,
	); err != nil {
		return fmt.Errorf("record migration: %w", err)
	}

	return tx.Commit()
}
