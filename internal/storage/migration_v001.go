package storage

import "database/sql"

// migrateV001 creates the activity log schema. Every statement uses
// IF NOT EXISTS for idempotency.
func migrateV001(tx *sql.Tx) error {
	stmts := []string{
		// ── Tables ──────────────────────────────────────────────

		`CREATE TABLE IF NOT EXISTS activities (
			id          TEXT PRIMARY KEY,
			seq         INTEGER NOT NULL,
			domain      TEXT NOT NULL DEFAULT '',
			title       TEXT NOT NULL DEFAULT '',
			url         TEXT NOT NULL DEFAULT '',
			start_time  TEXT NOT NULL,
			end_time    TEXT,
			duration    REAL NOT NULL DEFAULT 0 CHECK (duration >= 0),
			source      TEXT NOT NULL DEFAULT 'live',
			visit_count INTEGER NOT NULL DEFAULT 0
		)`,

		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)`,

		// ── Indexes ────────────────────────────────────────────

		`CREATE INDEX IF NOT EXISTS idx_activities_seq    ON activities(seq)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_start  ON activities(start_time)`,
		`CREATE INDEX IF NOT EXISTS idx_activities_domain ON activities(domain)`,
	}

	for _, stmt := range stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
