package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/runnerr0/timesheet/internal/activity"
)

// SQLiteStore implements Store backed by a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string

	// Prepared statements
	loadActivities *sql.Stmt
	getValue       *sql.Stmt
}

// OpenSQLite opens (creating if needed) the database at path, runs
// migrations and returns a ready store. The store owns the *sql.DB.
func OpenSQLite(path string) (*SQLiteStore, error) {
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", path+"?_foreign_keys=on&_busy_timeout=5000&_txlock=immediate")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if path == ":memory:" {
		// Every pooled connection would otherwise see its own empty database.
		db.SetMaxOpenConns(1)
	}

	if err := NewMigrationRunner(db).Run(); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	s, err := NewSQLiteStore(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	s.path = path
	return s, nil
}

// NewSQLiteStore creates a SQLiteStore from an already-opened and migrated database.
func NewSQLiteStore(db *sql.DB) (*SQLiteStore, error) {
	s := &SQLiteStore{db: db}

	if err := s.prepareStatements(); err != nil {
		return nil, fmt.Errorf("prepare statements: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) prepareStatements() error {
	var err error

	s.loadActivities, err = s.db.Prepare(`
		SELECT id, domain, title, url, start_time, end_time, duration, source, visit_count
		FROM activities ORDER BY seq ASC
	`)
	if err != nil {
		return err
	}

	s.getValue, err = s.db.Prepare(`SELECT value FROM kv WHERE key = ?`)
	if err != nil {
		return err
	}

	return nil
}

// LoadActivities returns all stored entries in log order (most recent first).
func (s *SQLiteStore) LoadActivities(ctx context.Context) ([]activity.Entry, error) {
	rows, err := s.loadActivities.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("query activities: %w", err)
	}
	return scanActivities(rows)
}

func scanActivities(rows *sql.Rows) ([]activity.Entry, error) {
	defer rows.Close()

	entries := []activity.Entry{}
	for rows.Next() {
		var e activity.Entry
		var startStr string
		var endStr sql.NullString
		if err := rows.Scan(
			&e.ID, &e.Domain, &e.Title, &e.URL, &startStr, &endStr,
			&e.Duration, &e.Source, &e.VisitCount,
		); err != nil {
			return nil, fmt.Errorf("scan activity: %w", err)
		}
		var err error
		if e.StartTime, err = parseTimestamp(startStr); err != nil {
			return nil, fmt.Errorf("activity %s: %w", e.ID, err)
		}
		if endStr.Valid {
			end, err := parseTimestamp(endStr.String)
			if err != nil {
				return nil, fmt.Errorf("activity %s: %w", e.ID, err)
			}
			e.EndTime = &end
		}
		entries = append(entries, e)
	}

	return entries, rows.Err()
}

// SaveActivities replaces the stored log inside one transaction.
func (s *SQLiteStore) SaveActivities(ctx context.Context, entries []activity.Entry) error {
	return s.UpdateActivities(ctx, func([]activity.Entry) ([]activity.Entry, error) {
		return entries, nil
	})
}

// UpdateActivities runs fn between a read and a write of the log inside one
// immediate transaction, so the database write lock is held throughout.
func (s *SQLiteStore) UpdateActivities(ctx context.Context, fn func([]activity.Entry) ([]activity.Entry, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	rows, err := tx.StmtContext(ctx, s.loadActivities).QueryContext(ctx)
	if err != nil {
		return fmt.Errorf("query activities: %w", err)
	}
	current, err := scanActivities(rows)
	if err != nil {
		return err
	}

	entries, err := fn(current)
	if err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM activities"); err != nil {
		return fmt.Errorf("clear activities: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO activities (id, seq, domain, title, url, start_time, end_time, duration, source, visit_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()

	for i, e := range entries {
		var end sql.NullString
		if e.EndTime != nil {
			end = sql.NullString{String: formatTimestamp(*e.EndTime), Valid: true}
		}
		if _, err := stmt.ExecContext(ctx,
			e.ID, i, e.Domain, e.Title, e.URL, formatTimestamp(e.StartTime), end,
			e.Duration, e.Source, e.VisitCount,
		); err != nil {
			return fmt.Errorf("insert activity %s: %w", e.ID, err)
		}
	}

	return tx.Commit()
}

// LoadSummary returns the cached summary or ErrNotFound.
func (s *SQLiteStore) LoadSummary(ctx context.Context) (*Summary, error) {
	var raw string
	err := s.getValue.QueryRowContext(ctx, KeySummary).Scan(&raw)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get summary: %w", err)
	}

	var sum Summary
	if err := json.Unmarshal([]byte(raw), &sum); err != nil {
		return nil, fmt.Errorf("decode summary: %w", err)
	}
	return &sum, nil
}

// SaveSummary stores s as the cached summary.
func (s *SQLiteStore) SaveSummary(ctx context.Context, sum Summary) error {
	data, err := json.Marshal(sum)
	if err != nil {
		return fmt.Errorf("encode summary: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at
	`, KeySummary, string(data), formatTimestamp(time.Now()))
	if err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// Stats returns aggregate statistics about the stored log.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	stats := &Stats{}

	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*), COALESCE(SUM(CASE WHEN end_time IS NULL THEN 1 ELSE 0 END), 0) FROM activities",
	).Scan(&stats.TotalEntries, &stats.OpenEntries)
	if err != nil {
		return nil, fmt.Errorf("count activities: %w", err)
	}

	// Oldest and newest (handle empty DB)
	if stats.TotalEntries > 0 {
		var oldestStr, newestStr string
		err = s.db.QueryRowContext(ctx, "SELECT MIN(start_time), MAX(start_time) FROM activities").Scan(&oldestStr, &newestStr)
		if err != nil {
			return nil, fmt.Errorf("activity time range: %w", err)
		}
		stats.OldestEntry, _ = parseTimestamp(oldestStr)
		stats.NewestEntry, _ = parseTimestamp(newestStr)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT domain, COUNT(*), SUM(duration) AS minutes
		FROM activities GROUP BY domain
		ORDER BY minutes DESC, domain ASC LIMIT ?
	`, topDomainLimit)
	if err != nil {
		return nil, fmt.Errorf("top domains: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var dt DomainTotal
		if err := rows.Scan(&dt.Domain, &dt.Entries, &dt.Minutes); err != nil {
			return nil, err
		}
		stats.TopDomains = append(stats.TopDomains, dt)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stats.SizeBytes = s.databaseSize(ctx)
	return stats, nil
}

// databaseSize uses the file size for on-disk databases and
// page_count * page_size otherwise.
func (s *SQLiteStore) databaseSize(ctx context.Context) int64 {
	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			return info.Size()
		}
	}

	var pageCount, pageSize int64
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_count").Scan(&pageCount); err != nil {
		return 0
	}
	if err := s.db.QueryRowContext(ctx, "PRAGMA page_size").Scan(&pageSize); err != nil {
		return 0
	}
	return pageCount * pageSize
}

// Purge deletes all activities and cached values.
func (s *SQLiteStore) Purge(ctx context.Context) error {
	stmts := []string{
		"DELETE FROM activities",
		"DELETE FROM kv",
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("purge (%s): %w", stmt, err)
		}
	}
	return nil
}

// Close releases prepared statements and closes the database.
func (s *SQLiteStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.loadActivities, s.getValue} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}
