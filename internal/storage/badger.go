package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/runnerr0/timesheet/internal/activity"
)

// BadgerStore implements Store on a Badger key-value database. The log is a
// single keyed record holding the JSON array of entries.
type BadgerStore struct {
	db *badger.DB
}

// OpenBadger opens the Badger database in dir.
func OpenBadger(dir string) (*BadgerStore, error) {
	opts := badger.DefaultOptions(dir).
		WithLoggingLevel(badger.ERROR)
	return openBadger(opts)
}

// OpenBadgerInMemory opens a Badger database that lives only in memory.
func OpenBadgerInMemory() (*BadgerStore, error) {
	opts := badger.DefaultOptions("").
		WithInMemory(true).
		WithLoggingLevel(badger.ERROR)
	return openBadger(opts)
}

func openBadger(opts badger.Options) (*BadgerStore, error) {
	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return &BadgerStore{db: db}, nil
}

func (s *BadgerStore) get(key string, dst any) error {
	return s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, dst)
		})
	})
}

func (s *BadgerStore) set(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), data)
	})
}

// LoadActivities returns the stored entries, most recent first.
func (s *BadgerStore) LoadActivities(_ context.Context) ([]activity.Entry, error) {
	entries := []activity.Entry{}
	if err := s.get(KeyActivities, &entries); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []activity.Entry{}, nil
		}
		return nil, fmt.Errorf("load activities: %w", err)
	}
	return entries, nil
}

// SaveActivities writes the whole log as one record in one transaction.
func (s *BadgerStore) SaveActivities(_ context.Context, entries []activity.Entry) error {
	if entries == nil {
		entries = []activity.Entry{}
	}
	if err := s.set(KeyActivities, entries); err != nil {
		return fmt.Errorf("save activities: %w", err)
	}
	return nil
}

// UpdateActivities reads and rewrites the log record in one read-write
// transaction. Badger holds a directory lock, so other processes cannot
// open the database while this one has it.
func (s *BadgerStore) UpdateActivities(_ context.Context, fn func([]activity.Entry) ([]activity.Entry, error)) error {
	return s.db.Update(func(txn *badger.Txn) error {
		current := []activity.Entry{}
		item, err := txn.Get([]byte(KeyActivities))
		switch {
		case errors.Is(err, badger.ErrKeyNotFound):
		case err != nil:
			return fmt.Errorf("load activities: %w", err)
		default:
			if err := item.Value(func(val []byte) error {
				return json.Unmarshal(val, &current)
			}); err != nil {
				return fmt.Errorf("load activities: %w", err)
			}
		}

		next, err := fn(current)
		if err != nil {
			return err
		}
		if next == nil {
			next = []activity.Entry{}
		}
		data, err := json.Marshal(next)
		if err != nil {
			return fmt.Errorf("encode %s: %w", KeyActivities, err)
		}
		return txn.Set([]byte(KeyActivities), data)
	})
}

// LoadSummary returns the cached summary or ErrNotFound.
func (s *BadgerStore) LoadSummary(_ context.Context) (*Summary, error) {
	var sum Summary
	if err := s.get(KeySummary, &sum); err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("load summary: %w", err)
	}
	return &sum, nil
}

// SaveSummary stores sum as the cached summary.
func (s *BadgerStore) SaveSummary(_ context.Context, sum Summary) error {
	if err := s.set(KeySummary, sum); err != nil {
		return fmt.Errorf("save summary: %w", err)
	}
	return nil
}

// Stats decodes the log and computes statistics in memory.
func (s *BadgerStore) Stats(ctx context.Context) (*Stats, error) {
	entries, err := s.LoadActivities(ctx)
	if err != nil {
		return nil, err
	}
	stats := computeStats(entries)
	lsm, vlog := s.db.Size()
	stats.SizeBytes = lsm + vlog
	return stats, nil
}

// Purge removes every key.
func (s *BadgerStore) Purge(_ context.Context) error {
	if err := s.db.DropAll(); err != nil {
		return fmt.Errorf("purge: %w", err)
	}
	return nil
}

// Close closes the Badger database.
func (s *BadgerStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}
