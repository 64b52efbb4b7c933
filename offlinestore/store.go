// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

// Package offlinestore provides the durable, indexed on-device store the
// offline engine runs on: reference caches of server-authoritative
// catalog data plus outbox collections of locally created records
// awaiting upload. Items are stored as JSON payloads keyed by id, with
// declared fields extracted into indexed columns for filtered reads.
package offlinestore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the local persistence layer. Open it once per process and
// share it; SQLite serializes conflicting writers internally.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
	closed atomic.Bool
}

// Open opens (or creates) the store at path and applies the schema.
// Failures are wrapped in ErrStorageUnavailable so callers can collapse
// them into a single "offline capability lost" state.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
	}

	logger.Debug("offline store opened", "path", path)
	return &Store{db: db, logger: logger}, nil
}

// Close releases the underlying database. Any operation after Close
// returns ErrStoreClosed.
func (s *Store) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}

func (s *Store) guard() error {
	if s.closed.Load() {
		return ErrStoreClosed
	}
	return nil
}

// Get returns the raw payload stored under key, or ErrNotFound.
func (s *Store) Get(ctx context.Context, collectionName, key string) (json.RawMessage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return nil, err
	}

	var payload string
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, c.Name)
	err = s.db.QueryRowContext(ctx, query, key).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s/%s", ErrNotFound, c.Name, key)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", c.Name, key, err)
	}
	return json.RawMessage(payload), nil
}

// Put inserts or overwrites a single item.
func (s *Store) Put(ctx context.Context, collectionName string, item Item) error {
	if err := s.guard(); err != nil {
		return err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return err
	}

	stmt, args, err := upsertArgs(c, item)
	if err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, stmt, args...); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", c.Name, item.Key(), err)
	}
	return nil
}

// GetAll returns every payload in the collection, in insertion order.
func (s *Store) GetAll(ctx context.Context, collectionName string) ([]json.RawMessage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT payload FROM %s ORDER BY rowid`, c.Name)
	return s.queryPayloads(ctx, c.Name, query)
}

// GetByIndex returns payloads whose indexed field equals value, in
// insertion order.
func (s *Store) GetByIndex(ctx context.Context, collectionName, indexName, value string) ([]json.RawMessage, error) {
	if err := s.guard(); err != nil {
		return nil, err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return nil, err
	}
	ix, err := c.indexByName(indexName)
	if err != nil {
		return nil, err
	}
	query := fmt.Sprintf(`SELECT payload FROM %s WHERE %s = ? ORDER BY rowid`, c.Name, ix.Column)
	return s.queryPayloads(ctx, c.Name, query, value)
}

// Delete removes the item under key. Deleting a missing key is a no-op.
func (s *Store) Delete(ctx context.Context, collectionName, key string) error {
	if err := s.guard(); err != nil {
		return err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return err
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.Name)
	if _, err := s.db.ExecContext(ctx, query, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", c.Name, key, err)
	}
	return nil
}

// BulkReplace atomically replaces the collection's contents with items:
// clear plus inserts in a single transaction, so readers either see the
// old set or the new one, never a partial mix.
func (s *Store) BulkReplace(ctx context.Context, collectionName string, items []Item) error {
	if err := s.guard(); err != nil {
		return err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin replace of %s: %w", c.Name, err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.Name)); err != nil {
		return fmt.Errorf("failed to clear %s: %w", c.Name, err)
	}
	for _, item := range items {
		stmt, args, err := upsertArgs(c, item)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("failed to insert %s/%s: %w", c.Name, item.Key(), err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit replace of %s: %w", c.Name, err)
	}
	return nil
}

// Count returns the number of items in the collection.
func (s *Store) Count(ctx context.Context, collectionName string) (int, error) {
	if err := s.guard(); err != nil {
		return 0, err
	}
	c, err := collectionByName(collectionName)
	if err != nil {
		return 0, err
	}
	var n int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s`, c.Name)
	if err := s.db.QueryRowContext(ctx, query).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", c.Name, err)
	}
	return n, nil
}

// ClearAll wipes every collection, caches and outboxes alike. Used by the
// host application's data-reset (GDPR) flow.
func (s *Store) ClearAll(ctx context.Context) error {
	if err := s.guard(); err != nil {
		return err
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin wipe: %w", err)
	}
	defer tx.Rollback()
	for _, c := range schema {
		if _, err := tx.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s`, c.Name)); err != nil {
			return fmt.Errorf("failed to clear %s: %w", c.Name, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit wipe: %w", err)
	}
	s.logger.Info("offline store wiped")
	return nil
}

func (s *Store) queryPayloads(ctx context.Context, name, query string, args ...any) ([]json.RawMessage, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", name, err)
	}
	defer rows.Close()

	var out []json.RawMessage
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, fmt.Errorf("failed to scan %s row: %w", name, err)
		}
		out = append(out, json.RawMessage(payload))
	}
	return out, rows.Err()
}

// upsertArgs builds the upsert statement for an item, extracting declared
// index fields from its JSON encoding. ON CONFLICT DO UPDATE keeps the
// rowid stable so insertion order survives status updates.
func upsertArgs(c collection, item Item) (string, []any, error) {
	payload, err := json.Marshal(item)
	if err != nil {
		return "", nil, fmt.Errorf("failed to marshal %s/%s: %w", c.Name, item.Key(), err)
	}

	var fields map[string]any
	if len(c.Indices) > 0 {
		if err := json.Unmarshal(payload, &fields); err != nil {
			return "", nil, fmt.Errorf("failed to decode %s/%s for indexing: %w", c.Name, item.Key(), err)
		}
	}

	cols := "id, payload"
	marks := "?, ?"
	updates := "payload = excluded.payload"
	args := []any{item.Key(), string(payload)}
	for _, ix := range c.Indices {
		cols += ", " + ix.Column
		marks += ", ?"
		updates += fmt.Sprintf(", %s = excluded.%s", ix.Column, ix.Column)
		args = append(args, indexValue(fields[ix.Field]))
	}

	stmt := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s) ON CONFLICT(id) DO UPDATE SET %s`,
		c.Name, cols, marks, updates)
	return stmt, args, nil
}

func indexValue(v any) any {
	if v == nil {
		return nil
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}
