// Copyright 2025 AA Global Reach GmbH
// SPDX-License-Identifier: Apache-2.0

package offlinestore

import (
	"database/sql"
	"fmt"
)

// Collection names. Reference caches hold server-authoritative catalog
// data, pending_* collections are durable outboxes.
const (
	HardwareCatalog     = "hardware_catalog"
	MobileTariffs       = "mobile_tariffs"
	FixedNetProducts    = "fixed_net_products"
	CachedChecklists    = "cached_checklists"
	CachedCustomers     = "cached_customers"
	PendingOffers       = "pending_offers"
	PendingCalculations = "pending_calculations"
	PendingVisits       = "pending_visits"
	PendingPhotos       = "pending_photos"
	Metadata            = "sync_metadata"
)

// index maps a caller-facing index name to the JSON field extracted into
// its own column at write time.
type index struct {
	Name   string // name callers pass to GetByIndex
	Column string // column name in the collection table
	Field  string // JSON field the value is taken from
}

type collection struct {
	Name    string
	Indices []index
}

// schema is the fixed set of collections this engine manages. Adding a
// collection or index here is picked up at next Open; existing tables are
// never dropped or rewritten.
var schema = []collection{
	{Name: HardwareCatalog, Indices: []index{
		{Name: "brand", Column: "brand", Field: "brand"},
		{Name: "category", Column: "category", Field: "category"},
	}},
	{Name: MobileTariffs, Indices: []index{
		{Name: "family", Column: "family", Field: "family"},
	}},
	{Name: FixedNetProducts, Indices: []index{
		{Name: "type", Column: "product_type", Field: "type"},
	}},
	{Name: CachedChecklists},
	{Name: CachedCustomers, Indices: []index{
		{Name: "companyName", Column: "company_name", Field: "companyName"},
	}},
	{Name: PendingOffers, Indices: []index{
		{Name: "syncStatus", Column: "sync_status", Field: "syncStatus"},
		{Name: "createdAt", Column: "created_at", Field: "createdAt"},
	}},
	{Name: PendingCalculations, Indices: []index{
		{Name: "syncStatus", Column: "sync_status", Field: "syncStatus"},
	}},
	{Name: PendingVisits, Indices: []index{
		{Name: "syncStatus", Column: "sync_status", Field: "syncStatus"},
	}},
	{Name: PendingPhotos, Indices: []index{
		{Name: "visitId", Column: "visit_id", Field: "visitId"},
	}},
	{Name: Metadata},
}

func collectionByName(name string) (collection, error) {
	for _, c := range schema {
		if c.Name == name {
			return c, nil
		}
	}
	return collection{}, fmt.Errorf("%w: %s", ErrUnknownCollection, name)
}

func (c collection) indexByName(name string) (index, error) {
	for _, ix := range c.Indices {
		if ix.Name == name {
			return ix, nil
		}
	}
	return index{}, fmt.Errorf("%w: %s.%s", ErrUnknownIndex, c.Name, name)
}

// initSchema creates all collection tables and secondary indices. It is
// idempotent and additive only, so re-opening an existing database file
// upgrades it in place without touching stored rows.
func initSchema(db *sql.DB) error {
	// WAL keeps readers unblocked while a sync drain writes.
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}
	if _, err := db.Exec(`PRAGMA foreign_keys=ON`); err != nil {
		return fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	for _, c := range schema {
		ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id      TEXT PRIMARY KEY,
			payload TEXT NOT NULL`, c.Name)
		for _, ix := range c.Indices {
			ddl += fmt.Sprintf(",\n\t\t\t%s TEXT", ix.Column)
		}
		ddl += "\n\t\t)"
		if _, err := db.Exec(ddl); err != nil {
			return fmt.Errorf("failed to create collection %s: %w", c.Name, err)
		}

		// A column declared after the table was first created has to be
		// added before its index can exist.
		existing, err := tableColumns(db, c.Name)
		if err != nil {
			return err
		}
		for _, ix := range c.Indices {
			if !existing[ix.Column] {
				stmt := fmt.Sprintf(`ALTER TABLE %s ADD COLUMN %s TEXT`, c.Name, ix.Column)
				if _, err := db.Exec(stmt); err != nil {
					return fmt.Errorf("failed to add column %s.%s: %w", c.Name, ix.Column, err)
				}
			}
		}

		for _, ix := range c.Indices {
			stmt := fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_%s ON %s(%s)`,
				c.Name, ix.Column, c.Name, ix.Column)
			if _, err := db.Exec(stmt); err != nil {
				return fmt.Errorf("failed to create index %s.%s: %w", c.Name, ix.Name, err)
			}
		}
	}

	return nil
}

func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	rows, err := db.Query(fmt.Sprintf(`PRAGMA table_info(%s)`, table))
	if err != nil {
		return nil, fmt.Errorf("failed to inspect table %s: %w", table, err)
	}
	defer rows.Close()

	cols := make(map[string]bool)
	for rows.Next() {
		var cid int
		var name, typ string
		var notNull int
		var dflt sql.NullString
		var pk int
		if err := rows.Scan(&cid, &name, &typ, &notNull, &dflt, &pk); err != nil {
			return nil, fmt.Errorf("failed to scan table info for %s: %w", table, err)
		}
		cols[name] = true
	}
	return cols, rows.Err()
}
