// Package pgtable provides a PostgreSQL-backed record [sesstore.Table].
//
// The schema is the engine's durable contract: sessions(id text primary key,
// expires timestamptz, created timestamptz, data bytea), all not null, plus
// an ascending index on expires. The SQL index is the durable counterpart of
// the store's in-memory expiry index — derived state, rebuildable, never the
// source of truth for expiry values.
package pgtable

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/avrellin/sesstore"
)

// Table is a PostgreSQL-backed durable record table.
type Table struct {
	db *sql.DB
}

// New wraps an existing database handle. The caller owns the handle's
// lifecycle; Migrate must have been run before the table is used.
func New(db *sql.DB) *Table {
	return &Table{db: db}
}

// Open connects to PostgreSQL, verifies the connection, and applies pending
// migrations.
func Open(ctx context.Context, dsn string) (*Table, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("pgtable: open: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pgtable: ping: %w", err)
	}

	t := &Table{db: db}
	if err := t.Migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return t, nil
}

// Put writes or replaces the record. The row and the expires index entry
// commit in the same statement; PostgreSQL keeps the secondary index
// consistent with the row as one atomic unit.
func (t *Table) Put(ctx context.Context, rec *sesstore.Record) error {
	const query = `
		INSERT INTO sessions (id, expires, created, data)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE
		SET expires = EXCLUDED.expires, data = EXCLUDED.data`

	_, err := t.db.ExecContext(ctx, query, rec.ID, rec.Expires.UTC(), rec.Created.UTC(), rec.Data)
	if err != nil {
		return fmt.Errorf("%w: pgtable put: %v", sesstore.ErrStorageUnavailable, err)
	}
	return nil
}

// Get returns the record for id, or [sesstore.ErrNotFound].
func (t *Table) Get(ctx context.Context, id string) (*sesstore.Record, error) {
	const query = `
		SELECT expires, created, data
		FROM sessions
		WHERE id = $1`

	rec := &sesstore.Record{ID: id}
	err := t.db.QueryRowContext(ctx, query, id).Scan(&rec.Expires, &rec.Created, &rec.Data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sesstore.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pgtable get: %v", sesstore.ErrStorageUnavailable, err)
	}
	rec.Expires = rec.Expires.UTC()
	rec.Created = rec.Created.UTC()
	return rec, nil
}

// Delete removes the row, reporting whether one existed.
func (t *Table) Delete(ctx context.Context, id string) (bool, error) {
	const query = `DELETE FROM sessions WHERE id = $1`

	res, err := t.db.ExecContext(ctx, query, id)
	if err != nil {
		return false, fmt.Errorf("%w: pgtable delete: %v", sesstore.ErrStorageUnavailable, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: pgtable delete: %v", sesstore.ErrStorageUnavailable, err)
	}
	return n > 0, nil
}

// Walk enumerates every row in ascending expiry order.
func (t *Table) Walk(ctx context.Context, fn func(rec *sesstore.Record) error) error {
	const query = `
		SELECT id, expires, created, data
		FROM sessions
		ORDER BY expires ASC`

	rows, err := t.db.QueryContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%w: pgtable walk: %v", sesstore.ErrStorageUnavailable, err)
	}
	defer rows.Close()

	for rows.Next() {
		rec := &sesstore.Record{}
		if err := rows.Scan(&rec.ID, &rec.Expires, &rec.Created, &rec.Data); err != nil {
			return fmt.Errorf("%w: pgtable walk scan: %v", sesstore.ErrStorageUnavailable, err)
		}
		rec.Expires = rec.Expires.UTC()
		rec.Created = rec.Created.UTC()
		if err := fn(rec); err != nil {
			return err
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: pgtable walk: %v", sesstore.ErrStorageUnavailable, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (t *Table) Close() error {
	return t.db.Close()
}
