// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/1000m-spaces/pos-backsync/possync"
)

// ErrStorage marks read/write failures of the persistent order store. The
// engine aborts the in-progress sync attempt on it and never applies partial
// updates.
var ErrStorage = errors.New("order store failure")

// Record names for the atomically-replaceable collections
const (
	recordPendingOrders = "pending_orders"
	recordBackupOrders  = "backup_orders"
	recordBackupMeta    = "backup_meta"
)

// OrderStore is the persistence contract consumed by the sync engine. All
// writes are atomic full replaces: a reader never observes a partially
// updated collection.
type OrderStore interface {
	PendingOrders(ctx context.Context) ([]possync.Order, error)
	SetPendingOrders(ctx context.Context, orders []possync.Order) error
	BackupOrders(ctx context.Context) ([]possync.Order, error)
	// SetBackupOrders replaces the backup collection and refreshes its
	// metadata (count, lastBackup) in the same transaction.
	SetBackupOrders(ctx context.Context, orders []possync.Order) error
	BackupMetadata(ctx context.Context) (possync.BackupMetadata, error)
	ClearBackupOrders(ctx context.Context) error
	LastOrder(ctx context.Context) (*possync.Order, error)
}

// SQLiteStore keeps each collection as one named JSON record in the
// _pos_records table.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a store over an initialized database (see NewClient).
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// PendingOrders returns the full pending collection.
func (s *SQLiteStore) PendingOrders(ctx context.Context) ([]possync.Order, error) {
	return s.readOrders(ctx, recordPendingOrders)
}

// SetPendingOrders replaces the full pending collection.
func (s *SQLiteStore) SetPendingOrders(ctx context.Context, orders []possync.Order) error {
	value, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("%w: marshal pending orders: %v", ErrStorage, err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	if err := writeRecordInTx(ctx, tx, recordPendingOrders, value); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit pending orders: %v", ErrStorage, err)
	}
	return nil
}

// BackupOrders returns the backup collection snapshot.
func (s *SQLiteStore) BackupOrders(ctx context.Context) ([]possync.Order, error) {
	return s.readOrders(ctx, recordBackupOrders)
}

// SetBackupOrders replaces the backup collection and writes fresh metadata
// within the same transaction.
func (s *SQLiteStore) SetBackupOrders(ctx context.Context, orders []possync.Order) error {
	value, err := json.Marshal(orders)
	if err != nil {
		return fmt.Errorf("%w: marshal backup orders: %v", ErrStorage, err)
	}
	meta := possync.BackupMetadata{
		Count:      len(orders),
		LastBackup: time.Now().UTC(),
	}
	metaValue, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("%w: marshal backup metadata: %v", ErrStorage, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	if err := writeRecordInTx(ctx, tx, recordBackupOrders, value); err != nil {
		return err
	}
	if err := writeRecordInTx(ctx, tx, recordBackupMeta, metaValue); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit backup orders: %v", ErrStorage, err)
	}
	return nil
}

// BackupMetadata returns the metadata of the current backup snapshot, or a
// zero value when no snapshot exists.
func (s *SQLiteStore) BackupMetadata(ctx context.Context) (possync.BackupMetadata, error) {
	var meta possync.BackupMetadata
	raw, err := s.readRecord(ctx, recordBackupMeta)
	if err != nil {
		return meta, err
	}
	if raw == nil {
		return meta, nil
	}
	if err := json.Unmarshal(raw, &meta); err != nil {
		return meta, fmt.Errorf("%w: unmarshal backup metadata: %v", ErrStorage, err)
	}
	return meta, nil
}

// ClearBackupOrders erases the backup collection and its metadata atomically.
func (s *SQLiteStore) ClearBackupOrders(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%w: begin transaction: %v", ErrStorage, err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `DELETE FROM _pos_records WHERE name IN (?, ?)`,
		recordBackupOrders, recordBackupMeta)
	if err != nil {
		return fmt.Errorf("%w: clear backup records: %v", ErrStorage, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit backup clear: %v", ErrStorage, err)
	}
	return nil
}

// LastOrder returns the most recently appended pending order, or nil when the
// pending collection is empty.
func (s *SQLiteStore) LastOrder(ctx context.Context) (*possync.Order, error) {
	orders, err := s.PendingOrders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}
	last := orders[len(orders)-1]
	return &last, nil
}

func (s *SQLiteStore) readOrders(ctx context.Context, name string) ([]possync.Order, error) {
	raw, err := s.readRecord(ctx, name)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var orders []possync.Order
	if err := json.Unmarshal(raw, &orders); err != nil {
		return nil, fmt.Errorf("%w: unmarshal %s: %v", ErrStorage, name, err)
	}
	return orders, nil
}

func (s *SQLiteStore) readRecord(ctx context.Context, name string) (json.RawMessage, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM _pos_records WHERE name = ?`, name).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read %s: %v", ErrStorage, name, err)
	}
	return json.RawMessage(value), nil
}

func writeRecordInTx(ctx context.Context, tx *sql.Tx, name string, value []byte) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO _pos_records (name, value, updated_at)
		VALUES (?, ?, strftime('%Y-%m-%dT%H:%M:%fZ','now'))
		ON CONFLICT(name) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, name, string(value))
	if err != nil {
		return fmt.Errorf("%w: write %s: %v", ErrStorage, name, err)
	}
	return nil
}
