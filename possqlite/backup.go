// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possqlite

import (
	"context"

	"github.com/1000m-spaces/pos-backsync/possync"
)

// Backup management: point-in-time snapshots of the pending collection. A
// snapshot fully replaces any prior backup rather than merging with it, and
// clearing is a full erase of the collection and its metadata. No retry or
// sync-status bookkeeping happens here.

// CreateBackupSnapshot copies the current pending collection verbatim into
// the backup collection and refreshes the backup metadata.
func (c *Client) CreateBackupSnapshot(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	pending, err := c.Store.PendingOrders(ctx)
	if err != nil {
		return err
	}
	if err := c.Store.SetBackupOrders(ctx, pending); err != nil {
		return err
	}
	c.logger.Info("Backup snapshot created", "orders", len(pending))
	return nil
}

// ClearBackup erases the backup collection and its metadata.
func (c *Client) ClearBackup(ctx context.Context) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if err := c.Store.ClearBackupOrders(ctx); err != nil {
		return err
	}
	c.logger.Info("Backup cleared")
	return nil
}

// BackupOrders returns the current backup snapshot.
func (c *Client) BackupOrders(ctx context.Context) ([]possync.Order, error) {
	return c.Store.BackupOrders(ctx)
}

// BackupMetadata returns the metadata of the current backup snapshot.
func (c *Client) BackupMetadata(ctx context.Context) (possync.BackupMetadata, error) {
	return c.Store.BackupMetadata(ctx)
}
