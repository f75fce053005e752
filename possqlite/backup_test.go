// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/1000m-spaces/pos-backsync/possync"
)

func TestCreateBackupSnapshotAndClear(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	pending := []possync.Order{
		makeOrder(sessionO1, 0, ""),
		makeOrder(sessionO2, 1, possync.SyncStatusPending),
	}
	require.NoError(t, client.Store.SetPendingOrders(ctx, pending))

	before := time.Now().UTC()
	require.NoError(t, client.CreateBackupSnapshot(ctx))

	backup, err := client.BackupOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, pending, backup)

	meta, err := client.BackupMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, meta.Count)
	require.False(t, meta.LastBackup.Before(before))

	require.NoError(t, client.ClearBackup(ctx))

	backup, err = client.BackupOrders(ctx)
	require.NoError(t, err)
	require.Empty(t, backup)

	meta, err = client.BackupMetadata(ctx)
	require.NoError(t, err)
	require.Zero(t, meta.Count)

	// Clearing the backup never touches the pending collection
	still, err := client.Store.PendingOrders(ctx)
	require.NoError(t, err)
	require.Equal(t, pending, still)
}

// A snapshot fully replaces any prior backup; it is not merged. This is the
// observed product behavior, preserved deliberately even when the old backup
// still holds not-yet-synced orders.
func TestCreateBackupSnapshotOverwritesPriorBackup(t *testing.T) {
	client := newTestClient(t, nil)
	ctx := context.Background()

	old := makeOrder(sessionO1, 2, possync.SyncStatusPending)
	require.NoError(t, client.Store.SetBackupOrders(ctx, []possync.Order{old}))

	fresh := []possync.Order{makeOrder(sessionO2, 0, "")}
	require.NoError(t, client.Store.SetPendingOrders(ctx, fresh))
	require.NoError(t, client.CreateBackupSnapshot(ctx))

	backup, err := client.BackupOrders(ctx)
	require.NoError(t, err)
	require.Len(t, backup, 1)
	require.Equal(t, sessionO2, backup[0].Session)

	meta, err := client.BackupMetadata(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, meta.Count)
}
