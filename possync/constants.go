// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

// Sync status constants for the per-order state machine
const (
	SyncStatusPending = "pending"
	SyncStatusSynced  = "synced"
	SyncStatusFailed  = "failed"
)

// MaxSyncAttempts bounds automatic retries per order. Once RetryCount reaches
// this threshold the order is terminal for automatic sync ("failed") and can
// only be re-submitted through manual resync.
const MaxSyncAttempts = 5

// Order status constants set by the order-taking flow (never by sync)
const (
	OrderStatusPending   = "Pending"
	OrderStatusCompleted = "Completed"
	OrderStatusCancelled = "Cancelled"
)
