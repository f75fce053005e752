// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possqlite

import (
	"time"

	"github.com/1000m-spaces/pos-backsync/possync"
)

// Retry policy: pure transition functions for the per-order sync state
// machine. SyncStatus only ever moves pending→synced (terminal success),
// pending→pending (retry budget remaining) or pending→failed (budget
// exhausted, terminal for automatic sync).

// Eligible reports whether ord is a candidate for automatic sync: its status
// is absent or pending and its retry budget is not exhausted.
func Eligible(ord *possync.Order) bool {
	if ord.RetryCount >= possync.MaxSyncAttempts {
		return false
	}
	return ord.SyncStatus == "" || ord.SyncStatus == possync.SyncStatusPending
}

// MarkSynced returns a copy of ord transitioned to synced at the given time.
// The retry counter is left as-is; a synced order is never retried again.
func MarkSynced(ord possync.Order, now time.Time) possync.Order {
	ord.SyncStatus = possync.SyncStatusSynced
	ord.SyncedAt = &now
	ord.UpdatedAt = now
	return ord
}

// MarkFailed returns a copy of ord after one failed sync attempt: the retry
// counter is incremented, and the order flips to failed once the counter
// reaches MaxSyncAttempts.
func MarkFailed(ord possync.Order, now time.Time) possync.Order {
	ord.RetryCount++
	ord.LastRetryAt = &now
	ord.UpdatedAt = now
	if ord.RetryCount >= possync.MaxSyncAttempts {
		ord.SyncStatus = possync.SyncStatusFailed
	} else {
		ord.SyncStatus = possync.SyncStatusPending
	}
	return ord
}
