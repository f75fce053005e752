// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

// Package possync provides the shared order models and the server side of the
// POS order synchronization contract: a Postgres-backed intake service that
// accepts order batches uploaded by offline-capable POS clients.
package possync

import "time"

// Order is a locally created sale. Session is the natural key across the
// pending and backup collections and across client/server boundaries.
type Order struct {
	Session      string        `json:"session"`
	DisplayID    string        `json:"displayID,omitempty"`
	CustomerName string        `json:"customerName,omitempty"`
	Products     []ProductLine `json:"products"`
	Total        float64       `json:"total"`

	// OrderStatus is the domain status (Pending/Completed/Cancelled) set by
	// the order-taking flow. The sync engine never changes it.
	OrderStatus string `json:"orderStatus,omitempty"`

	// SyncStatus is the client-side sync state machine. An empty value is
	// equivalent to SyncStatusPending (orders created before the sync engine
	// stamped them carry no status at all).
	SyncStatus  string     `json:"syncStatus,omitempty"`
	RetryCount  int        `json:"retry_count"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastRetryAt *time.Time `json:"last_retry_at,omitempty"`
	SyncedAt    *time.Time `json:"synced_at,omitempty"`
}

// ProductLine is one line of an order. Quantity counts identical units; for
// transport on the manual resync path a line of quantity N is expanded into
// N unit-quantity lines, but the stored representation keeps the count.
type ProductLine struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Note     string  `json:"note,omitempty"`
}

// BackupMetadata describes the current backup snapshot.
type BackupMetadata struct {
	Count      int       `json:"count"`
	LastBackup time.Time `json:"lastBackup"`
}
