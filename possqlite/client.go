// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

// Package possqlite implements the offline order backup & synchronization
// engine of the POS client over a SQLite database.
//
// Orders created by the order-taking flow are appended to a durable pending
// collection. The engine periodically (or on demand) pushes eligible pending
// orders to the remote order service, tracks per-order retry state with a
// bounded retry policy, and lets an operator snapshot the pending collection
// into a backup collection and manually re-submit a hand-picked subset of it.
package possqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Client owns the pending/backup order collections and the sync operations
// over them.
type Client struct {
	DB       *sql.DB
	BaseURL  string
	Token    func(context.Context) (string, error) // returns JWT
	UserID   string
	DeviceID string
	Store    OrderStore
	HTTP     *http.Client
	config   *Config
	logger   *slog.Logger
	writeMu  sync.Mutex // Serialize read-modify-write cycles on the collections

	// generation is bumped on every automatic sync invocation; a pass whose
	// remote call resolves after a newer pass has started must not apply its
	// result (last-invocation-wins).
	generation int64

	// Pause switch (atomic): lets the order-entry flow suspend background
	// sync passes deterministically
	syncPaused int32
}

// Config holds configuration for the sync client
type Config struct {
	AutoSyncInterval time.Duration // delay between successful background passes
	BackoffMin       time.Duration // 1s
	BackoffMax       time.Duration // 60s
}

// DefaultConfig returns a configuration with the defaults used on POS tablets.
func DefaultConfig() *Config {
	return &Config{
		AutoSyncInterval: 30 * time.Second,
		BackoffMin:       1 * time.Second,
		BackoffMax:       60 * time.Second,
	}
}

// PauseSync suspends automatic sync passes (SyncPendingOrders and the
// background loop respect this flag; manual resync does not)
func (c *Client) PauseSync() { atomic.StoreInt32(&c.syncPaused, 1) }

// ResumeSync resumes automatic sync passes
func (c *Client) ResumeSync() { atomic.StoreInt32(&c.syncPaused, 0) }

// NewClient creates a new sync client over the given SQLite database.
func NewClient(db *sql.DB, baseURL, userID, deviceID string, tok func(ctx context.Context) (string, error), config *Config) (*Client, error) {
	if config == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}

	if err := initializeDatabase(db); err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}

	client := &Client{
		DB:       db,
		BaseURL:  baseURL,
		Token:    tok,
		UserID:   userID,
		DeviceID: deviceID,
		Store:    NewSQLiteStore(db),
		HTTP:     &http.Client{Timeout: 30 * time.Second},
		config:   config,
		logger:   slog.Default(),
	}

	return client, nil
}

// initializeDatabase creates the record table backing the collections
func initializeDatabase(db *sql.DB) error {
	// Enable WAL mode for durability under concurrent readers
	if _, err := db.Exec(`PRAGMA journal_mode=WAL`); err != nil {
		return fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	// Each collection (pending orders, backup orders, backup metadata) is one
	// atomically-replaceable named JSON record
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS _pos_records (
		name       TEXT NOT NULL PRIMARY KEY,
		value      TEXT NOT NULL,
		updated_at TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return fmt.Errorf("failed to create record table: %w", err)
	}

	return nil
}

// Start starts the background auto-sync loop
func (c *Client) Start(ctx context.Context) error {
	go c.autoSyncLoop(ctx)
	return nil
}

// Stop stops the background loop
func (c *Client) Stop(ctx context.Context) error {
	// Context cancellation stops the loop
	return nil
}

// autoSyncLoop runs automatic sync passes with backoff between failures
func (c *Client) autoSyncLoop(ctx context.Context) {
	backoff := c.config.BackoffMin
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if atomic.LoadInt32(&c.syncPaused) == 1 {
			time.Sleep(backoff)
			continue
		}

		result := c.SyncPendingOrders(ctx)
		if !result.Success && result.Err != nil {
			// Exponential backoff on error
			time.Sleep(backoff)
			backoff = backoff * 2
			if backoff > c.config.BackoffMax {
				backoff = c.config.BackoffMax
			}
		} else {
			backoff = c.config.BackoffMin
			time.Sleep(c.config.AutoSyncInterval)
		}
	}
}
