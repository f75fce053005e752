// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OrderSyncService is the server side of the POS sync contract. It receives
// order batches uploaded by offline clients and persists them idempotently:
// re-uploading the same session (a retried batch, or a manual resync of an
// already-received order) replaces the stored copy instead of duplicating it.
type OrderSyncService struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
	config *ServiceConfig
}

// ServiceConfig holds configuration for the order sync service
type ServiceConfig struct {
	AppName      string // Application name for connection tracking
	MaxBatchSize int    // Maximum orders per sync request (0 = unlimited)
}

// NewOrderSyncService creates the service from an existing pool and ensures
// the intake schema exists.
func NewOrderSyncService(pool *pgxpool.Pool, config *ServiceConfig, logger *slog.Logger) (*OrderSyncService, error) {
	if config == nil {
		config = &ServiceConfig{AppName: "pos-backsync"}
	}
	if logger == nil {
		logger = slog.Default()
	}

	s := &OrderSyncService{
		pool:   pool,
		logger: logger,
		config: config,
	}

	if err := s.initializeSchema(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return s, nil
}

// Close releases the underlying pool.
func (s *OrderSyncService) Close() {
	s.pool.Close()
}

// initializeSchema creates the required intake tables if they don't exist
func (s *OrderSyncService) initializeSchema(ctx context.Context) error {
	return pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		migrations := []string{
			/*language=postgresql*/ `CREATE SCHEMA IF NOT EXISTS pos`,

			// One row per (store account, order session). Payload keeps the
			// full order document as uploaded; scalar columns are extracted
			// for reporting queries.
			/*language=postgresql*/ `CREATE TABLE IF NOT EXISTS pos.orders (
				user_id       TEXT        NOT NULL,
				session       UUID        NOT NULL,
				display_id    TEXT,
				customer_name TEXT,
				order_status  TEXT,
				total         NUMERIC     NOT NULL DEFAULT 0,
				payload       JSON        NOT NULL,
				source_device TEXT        NOT NULL,
				received_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
				updated_at    TIMESTAMPTZ NOT NULL DEFAULT now(),
				PRIMARY KEY (user_id, session)
			)`,

			/*language=postgresql*/ `CREATE INDEX IF NOT EXISTS orders_received_at_idx
				ON pos.orders (user_id, received_at)`,
		}
		for _, m := range migrations {
			if _, err := tx.Exec(ctx, m); err != nil {
				return fmt.Errorf("failed to run intake migration: %w", err)
			}
		}
		return nil
	})
}

// ProcessSync validates and persists an uploaded order batch. The batch is
// all-or-nothing: either every order is stored and the response is a success,
// or the response reports a failure and nothing is stored.
func (s *OrderSyncService) ProcessSync(ctx context.Context, userID, deviceID string, req *SyncRequest) (*SyncResponse, error) {
	if err := s.validateRequest(req); err != nil {
		if errors.Is(err, ErrBadPayload) || errors.Is(err, ErrEmptyBatch) || errors.Is(err, ErrBatchTooLarge) {
			return &SyncResponse{Success: false, Message: err.Error()}, nil
		}
		return nil, err
	}

	if err := s.storeBatch(ctx, userID, deviceID, req.Orders); err != nil {
		s.logger.Error("Failed to store order batch",
			"error", err, "user_id", userID, "source_device", deviceID, "orders", len(req.Orders))
		return &SyncResponse{Success: false, Message: "failed to store order batch"}, nil
	}

	result, err := json.Marshal(SyncResultPayload{Received: len(req.Orders)})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal result payload: %w", err)
	}

	s.logger.Info("Stored order batch",
		"user_id", userID, "source_device", deviceID, "orders", len(req.Orders))

	return &SyncResponse{Success: true, Result: result}, nil
}

// storeBatch upserts all orders in one transaction, retrying the whole
// transaction on transient Postgres errors (serialization/deadlock).
func (s *OrderSyncService) storeBatch(ctx context.Context, userID, deviceID string, orders []Order) error {
	const maxAttempts = 3
	backoff := 50 * time.Millisecond

	var err error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
			return s.upsertOrdersInTx(ctx, tx, userID, deviceID, orders)
		})
		if err == nil || !isRetryablePGTxError(err) {
			return err
		}
		s.logger.Warn("Retrying order batch transaction",
			"attempt", attempt, "error", err)
		if serr := sleepWithContext(ctx, backoff); serr != nil {
			return serr
		}
		backoff *= 2
	}
	return err
}

func (s *OrderSyncService) upsertOrdersInTx(ctx context.Context, tx pgx.Tx, userID, deviceID string, orders []Order) error {
	for i := range orders {
		ord := &orders[i]
		payload, err := json.Marshal(ord)
		if err != nil {
			return fmt.Errorf("failed to marshal order %s: %w", ord.Session, err)
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO pos.orders
				(user_id, session, display_id, customer_name, order_status, total, payload, source_device)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (user_id, session) DO UPDATE SET
				display_id    = EXCLUDED.display_id,
				customer_name = EXCLUDED.customer_name,
				order_status  = EXCLUDED.order_status,
				total         = EXCLUDED.total,
				payload       = EXCLUDED.payload,
				source_device = EXCLUDED.source_device,
				updated_at    = now()
		`, userID, ord.Session, ord.DisplayID, ord.CustomerName, ord.OrderStatus, ord.Total, payload, deviceID)
		if err != nil {
			return fmt.Errorf("failed to upsert order %s: %w", ord.Session, err)
		}
	}
	return nil
}

// OrderCount returns how many orders are stored for a store account.
// Intended for verification in examples and integration tests.
func (s *OrderSyncService) OrderCount(ctx context.Context, userID string) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM pos.orders WHERE user_id = $1
	`, userID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return count, nil
}
