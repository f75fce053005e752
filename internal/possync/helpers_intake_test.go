// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/1000m-spaces/pos-backsync/possync"
)

// IntakeHarness spins up a throwaway Postgres container and wires the order
// intake service plus its HTTP surface against it. Each harness gets its own
// container, so tests stay independent at the cost of startup time.
type IntakeHarness struct {
	t         *testing.T
	ctx       context.Context
	container *postgres.PostgresContainer

	// adminPool has no lock timeout and is used for fixtures, row locks and
	// verification queries. The service pool carries a short lock_timeout so
	// lock contention surfaces as a retryable error instead of a hang.
	adminPool *pgxpool.Pool
	pool      *pgxpool.Pool

	service *possync.OrderSyncService
	jwtAuth *possync.JWTAuth
	mux     *http.ServeMux

	userID   string
	deviceID string
	token    string
}

func NewIntakeHarness(t *testing.T) *IntakeHarness {
	ctx := context.Background()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))

	container, err := postgres.RunContainer(ctx,
		testcontainers.WithImage("postgres:15-alpine"),
		postgres.WithDatabase("pos_backsync_test"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second)))
	require.NoError(t, err)

	connStr, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	adminPool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)

	svcCfg, err := pgxpool.ParseConfig(connStr)
	require.NoError(t, err)
	svcCfg.ConnConfig.RuntimeParams["lock_timeout"] = "200ms"
	pool, err := pgxpool.NewWithConfig(ctx, svcCfg)
	require.NoError(t, err)

	service, err := possync.NewOrderSyncService(pool, &possync.ServiceConfig{
		AppName:      "pos-backsync-test",
		MaxBatchSize: 100,
	}, logger)
	require.NoError(t, err)

	jwtAuth := possync.NewJWTAuth("test-secret-key")
	handlers := possync.NewHTTPSyncHandlers(service, jwtAuth, logger)
	mux := http.NewServeMux()
	mux.HandleFunc("/orders/sync", handlers.HandleSync)

	userID := "store-" + uuid.New().String()
	deviceID := "tablet-" + uuid.New().String()
	token, err := jwtAuth.GenerateToken(userID, deviceID, time.Hour)
	require.NoError(t, err)

	h := &IntakeHarness{
		t:         t,
		ctx:       ctx,
		container: container,
		adminPool: adminPool,
		pool:      pool,
		service:   service,
		jwtAuth:   jwtAuth,
		mux:       mux,
		userID:    userID,
		deviceID:  deviceID,
		token:     token,
	}
	t.Cleanup(h.Cleanup)
	return h
}

func (h *IntakeHarness) Cleanup() {
	h.service.Close()
	h.adminPool.Close()
	if err := h.container.Terminate(h.ctx); err != nil {
		h.t.Logf("failed to terminate postgres container: %v", err)
	}
}

// ProcessSync runs a batch through the service directly, as the HTTP handler
// would after authentication.
func (h *IntakeHarness) ProcessSync(orders ...possync.Order) *possync.SyncResponse {
	h.t.Helper()
	resp, err := h.service.ProcessSync(h.ctx, h.userID, h.deviceID, &possync.SyncRequest{Orders: orders})
	require.NoError(h.t, err)
	require.NotNil(h.t, resp)
	return resp
}

// PostSync uploads a batch through the HTTP handler with the harness token.
func (h *IntakeHarness) PostSync(token string, req possync.SyncRequest) *httptest.ResponseRecorder {
	h.t.Helper()
	body, err := json.Marshal(req)
	require.NoError(h.t, err)
	httpReq := httptest.NewRequest(http.MethodPost, "/orders/sync", bytes.NewReader(body))
	if token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+token)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.mux.ServeHTTP(rec, httpReq)
	return rec
}

// OrderCount counts stored orders for the harness store account.
func (h *IntakeHarness) OrderCount() int {
	h.t.Helper()
	count, err := h.service.OrderCount(h.ctx, h.userID)
	require.NoError(h.t, err)
	return count
}

// StoredOrder reads back the scalar columns and payload of one stored order.
func (h *IntakeHarness) StoredOrder(session string) (total float64, payload possync.Order) {
	h.t.Helper()
	var raw []byte
	err := h.adminPool.QueryRow(h.ctx, `
		SELECT total, payload FROM pos.orders WHERE user_id = $1 AND session = $2
	`, h.userID, session).Scan(&total, &raw)
	require.NoError(h.t, err)
	require.NoError(h.t, json.Unmarshal(raw, &payload))
	return total, payload
}

func intakeOrder(session string) possync.Order {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	return possync.Order{
		Session:      session,
		DisplayID:    "A-" + session[:4],
		CustomerName: "Walk-in",
		Products: []possync.ProductLine{
			{Name: "americano", Quantity: 1, Price: 3.5},
		},
		Total:       3.5,
		OrderStatus: possync.OrderStatusCompleted,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
