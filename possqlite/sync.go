// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possqlite

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/1000m-spaces/pos-backsync/possync"
)

// ErrNoSelection marks a manual resync invoked with an empty selection; it is
// rejected before any network call.
var ErrNoSelection = errors.New("no orders selected")

// ErrSelectionNotFound marks a manual resync whose selected sessions match
// nothing in the backup collection; like ErrNoSelection it is rejected before
// any network call.
var ErrSelectionNotFound = errors.New("selected orders not found in backup")

// SyncResult is the outcome of a sync command, consumed by the UI layer.
// Failures are never fatal: network and storage errors are folded into
// Success=false with Err carrying the cause.
type SyncResult struct {
	Success bool
	Synced  int    // orders confirmed by the remote service on this pass
	Message string // informational text for the operator
	Err     error  // non-nil when Success=false due to a network/storage error
}

// SyncPendingOrders pushes all eligible pending orders to the remote order
// service in one batch and applies the retry-policy transitions to them.
//
// Competing invocations are last-invocation-wins: when a newer invocation
// starts while an older one is still awaiting its remote response, the older
// result is discarded instead of applied, so a slow early pass can never
// overwrite state written by a faster later pass.
func (c *Client) SyncPendingOrders(ctx context.Context) SyncResult {
	if atomic.LoadInt32(&c.syncPaused) == 1 {
		return SyncResult{Success: true, Message: "automatic sync is paused"}
	}

	gen := atomic.AddInt64(&c.generation, 1)

	orders, err := c.Store.PendingOrders(ctx)
	if err != nil {
		// Nothing was attempted, so retry counters stay untouched
		return SyncResult{Success: false, Message: "failed to load pending orders", Err: err}
	}

	var eligible []possync.Order
	for i := range orders {
		if Eligible(&orders[i]) {
			eligible = append(eligible, orders[i])
		}
	}
	if len(eligible) == 0 {
		return SyncResult{Success: true, Message: "no pending orders to sync"}
	}

	// Product lines go out unexpanded on the automatic path; expansion is
	// specific to manual resync
	resp, sendErr := c.sendSyncRequest(ctx, &possync.SyncRequest{Orders: eligible})

	now := time.Now().UTC()
	succeeded := sendErr == nil && resp.Success

	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	if atomic.LoadInt64(&c.generation) != gen {
		c.logger.Debug("Discarding superseded sync pass", "generation", gen)
		return SyncResult{Success: false, Message: "superseded by a newer sync pass"}
	}

	// Merge transitions into a fresh read of the collection so orders
	// appended while the remote call was in flight are not dropped
	current, err := c.Store.PendingOrders(ctx)
	if err != nil {
		return SyncResult{Success: false, Message: "failed to reload pending orders", Err: err}
	}

	attempted := make(map[string]struct{}, len(eligible))
	for i := range eligible {
		attempted[eligible[i].Session] = struct{}{}
	}
	for i := range current {
		if _, ok := attempted[current[i].Session]; !ok {
			continue
		}
		if succeeded {
			current[i] = MarkSynced(current[i], now)
		} else {
			current[i] = MarkFailed(current[i], now)
		}
	}

	if err := c.Store.SetPendingOrders(ctx, current); err != nil {
		return SyncResult{Success: false, Message: "failed to persist sync state", Err: err}
	}

	if !succeeded {
		if sendErr == nil {
			sendErr = fmt.Errorf("remote service rejected batch: %s", resp.Message)
		}
		c.logger.Warn("Sync pass failed", "orders", len(eligible), "error", sendErr)
		return SyncResult{Success: false, Message: "failed to sync pending orders", Err: sendErr}
	}

	c.logger.Info("Sync pass complete", "orders", len(eligible))
	return SyncResult{
		Success: true,
		Synced:  len(eligible),
		Message: fmt.Sprintf("synced %d orders", len(eligible)),
	}
}

// SyncSelected re-submits an operator-chosen subset of the backup collection
// in one batch, bypassing the automatic eligibility filter: orders already
// terminal for automatic sync (retry budget exhausted) can still be sent here.
//
// This path deliberately does not touch retry_count/syncStatus on the involved
// orders: the batch result is reported as a unit and the stored orders are
// left exactly as they were. Product lines are expanded for transport only
// (quantity N becomes N unit-quantity lines); the backup collection itself is
// never mutated.
func (c *Client) SyncSelected(ctx context.Context, sessions []string) SyncResult {
	if len(sessions) == 0 {
		return SyncResult{Success: false, Message: "no orders selected", Err: ErrNoSelection}
	}

	backup, err := c.Store.BackupOrders(ctx)
	if err != nil {
		return SyncResult{Success: false, Message: "failed to load backup orders", Err: err}
	}

	wanted := make(map[string]struct{}, len(sessions))
	for _, s := range sessions {
		wanted[s] = struct{}{}
	}

	var selected []possync.Order
	for i := range backup {
		if _, ok := wanted[backup[i].Session]; !ok {
			continue
		}
		ord := backup[i]
		ord.Products = expandProductLines(ord.Products)
		selected = append(selected, ord)
	}
	if len(selected) == 0 {
		return SyncResult{Success: false, Message: "no matching orders in backup", Err: ErrSelectionNotFound}
	}

	resp, err := c.sendSyncRequest(ctx, &possync.SyncRequest{Orders: selected})
	if err != nil {
		c.logger.Warn("Manual resync failed", "orders", len(selected), "error", err)
		return SyncResult{Success: false, Message: "failed to resync selected orders", Err: err}
	}
	if !resp.Success {
		err := fmt.Errorf("remote service rejected batch: %s", resp.Message)
		c.logger.Warn("Manual resync rejected", "orders", len(selected), "error", err)
		return SyncResult{Success: false, Message: "failed to resync selected orders", Err: err}
	}

	c.logger.Info("Manual resync complete", "orders", len(selected))
	return SyncResult{
		Success: true,
		Synced:  len(selected),
		Message: fmt.Sprintf("resynced %d orders", len(selected)),
	}
}

// AppendPendingOrder durably appends an order created by the order-taking
// flow. An existing pending entry with the same session is replaced in place
// rather than duplicated, keeping the session key unique in the collection.
func (c *Client) AppendPendingOrder(ctx context.Context, ord possync.Order) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()

	orders, err := c.Store.PendingOrders(ctx)
	if err != nil {
		return err
	}
	replaced := false
	for i := range orders {
		if orders[i].Session == ord.Session {
			orders[i] = ord
			replaced = true
			break
		}
	}
	if !replaced {
		orders = append(orders, ord)
	}
	return c.Store.SetPendingOrders(ctx, orders)
}

// expandProductLines turns every line of quantity N into N unit-quantity
// lines. Transport-only: callers must pass a copy they own.
func expandProductLines(products []possync.ProductLine) []possync.ProductLine {
	expanded := make([]possync.ProductLine, 0, len(products))
	for _, line := range products {
		n := line.Quantity
		if n < 1 {
			n = 1
		}
		unit := line
		unit.Quantity = 1
		for i := 0; i < n; i++ {
			expanded = append(expanded, unit)
		}
	}
	return expanded
}

// sendSyncRequest posts an order batch to the remote order service
func (c *Client) sendSyncRequest(ctx context.Context, req *possync.SyncRequest) (*possync.SyncResponse, error) {
	jsonData, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sync request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.BaseURL+"/orders/sync", bytes.NewBuffer(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	token, err := c.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWT token: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.HTTP.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("server returned status %d: %s", resp.StatusCode, string(body))
	}

	var syncResp possync.SyncResponse
	if err := json.NewDecoder(resp.Body).Decode(&syncResp); err != nil {
		return nil, fmt.Errorf("failed to decode sync response: %w", err)
	}

	return &syncResp, nil
}
