// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
)

// Validation error sentinels for better error mapping
var (
	ErrBadPayload    = errors.New("bad_payload")
	ErrEmptyBatch    = errors.New("empty_batch")
	ErrBatchTooLarge = errors.New("batch_too_large")
)

// validateRequest validates a sync request before any database work.
func (s *OrderSyncService) validateRequest(req *SyncRequest) error {
	if req == nil || len(req.Orders) == 0 {
		return ErrEmptyBatch
	}
	if s.config.MaxBatchSize > 0 && len(req.Orders) > s.config.MaxBatchSize {
		return fmt.Errorf("%w: %d orders exceeds limit of %d",
			ErrBatchTooLarge, len(req.Orders), s.config.MaxBatchSize)
	}
	seen := make(map[string]struct{}, len(req.Orders))
	for i := range req.Orders {
		if err := validateOrder(&req.Orders[i]); err != nil {
			return err
		}
		if _, dup := seen[req.Orders[i].Session]; dup {
			return fmt.Errorf("%w: duplicate session %s in batch", ErrBadPayload, req.Orders[i].Session)
		}
		seen[req.Orders[i].Session] = struct{}{}
	}
	return nil
}

// validateOrder validates a single uploaded order
func validateOrder(ord *Order) error {
	ord.Session = strings.TrimSpace(ord.Session)

	if _, err := uuid.Parse(ord.Session); err != nil {
		return fmt.Errorf("%w: invalid session %q", ErrBadPayload, ord.Session)
	}
	if len(ord.Products) == 0 {
		return fmt.Errorf("%w: order %s has no products", ErrBadPayload, ord.Session)
	}
	for _, line := range ord.Products {
		if strings.TrimSpace(line.Name) == "" {
			return fmt.Errorf("%w: order %s has a product with no name", ErrBadPayload, ord.Session)
		}
		if line.Quantity < 1 {
			return fmt.Errorf("%w: order %s product %q has quantity %d",
				ErrBadPayload, ord.Session, line.Name, line.Quantity)
		}
		if line.Price < 0 {
			return fmt.Errorf("%w: order %s product %q has negative price",
				ErrBadPayload, ord.Session, line.Name)
		}
	}
	if ord.Total < 0 {
		return fmt.Errorf("%w: order %s has negative total", ErrBadPayload, ord.Session)
	}
	return nil
}
