// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/1000m-spaces/pos-backsync/internal/auth"
)

// ClientAuthenticator extracts both user and device identity from HTTP requests.
// Implementations should validate auth (e.g., JWT) and provide both identifiers.
type ClientAuthenticator interface {
	GetUserID(r *http.Request) (string, error)
	GetDeviceID(r *http.Request) (string, error)
}

// SyncProcessor handles validated order batches. *OrderSyncService is the
// production implementation.
type SyncProcessor interface {
	ProcessSync(ctx context.Context, userID, deviceID string, req *SyncRequest) (*SyncResponse, error)
}

// HTTPSyncHandlers provides HTTP handlers for the order sync API
type HTTPSyncHandlers struct {
	service       SyncProcessor
	authenticator ClientAuthenticator
	logger        *slog.Logger
}

// NewHTTPSyncHandlers creates a new instance of sync handlers
func NewHTTPSyncHandlers(service SyncProcessor, authenticator ClientAuthenticator, logger *slog.Logger) *HTTPSyncHandlers {
	return &HTTPSyncHandlers{
		service:       service,
		authenticator: authenticator,
		logger:        logger,
	}
}

// HandleSync processes batch order uploads
func (h *HTTPSyncHandlers) HandleSync(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		h.writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "Only POST method is allowed")
		return
	}

	userID, err := h.authenticator.GetUserID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	deviceID, err := h.authenticator.GetDeviceID(r)
	if err != nil {
		h.writeError(w, http.StatusUnauthorized, "authentication_failed", err.Error())
		return
	}

	var syncReq SyncRequest
	if err := json.NewDecoder(r.Body).Decode(&syncReq); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid_request", "Failed to parse sync request")
		return
	}

	ctx := auth.SetAuthContext(r.Context(), userID, deviceID)
	response, err := h.service.ProcessSync(ctx, userID, deviceID, &syncReq)
	if err != nil {
		h.logger.Error("Failed to process sync", "error", err, "source_device", deviceID)
		h.writeError(w, http.StatusInternalServerError, "sync_failed", "Failed to process sync")
		return
	}

	w.Header().Set("Content-Type", "application/json")
	if err = json.NewEncoder(w).Encode(response); err != nil {
		h.logger.Error("Failed to encode sync response", "error", err, "source_device", deviceID)
	}
}

func (h *HTTPSyncHandlers) writeError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ErrorResponse{
		Error:   code,
		Message: message,
	})
}
