// Copyright 2025 1000m Spaces
// SPDX-License-Identifier: Apache-2.0

package possync

import "encoding/json"

// REST/JSON models for HTTP API requests and responses

// SyncRequest represents a batch order upload from a POS client.
// Note: user and device identity are derived from JWT claims, not the body.
type SyncRequest struct {
	Orders []Order `json:"orders"`
}

// SyncResponse represents the server response to a sync request. The batch is
// accepted or rejected as a unit; Result carries a payload on success, Message
// carries details on failure.
type SyncResponse struct {
	Success bool            `json:"success"`
	Result  json.RawMessage `json:"result,omitempty"`
	Message string          `json:"message,omitempty"`
}

// SyncResultPayload is the Result body returned for an accepted batch.
type SyncResultPayload struct {
	Received int `json:"received"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}
