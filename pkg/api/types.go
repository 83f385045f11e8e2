package api

import (
	"encoding/json"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Error codes returned in the "error" field of failed responses.
const (
	ErrCodeNotFound           = "not_found"
	ErrCodeUnauthorized       = "unauthorized"
	ErrCodeMissingIdentifier  = "missing_identifier"
	ErrCodeInvalidJSON        = "invalid_json"
	ErrCodeMissingCustomer    = "missing_customer"
	ErrCodeMissingPaddleToken = "missing_paddle_token"
	ErrCodePaddleAPIError     = "paddle_api_error"
	ErrCodeMissingPortalURL   = "missing_portal_url"
	ErrCodeStorageError       = "storage_error"
	ErrCodeInternal           = "internal_error"
)

// ErrorResponse is the envelope of every failed request
type ErrorResponse struct {
	OK     bool   `json:"ok"`
	Error  string `json:"error"`
	Detail any    `json:"detail,omitempty"`
}

// HealthResponse is returned by /health
type HealthResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

// AccountResponse is returned by GET /account
type AccountResponse struct {
	OK      bool             `json:"ok"`
	Account *accounts.Record `json:"account"`
}

// TransactionsResponse is returned by GET /transactions; transactions are
// passed through from Paddle unchanged
type TransactionsResponse struct {
	OK           bool              `json:"ok"`
	Transactions []json.RawMessage `json:"transactions"`
}

// PortalResponse is returned by POST /portal
type PortalResponse struct {
	OK  bool   `json:"ok"`
	URL string `json:"url"`
}
