package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/billing"
	"github.com/mihaimyh/paddlerelay/pkg/billing/paddle"
)

const (
	defaultTransactionLimit = 5
	maxTransactionLimit     = 20
	maxPortalBodyBytes      = 64 * 1024
)

// Handler serves the relay's read endpoints
type Handler struct {
	config Config
	client *paddle.Client
}

// Health reports readiness. It answers every method.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{OK: true, Status: "ready"})
}

// GetAccount returns the stored record for ?email= or ?account_id=.
// A missing identifier is rejected before authentication.
func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id := identifierFromQuery(r)
	if id.IsZero() {
		writeError(w, http.StatusBadRequest, ErrCodeMissingIdentifier, nil)
		return
	}
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, nil)
		return
	}

	rec, err := h.config.Accounts.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, accounts.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, nil)
		return
	case err != nil:
		h.storageFailure(w, "account lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, AccountResponse{OK: true, Account: rec})
}

// ListTransactions proxies the customer's recent Paddle transactions.
func (h *Handler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, nil)
		return
	}
	id := identifierFromQuery(r)
	if id.IsZero() {
		writeError(w, http.StatusBadRequest, ErrCodeMissingIdentifier, nil)
		return
	}

	empty := TransactionsResponse{OK: true, Transactions: []json.RawMessage{}}
	rec, err := h.config.Accounts.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, accounts.ErrRecordNotFound):
		writeJSON(w, http.StatusOK, empty)
		return
	case err != nil:
		h.storageFailure(w, "transactions lookup failed", err)
		return
	}

	customerID := rec.CustomerID()
	if customerID == "" {
		writeJSON(w, http.StatusOK, empty)
		return
	}

	limit := ParseLimit(r.URL.Query().Get("limit"))
	if !h.client.Configured() {
		writeError(w, http.StatusInternalServerError, ErrCodeMissingPaddleToken, nil)
		return
	}

	transactions, err := h.client.ListTransactions(r.Context(), customerID, limit)
	if err != nil {
		h.upstreamFailure(w, "list transactions failed", err)
		return
	}

	writeJSON(w, http.StatusOK, TransactionsResponse{OK: true, Transactions: transactions})
}

// CreatePortal opens a Paddle customer portal session for the account.
func (h *Handler) CreatePortal(w http.ResponseWriter, r *http.Request) {
	if !h.authorized(r) {
		writeError(w, http.StatusUnauthorized, ErrCodeUnauthorized, nil)
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxPortalBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, nil)
		return
	}
	fields, ok := decodeObject(body)
	if !ok {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidJSON, nil)
		return
	}

	id := accounts.NewIdentifier(scalarString(fields["email"]), scalarString(fields["account_id"]))
	returnURL := strings.TrimSpace(scalarString(fields["return_url"]))
	if id.IsZero() {
		writeError(w, http.StatusBadRequest, ErrCodeMissingIdentifier, nil)
		return
	}

	rec, err := h.config.Accounts.Lookup(r.Context(), id)
	switch {
	case errors.Is(err, accounts.ErrRecordNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, nil)
		return
	case err != nil:
		h.storageFailure(w, "portal lookup failed", err)
		return
	}

	customerID := rec.CustomerID()
	if customerID == "" {
		writeError(w, http.StatusNotFound, ErrCodeMissingCustomer, nil)
		return
	}
	if !h.client.Configured() {
		writeError(w, http.StatusInternalServerError, ErrCodeMissingPaddleToken, nil)
		return
	}

	portalURL, raw, err := h.client.CreatePortalSession(r.Context(), customerID, returnURL)
	if errors.Is(err, paddle.ErrMissingPortalURL) {
		writeError(w, http.StatusInternalServerError, ErrCodeMissingPortalURL, rawDetail(raw))
		return
	}
	if err != nil {
		h.upstreamFailure(w, "create portal session failed", err)
		return
	}

	writeJSON(w, http.StatusOK, PortalResponse{OK: true, URL: portalURL})
}

// NotFound answers unknown routes and methods.
func (h *Handler) NotFound(w http.ResponseWriter, _ *http.Request) {
	writeError(w, http.StatusNotFound, ErrCodeNotFound, nil)
}

// authorized checks the static bearer token. The Authorization header must
// split on a single space into exactly two parts.
func (h *Handler) authorized(r *http.Request) bool {
	token := h.config.APIToken
	if token == "" {
		return true
	}
	parts := strings.Split(r.Header.Get("Authorization"), " ")
	if len(parts) != 2 {
		return false
	}
	value := strings.TrimSpace(parts[1])
	return value != "" && value == token
}

func (h *Handler) storageFailure(w http.ResponseWriter, msg string, err error) {
	h.config.Logger.Error(msg, accounts.ErrField(err))
	writeError(w, http.StatusInternalServerError, ErrCodeStorageError, nil)
}

// upstreamFailure mirrors Paddle's status code and body for API errors.
func (h *Handler) upstreamFailure(w http.ResponseWriter, msg string, err error) {
	var apiErr *paddle.APIError
	switch {
	case errors.As(err, &apiErr):
		h.config.Logger.Warn(msg, accounts.F("status", apiErr.StatusCode))
		writeError(w, apiErr.StatusCode, ErrCodePaddleAPIError, apiErr.Body)
	case errors.Is(err, billing.ErrProviderNotConfigured):
		writeError(w, http.StatusInternalServerError, ErrCodeMissingPaddleToken, nil)
	default:
		h.config.Logger.Error(msg, accounts.ErrField(err))
		writeError(w, http.StatusBadGateway, ErrCodePaddleAPIError, err.Error())
	}
}

func identifierFromQuery(r *http.Request) accounts.Identifier {
	q := r.URL.Query()
	return accounts.NewIdentifier(q.Get("email"), q.Get("account_id"))
}

// ParseLimit reads a leading integer from raw (surrounding text ignored),
// defaulting to 5 and clamping to 1..20.
func ParseLimit(raw string) int {
	s := strings.TrimLeft(raw, " \t\n\r")
	if s == "" {
		return defaultTransactionLimit
	}

	end := 0
	if s[0] == '+' || s[0] == '-' {
		end = 1
	}
	digits := end
	for digits < len(s) && s[digits] >= '0' && s[digits] <= '9' {
		digits++
	}
	if digits == end {
		return defaultTransactionLimit
	}

	n, err := strconv.Atoi(s[:digits])
	if err != nil {
		// overflow: sign decides which bound applies
		if s[0] == '-' {
			return 1
		}
		return maxTransactionLimit
	}
	return min(max(1, n), maxTransactionLimit)
}

// decodeObject parses body as JSON. Valid JSON that is not an object yields
// an empty field set.
func decodeObject(body []byte) (map[string]any, bool) {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, false
	}
	if m, ok := v.(map[string]any); ok {
		return m, true
	}
	return map[string]any{}, true
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

func rawDetail(raw json.RawMessage) any {
	if len(raw) > 0 && json.Valid(raw) {
		return raw
	}
	if len(raw) > 0 {
		return string(raw)
	}
	return nil
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, errorCode string, detail any) {
	writeJSON(w, code, ErrorResponse{OK: false, Error: errorCode, Detail: detail})
}
