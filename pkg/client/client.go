// Package client is a Go client for the relay's read API.
//
//	c := client.New("https://billing.example.com", client.WithToken(os.Getenv("BILLING_API_TOKEN")))
//	rec, err := c.GetAccount(ctx, accounts.NewIdentifier("a@b.com", ""))
//	if errors.Is(err, accounts.ErrRecordNotFound) {
//		// no webhook seen for this customer yet
//	}
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/api"
)

const (
	defaultTimeout   = 10 * time.Second
	maxResponseBytes = 1 << 20
)

// ErrInvalidResponse is returned when the relay answers with something that
// is not a JSON envelope.
var ErrInvalidResponse = errors.New("invalid relay response")

// Error is a non-ok envelope returned by the relay.
type Error struct {
	StatusCode int
	Code       string
	Detail     json.RawMessage
}

func (e *Error) Error() string {
	if len(e.Detail) > 0 {
		return fmt.Sprintf("relay error %d %s: %s", e.StatusCode, e.Code, e.Detail)
	}
	return fmt.Sprintf("relay error %d %s", e.StatusCode, e.Code)
}

// Is maps 404 not_found onto accounts.ErrRecordNotFound.
func (e *Error) Is(target error) bool {
	return target == accounts.ErrRecordNotFound &&
		e.StatusCode == http.StatusNotFound && e.Code == api.ErrCodeNotFound
}

// Option configures a Client.
type Option func(*Client)

// WithToken sets the bearer token sent on every request.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// Client calls a relay deployment.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

// New creates a client for the relay at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// GetAccount fetches the stored record for id.
func (c *Client) GetAccount(ctx context.Context, id accounts.Identifier) (*accounts.Record, error) {
	var resp api.AccountResponse
	if err := c.do(ctx, http.MethodGet, "/account", identifierQuery(id), nil, &resp); err != nil {
		return nil, err
	}
	if resp.Account == nil {
		return nil, fmt.Errorf("%w: account missing", ErrInvalidResponse)
	}
	return resp.Account, nil
}

// ListTransactions returns up to limit recent transactions; limit <= 0 uses
// the relay default.
func (c *Client) ListTransactions(ctx context.Context, id accounts.Identifier, limit int) ([]json.RawMessage, error) {
	query := identifierQuery(id)
	if limit > 0 {
		query.Set("limit", strconv.Itoa(limit))
	}

	var resp api.TransactionsResponse
	if err := c.do(ctx, http.MethodGet, "/transactions", query, nil, &resp); err != nil {
		return nil, err
	}
	if resp.Transactions == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Transactions, nil
}

type portalRequest struct {
	Email     string `json:"email,omitempty"`
	AccountID string `json:"account_id,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
}

// CreatePortalSession opens a customer portal session and returns its URL.
func (c *Client) CreatePortalSession(ctx context.Context, id accounts.Identifier, returnURL string) (string, error) {
	payload := portalRequest{Email: id.Email, AccountID: id.AccountID, ReturnURL: returnURL}

	var resp api.PortalResponse
	if err := c.do(ctx, http.MethodPost, "/portal", nil, payload, &resp); err != nil {
		return "", err
	}
	if resp.URL == "" {
		return "", fmt.Errorf("%w: url missing", ErrInvalidResponse)
	}
	return resp.URL, nil
}

func identifierQuery(id accounts.Identifier) url.Values {
	query := url.Values{}
	if id.Email != "" {
		query.Set("email", id.Email)
	}
	if id.AccountID != "" {
		query.Set("account_id", id.AccountID)
	}
	return query
}

type envelope struct {
	OK     bool            `json:"ok"`
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, payload, out any) error {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal relay payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reqBody)
	if err != nil {
		return fmt.Errorf("failed to build relay request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("relay request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read relay response: %w", err)
	}

	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return fmt.Errorf("%w: status %d: %v", ErrInvalidResponse, resp.StatusCode, err)
	}
	if !env.OK || resp.StatusCode >= http.StatusBadRequest {
		return &Error{StatusCode: resp.StatusCode, Code: env.Error, Detail: env.Detail}
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return nil
}
