package paddle

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

	"github.com/mihaimyh/paddlerelay/pkg/billing"
)

const (
	providerName = "paddle"

	// EnvironmentProduction selects the live Paddle API; anything else is sandbox.
	EnvironmentProduction = "production"

	ProductionBaseURL = "https://api.paddle.com"
	SandboxBaseURL    = "https://sandbox-api.paddle.com"

	defaultHTTPTimeout = 10 * time.Second
	maxResponseBytes   = 1 << 20
)

// ErrMissingPortalURL is returned when a portal session response has no usable URL.
var ErrMissingPortalURL = errors.New("paddle response missing portal url")

// APIError is a non-2xx response from the Paddle API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("paddle api error (%d): %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return billing.ErrProviderAPIError
}

// PortalError carries the decoded response when no portal URL was found.
type PortalError struct {
	Response json.RawMessage
}

func (e *PortalError) Error() string {
	return ErrMissingPortalURL.Error()
}

func (e *PortalError) Unwrap() error {
	return ErrMissingPortalURL
}

// Settings configures the Paddle API client. They are resolved once at startup.
type Settings struct {
	APIToken    string
	Environment string
	// BaseURL overrides the environment-derived base URL
	BaseURL    string
	HTTPClient *http.Client
	Metrics    billing.Metrics
}

// BaseURLFor returns the API base URL for a Paddle environment name.
func BaseURLFor(environment string) string {
	if strings.EqualFold(strings.TrimSpace(environment), EnvironmentProduction) {
		return ProductionBaseURL
	}
	return SandboxBaseURL
}

// Client calls the Paddle REST API.
type Client struct {
	token      string
	baseURL    string
	httpClient *http.Client
	metrics    billing.Metrics
}

// NewClient builds a client from settings. A missing token is allowed; calls
// then fail with billing.ErrProviderNotConfigured.
func NewClient(settings Settings) *Client {
	baseURL := strings.TrimRight(strings.TrimSpace(settings.BaseURL), "/")
	if baseURL == "" {
		baseURL = BaseURLFor(settings.Environment)
	}

	httpClient := settings.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}

	metrics := settings.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}

	return &Client{
		token:      strings.TrimSpace(settings.APIToken),
		baseURL:    baseURL,
		httpClient: httpClient,
		metrics:    metrics,
	}
}

// BaseURL returns the resolved API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Configured reports whether an API token is set.
func (c *Client) Configured() bool {
	return c.token != ""
}

// ListTransactions returns up to perPage transactions of a customer as raw JSON.
func (c *Client) ListTransactions(ctx context.Context, customerID string, perPage int) ([]json.RawMessage, error) {
	query := url.Values{}
	query.Set("customer_id", customerID)
	query.Set("per_page", strconv.Itoa(perPage))

	body, err := c.do(ctx, http.MethodGet, "/transactions", "/transactions?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("decode transactions: %w", err)
	}

	var transactions []json.RawMessage
	if err := json.Unmarshal(envelope.Data, &transactions); err != nil || transactions == nil {
		// data missing or not an array
		return []json.RawMessage{}, nil
	}
	return transactions, nil
}

// CreatePortalSession opens a customer portal session and returns its URL.
// The decoded response is returned alongside for diagnostics.
func (c *Client) CreatePortalSession(ctx context.Context, customerID, returnURL string) (string, json.RawMessage, error) {
	payload := map[string]string{}
	if returnURL != "" {
		payload["return_url"] = returnURL
	}

	path := "/customers/" + url.PathEscape(customerID) + "/portal-sessions"
	body, err := c.do(ctx, http.MethodPost, "/customers/{id}/portal-sessions", path, payload)
	if err != nil {
		return "", nil, err
	}

	var resp struct {
		Data struct {
			URL  string `json:"url"`
			URLs struct {
				General struct {
					Overview string `json:"overview"`
				} `json:"general"`
				Overview string `json:"overview"`
			} `json:"urls"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", body, &PortalError{Response: body}
	}

	portalURL := firstNonEmpty(resp.Data.URL, resp.Data.URLs.General.Overview, resp.Data.URLs.Overview)
	if portalURL == "" {
		return "", body, &PortalError{Response: body}
	}
	return portalURL, body, nil
}

func (c *Client) do(ctx context.Context, method, endpoint, path string, payload any) ([]byte, error) {
	if c.token == "" {
		return nil, billing.ErrProviderNotConfigured
	}

	var reqBody io.Reader = http.NoBody
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal paddle payload: %w", err)
		}
		reqBody = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to build paddle request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	c.metrics.RecordAPICallDuration(providerName, endpoint, time.Since(start))
	if err != nil {
		c.metrics.RecordAPICall(providerName, endpoint, "error")
		return nil, fmt.Errorf("paddle API request failed: %w", err)
	}
	defer resp.Body.Close()
	c.metrics.RecordAPICall(providerName, endpoint, strconv.Itoa(resp.StatusCode))

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read paddle response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(body)}
	}
	return body, nil
}
