package billing

import (
	"context"
	"net/http"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// WebhookCallback is invoked after a webhook delivery was stored successfully.
// It runs on the request goroutine; errors are logged and never change the response.
type WebhookCallback func(ctx context.Context, event WebhookEvent) error

// Config defines the standard configuration all providers should accept
type Config struct {
	// Accounts is the account manager that webhook deliveries are written through
	Accounts *accounts.Manager

	// WebhookSecret is the signing secret for incoming webhook requests.
	// Empty disables signature verification.
	WebhookSecret string

	// APIKey is used for outbound API calls to the billing provider.
	APIKey string

	// HTTPClient is an optional HTTP client for API calls.
	// If nil, a default client with 10s timeout will be used.
	HTTPClient *http.Client

	// Metrics is an optional metrics collector for tracking billing provider operations.
	// If nil, metrics will be silently ignored (no-op).
	// Use billing/metrics/prometheus.DefaultMetrics(namespace) for Prometheus metrics.
	Metrics Metrics

	// Logger is used for structured logging (default: accounts.NoopLogger)
	Logger accounts.Logger

	// OnWebhook is an optional hook called after each stored delivery
	OnWebhook WebhookCallback
}
