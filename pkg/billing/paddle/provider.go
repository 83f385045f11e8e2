// Package paddle implements the Paddle Billing provider: webhook signature
// verification, payload normalization into account records, and the
// REST API calls used by the read endpoints.
package paddle

import (
	"net/http"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/billing"
	"github.com/mihaimyh/paddlerelay/pkg/billing/internal"
)

var _ billing.Provider = (*Provider)(nil)

// Provider implements the billing.Provider interface for Paddle
type Provider struct {
	accounts      *accounts.Manager
	client        *Client
	webhookSecret string
	metrics       billing.Metrics
	logger        accounts.Logger
	onWebhook     billing.WebhookCallback
	bodyLimit     int64
	now           func() time.Time
}

// NewProvider creates a new Paddle billing provider.
// environment selects the API base URL ("production" or sandbox).
func NewProvider(config billing.Config, environment string) (*Provider, error) {
	return newProvider(config, Settings{Environment: environment})
}

// NewProviderWithSettings is NewProvider with full API client settings.
// config.APIKey, HTTPClient and Metrics fill any gaps in settings.
func NewProviderWithSettings(config billing.Config, settings Settings) (*Provider, error) {
	return newProvider(config, settings)
}

func newProvider(config billing.Config, settings Settings) (*Provider, error) {
	if config.Accounts == nil {
		return nil, billing.ErrProviderNotConfigured
	}

	metrics := config.Metrics
	if metrics == nil {
		metrics = &billing.NoopMetrics{}
	}
	logger := config.Logger
	if logger == nil {
		logger = &accounts.NoopLogger{}
	}

	if settings.APIToken == "" {
		settings.APIToken = config.APIKey
	}
	if settings.HTTPClient == nil {
		settings.HTTPClient = config.HTTPClient
	}
	if settings.Metrics == nil {
		settings.Metrics = metrics
	}

	return &Provider{
		accounts:      config.Accounts,
		client:        NewClient(settings),
		webhookSecret: config.WebhookSecret,
		metrics:       metrics,
		logger:        logger,
		onWebhook:     config.OnWebhook,
		bodyLimit:     internal.DefaultBodyLimit,
		now:           config.Accounts.Now,
	}, nil
}

// Name returns the provider name
func (p *Provider) Name() string {
	return providerName
}

// Client returns the Paddle API client used by the read endpoints.
func (p *Provider) Client() *Client {
	return p.client
}

// WebhookHandler returns the HTTP handler for Paddle webhooks
func (p *Provider) WebhookHandler() http.Handler {
	return http.HandlerFunc(p.handleWebhook)
}
