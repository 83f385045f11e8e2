package api

import (
	"fmt"
	"net/http"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/billing/paddle"
)

// Config holds configuration for the relay API handler
type Config struct {
	// Accounts is the account manager used by the read endpoints (required)
	Accounts *accounts.Manager

	// Provider is the Paddle provider; its webhook handler and API client
	// back /webhook/paddle, /transactions and /portal (required)
	Provider *paddle.Provider

	// APIToken is the static bearer token for the read endpoints.
	// Empty disables authentication.
	APIToken string

	// Logger is used for structured logging (default: accounts.NoopLogger)
	Logger accounts.Logger

	// Middlewares are applied to every route after the JSON/CORS defaults
	Middlewares []func(http.Handler) http.Handler
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Accounts == nil {
		return fmt.Errorf("accounts manager is required")
	}
	if c.Provider == nil {
		return fmt.Errorf("paddle provider is required")
	}
	return nil
}

// NewHandler creates a new relay API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.Logger == nil {
		config.Logger = &accounts.NoopLogger{}
	}
	return &Handler{
		config: config,
		client: config.Provider.Client(),
	}, nil
}
