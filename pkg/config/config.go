// Package config loads the relay's process configuration from the environment.
// Settings are resolved once at startup and are immutable thereafter; secrets
// are passed to constructors explicitly and never read from the environment
// elsewhere.
package config

import (
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/billing/paddle"
)

// Store backend names.
const (
	BackendMemory    = "memory"
	BackendRedis     = "redis"
	BackendPostgres  = "postgres"
	BackendFirestore = "firestore"
	BackendTiered    = "tiered"
)

// Settings is the relay configuration.
type Settings struct {
	PaddleAPIToken    string `envconfig:"PADDLE_API_TOKEN"`
	PaddleEnvironment string `envconfig:"PADDLE_ENV" default:"sandbox"`
	WebhookSecret     string `envconfig:"PADDLE_WEBHOOK_SECRET"`
	APIToken          string `envconfig:"BILLING_API_TOKEN"`

	Port     string `envconfig:"PORT" default:"8080" validate:"required,numeric"`
	LogLevel string `envconfig:"LOG_LEVEL" default:"info" validate:"oneof=debug info warn error"`

	Store StoreConfig

	CacheTTL time.Duration `envconfig:"CACHE_TTL" default:"0s" validate:"gte=0"`

	MetricsNamespace string `envconfig:"METRICS_NAMESPACE" default:"paddlerelay" validate:"required"`
	MetricsPort      string `envconfig:"METRICS_PORT" default:"9090" validate:"omitempty,numeric"`
}

// StoreConfig selects and configures the account record backend.
type StoreConfig struct {
	Backend        string `envconfig:"STORE_BACKEND" default:"memory" validate:"oneof=memory redis postgres firestore tiered"`
	BreakerEnabled bool   `envconfig:"STORE_BREAKER_ENABLED" default:"false"`

	Redis RedisConfig

	PostgresURL string `envconfig:"DATABASE_URL" validate:"required_if=Backend postgres,required_if=Backend tiered"`

	Firestore FirestoreConfig
}

// RedisConfig configures the Redis backend.
type RedisConfig struct {
	Addr      string        `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password  string        `envconfig:"REDIS_PASSWORD"`
	DB        int           `envconfig:"REDIS_DB" default:"0" validate:"gte=0"`
	KeyPrefix string        `envconfig:"REDIS_KEY_PREFIX" default:"paddlerelay:"`
	RecordTTL time.Duration `envconfig:"REDIS_RECORD_TTL" default:"0s" validate:"gte=0"`
}

// FirestoreConfig configures the Firestore backend.
type FirestoreConfig struct {
	ProjectID  string `envconfig:"FIRESTORE_PROJECT_ID"`
	Collection string `envconfig:"FIRESTORE_COLLECTION" default:"billing_accounts" validate:"required"`
}

// PaddleBaseURL resolves the Paddle API base URL for the configured environment.
func (s *Settings) PaddleBaseURL() string {
	return paddle.BaseURLFor(s.PaddleEnvironment)
}

// Addr is the public listen address.
func (s *Settings) Addr() string {
	return ":" + s.Port
}

// MetricsAddr is the admin listen address, or "" when metrics are not served.
func (s *Settings) MetricsAddr() string {
	if s.MetricsPort == "" {
		return ""
	}
	return ":" + s.MetricsPort
}
