package config

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// ErrorType classifies configuration failures.
type ErrorType string

const (
	ErrParsing    ErrorType = "parsing"
	ErrValidation ErrorType = "validation"
)

// Error is returned by Load.
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Load reads a .env file when present (existing variables win), populates
// Settings from the environment and validates it.
func Load() (*Settings, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv populates Settings from the process environment only.
func FromEnv() (*Settings, error) {
	var cfg Settings
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, &Error{
			Type:    ErrParsing,
			Message: "failed to process environment configuration",
			Err:     err,
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks struct constraints.
func (s *Settings) Validate() error {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		return &Error{
			Type:    ErrValidation,
			Message: "configuration validation failed",
			Err:     err,
		}
	}
	if s.WebhookSecret != "" && strings.TrimSpace(s.WebhookSecret) == "" {
		return &Error{
			Type:    ErrValidation,
			Message: "PADDLE_WEBHOOK_SECRET must not be only whitespace",
		}
	}
	if s.Store.Backend == BackendFirestore && s.Store.Firestore.ProjectID == "" {
		return &Error{
			Type:    ErrValidation,
			Message: "FIRESTORE_PROJECT_ID is required for the firestore backend",
		}
	}
	return nil
}
