package accounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
)

// CircuitBreakerConfig configures the storage circuit breaker.
type CircuitBreakerConfig struct {
	// FailureThreshold is the number of consecutive failures that opens the breaker (default: 5)
	FailureThreshold uint32

	// ResetTimeout is how long the breaker stays open before probing again (default: 30s)
	ResetTimeout time.Duration

	// Interval clears the failure counts while closed; 0 never clears
	Interval time.Duration

	Metrics Metrics
	Logger  Logger
}

// CircuitBreakerStorage wraps a Storage implementation with circuit breaker protection.
// A missing record is a successful call and never trips the breaker.
type CircuitBreakerStorage struct {
	storage Storage
	cb      *gobreaker.CircuitBreaker[*Record]
}

// NewCircuitBreakerStorage creates a new storage wrapper with circuit breaker.
func NewCircuitBreakerStorage(storage Storage, config CircuitBreakerConfig) *CircuitBreakerStorage {
	if config.FailureThreshold == 0 {
		config.FailureThreshold = 5
	}
	if config.ResetTimeout == 0 {
		config.ResetTimeout = 30 * time.Second
	}
	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}

	threshold := config.FailureThreshold
	settings := gobreaker.Settings{
		Name:        "account-storage",
		MaxRequests: 1,
		Interval:    config.Interval,
		Timeout:     config.ResetTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsSuccessful: func(err error) bool {
			return err == nil || errors.Is(err, ErrRecordNotFound) || errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			config.Metrics.RecordCircuitBreakerStateChange(to.String())
			config.Logger.Warn("storage circuit breaker state changed",
				F("breaker", name),
				F("from", from.String()),
				F("to", to.String()),
			)
		},
	}

	return &CircuitBreakerStorage{
		storage: storage,
		cb:      gobreaker.NewCircuitBreaker[*Record](settings),
	}
}

func (s *CircuitBreakerStorage) GetRecord(ctx context.Context, key string) (*Record, error) {
	rec, err := s.cb.Execute(func() (*Record, error) {
		return s.storage.GetRecord(ctx, key)
	})
	return rec, breakerError(err)
}

func (s *CircuitBreakerStorage) PutRecord(ctx context.Context, key string, rec *Record) error {
	_, err := s.cb.Execute(func() (*Record, error) {
		return nil, s.storage.PutRecord(ctx, key, rec)
	})
	return breakerError(err)
}

// State returns the current breaker state ("closed", "half-open", "open").
func (s *CircuitBreakerStorage) State() string {
	return s.cb.State().String()
}

func breakerError(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %w", ErrStorageUnavailable, err)
	}
	return err
}
