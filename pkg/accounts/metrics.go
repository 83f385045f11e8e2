package accounts

import "time"

// Metrics defines the interface for tracking record storage and lookups.
type Metrics interface {
	// RecordStorageOperation records the duration and outcome of a storage call
	// ("get", "put").
	RecordStorageOperation(operation string, duration time.Duration, err error)

	// RecordLookup records a record lookup by key kind ("email", "account_id")
	// and result ("hit", "not_found", "error", "canceled").
	RecordLookup(keyKind, result string)

	// RecordCacheHit records an in-process cache hit.
	RecordCacheHit()

	// RecordCacheMiss records an in-process cache miss.
	RecordCacheMiss()

	// RecordCircuitBreakerStateChange records a storage breaker state change.
	RecordCircuitBreakerStateChange(state string)
}

// NoopMetrics is a no-op implementation of the Metrics interface.
type NoopMetrics struct{}

func (n *NoopMetrics) RecordStorageOperation(string, time.Duration, error) {}
func (n *NoopMetrics) RecordLookup(string, string)                         {}
func (n *NoopMetrics) RecordCacheHit()                                     {}
func (n *NoopMetrics) RecordCacheMiss()                                    {}
func (n *NoopMetrics) RecordCircuitBreakerStateChange(string)              {}
