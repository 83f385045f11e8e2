package accounts

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"
)

// Config holds the Manager's optional collaborators.
type Config struct {
	// Cache is an optional read cache; only used when CacheTTL > 0
	Cache Cache

	// CacheTTL is how long looked-up records stay cached (default: 0, disabled)
	CacheTTL time.Duration

	// Metrics is used for tracking storage operations (default: NoopMetrics)
	Metrics Metrics

	// Logger is used for structured logging (default: NoopLogger)
	Logger Logger

	// Now is the clock used for record timestamps (default: time.Now)
	Now func() time.Time
}

// Manager reads and writes account records through a Storage.
type Manager struct {
	storage Storage
	config  Config
	lookups singleflight.Group
}

// NewManager creates a new account manager with the given storage and configuration
func NewManager(storage Storage, config Config) (*Manager, error) {
	if storage == nil {
		return nil, ErrStorageUnavailable
	}
	if config.CacheTTL < 0 {
		return nil, fmt.Errorf("cache ttl must not be negative: %s", config.CacheTTL)
	}

	if config.Metrics == nil {
		config.Metrics = &NoopMetrics{}
	}
	if config.Logger == nil {
		config.Logger = &NoopLogger{}
	}
	if config.Now == nil {
		config.Now = time.Now
	}
	switch {
	case config.CacheTTL == 0:
		config.Cache = NewNoopCache()
	case config.Cache == nil:
		config.Cache = NewLRUCache(0)
	}

	return &Manager{
		storage: storage,
		config:  config,
	}, nil
}

// Now returns the manager's clock reading.
func (m *Manager) Now() time.Time {
	return m.config.Now()
}

// Upsert writes rec under its email key and then its account id key.
// The writes are independent: a failure on the first aborts the second and
// nothing is rolled back. It returns the keys that were written.
func (m *Manager) Upsert(ctx context.Context, rec *Record) ([]string, error) {
	if rec == nil {
		return nil, ErrInvalidRecord
	}

	keys := rec.Keys()
	written := make([]string, 0, len(keys))
	for _, key := range keys {
		start := time.Now()
		err := m.storage.PutRecord(ctx, key, rec)
		m.config.Metrics.RecordStorageOperation("put", time.Since(start), err)
		m.config.Cache.Invalidate(key)
		if err != nil {
			m.config.Logger.Error("failed to store account record",
				F("key", key),
				ErrField(err),
			)
			return written, fmt.Errorf("put %s: %w", key, err)
		}
		written = append(written, key)
	}

	if len(written) == 0 {
		m.config.Logger.Debug("account record has no identifier, nothing stored",
			F("last_event", rec.LastEvent),
		)
	}
	return written, nil
}

// Lookup returns the record addressed by id. Email wins when both are set.
func (m *Manager) Lookup(ctx context.Context, id Identifier) (*Record, error) {
	if id.IsZero() {
		return nil, ErrMissingIdentifier
	}

	key := id.Key()
	kind := keyKind(key)

	if rec, ok := m.config.Cache.Get(key); ok {
		m.config.Metrics.RecordCacheHit()
		m.config.Metrics.RecordLookup(kind, "hit")
		return rec, nil
	}
	if m.config.CacheTTL > 0 {
		m.config.Metrics.RecordCacheMiss()
	}

	// The shared read outlives any single caller's cancellation; each
	// caller still stops waiting when its own ctx is done.
	readCtx := context.WithoutCancel(ctx)
	ch := m.lookups.DoChan(key, func() (interface{}, error) {
		start := time.Now()
		rec, err := m.storage.GetRecord(readCtx, key)
		if errors.Is(err, ErrRecordNotFound) {
			m.config.Metrics.RecordStorageOperation("get", time.Since(start), nil)
			return nil, err
		}
		m.config.Metrics.RecordStorageOperation("get", time.Since(start), err)
		if err != nil {
			return nil, err
		}
		if m.config.CacheTTL > 0 {
			m.config.Cache.Set(key, rec, m.config.CacheTTL)
		}
		return rec, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		m.config.Metrics.RecordLookup(kind, "canceled")
		return nil, ctx.Err()
	}
	v, err := res.Val, res.Err

	switch {
	case errors.Is(err, ErrRecordNotFound):
		m.config.Metrics.RecordLookup(kind, "not_found")
		return nil, ErrRecordNotFound
	case err != nil:
		m.config.Metrics.RecordLookup(kind, "error")
		m.config.Logger.Error("failed to read account record",
			F("key", key),
			ErrField(err),
		)
		return nil, fmt.Errorf("get %s: %w", key, err)
	}

	m.config.Metrics.RecordLookup(kind, "hit")
	rec, _ := v.(*Record)
	// shared across singleflight callers
	return rec.Clone(), nil
}

func keyKind(key string) string {
	if strings.HasPrefix(key, accountIDKeyPrefix) {
		return "account_id"
	}
	return "email"
}
