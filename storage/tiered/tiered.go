// Package tiered provides a Hot/Cold tiered storage adapter that pairs a
// fast ephemeral store (Hot) with a durable one (Cold).
package tiered

import (
	"context"
	"errors"
	"fmt"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Config configures the tiered storage behavior
type Config struct {
	// Hot is the L1 storage (e.g., Redis, Memory) consulted first on reads
	Hot accounts.Storage

	// Cold is the L2 persistence storage (e.g., Postgres, Firestore) and the source of truth
	Cold accounts.Storage

	// HotErrorHandler is called when a best-effort Hot write or read-repair fails.
	// Useful for monitoring drift between the tiers.
	HotErrorHandler func(error)
}

// Deleter is implemented by Hot stores that can evict a key. When a Hot
// write fails the key is evicted so reads fall through to Cold.
type Deleter interface {
	DeleteRecord(ctx context.Context, key string) error
}

// Storage implements a Hot/Cold tiered storage architecture:
//   - Read-Through: Hot, then Cold, then populate Hot
//   - Write-Through: Cold first for durability, then Hot; a failed Hot
//     write evicts the key from Hot when Hot implements Deleter
type Storage struct {
	hot  accounts.Storage
	cold accounts.Storage
	conf Config
}

// New creates a new tiered storage adapter.
func New(config Config) (*Storage, error) {
	if config.Hot == nil || config.Cold == nil {
		return nil, errors.New("tiered storage: both hot and cold storage are required")
	}
	return &Storage{
		hot:  config.Hot,
		cold: config.Cold,
		conf: config,
	}, nil
}

// GetRecord implements accounts.Storage with read-through strategy.
func (s *Storage) GetRecord(ctx context.Context, key string) (*accounts.Record, error) {
	rec, err := s.hot.GetRecord(ctx, key)
	if err == nil {
		return rec, nil
	}

	rec, err = s.cold.GetRecord(ctx, key)
	if err != nil {
		return nil, err
	}

	// read-repair
	if err := s.hot.PutRecord(ctx, key, rec); err != nil {
		s.hotFailed("fill", key, err)
	}
	return rec, nil
}

// PutRecord implements accounts.Storage with write-through strategy.
// A Hot failure after a successful Cold write is reported but not returned.
func (s *Storage) PutRecord(ctx context.Context, key string, rec *accounts.Record) error {
	if err := s.cold.PutRecord(ctx, key, rec); err != nil {
		return err
	}
	if err := s.hot.PutRecord(ctx, key, rec); err != nil {
		s.hotFailed("write", key, err)
		s.evictHot(ctx, key)
	}
	return nil
}

// evictHot drops a possibly stale Hot copy after a failed Hot write.
func (s *Storage) evictHot(ctx context.Context, key string) {
	d, ok := s.hot.(Deleter)
	if !ok {
		return
	}
	if err := d.DeleteRecord(ctx, key); err != nil {
		s.hotFailed("evict", key, err)
	}
}

func (s *Storage) hotFailed(op, key string, err error) {
	if s.conf.HotErrorHandler != nil {
		s.conf.HotErrorHandler(fmt.Errorf("tiered hot %s %s: %w", op, key, err))
	}
}
