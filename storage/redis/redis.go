// Package redis provides a Redis implementation of the accounts.Storage interface.
// Each store key holds one JSON-serialized record as a plain string value.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Storage implements accounts.Storage using Redis
type Storage struct {
	client redis.UniversalClient
	config Config
}

// Config holds Redis storage configuration
type Config struct {
	// KeyPrefix is prepended to all Redis keys (default: "paddlerelay:")
	KeyPrefix string

	// RecordTTL is the TTL for record keys (0 = no expiration)
	RecordTTL time.Duration
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() Config {
	return Config{
		KeyPrefix: "paddlerelay:",
		RecordTTL: 0,
	}
}

// New creates a new Redis storage adapter
// The client can be *redis.Client, *redis.ClusterClient, or *redis.Ring
func New(client redis.UniversalClient, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = "paddlerelay:"
	}
	if config.RecordTTL < 0 {
		return nil, fmt.Errorf("record ttl must not be negative: %s", config.RecordTTL)
	}

	return &Storage{
		client: client,
		config: config,
	}, nil
}

// GetRecord implements accounts.Storage
func (s *Storage) GetRecord(ctx context.Context, key string) (*accounts.Record, error) {
	data, err := s.client.Get(ctx, s.redisKey(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, accounts.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}

	var rec accounts.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &rec, nil
}

// PutRecord implements accounts.Storage
func (s *Storage) PutRecord(ctx context.Context, key string, rec *accounts.Record) error {
	if key == "" || rec == nil {
		return fmt.Errorf("%w: empty key or record", accounts.ErrInvalidRecord)
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	if err := s.client.Set(ctx, s.redisKey(key), data, s.config.RecordTTL).Err(); err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

// DeleteRecord removes the record under key. Missing keys are not an error.
func (s *Storage) DeleteRecord(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, s.redisKey(key)).Err(); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

func (s *Storage) redisKey(key string) string {
	return s.config.KeyPrefix + key
}

// Close closes the Redis client connection
func (s *Storage) Close() error {
	return s.client.Close()
}

// Ping checks the Redis connection
func (s *Storage) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
