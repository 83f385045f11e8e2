package main

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	goredis "github.com/redis/go-redis/v9"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
	"github.com/mihaimyh/paddlerelay/pkg/config"
	"github.com/mihaimyh/paddlerelay/storage/memory"
	firestorestorage "github.com/mihaimyh/paddlerelay/storage/firestore"
	"github.com/mihaimyh/paddlerelay/storage/postgres"
	redisstorage "github.com/mihaimyh/paddlerelay/storage/redis"
	"github.com/mihaimyh/paddlerelay/storage/tiered"
)

// openStorage builds the configured backend. The returned func releases its
// connections.
func openStorage(ctx context.Context, cfg config.StoreConfig, logger accounts.Logger) (accounts.Storage, func(), error) {
	switch cfg.Backend {
	case config.BackendMemory:
		logger.Warn("using in-memory storage; records are lost on restart")
		return memory.New(), func() {}, nil

	case config.BackendRedis:
		store, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.BackendPostgres:
		store, err := openPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, nil, err
		}
		return store, store.Close, nil

	case config.BackendFirestore:
		client, err := firestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("creating firestore client: %w", err)
		}
		store, err := firestorestorage.New(client, firestorestorage.Config{Collection: cfg.Firestore.Collection})
		if err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return store, func() { _ = store.Close() }, nil

	case config.BackendTiered:
		hot, err := openRedis(ctx, cfg.Redis)
		if err != nil {
			return nil, nil, err
		}
		cold, err := openPostgres(ctx, cfg.PostgresURL)
		if err != nil {
			_ = hot.Close()
			return nil, nil, err
		}
		store, err := tiered.New(tiered.Config{
			Hot:  hot,
			Cold: cold,
			HotErrorHandler: func(err error) {
				logger.Warn("hot tier out of sync", accounts.ErrField(err))
			},
		})
		if err != nil {
			_ = hot.Close()
			cold.Close()
			return nil, nil, err
		}
		return store, func() {
			_ = hot.Close()
			cold.Close()
		}, nil
	}

	return nil, nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
}

func openRedis(ctx context.Context, cfg config.RedisConfig) (*redisstorage.Storage, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	store, err := redisstorage.New(client, redisstorage.Config{
		KeyPrefix: cfg.KeyPrefix,
		RecordTTL: cfg.RecordTTL,
	})
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	if err := store.Ping(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return store, nil
}

func openPostgres(ctx context.Context, url string) (*postgres.Storage, error) {
	pgcfg := postgres.DefaultConfig()
	pgcfg.ConnectionString = url
	return postgres.New(ctx, pgcfg)
}
