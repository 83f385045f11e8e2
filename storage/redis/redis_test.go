package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// setupTestRedis creates a Redis client for testing
// Requires Redis running on localhost:6379
func setupTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   15, // Use DB 15 for testing
	})

	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}

	if err := client.FlushDB(ctx).Err(); err != nil {
		t.Fatalf("Failed to flush test database: %v", err)
	}

	return client
}

func testRecord() *accounts.Record {
	return &accounts.Record{
		Email:            accounts.StringPtr("user@example.com"),
		AccountID:        accounts.StringPtr("acct_1"),
		PlanStatus:       accounts.PlanStatusTrialing,
		TrialEnd:         accounts.TimestampPtr(time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)),
		PaddleCustomerID: accounts.StringPtr("ctm_1"),
		LastEvent:        "subscription.trialing",
		UpdatedAt:        accounts.NewTimestamp(time.Date(2025, 1, 10, 8, 30, 15, 0, time.UTC)),
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		client  redis.UniversalClient
		config  Config
		wantErr bool
	}{
		{
			name:    "nil client",
			client:  nil,
			config:  DefaultConfig(),
			wantErr: true,
		},
		{
			name:    "valid client with default config",
			client:  redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
			config:  DefaultConfig(),
			wantErr: false,
		},
		{
			name:    "empty key prefix uses default",
			client:  redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
			config:  Config{},
			wantErr: false,
		},
		{
			name:    "negative ttl",
			client:  redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
			config:  Config{RecordTTL: -time.Second},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			storage, err := New(tt.client, tt.config)
			if (err != nil) != tt.wantErr {
				t.Errorf("New() error = %v, wantErr %v", err, tt.wantErr)
				return
			}
			if !tt.wantErr && storage.config.KeyPrefix == "" {
				t.Error("KeyPrefix should not be empty")
			}
		})
	}
}

func TestStorage_GetPutRecord(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	storage, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()

	t.Run("get missing record", func(t *testing.T) {
		_, err := storage.GetRecord(ctx, "account:nobody@example.com")
		if !errors.Is(err, accounts.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound, got %v", err)
		}
	})

	t.Run("put and get record", func(t *testing.T) {
		rec := testRecord()
		if err := storage.PutRecord(ctx, "account:user@example.com", rec); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}

		got, err := storage.GetRecord(ctx, "account:user@example.com")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if *got.AccountID != "acct_1" || got.PlanStatus != accounts.PlanStatusTrialing {
			t.Errorf("record mismatch: %+v", got)
		}
		if got.TrialEnd.String() != "2025-02-01T00:00:00Z" {
			t.Errorf("TrialEnd = %s", got.TrialEnd)
		}
		if got.PlanEnd != nil {
			t.Errorf("PlanEnd = %v, want nil", got.PlanEnd)
		}
	})

	t.Run("stored value is prefixed json", func(t *testing.T) {
		raw, err := client.Get(ctx, "paddlerelay:account:user@example.com").Result()
		if err != nil {
			t.Fatalf("raw get failed: %v", err)
		}
		if raw == "" || raw[0] != '{' {
			t.Errorf("raw value = %q, want JSON object", raw)
		}
	})

	t.Run("last write wins", func(t *testing.T) {
		rec := testRecord()
		rec.PlanStatus = accounts.PlanStatusActive
		rec.LastEvent = "subscription.activated"
		if err := storage.PutRecord(ctx, "account:user@example.com", rec); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
		got, err := storage.GetRecord(ctx, "account:user@example.com")
		if err != nil {
			t.Fatalf("GetRecord failed: %v", err)
		}
		if got.LastEvent != "subscription.activated" {
			t.Errorf("LastEvent = %s", got.LastEvent)
		}
	})

	t.Run("delete record", func(t *testing.T) {
		if err := storage.PutRecord(ctx, "account_id:acct_del", testRecord()); err != nil {
			t.Fatalf("PutRecord failed: %v", err)
		}
		if err := storage.DeleteRecord(ctx, "account_id:acct_del"); err != nil {
			t.Fatalf("DeleteRecord failed: %v", err)
		}
		if _, err := storage.GetRecord(ctx, "account_id:acct_del"); !errors.Is(err, accounts.ErrRecordNotFound) {
			t.Errorf("Expected ErrRecordNotFound after delete, got %v", err)
		}
		if err := storage.DeleteRecord(ctx, "account_id:acct_del"); err != nil {
			t.Errorf("Deleting a missing key should succeed, got %v", err)
		}
	})

	t.Run("invalid put", func(t *testing.T) {
		if err := storage.PutRecord(ctx, "", testRecord()); !errors.Is(err, accounts.ErrInvalidRecord) {
			t.Errorf("empty key: got %v", err)
		}
		if err := storage.PutRecord(ctx, "account:x", nil); !errors.Is(err, accounts.ErrInvalidRecord) {
			t.Errorf("nil record: got %v", err)
		}
	})
}

func TestStorage_RecordTTL(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	storage, err := New(client, Config{KeyPrefix: "ttl:", RecordTTL: time.Hour})
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	ctx := context.Background()
	if err := storage.PutRecord(ctx, "account_id:acct_1", testRecord()); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	ttl, err := client.TTL(ctx, "ttl:account_id:acct_1").Result()
	if err != nil {
		t.Fatalf("TTL failed: %v", err)
	}
	if ttl <= 0 || ttl > time.Hour {
		t.Errorf("TTL = %s, want (0, 1h]", ttl)
	}
}

func TestStorage_Ping(t *testing.T) {
	client := setupTestRedis(t)
	defer client.Close()

	storage, err := New(client, DefaultConfig())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}
	if err := storage.Ping(context.Background()); err != nil {
		t.Errorf("Ping failed: %v", err)
	}
}
