package memory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

func testRecord(email string) *accounts.Record {
	return &accounts.Record{
		Email:      accounts.StringPtr(email),
		AccountID:  accounts.StringPtr("acct_1"),
		PlanStatus: accounts.PlanStatusActive,
		PlanEnd:    accounts.TimestampPtr(time.Date(2025, 1, 15, 10, 0, 0, 0, time.UTC)),
		LastEvent:  "subscription.activated",
		UpdatedAt:  accounts.NewTimestamp(time.Now()),
	}
}

func TestStorage_GetPutRecord(t *testing.T) {
	storage := New()
	ctx := context.Background()

	_, err := storage.GetRecord(ctx, "account:a@example.com")
	if !errors.Is(err, accounts.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound, got %v", err)
	}

	rec := testRecord("a@example.com")
	if err := storage.PutRecord(ctx, "account:a@example.com", rec); err != nil {
		t.Fatalf("PutRecord failed: %v", err)
	}

	got, err := storage.GetRecord(ctx, "account:a@example.com")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if *got.Email != "a@example.com" || got.PlanStatus != accounts.PlanStatusActive {
		t.Errorf("Record mismatch: got %+v", got)
	}
}

func TestStorage_LastWriteWins(t *testing.T) {
	storage := New()
	ctx := context.Background()

	first := testRecord("a@example.com")
	second := testRecord("a@example.com")
	second.PlanStatus = accounts.PlanStatusTrialing
	second.PlanEnd = nil

	_ = storage.PutRecord(ctx, "k", first)
	_ = storage.PutRecord(ctx, "k", second)

	got, err := storage.GetRecord(ctx, "k")
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.PlanStatus != accounts.PlanStatusTrialing || got.PlanEnd != nil {
		t.Errorf("Expected second write to replace first, got %+v", got)
	}
}

func TestStorage_CopiesOnReadAndWrite(t *testing.T) {
	storage := New()
	ctx := context.Background()

	rec := testRecord("a@example.com")
	_ = storage.PutRecord(ctx, "k", rec)
	*rec.Email = "mutated@example.com"

	got, _ := storage.GetRecord(ctx, "k")
	if *got.Email != "a@example.com" {
		t.Errorf("Stored record was mutated through caller pointer: %s", *got.Email)
	}

	*got.Email = "again@example.com"
	again, _ := storage.GetRecord(ctx, "k")
	if *again.Email != "a@example.com" {
		t.Errorf("Stored record was mutated through returned pointer: %s", *again.Email)
	}
}

func TestStorage_InvalidPut(t *testing.T) {
	storage := New()
	ctx := context.Background()

	if err := storage.PutRecord(ctx, "", testRecord("a@example.com")); !errors.Is(err, accounts.ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for empty key, got %v", err)
	}
	if err := storage.PutRecord(ctx, "k", nil); !errors.Is(err, accounts.ErrInvalidRecord) {
		t.Errorf("Expected ErrInvalidRecord for nil record, got %v", err)
	}
}

func TestStorage_KeysAndClear(t *testing.T) {
	storage := New()
	ctx := context.Background()

	_ = storage.PutRecord(ctx, "account_id:acct_1", testRecord("a@example.com"))
	_ = storage.PutRecord(ctx, "account:a@example.com", testRecord("a@example.com"))

	keys := storage.Keys()
	if len(keys) != 2 || keys[0] != "account:a@example.com" || keys[1] != "account_id:acct_1" {
		t.Errorf("Unexpected keys: %v", keys)
	}

	storage.Clear()
	if len(storage.Keys()) != 0 {
		t.Error("Expected no keys after Clear")
	}
}

func TestStorage_DeleteRecord(t *testing.T) {
	storage := New()
	ctx := context.Background()

	_ = storage.PutRecord(ctx, "account:a@example.com", testRecord("a@example.com"))
	if err := storage.DeleteRecord(ctx, "account:a@example.com"); err != nil {
		t.Fatalf("DeleteRecord failed: %v", err)
	}
	if _, err := storage.GetRecord(ctx, "account:a@example.com"); !errors.Is(err, accounts.ErrRecordNotFound) {
		t.Errorf("Expected ErrRecordNotFound after delete, got %v", err)
	}
	if err := storage.DeleteRecord(ctx, "account:missing@example.com"); err != nil {
		t.Errorf("Deleting a missing key should succeed, got %v", err)
	}
}

func TestStorage_ConcurrentAccess(t *testing.T) {
	storage := New()
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_ = storage.PutRecord(ctx, "k", testRecord("a@example.com"))
		}()
		go func() {
			defer wg.Done()
			_, _ = storage.GetRecord(ctx, "k")
		}()
	}
	wg.Wait()

	if _, err := storage.GetRecord(ctx, "k"); err != nil {
		t.Errorf("GetRecord failed after concurrent writes: %v", err)
	}
}
