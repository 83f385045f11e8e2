package accounts

import "context"

// Storage defines the key-value persistence used for account records.
// Each key maps to one JSON-serialized Record; writes are last-write-wins.
type Storage interface {
	// GetRecord retrieves the record stored under key.
	// Returns ErrRecordNotFound when the key is absent.
	GetRecord(ctx context.Context, key string) (*Record, error)

	// PutRecord replaces whatever is stored under key.
	PutRecord(ctx context.Context, key string, rec *Record) error
}
