// Package firestore provides a Firestore implementation of the accounts.Storage interface.
// Each store key is one document holding the JSON-serialized record.
package firestore

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

const (
	recordField    = "record"
	updatedAtField = "updatedAt"
)

// Storage implements accounts.Storage using Google Cloud Firestore
type Storage struct {
	client     *firestore.Client
	collection string
}

// Config holds Firestore storage configuration
type Config struct {
	// Collection is the Firestore collection for account records
	// Default: "billing_accounts"
	Collection string
}

// New creates a new Firestore storage adapter
func New(client *firestore.Client, config Config) (*Storage, error) {
	if client == nil {
		return nil, fmt.Errorf("firestore client is required")
	}
	if config.Collection == "" {
		config.Collection = "billing_accounts"
	}

	return &Storage{
		client:     client,
		collection: config.Collection,
	}, nil
}

// GetRecord implements accounts.Storage
func (s *Storage) GetRecord(ctx context.Context, key string) (*accounts.Record, error) {
	snap, err := s.doc(key).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, accounts.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	if !snap.Exists() {
		return nil, accounts.ErrRecordNotFound
	}

	raw := getString(snap.Data(), recordField)
	if raw == "" {
		return nil, fmt.Errorf("document %s has no %s field", snap.Ref.ID, recordField)
	}

	var rec accounts.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
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

	_, err = s.doc(key).Set(ctx, map[string]interface{}{
		recordField:    string(data),
		updatedAtField: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("failed to set record: %w", err)
	}
	return nil
}

func (s *Storage) doc(key string) *firestore.DocumentRef {
	return s.client.Collection(s.collection).Doc(DocumentID(key))
}

// DocumentID maps a store key to a Firestore document id. Slashes would
// otherwise be read as path separators.
func DocumentID(key string) string {
	return url.PathEscape(key)
}

// Close closes the Firestore client
func (s *Storage) Close() error {
	return s.client.Close()
}

func getString(data map[string]interface{}, key string) string {
	if v, ok := data[key].(string); ok {
		return v
	}
	return ""
}
