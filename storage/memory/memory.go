// Package memory provides an in-memory implementation of the accounts.Storage interface.
// This implementation is primarily intended for testing and development.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// Storage implements accounts.Storage using an in-memory map
type Storage struct {
	mu      sync.RWMutex
	records map[string]*accounts.Record
}

// New creates a new in-memory storage adapter
func New() *Storage {
	return &Storage{
		records: make(map[string]*accounts.Record),
	}
}

// GetRecord implements accounts.Storage
func (s *Storage) GetRecord(_ context.Context, key string) (*accounts.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.records[key]
	if !ok {
		return nil, accounts.ErrRecordNotFound
	}

	// Return a copy to prevent external mutations
	return rec.Clone(), nil
}

// PutRecord implements accounts.Storage
func (s *Storage) PutRecord(_ context.Context, key string, rec *accounts.Record) error {
	if key == "" || rec == nil {
		return fmt.Errorf("%w: empty key or record", accounts.ErrInvalidRecord)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.records[key] = rec.Clone()
	return nil
}

// DeleteRecord removes the record under key. Missing keys are not an error.
func (s *Storage) DeleteRecord(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.records, key)
	return nil
}

// Keys returns every stored key in sorted order.
func (s *Storage) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]string, 0, len(s.records))
	for k := range s.records {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Clear removes all records.
func (s *Storage) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = make(map[string]*accounts.Record)
}
