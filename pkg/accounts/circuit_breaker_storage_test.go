package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockStorage is a mock storage implementation for testing
type mockStorage struct {
	getErr error
	putErr error
	calls  int
}

func (m *mockStorage) GetRecord(_ context.Context, _ string) (*Record, error) {
	m.calls++
	if m.getErr != nil {
		return nil, m.getErr
	}
	return &Record{LastEvent: "unknown"}, nil
}

func (m *mockStorage) PutRecord(_ context.Context, _ string, _ *Record) error {
	m.calls++
	return m.putErr
}

type stateRecorder struct {
	NoopMetrics
	states []string
}

func (r *stateRecorder) RecordCircuitBreakerStateChange(state string) {
	r.states = append(r.states, state)
}

func TestCircuitBreakerStorage_OpensAfterConsecutiveFailures(t *testing.T) {
	ctx := context.Background()
	mock := &mockStorage{putErr: errors.New("connection refused")}
	metrics := &stateRecorder{}
	s := NewCircuitBreakerStorage(mock, CircuitBreakerConfig{
		FailureThreshold: 2,
		ResetTimeout:     time.Hour,
		Metrics:          metrics,
	})

	assert.Error(t, s.PutRecord(ctx, "k", &Record{}))
	assert.Error(t, s.PutRecord(ctx, "k", &Record{}))
	assert.Equal(t, "open", s.State())

	err := s.PutRecord(ctx, "k", &Record{})
	require.ErrorIs(t, err, ErrStorageUnavailable)
	assert.Equal(t, 2, mock.calls, "open breaker must not reach storage")
	assert.Equal(t, []string{"open"}, metrics.states)

	_, err = s.GetRecord(ctx, "k")
	assert.ErrorIs(t, err, ErrStorageUnavailable)
}

func TestCircuitBreakerStorage_NotFoundDoesNotTrip(t *testing.T) {
	ctx := context.Background()
	mock := &mockStorage{getErr: ErrRecordNotFound}
	s := NewCircuitBreakerStorage(mock, CircuitBreakerConfig{FailureThreshold: 1})

	for i := 0; i < 3; i++ {
		_, err := s.GetRecord(ctx, "k")
		assert.ErrorIs(t, err, ErrRecordNotFound)
	}
	assert.Equal(t, "closed", s.State())
}

func TestCircuitBreakerStorage_HalfOpenRecovers(t *testing.T) {
	ctx := context.Background()
	mock := &mockStorage{getErr: errors.New("down")}
	s := NewCircuitBreakerStorage(mock, CircuitBreakerConfig{
		FailureThreshold: 1,
		ResetTimeout:     20 * time.Millisecond,
	})

	_, err := s.GetRecord(ctx, "k")
	require.Error(t, err)
	assert.Equal(t, "open", s.State())

	time.Sleep(40 * time.Millisecond)
	mock.getErr = nil

	rec, err := s.GetRecord(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, "unknown", rec.LastEvent)
	assert.Equal(t, "closed", s.State())
}

func TestCircuitBreakerStorage_PassThrough(t *testing.T) {
	ctx := context.Background()
	mock := &mockStorage{}
	s := NewCircuitBreakerStorage(mock, CircuitBreakerConfig{})

	require.NoError(t, s.PutRecord(ctx, "k", &Record{}))
	_, err := s.GetRecord(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, 2, mock.calls)
}
