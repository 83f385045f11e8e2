package accounts

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckAccess(t *testing.T) {
	now := time.Date(2025, 1, 10, 12, 0, 0, 0, time.UTC)
	id := NewIdentifier("user@example.com", "")

	t.Run("not found is allowed", func(t *testing.T) {
		lookup := func(context.Context, Identifier) (*Record, error) { return nil, ErrRecordNotFound }
		access, err := CheckAccess(context.Background(), lookup, id, now)
		require.NoError(t, err)
		assert.True(t, access.Allowed)
		assert.Equal(t, StatusUnknown, access.Status)
	})

	t.Run("lookup failure", func(t *testing.T) {
		boom := errors.New("boom")
		lookup := func(context.Context, Identifier) (*Record, error) { return nil, boom }
		_, err := CheckAccess(context.Background(), lookup, id, now)
		assert.ErrorIs(t, err, boom)
	})

	t.Run("expired plan", func(t *testing.T) {
		rec := &Record{PlanStatus: PlanStatusActive, PlanEnd: TimestampPtr(now.Add(-time.Hour))}
		lookup := func(context.Context, Identifier) (*Record, error) { return rec, nil }
		access, err := CheckAccess(context.Background(), lookup, id, now)
		require.NoError(t, err)
		assert.False(t, access.Allowed)

		denial := access.Denial()
		assert.Equal(t, ErrCodePlanExpired, denial.Error)
		assert.False(t, denial.OK)
		assert.Equal(t, "active", denial.Status)
	})
}

func TestAccess_SetHeaders(t *testing.T) {
	days := 3
	got := map[string]string{}
	Access{Status: "trialing", DaysLeft: &days}.SetHeaders(func(k, v string) { got[k] = v })
	assert.Equal(t, map[string]string{HeaderPlanStatus: "trialing", HeaderTrialDaysLeft: "3"}, got)

	got = map[string]string{}
	Access{Status: "active"}.SetHeaders(func(k, v string) { got[k] = v })
	assert.Equal(t, map[string]string{HeaderPlanStatus: "active"}, got)
}
