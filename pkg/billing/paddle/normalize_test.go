package paddle

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

var fixedNow = time.Date(2025, 1, 10, 8, 30, 15, 987_000_000, time.UTC)

func mustPayload(t *testing.T, raw string) map[string]any {
	t.Helper()
	payload, err := decodePayload([]byte(raw))
	require.NoError(t, err)
	return payload
}

func tsString(ts *accounts.Timestamp) string {
	if ts == nil {
		return ""
	}
	return ts.String()
}

func TestNormalize_StatusTable(t *testing.T) {
	tests := []struct {
		name     string
		payload  string
		status   accounts.PlanStatus
		trialEnd string
		planEnd  string
	}{
		{
			name:    "active uses period end",
			payload: `{"data":{"status":"active","current_billing_period":{"ends_at":"2025-01-15T10:00:00Z"}}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-01-15T10:00:00Z",
		},
		{
			name:    "active falls back to next_billed_at",
			payload: `{"data":{"status":"ACTIVE","next_billed_at":"2025-03-01T00:00:00Z","trial_ends_at":"2025-02-01T00:00:00Z"}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-03-01T00:00:00Z",
		},
		{
			name:    "active without dates",
			payload: `{"data":{"status":"active"}}`,
			status:  accounts.PlanStatusActive,
		},
		{
			name:     "trialing truncates fractional seconds",
			payload:  `{"data":{"status":"trialing","trial_ends_at":"2025-02-01T00:00:00.500Z","current_billing_period":{"ends_at":"2025-03-01T00:00:00Z"}}}`,
			status:   accounts.PlanStatusTrialing,
			trialEnd: "2025-02-01T00:00:00Z",
		},
		{
			name:     "trialing via subscription_status and trial_end",
			payload:  `{"data":{"subscription_status":"trialing","trial_end":"2025-02-03T04:05:06+02:00"}}`,
			status:   accounts.PlanStatusTrialing,
			trialEnd: "2025-02-03T02:05:06Z",
		},
		{
			name:    "past_due without period end uses now",
			payload: `{"data":{"status":"past_due"}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-01-10T08:30:15Z",
		},
		{
			name:    "canceled keeps period end",
			payload: `{"data":{"status":"canceled","current_billing_period":{"ends_at":"2025-01-31T00:00:00Z"}}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-01-31T00:00:00Z",
		},
		{
			name:    "paused uses now",
			payload: `{"data":{"status":"paused"}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-01-10T08:30:15Z",
		},
		{
			name:    "unpaid uses now",
			payload: `{"data":{"status":"unpaid","current_billing_period":{"ends_at":"not a date"}}}`,
			status:  accounts.PlanStatusActive,
			planEnd: "2025-01-10T08:30:15Z",
		},
		{
			name:    "unknown status and event",
			payload: `{"event_type":"customer.updated","data":{"status":"inactive","current_billing_period":{"ends_at":"2025-01-31T00:00:00Z"}}}`,
			status:  accounts.PlanStatusUnknown,
		},
		{
			name:    "empty payload",
			payload: `{}`,
			status:  accounts.PlanStatusUnknown,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Normalize(mustPayload(t, tt.payload), fixedNow)
			assert.Equal(t, tt.status, got.PlanStatus)
			assert.Equal(t, tt.trialEnd, tsString(got.TrialEnd))
			assert.Equal(t, tt.planEnd, tsString(got.PlanEnd))
		})
	}
}

func TestNormalize_EventFallback(t *testing.T) {
	tests := []struct {
		event  string
		status accounts.PlanStatus
	}{
		{"subscription.activated", accounts.PlanStatusActive},
		{"subscription.updated", accounts.PlanStatusActive},
		{"transaction.completed", accounts.PlanStatusActive},
		{"subscription.trialing", accounts.PlanStatusTrialing},
		{"Subscription.Trialing", accounts.PlanStatusTrialing},
		{"legacy.subscription.updated.v2", accounts.PlanStatusActive},
		{"subscription.canceled", accounts.PlanStatusUnknown},
		{"", accounts.PlanStatusUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.event, func(t *testing.T) {
			raw, _ := json.Marshal(map[string]string{"event_type": tt.event})
			got := Normalize(mustPayload(t, string(raw)), fixedNow)
			assert.Equal(t, tt.status, got.PlanStatus)
			assert.Nil(t, got.TrialEnd)
			assert.Nil(t, got.PlanEnd)
		})
	}
}

func TestNormalize_AlertNameFallback(t *testing.T) {
	got := Normalize(mustPayload(t, `{"alert_name":"subscription.trialing"}`), fixedNow)
	assert.Equal(t, accounts.PlanStatusTrialing, got.PlanStatus)
}

func TestNormalize_StatusWinsOverEvent(t *testing.T) {
	got := Normalize(mustPayload(t, `{"event_type":"subscription.trialing","data":{"status":"active"}}`), fixedNow)
	assert.Equal(t, accounts.PlanStatusActive, got.PlanStatus)
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"rfc3339", "2025-01-15T10:00:00Z", "2025-01-15T10:00:00Z"},
		{"fractional", "2025-01-15T10:00:00.999999Z", "2025-01-15T10:00:00Z"},
		{"offset", "2025-01-15T12:00:00+02:00", "2025-01-15T10:00:00Z"},
		{"no zone", "2025-01-15T10:00:00", "2025-01-15T10:00:00Z"},
		{"space separated", "2025-01-15 10:00:00", "2025-01-15T10:00:00Z"},
		{"date only", "2025-01-15", "2025-01-15T00:00:00Z"},
		{"rfc1123", "Wed, 15 Jan 2025 10:00:00 GMT", "2025-01-15T10:00:00Z"},
		{"epoch millis", json.Number("1736935200500"), "2025-01-15T10:00:00Z"},
		{"epoch millis float", float64(1736935200000), "2025-01-15T10:00:00Z"},
		{"epoch millis year 9999", json.Number("253402300799000"), "9999-12-31T23:59:59Z"},
		{"epoch millis past year 9999", json.Number("300000000000000"), ""},
		{"epoch millis negative year", float64(-8.64e15), ""},
		{"epoch millis beyond range", float64(1e20), ""},
		{"epoch millis below range", float64(-1e20), ""},
		{"garbage", "soon", ""},
		{"empty", "", ""},
		{"nil", nil, ""},
		{"object", map[string]any{}, ""},
		{"bool", true, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tsString(ParseTimestamp(tt.in)))
		})
	}
}

func TestBuildRecord_OutOfRangeTimestampsRoundTrip(t *testing.T) {
	payload := mustPayload(t, `{
		"event_type": "subscription.activated",
		"data": {
			"status": "past_due",
			"custom_data": {"email": "far@example.com"},
			"current_billing_period": {"ends_at": 300000000000000}
		}
	}`)

	rec := BuildRecord(payload, fixedNow)
	assert.Equal(t, "2025-01-10T08:30:15Z", tsString(rec.PlanEnd))

	data, err := json.Marshal(rec)
	require.NoError(t, err)
	var back accounts.Record
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, rec.PlanEnd.String(), back.PlanEnd.String())
}

func TestBuildRecord_FullPayload(t *testing.T) {
	payload := mustPayload(t, `{
		"event_type": "subscription.activated",
		"data": {
			"id": "sub_01",
			"status": "active",
			"customer_id": "ctm_01",
			"custom_data": {"account_id": " acct_42 ", "email": "Jane@Example.com"},
			"current_billing_period": {"ends_at": "2025-01-15T10:00:00Z"}
		}
	}`)

	rec := BuildRecord(payload, fixedNow)
	require.NotNil(t, rec.AccountID)
	assert.Equal(t, "acct_42", *rec.AccountID)
	require.NotNil(t, rec.Email)
	assert.Equal(t, "jane@example.com", *rec.Email)
	assert.Equal(t, accounts.PlanStatusActive, rec.PlanStatus)
	assert.Equal(t, "2025-01-15T10:00:00Z", tsString(rec.PlanEnd))
	assert.Nil(t, rec.TrialEnd)
	assert.Equal(t, "ctm_01", *rec.PaddleCustomerID)
	assert.Equal(t, "sub_01", *rec.PaddleSubscriptionID)
	assert.Equal(t, "subscription.activated", rec.LastEvent)
	assert.Equal(t, "2025-01-10T08:30:15Z", rec.UpdatedAt.String())
	assert.Equal(t, []string{"account:jane@example.com", "account_id:acct_42"}, rec.Keys())
}

func TestBuildRecord_Fallbacks(t *testing.T) {
	payload := mustPayload(t, `{
		"alert_name": "transaction.completed",
		"data": {
			"subscription_id": "sub_02",
			"customer": {"id": "ctm_02", "email": "  Buyer@Example.com "},
			"custom_data": {"email": "   "}
		}
	}`)

	rec := BuildRecord(payload, fixedNow)
	assert.Nil(t, rec.AccountID)
	assert.Equal(t, "buyer@example.com", *rec.Email)
	assert.Equal(t, "ctm_02", *rec.PaddleCustomerID)
	assert.Equal(t, "sub_02", *rec.PaddleSubscriptionID)
	assert.Equal(t, "transaction.completed", rec.LastEvent)
	assert.Equal(t, accounts.PlanStatusActive, rec.PlanStatus)
}

func TestBuildRecord_CustomerEmailAndNumericIDs(t *testing.T) {
	payload := mustPayload(t, `{"data":{"customer_email":"x@y.z","custom_data":{"account_id":12345678901234567890}}}`)

	rec := BuildRecord(payload, fixedNow)
	assert.Equal(t, "x@y.z", *rec.Email)
	assert.Equal(t, "12345678901234567890", *rec.AccountID)
	assert.Equal(t, accounts.DefaultLastEvent, rec.LastEvent)
	assert.Equal(t, accounts.PlanStatusUnknown, rec.PlanStatus)
}

func TestBuildRecord_NonScalarIdentifiersIgnored(t *testing.T) {
	payload := mustPayload(t, `{"data":{"custom_data":{"account_id":{"nested":true},"email":["a@b.c"]}}}`)

	rec := BuildRecord(payload, fixedNow)
	assert.Nil(t, rec.AccountID)
	assert.Nil(t, rec.Email)
	assert.Empty(t, rec.Keys())
}

func TestStatusRulesAreExhaustive(t *testing.T) {
	want := []string{"active", "trialing", "canceled", "paused", "past_due", "unpaid"}
	assert.Len(t, statusRules, len(want))
	for _, s := range want {
		_, ok := statusRules[s]
		assert.True(t, ok, "missing rule for %s", s)
	}
	for s, rule := range statusRules {
		assert.NotEqual(t, accounts.PlanStatusUnknown, rule.status, s)
		assert.Equal(t, strings.ToLower(s), s)
	}
}
