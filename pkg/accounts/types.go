package accounts

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// TimestampLayout is the wire format for every persisted instant:
// whole seconds, UTC, trailing Z.
const TimestampLayout = "2006-01-02T15:04:05Z"

const (
	emailKeyPrefix     = "account:"
	accountIDKeyPrefix = "account_id:"

	// DefaultLastEvent is stored when a delivery carries no event name
	DefaultLastEvent = "unknown"
)

// PlanStatus is the closed set of statuses an account record can carry.
// The zero value is PlanStatusUnknown and is persisted as JSON null.
type PlanStatus int

const (
	PlanStatusUnknown PlanStatus = iota
	PlanStatusActive
	PlanStatusTrialing
)

// String returns the wire name of the status ("" for unknown)
func (s PlanStatus) String() string {
	switch s {
	case PlanStatusActive:
		return "active"
	case PlanStatusTrialing:
		return "trialing"
	default:
		return ""
	}
}

// ParsePlanStatus maps a stored status string back to the enum.
// Anything other than "active" or "trialing" is PlanStatusUnknown.
func ParsePlanStatus(raw string) PlanStatus {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "active":
		return PlanStatusActive
	case "trialing":
		return PlanStatusTrialing
	default:
		return PlanStatusUnknown
	}
}

func (s PlanStatus) MarshalJSON() ([]byte, error) {
	if s == PlanStatusUnknown {
		return []byte("null"), nil
	}
	return json.Marshal(s.String())
}

func (s *PlanStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = PlanStatusUnknown
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("plan_status: %w", err)
	}
	*s = ParsePlanStatus(raw)
	return nil
}

// Timestamp is an instant normalized to whole seconds in UTC.
type Timestamp struct {
	time.Time
}

// NewTimestamp normalizes t to UTC whole seconds.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC().Truncate(time.Second)}
}

// TimestampPtr is NewTimestamp returning a pointer, for nullable fields.
func TimestampPtr(t time.Time) *Timestamp {
	ts := NewTimestamp(t)
	return &ts
}

func (t Timestamp) String() string {
	return t.UTC().Format(TimestampLayout)
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *Timestamp) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	parsed, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	*t = NewTimestamp(parsed)
	return nil
}

// Record is the canonical projection of a customer's billing state.
// A Record is built once per webhook delivery and replaces any previous
// record stored under the same key.
type Record struct {
	AccountID            *string    `json:"account_id"`
	Email                *string    `json:"email"`
	PlanStatus           PlanStatus `json:"plan_status"`
	TrialEnd             *Timestamp `json:"trial_end"`
	PlanEnd              *Timestamp `json:"plan_end"`
	PaddleCustomerID     *string    `json:"paddle_customer_id"`
	PaddleSubscriptionID *string    `json:"paddle_subscription_id"`
	LastEvent            string     `json:"last_event"`
	UpdatedAt            Timestamp  `json:"updated_at"`
}

// Clone returns a deep copy so stores can hand out records safely.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := *r
	out.AccountID = cloneString(r.AccountID)
	out.Email = cloneString(r.Email)
	out.PaddleCustomerID = cloneString(r.PaddleCustomerID)
	out.PaddleSubscriptionID = cloneString(r.PaddleSubscriptionID)
	if r.TrialEnd != nil {
		ts := *r.TrialEnd
		out.TrialEnd = &ts
	}
	if r.PlanEnd != nil {
		ts := *r.PlanEnd
		out.PlanEnd = &ts
	}
	return &out
}

// Keys returns the store keys this record is written under, email first.
func (r *Record) Keys() []string {
	keys := make([]string, 0, 2)
	if r.Email != nil && *r.Email != "" {
		keys = append(keys, EmailKey(*r.Email))
	}
	if r.AccountID != nil && *r.AccountID != "" {
		keys = append(keys, AccountIDKey(*r.AccountID))
	}
	return keys
}

// CustomerID returns the linked Paddle customer id or "".
func (r *Record) CustomerID() string {
	if r == nil || r.PaddleCustomerID == nil {
		return ""
	}
	return strings.TrimSpace(*r.PaddleCustomerID)
}

// StatusUpdate is the status part of a record derived from one event.
type StatusUpdate struct {
	PlanStatus PlanStatus
	TrialEnd   *Timestamp
	PlanEnd    *Timestamp
}

// Identifier selects a record by email or by account id.
type Identifier struct {
	Email     string
	AccountID string
}

// NewIdentifier trims both values and lower-cases the email.
func NewIdentifier(email, accountID string) Identifier {
	return Identifier{
		Email:     strings.ToLower(strings.TrimSpace(email)),
		AccountID: strings.TrimSpace(accountID),
	}
}

// IsZero reports whether neither identifier is set.
func (id Identifier) IsZero() bool {
	return id.Email == "" && id.AccountID == ""
}

// Key returns the lookup key; email wins when both are present.
func (id Identifier) Key() string {
	if id.Email != "" {
		return EmailKey(id.Email)
	}
	if id.AccountID != "" {
		return AccountIDKey(id.AccountID)
	}
	return ""
}

// EmailKey is the store key for an email-addressed record.
func EmailKey(email string) string {
	return emailKeyPrefix + strings.ToLower(email)
}

// AccountIDKey is the store key for an account-id-addressed record.
func AccountIDKey(accountID string) string {
	return accountIDKeyPrefix + accountID
}

// StringPtr returns nil for "" and a pointer to s otherwise.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
