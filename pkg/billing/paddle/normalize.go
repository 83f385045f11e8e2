package paddle

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mihaimyh/paddlerelay/pkg/accounts"
)

// statusRule maps a Paddle subscription status to a stored plan status.
// When planEndOrNow is set the plan end falls back to the delivery time.
type statusRule struct {
	status       accounts.PlanStatus
	keepTrialEnd bool
	keepPlanEnd  bool
	planEndOrNow bool
}

// statusRules is the complete mapping from Paddle status to record status.
// Lapsing statuses keep the account active until the current period ends.
var statusRules = map[string]statusRule{
	"active":   {status: accounts.PlanStatusActive, keepPlanEnd: true},
	"trialing": {status: accounts.PlanStatusTrialing, keepTrialEnd: true},
	"canceled": {status: accounts.PlanStatusActive, keepPlanEnd: true, planEndOrNow: true},
	"paused":   {status: accounts.PlanStatusActive, keepPlanEnd: true, planEndOrNow: true},
	"past_due": {status: accounts.PlanStatusActive, keepPlanEnd: true, planEndOrNow: true},
	"unpaid":   {status: accounts.PlanStatusActive, keepPlanEnd: true, planEndOrNow: true},
}

// eventRules is consulted in order when the status table yields nothing.
// Matching is by substring of the lower-cased event name.
var eventRules = []struct {
	fragment string
	status   accounts.PlanStatus
}{
	{"subscription.activated", accounts.PlanStatusActive},
	{"subscription.updated", accounts.PlanStatusActive},
	{"transaction.completed", accounts.PlanStatusActive},
	{"subscription.trialing", accounts.PlanStatusTrialing},
}

// timestampLayouts are tried in order for string timestamps.
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	time.RFC1123Z,
	time.RFC1123,
}

// Normalize derives the plan status and its dates from a webhook payload.
func Normalize(payload map[string]any, now time.Time) accounts.StatusUpdate {
	data := object(payload["data"])

	status := strings.ToLower(scalarString(firstTruthy(data["status"], data["subscription_status"])))
	planEnd := ParseTimestamp(firstTruthy(object(data["current_billing_period"])["ends_at"], data["next_billed_at"]))
	trialEnd := ParseTimestamp(firstTruthy(data["trial_ends_at"], data["trial_end"]))

	var update accounts.StatusUpdate
	if rule, ok := statusRules[status]; ok {
		update.PlanStatus = rule.status
		if rule.keepTrialEnd {
			update.TrialEnd = trialEnd
		}
		if rule.keepPlanEnd {
			update.PlanEnd = planEnd
		}
		if rule.planEndOrNow && update.PlanEnd == nil {
			update.PlanEnd = accounts.TimestampPtr(now)
		}
	}

	if update.PlanStatus == accounts.PlanStatusUnknown {
		update.PlanStatus = statusFromEvent(eventName(payload))
	}
	return update
}

func statusFromEvent(eventType string) accounts.PlanStatus {
	normalized := strings.ToLower(eventType)
	if normalized == "" {
		return accounts.PlanStatusUnknown
	}
	for _, rule := range eventRules {
		if strings.Contains(normalized, rule.fragment) {
			return rule.status
		}
	}
	return accounts.PlanStatusUnknown
}

// BuildRecord projects a webhook payload onto the account record stored for it.
func BuildRecord(payload map[string]any, now time.Time) *accounts.Record {
	data := object(payload["data"])
	custom := object(data["custom_data"])
	customer := object(data["customer"])

	email := firstString(custom["email"], customer["email"], data["customer_email"])
	if email != nil {
		lowered := strings.ToLower(*email)
		email = &lowered
	}

	lastEvent := eventName(payload)
	if lastEvent == "" {
		lastEvent = accounts.DefaultLastEvent
	}

	update := Normalize(payload, now)
	return &accounts.Record{
		AccountID:            toStringOrNil(custom["account_id"]),
		Email:                email,
		PlanStatus:           update.PlanStatus,
		TrialEnd:             update.TrialEnd,
		PlanEnd:              update.PlanEnd,
		PaddleCustomerID:     toStringOrNil(firstTruthy(data["customer_id"], customer["id"])),
		PaddleSubscriptionID: toStringOrNil(firstTruthy(data["id"], data["subscription_id"])),
		LastEvent:            lastEvent,
		UpdatedAt:            accounts.NewTimestamp(now),
	}
}

// ParseTimestamp converts a payload value into a whole-second UTC timestamp.
// Strings are tried against common ISO-8601 and RFC layouts; numbers are
// epoch milliseconds. Anything else yields nil.
func ParseTimestamp(v any) *accounts.Timestamp {
	switch val := v.(type) {
	case string:
		raw := strings.TrimSpace(val)
		if raw == "" {
			return nil
		}
		for _, layout := range timestampLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return storable(t)
			}
		}
		return nil
	case json.Number:
		ms, err := val.Float64()
		if err != nil {
			return nil
		}
		return fromMillis(ms)
	case float64:
		return fromMillis(val)
	case int64:
		return fromMillis(float64(val))
	case int:
		return fromMillis(float64(val))
	default:
		return nil
	}
}

// maxEpochMillis bounds epoch-millisecond inputs to ±100,000,000 days.
const maxEpochMillis = 8.64e15

func fromMillis(ms float64) *accounts.Timestamp {
	if math.IsNaN(ms) || math.IsInf(ms, 0) || ms == 0 || math.Abs(ms) > maxEpochMillis {
		return nil
	}
	return storable(time.UnixMilli(int64(ms)))
}

// storable rejects instants whose year does not fit the four-digit
// ISO-8601 form, since those could not be read back once stored.
func storable(t time.Time) *accounts.Timestamp {
	if y := t.UTC().Year(); y < 0 || y > 9999 {
		return nil
	}
	return accounts.TimestampPtr(t)
}

// eventName returns event_type, falling back to the classic alert_name.
func eventName(payload map[string]any) string {
	return scalarString(firstTruthy(payload["event_type"], payload["alert_name"]))
}

// toStringOrNil stringifies scalars, trims them, and maps empty to nil.
// Objects and arrays are not identifiers and map to nil.
func toStringOrNil(v any) *string {
	raw := strings.TrimSpace(scalarString(v))
	if raw == "" {
		return nil
	}
	return &raw
}

func firstString(values ...any) *string {
	for _, v := range values {
		if s := toStringOrNil(v); s != nil {
			return s
		}
	}
	return nil
}

func scalarString(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(val, 10)
	case int:
		return strconv.Itoa(val)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// firstTruthy returns the first value that is not nil, "", 0 or false.
func firstTruthy(values ...any) any {
	for _, v := range values {
		switch val := v.(type) {
		case nil:
			continue
		case string:
			if val == "" {
				continue
			}
		case bool:
			if !val {
				continue
			}
		case float64:
			if val == 0 {
				continue
			}
		case json.Number:
			if f, err := val.Float64(); err == nil && f == 0 {
				continue
			}
		}
		return v
	}
	return nil
}

func object(v any) map[string]any {
	if m, ok := v.(map[string]any); ok {
		return m
	}
	return map[string]any{}
}
