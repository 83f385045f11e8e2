package accounts

import (
	"context"
	"errors"
	"strconv"
	"time"
)

// Response headers set by access guards.
const (
	HeaderPlanStatus    = "X-Plan-Status"
	HeaderTrialDaysLeft = "X-Trial-Days-Left"
)

// ErrCodePlanExpired is the error code of a denied access check.
const ErrCodePlanExpired = "plan_expired"

// LookupFunc resolves a record by identifier. Manager.Lookup and the relay
// client's GetAccount both satisfy it.
type LookupFunc func(ctx context.Context, id Identifier) (*Record, error)

// CheckAccess looks up id and evaluates the result at now.
// A missing record evaluates as unknown and is allowed.
func CheckAccess(ctx context.Context, lookup LookupFunc, id Identifier, now time.Time) (Access, error) {
	rec, err := lookup(ctx, id)
	if errors.Is(err, ErrRecordNotFound) {
		return Evaluate(nil, now), nil
	}
	if err != nil {
		return Access{}, err
	}
	return Evaluate(rec, now), nil
}

// SetHeaders writes the plan headers through set.
func (a Access) SetHeaders(set func(key, value string)) {
	set(HeaderPlanStatus, a.Status)
	if a.DaysLeft != nil {
		set(HeaderTrialDaysLeft, strconv.Itoa(*a.DaysLeft))
	}
}

// Denial is the body of a 402 response.
type Denial struct {
	OK       bool       `json:"ok"`
	Error    string     `json:"error"`
	Status   string     `json:"status"`
	TrialEnd *Timestamp `json:"trial_end"`
	PlanEnd  *Timestamp `json:"plan_end"`
}

// Denial renders a denied access check.
func (a Access) Denial() Denial {
	return Denial{
		Error:    ErrCodePlanExpired,
		Status:   a.Status,
		TrialEnd: a.TrialEnd,
		PlanEnd:  a.PlanEnd,
	}
}
