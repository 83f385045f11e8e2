package accounts

import (
	"math"
	"time"
)

// StatusUnknown is the access status reported when no record exists.
const StatusUnknown = "unknown"

// Access is the result of evaluating a record against the clock.
type Access struct {
	Allowed  bool
	Status   string
	TrialEnd *Timestamp
	PlanEnd  *Timestamp
	// DaysLeft is the whole days remaining in the trial, set only while trialing
	DaysLeft *int
}

// Evaluate decides whether the account behind rec may use the product at now.
// Accounts without a record are allowed; a record without a status is treated
// as trialing.
func Evaluate(rec *Record, now time.Time) Access {
	if rec == nil {
		return Access{Allowed: true, Status: StatusUnknown}
	}

	status := rec.PlanStatus
	if status == PlanStatusUnknown {
		status = PlanStatusTrialing
	}

	planAllowed := rec.PlanEnd != nil && !rec.PlanEnd.Before(now)
	trialAllowed := status == PlanStatusTrialing &&
		(rec.TrialEnd == nil || !rec.TrialEnd.Before(now))

	access := Access{
		Allowed:  planAllowed || trialAllowed,
		Status:   status.String(),
		TrialEnd: rec.TrialEnd,
		PlanEnd:  rec.PlanEnd,
	}
	if planAllowed {
		access.Status = PlanStatusActive.String()
	}

	if status == PlanStatusTrialing && rec.TrialEnd != nil {
		days := int(math.Floor(rec.TrialEnd.Sub(now).Hours() / 24))
		if days < 0 {
			days = 0
		}
		access.DaysLeft = &days
	}
	return access
}
