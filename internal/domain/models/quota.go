package models

// PlanID identifies a subscription plan.
type PlanID string

const (
	PlanFree    PlanID = "free"
	PlanPro     PlanID = "pro"
	PlanPremium PlanID = "premium"
)

// Unlimited is the MonthlyLimit sentinel for plans that bypass metering.
const Unlimited = -1

// Plan maps a plan to its monthly AI analysis allowance.
type Plan struct {
	ID           PlanID `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	MonthlyLimit int    `json:"monthly_limit" yaml:"monthly_limit"`
}

// IsUnlimited reports whether the plan bypasses the usage counter.
func (p Plan) IsUnlimited() bool {
	return p.MonthlyLimit < 0
}

// DefaultPlans is the built-in plan catalog.
func DefaultPlans() map[PlanID]Plan {
	return map[PlanID]Plan{
		PlanFree:    {ID: PlanFree, Name: "Free", MonthlyLimit: 5},
		PlanPro:     {ID: PlanPro, Name: "Pro", MonthlyLimit: 100},
		PlanPremium: {ID: PlanPremium, Name: "Premium", MonthlyLimit: Unlimited},
	}
}

// UsageQuota is the persisted metering state of one user.
type UsageQuota struct {
	UserID          string `json:"user_id"`
	Count           int    `json:"count"`
	LastResetMillis int64  `json:"last_reset_millis"`
	Plan            PlanID `json:"plan"`
}
