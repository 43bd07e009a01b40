package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// RateUsage is a snapshot of the current hour/day counters for an account,
// evaluated against the caps in effect.
type RateUsage struct {
	HourlyCount        int64 `json:"hourly_count"`
	DailyCount         int64 `json:"daily_count"`
	HourlyRemaining    int64 `json:"hourly_remaining"`
	DailyRemaining     int64 `json:"daily_remaining"`
	HourlyLimitReached bool  `json:"hourly_limit_reached"`
	DailyLimitReached  bool  `json:"daily_limit_reached"`
}

// RateTracker persists per-hour and per-day send counters per account.
// Increments must be atomic adds at the storage layer; buckets are created
// lazily and never decremented except by ResetHourly.
type RateTracker interface {
	CheckLimits(ctx context.Context, accountID uuid.UUID, hourlyCap, dailyCap int) (*RateUsage, error)
	Increment(ctx context.Context, accountID uuid.UUID) error
	ResetHourly(ctx context.Context, accountID uuid.UUID) error
}

// DispatchLog is an append-only audit record of one dispatch attempt.
type DispatchLog struct {
	ID         uuid.UUID `json:"id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	ItemID     uuid.UUID `json:"item_id"`
	Phone      string    `json:"phone"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// SubjectDispatchReports is the broker subject delivery reports are
// published on for downstream consumers.
const SubjectDispatchReports = "dispatch.reports"

// DispatchReport is the event published per attempt outcome.
type DispatchReport struct {
	ItemID     uuid.UUID `json:"item_id"`
	CampaignID uuid.UUID `json:"campaign_id"`
	AccountID  uuid.UUID `json:"account_id"`
	Phone      string    `json:"phone"`
	Outcome    string    `json:"outcome"`
	Detail     string    `json:"detail,omitempty"`
	OccurredAt time.Time `json:"occurred_at"`
}
