// Package events defines cross-service event payloads emitted by the engine.
package events

import "time"

// Event types routed through the transactional outbox.
const (
	TypeTierAdvanced = "reward.tier_advanced"
	TypeGoalAchieved = "reward.goal_achieved"
	TypeDaySealed    = "ledger.day_sealed"
	TypeDayRedeemed  = "ledger.day_redeemed"
)

// TierAdvanced is emitted when a user clears a phase tier.
type TierAdvanced struct {
	TenantID     string    `json:"tenant_id"`
	UserID       string    `json:"user_id"`
	FromTier     int       `json:"from_tier"`
	ToTier       int       `json:"to_tier"`
	PaisaPerUnit int       `json:"paisa_per_unit"`
	OccurredAt   time.Time `json:"occurred_at"`
}

// GoalAchieved is emitted the first time a day's capped steps reach the
// daily cap.
type GoalAchieved struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	CappedSteps int       `json:"capped_steps"`
	OccurredAt  time.Time `json:"occurred_at"`
}

// DaySealed is emitted when rollover closes a ledger day.
type DaySealed struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	RawSteps    int       `json:"raw_steps"`
	CappedSteps int       `json:"capped_steps"`
	UnitsEarned int       `json:"units_earned"`
	PaisaEarned int       `json:"paisa_earned"`
	SealedAt    time.Time `json:"sealed_at"`
}

// DayRedeemed is emitted when a day's coins are credited to the wallet.
type DayRedeemed struct {
	TenantID    string    `json:"tenant_id"`
	UserID      string    `json:"user_id"`
	Date        string    `json:"date"`
	PaisaEarned int       `json:"paisa_earned"`
	RedeemedAt  time.Time `json:"redeemed_at"`
}
