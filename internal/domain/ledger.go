package domain

import "time"

const (
	// DailyStepCap is the per-day ceiling beyond which steps earn no reward.
	DailyStepCap = 12000
	// StepsPerUnit is the atomic reward quantum: 25 capped steps = 1 unit.
	StepsPerUnit = 25
)

// DateLayout is the canonical calendar-day key format.
const DateLayout = "2006-01-02"

// RedeemStatus is the outcome of a redemption attempt.
type RedeemStatus string

const (
	RedeemSuccess         RedeemStatus = "success"
	RedeemAlreadyRedeemed RedeemStatus = "already_redeemed"
	RedeemNoCoins         RedeemStatus = "no_coins"
)

// DailyLedgerEntry tracks one user's reward accounting for one calendar day.
// Created lazily on the first sample of a day, finalised (never deleted) at
// rollover. Invariants: CappedSteps = min(RawSteps, DailyStepCap) always;
// IsRedeemed never reverts.
type DailyLedgerEntry struct {
	TenantID    string
	UserID      string
	Date        time.Time
	RawSteps    int
	CappedSteps int
	UnitsEarned int
	PaisaEarned int
	TierAtCalc  int
	IsRedeemed  bool
	RedeemedAt  *time.Time
	SealedAt    *time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Sealed reports whether rollover has closed this day.
func (e *DailyLedgerEntry) Sealed() bool {
	return e.SealedAt != nil
}

// DateKey returns the canonical day key for the entry.
func (e *DailyLedgerEntry) DateKey() string {
	return e.Date.Format(DateLayout)
}

// CapSteps applies the daily cap.
func CapSteps(raw int) int {
	if raw > DailyStepCap {
		return DailyStepCap
	}
	return raw
}

// UnitsFor converts capped steps into whole reward units.
func UnitsFor(cappedSteps int) int {
	return cappedSteps / StepsPerUnit
}

// ApplySteps accumulates additional raw steps and recomputes the derived
// reward fields. Recomputation is idempotent-total: CappedSteps, UnitsEarned
// and PaisaEarned are derived from the running RawSteps total at the tier
// rate active right now, so a mid-day tier transition re-rates the whole day
// going forward without any per-sample bookkeeping.
func (e *DailyLedgerEntry) ApplySteps(additional int, tier PhaseDefinition, now time.Time) {
	e.RawSteps += additional
	e.CappedSteps = CapSteps(e.RawSteps)
	e.UnitsEarned = UnitsFor(e.CappedSteps)
	e.PaisaEarned = e.UnitsEarned * tier.PaisaPerUnit
	e.TierAtCalc = tier.Tier
	e.UpdatedAt = now.UTC()
}

// Redeem marks the day's coins as redeemed. The transition is one-way: a
// second call reports already_redeemed and a zero-paisa day reports no_coins.
// Sealed days remain redeemable; unredeemed coins are never forfeited.
func (e *DailyLedgerEntry) Redeem(now time.Time) RedeemStatus {
	if e.IsRedeemed {
		return RedeemAlreadyRedeemed
	}
	if e.PaisaEarned == 0 {
		return RedeemNoCoins
	}
	ts := now.UTC()
	e.IsRedeemed = true
	e.RedeemedAt = &ts
	e.UpdatedAt = ts
	return RedeemSuccess
}

// Seal closes the day. Sealing is idempotent and does not imply redemption.
func (e *DailyLedgerEntry) Seal(now time.Time) bool {
	if e.Sealed() {
		return false
	}
	ts := now.UTC()
	e.SealedAt = &ts
	e.UpdatedAt = ts
	return true
}
