package domain

import (
	"fmt"
	"time"
)

// TerminalTier is the last tier; it has no step requirement gating and all
// further steps accrue at its rate indefinitely.
const TerminalTier = 9

// PhaseDefinition is static configuration for one progression tier.
type PhaseDefinition struct {
	Tier            int
	PaisaPerUnit    int
	StepRequirement int
	TimeLimitDays   int // 0 means no time limit
}

// PhaseTable is the ordered, validated list of tier definitions. Immutable
// after construction.
type PhaseTable struct {
	defs []PhaseDefinition
}

// NewPhaseTable validates and wraps tier definitions: tiers must be numbered
// 1..TerminalTier in order, step requirements strictly increasing, and reward
// rates non-decreasing.
func NewPhaseTable(defs []PhaseDefinition) (PhaseTable, error) {
	if len(defs) != TerminalTier {
		return PhaseTable{}, fmt.Errorf("phase table must define %d tiers, got %d", TerminalTier, len(defs))
	}
	for i, def := range defs {
		if def.Tier != i+1 {
			return PhaseTable{}, fmt.Errorf("tier at position %d is numbered %d", i, def.Tier)
		}
		if def.PaisaPerUnit <= 0 {
			return PhaseTable{}, fmt.Errorf("tier %d has non-positive paisa rate", def.Tier)
		}
		if def.StepRequirement <= 0 {
			return PhaseTable{}, fmt.Errorf("tier %d has non-positive step requirement", def.Tier)
		}
		if i > 0 {
			if def.StepRequirement <= defs[i-1].StepRequirement {
				return PhaseTable{}, fmt.Errorf("tier %d step requirement must exceed tier %d", def.Tier, defs[i-1].Tier)
			}
			if def.PaisaPerUnit < defs[i-1].PaisaPerUnit {
				return PhaseTable{}, fmt.Errorf("tier %d paisa rate regresses below tier %d", def.Tier, defs[i-1].Tier)
			}
		}
	}
	out := make([]PhaseDefinition, len(defs))
	copy(out, defs)
	return PhaseTable{defs: out}, nil
}

// DefaultPhaseTable returns the production nine-tier progression.
func DefaultPhaseTable() PhaseTable {
	table, err := NewPhaseTable([]PhaseDefinition{
		{Tier: 1, StepRequirement: 200000, PaisaPerUnit: 1, TimeLimitDays: 30},
		{Tier: 2, StepRequirement: 300000, PaisaPerUnit: 1, TimeLimitDays: 30},
		{Tier: 3, StepRequirement: 450000, PaisaPerUnit: 2, TimeLimitDays: 45},
		{Tier: 4, StepRequirement: 600000, PaisaPerUnit: 2, TimeLimitDays: 45},
		{Tier: 5, StepRequirement: 800000, PaisaPerUnit: 3, TimeLimitDays: 60},
		{Tier: 6, StepRequirement: 1000000, PaisaPerUnit: 3, TimeLimitDays: 60},
		{Tier: 7, StepRequirement: 1250000, PaisaPerUnit: 4, TimeLimitDays: 75},
		{Tier: 8, StepRequirement: 1500000, PaisaPerUnit: 5, TimeLimitDays: 90},
		{Tier: 9, StepRequirement: 2000000, PaisaPerUnit: 6, TimeLimitDays: 0},
	})
	if err != nil {
		panic(err)
	}
	return table
}

// Definition returns the definition for a tier, clamping out-of-range tiers
// to the nearest valid one.
func (t PhaseTable) Definition(tier int) PhaseDefinition {
	if tier < 1 {
		tier = 1
	}
	if tier > TerminalTier {
		tier = TerminalTier
	}
	return t.defs[tier-1]
}

// UserPhaseState is the per-user progression record. Its fields mutate but
// the entity itself survives every transition.
type UserPhaseState struct {
	TenantID             string
	UserID               string
	CurrentTier          int
	PhaseStartDate       time.Time
	CumulativePhaseSteps int
	TotalLifetimeSteps   int64
	CurrentStreakDays    int
	LongestStreakDays    int
	UpdatedAt            time.Time
}

// NewUserPhaseState initialises a first-time user at tier 1.
func NewUserPhaseState(tenantID, userID string, now time.Time) *UserPhaseState {
	return &UserPhaseState{
		TenantID:       tenantID,
		UserID:         userID,
		CurrentTier:    1,
		PhaseStartDate: now.UTC(),
		UpdatedAt:      now.UTC(),
	}
}

// TierAdvance describes a completed tier transition.
type TierAdvance struct {
	FromTier int
	ToTier   int
}

// CreditSteps adds validated steps to the phase accumulator and lifetime
// total, then attempts a tier advance. The tier never regresses: an expired
// time limit simply leaves the user accumulating in the current tier.
func (t PhaseTable) CreditSteps(state *UserPhaseState, steps int, now time.Time) (*TierAdvance, error) {
	if steps < 0 {
		return nil, fmt.Errorf("cannot credit negative steps: %d", steps)
	}
	state.CumulativePhaseSteps += steps
	state.TotalLifetimeSteps += int64(steps)
	state.UpdatedAt = now.UTC()

	if state.CurrentTier >= TerminalTier {
		return nil, nil
	}

	def := t.Definition(state.CurrentTier)
	if state.CumulativePhaseSteps < def.StepRequirement {
		return nil, nil
	}
	if def.TimeLimitDays > 0 {
		elapsed := int(now.UTC().Sub(state.PhaseStartDate.UTC()).Hours() / 24)
		if elapsed > def.TimeLimitDays {
			// Requirement met late: no advance, no penalty. The time limit
			// is advisory; the user keeps accumulating in this tier.
			return nil, nil
		}
	}

	advance := &TierAdvance{FromTier: state.CurrentTier, ToTier: state.CurrentTier + 1}
	state.CurrentTier++
	state.CumulativePhaseSteps = 0
	state.PhaseStartDate = now.UTC()
	return advance, nil
}

// RecordDayOutcome updates streak counters when a day is sealed. A day that
// earned at least one unit extends the streak.
func (s *UserPhaseState) RecordDayOutcome(earnedUnits bool, now time.Time) {
	if earnedUnits {
		s.CurrentStreakDays++
		if s.CurrentStreakDays > s.LongestStreakDays {
			s.LongestStreakDays = s.CurrentStreakDays
		}
	} else {
		s.CurrentStreakDays = 0
	}
	s.UpdatedAt = now.UTC()
}
