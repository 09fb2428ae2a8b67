package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestNewPhaseTableValidation(t *testing.T) {
	defs := []PhaseDefinition{
		{Tier: 1, StepRequirement: 100, PaisaPerUnit: 1, TimeLimitDays: 10},
		{Tier: 2, StepRequirement: 200, PaisaPerUnit: 1, TimeLimitDays: 10},
		{Tier: 3, StepRequirement: 300, PaisaPerUnit: 2, TimeLimitDays: 10},
		{Tier: 4, StepRequirement: 400, PaisaPerUnit: 2, TimeLimitDays: 10},
		{Tier: 5, StepRequirement: 500, PaisaPerUnit: 3, TimeLimitDays: 10},
		{Tier: 6, StepRequirement: 600, PaisaPerUnit: 3, TimeLimitDays: 10},
		{Tier: 7, StepRequirement: 700, PaisaPerUnit: 4, TimeLimitDays: 10},
		{Tier: 8, StepRequirement: 800, PaisaPerUnit: 5, TimeLimitDays: 10},
		{Tier: 9, StepRequirement: 900, PaisaPerUnit: 6, TimeLimitDays: 0},
	}

	_, err := NewPhaseTable(defs)
	require.NoError(t, err)

	short := defs[:8]
	_, err = NewPhaseTable(short)
	require.Error(t, err)

	regressing := make([]PhaseDefinition, len(defs))
	copy(regressing, defs)
	regressing[4].PaisaPerUnit = 1
	_, err = NewPhaseTable(regressing)
	require.Error(t, err)

	nonIncreasing := make([]PhaseDefinition, len(defs))
	copy(nonIncreasing, defs)
	nonIncreasing[3].StepRequirement = 300
	_, err = NewPhaseTable(nonIncreasing)
	require.Error(t, err)
}

func TestDefinitionClampsTier(t *testing.T) {
	table := DefaultPhaseTable()
	require.Equal(t, 1, table.Definition(0).Tier)
	require.Equal(t, TerminalTier, table.Definition(42).Tier)
}

func TestCreditStepsAdvancesWithinTimeLimit(t *testing.T) {
	table := DefaultPhaseTable()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	state := NewUserPhaseState("t1", "u1", start)

	now := start.AddDate(0, 0, 10)
	advance, err := table.CreditSteps(state, 200000, now)
	require.NoError(t, err)
	require.NotNil(t, advance)
	require.Equal(t, 1, advance.FromTier)
	require.Equal(t, 2, advance.ToTier)
	require.Equal(t, 2, state.CurrentTier)
	require.Equal(t, 0, state.CumulativePhaseSteps)
	require.Equal(t, now, state.PhaseStartDate)
	require.Equal(t, int64(200000), state.TotalLifetimeSteps)
}

func TestCreditStepsNoAdvanceBelowRequirement(t *testing.T) {
	table := DefaultPhaseTable()
	start := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	state := NewUserPhaseState("t1", "u1", start)

	advance, err := table.CreditSteps(state, 199999, start.AddDate(0, 0, 5))
	require.NoError(t, err)
	require.Nil(t, advance)
	require.Equal(t, 1, state.CurrentTier)
	require.Equal(t, 199999, state.CumulativePhaseSteps)
}

func TestCreditStepsExpiredTimeLimitNeverAdvances(t *testing.T) {
	table := DefaultPhaseTable()
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	state := NewUserPhaseState("t1", "u1", start)

	// Requirement met 40 days in, past tier 1's 30-day limit: no advance,
	// no regression, steps keep accumulating.
	now := start.AddDate(0, 0, 40)
	advance, err := table.CreditSteps(state, 250000, now)
	require.NoError(t, err)
	require.Nil(t, advance)
	require.Equal(t, 1, state.CurrentTier)
	require.Equal(t, 250000, state.CumulativePhaseSteps)

	advance, err = table.CreditSteps(state, 100000, now.AddDate(0, 0, 10))
	require.NoError(t, err)
	require.Nil(t, advance)
	require.Equal(t, 1, state.CurrentTier)
}

func TestCreditStepsTerminalTierAccumulatesForever(t *testing.T) {
	table := DefaultPhaseTable()
	now := time.Now().UTC()
	state := NewUserPhaseState("t1", "u1", now)
	state.CurrentTier = TerminalTier

	advance, err := table.CreditSteps(state, 5000000, now)
	require.NoError(t, err)
	require.Nil(t, advance)
	require.Equal(t, TerminalTier, state.CurrentTier)
	require.Equal(t, 5000000, state.CumulativePhaseSteps)
}

func TestCreditStepsRejectsNegative(t *testing.T) {
	table := DefaultPhaseTable()
	state := NewUserPhaseState("t1", "u1", time.Now().UTC())
	_, err := table.CreditSteps(state, -1, time.Now().UTC())
	require.Error(t, err)
}

func TestRecordDayOutcomeStreaks(t *testing.T) {
	now := time.Now().UTC()
	state := NewUserPhaseState("t1", "u1", now)

	state.RecordDayOutcome(true, now)
	state.RecordDayOutcome(true, now)
	state.RecordDayOutcome(true, now)
	require.Equal(t, 3, state.CurrentStreakDays)
	require.Equal(t, 3, state.LongestStreakDays)

	state.RecordDayOutcome(false, now)
	require.Equal(t, 0, state.CurrentStreakDays)
	require.Equal(t, 3, state.LongestStreakDays)

	state.RecordDayOutcome(true, now)
	require.Equal(t, 1, state.CurrentStreakDays)
	require.Equal(t, 3, state.LongestStreakDays)
}
