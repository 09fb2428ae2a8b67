package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func windowOf(t *testing.T, count, steps int, gap time.Duration) []StepSample {
	t.Helper()
	base := time.Date(2026, 8, 29, 9, 0, 0, 0, time.UTC)
	window := make([]StepSample, 0, count)
	for i := 0; i < count; i++ {
		window = append(window, StepSample{
			Steps:      steps,
			RecordedAt: base.Add(time.Duration(i) * gap),
		})
	}
	return window
}

func TestScoreWindowEmptyIsAllow(t *testing.T) {
	assessment := ScoreWindow(nil)
	require.Equal(t, 0, assessment.Score)
	require.Equal(t, FraudAllow, assessment.Action)
	require.Equal(t, "v1", assessment.Version)
}

func TestScoreWindowCleanSamples(t *testing.T) {
	assessment := ScoreWindow(windowOf(t, 10, 450, time.Minute))
	require.Equal(t, 0, assessment.Score)
	require.Equal(t, FraudAllow, assessment.Action)
	require.Empty(t, assessment.Reasons)
}

func TestScoreWindowHighMeanSteps(t *testing.T) {
	assessment := ScoreWindow(windowOf(t, 10, 2500, time.Minute))
	require.Equal(t, 30, assessment.Score)
	require.Equal(t, FraudAllow, assessment.Action)
	require.Len(t, assessment.Reasons, 1)
	require.Equal(t, ReasonHighStepFrequency, assessment.Reasons[0].Code)
	require.Equal(t, 2500.0, assessment.Reasons[0].Observed)
}

func TestScoreWindowSpeedViolations(t *testing.T) {
	window := windowOf(t, 10, 450, time.Minute)
	for i := 0; i < 4; i++ {
		window[i].HasSpeed = true
		window[i].SpeedKmh = 40
	}
	assessment := ScoreWindow(window)
	require.Equal(t, 40, assessment.Score)
	require.Equal(t, FraudAllow, assessment.Action)
}

func TestScoreWindowRoundNumbers(t *testing.T) {
	window := windowOf(t, 10, 450, time.Minute)
	window[0].Steps = 1000
	window[1].Steps = 2000
	window[2].Steps = 3000
	assessment := ScoreWindow(window)
	require.Equal(t, 20, assessment.Score)
}

func TestScoreWindowRapidEntries(t *testing.T) {
	window := windowOf(t, 10, 450, 500*time.Millisecond)
	assessment := ScoreWindow(window)
	require.Equal(t, 25, assessment.Score)
	require.Len(t, assessment.Reasons, 1)
	require.Equal(t, ReasonRapidEntryPattern, assessment.Reasons[0].Code)
}

func TestScoreWindowAdditiveActions(t *testing.T) {
	// Mean > 2000 (+30) plus round numbers (+20) lands in limit territory.
	window := windowOf(t, 10, 3000, time.Minute)
	assessment := ScoreWindow(window)
	require.Equal(t, 50, assessment.Score)
	require.Equal(t, FraudLimit, assessment.Action)

	// Add rapid entries (+25) to push past the block threshold.
	window = windowOf(t, 10, 3000, 500*time.Millisecond)
	assessment = ScoreWindow(window)
	require.Equal(t, 75, assessment.Score)
	require.Equal(t, FraudBlock, assessment.Action)
}

func TestScoreWindowClampsAtHundred(t *testing.T) {
	window := windowOf(t, 10, 3000, 100*time.Millisecond)
	for i := range window {
		window[i].HasSpeed = true
		window[i].SpeedKmh = 50
	}
	assessment := ScoreWindow(window)
	require.Equal(t, 100, assessment.Score)
	require.Equal(t, FraudBlock, assessment.Action)
}

func TestScoreWindowDeterministic(t *testing.T) {
	window := windowOf(t, 10, 3000, time.Minute)
	first := ScoreWindow(window)
	second := ScoreWindow(window)
	require.Equal(t, first, second)
}

func TestScoreWindowUsesOnlyMostRecent(t *testing.T) {
	// Older high-step samples beyond the window must not affect the score.
	old := windowOf(t, 15, 5000, time.Minute)
	recent := windowOf(t, 10, 100, time.Minute)
	combined := append(old[:5], recent...)
	assessment := ScoreWindow(combined)
	require.Equal(t, 0, assessment.Score)
}

func TestScoreWindowZeroStepsNotRound(t *testing.T) {
	window := windowOf(t, 10, 0, time.Minute)
	assessment := ScoreWindow(window)
	require.Equal(t, 0, assessment.Score)
}
