package domain

import "time"

// Fraud scoring tunables. Scoring is heuristic, additive, and deterministic
// over an identical window.
const (
	// FraudWindowSize is the number of most recent samples considered.
	FraudWindowSize = 10
	// SampleWindowRetention bounds how many samples the store keeps per user.
	SampleWindowRetention = 25

	fraudBlockThreshold = 70
	fraudLimitThreshold = 40

	highFrequencyMeanSteps = 2000
	speedViolationMax      = 3
	roundNumberMax         = 2
	rapidPairMax           = 3
	rapidPairGap           = time.Second
)

// LimitCreditPercent is the share of a limit-action sample's steps that still
// counts toward the daily cap. Limit samples earn no phase-progression credit.
const LimitCreditPercent = 50

// FraudAction is the decision derived from a fraud score.
type FraudAction string

const (
	FraudAllow FraudAction = "allow"
	FraudLimit FraudAction = "limit"
	FraudBlock FraudAction = "block"
)

// FraudReason is a machine-readable heuristic code.
type FraudReason string

const (
	ReasonHighStepFrequency       FraudReason = "high_step_frequency"
	ReasonRepeatedSpeedViolations FraudReason = "repeated_speed_violations"
	ReasonRoundNumberPattern      FraudReason = "round_number_pattern"
	ReasonRapidEntryPattern       FraudReason = "rapid_entry_pattern"
)

// ReasonDetail pairs a triggered heuristic with the value it observed, so
// audit tooling can assert on codes rather than prose.
type ReasonDetail struct {
	Code     FraudReason `json:"code"`
	Observed float64     `json:"observed"`
}

// FraudAssessment is the versioned scoring record persisted with each sample.
type FraudAssessment struct {
	Score   int            `json:"score"`
	Action  FraudAction    `json:"action"`
	Reasons []ReasonDetail `json:"reasons,omitempty"`
	Version string         `json:"version"`
}

// ScoreWindow scores the most recent FraudWindowSize samples of the window.
// The window must be ordered oldest to newest. Pure function; identical
// windows always produce identical assessments.
func ScoreWindow(window []StepSample) FraudAssessment {
	if len(window) > FraudWindowSize {
		window = window[len(window)-FraudWindowSize:]
	}

	assessment := FraudAssessment{Action: FraudAllow, Version: "v1"}
	if len(window) == 0 {
		return assessment
	}

	var totalSteps, speedViolations, roundNumbers, rapidPairs int
	for i, sample := range window {
		totalSteps += sample.Steps
		if sample.HasSpeed && sample.SpeedKmh > MaxHumanSpeedKmh {
			speedViolations++
		}
		if sample.Steps > 0 && sample.Steps%1000 == 0 {
			roundNumbers++
		}
		if i > 0 && sample.RecordedAt.Sub(window[i-1].RecordedAt) < rapidPairGap {
			rapidPairs++
		}
	}

	meanSteps := float64(totalSteps) / float64(len(window))
	if meanSteps > highFrequencyMeanSteps {
		assessment.Score += 30
		assessment.Reasons = append(assessment.Reasons, ReasonDetail{Code: ReasonHighStepFrequency, Observed: meanSteps})
	}
	if speedViolations > speedViolationMax {
		assessment.Score += 40
		assessment.Reasons = append(assessment.Reasons, ReasonDetail{Code: ReasonRepeatedSpeedViolations, Observed: float64(speedViolations)})
	}
	if roundNumbers > roundNumberMax {
		assessment.Score += 20
		assessment.Reasons = append(assessment.Reasons, ReasonDetail{Code: ReasonRoundNumberPattern, Observed: float64(roundNumbers)})
	}
	if rapidPairs > rapidPairMax {
		assessment.Score += 25
		assessment.Reasons = append(assessment.Reasons, ReasonDetail{Code: ReasonRapidEntryPattern, Observed: float64(rapidPairs)})
	}

	if assessment.Score > 100 {
		assessment.Score = 100
	}

	switch {
	case assessment.Score > fraudBlockThreshold:
		assessment.Action = FraudBlock
	case assessment.Score > fraudLimitThreshold:
		assessment.Action = FraudLimit
	}
	return assessment
}
