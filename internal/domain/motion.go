package domain

const (
	// MaxHumanSpeedKmh is the locomotion bound above which a sample cannot
	// have been produced by walking or running.
	MaxHumanSpeedKmh = 25.0
	// MaxGPSAccuracyMeters is the accuracy radius beyond which location data
	// is too degraded to participate in location-dependent checks.
	MaxGPSAccuracyMeters = 100.0
)

// MotionReason explains a motion validation outcome.
type MotionReason string

const (
	MotionReasonSpeedExceeded    MotionReason = "speed exceeds human locomotion bound"
	MotionReasonAccuracyDegraded MotionReason = "GPS accuracy insufficient"
)

// MotionResult is the outcome of physical plausibility checks on one sample.
type MotionResult struct {
	Valid               bool
	Reason              MotionReason
	LocationUnavailable bool
	LocationDegraded    bool
}

// ValidateMotion applies physical plausibility rules in order; the first
// failure wins. A reported speed above the locomotion bound is a hard
// rejection regardless of the fraud score, with or without a GPS fix.
// Missing location is accepted and treated as neutral downstream, never as
// evidence of fraud.
func ValidateMotion(sample StepSample) MotionResult {
	if sample.HasSpeed && sample.SpeedKmh > MaxHumanSpeedKmh {
		return MotionResult{Valid: false, Reason: MotionReasonSpeedExceeded}
	}
	if !sample.HasLocation {
		return MotionResult{Valid: true, LocationUnavailable: true}
	}
	if sample.GPSAccuracyMeters > MaxGPSAccuracyMeters {
		return MotionResult{Valid: true, Reason: MotionReasonAccuracyDegraded, LocationDegraded: true}
	}
	return MotionResult{Valid: true}
}
