package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// SampleSource identifies where a step observation originated.
type SampleSource string

const (
	SourceNativeHealth SampleSource = "native-health"
	SourceWearable     SampleSource = "wearable"
	SourceManual       SampleSource = "manual"
	SourceWebFallback  SampleSource = "web-fallback"
)

// ParseSampleSource maps a raw source string onto the closed enum.
func ParseSampleSource(raw string) (SampleSource, error) {
	switch SampleSource(strings.TrimSpace(strings.ToLower(raw))) {
	case SourceNativeHealth:
		return SourceNativeHealth, nil
	case SourceWearable:
		return SourceWearable, nil
	case SourceManual:
		return SourceManual, nil
	case SourceWebFallback:
		return SourceWebFallback, nil
	default:
		return "", fmt.Errorf("%w: unknown source %q", ErrMalformedSample, raw)
	}
}

// DeviceType identifies the kind of hardware reporting steps.
type DeviceType string

const (
	DevicePhone       DeviceType = "phone"
	DeviceWatch       DeviceType = "watch"
	DeviceFitnessBand DeviceType = "fitness-band"
)

// ParseDeviceType maps a raw device type string onto the closed enum.
func ParseDeviceType(raw string) (DeviceType, error) {
	switch DeviceType(strings.TrimSpace(strings.ToLower(raw))) {
	case DevicePhone:
		return DevicePhone, nil
	case DeviceWatch:
		return DeviceWatch, nil
	case DeviceFitnessBand:
		return DeviceFitnessBand, nil
	default:
		return "", fmt.Errorf("unknown device type %q", raw)
	}
}

// RawSample is the platform-specific payload as received from a client.
// Steps arrives as a string because upstream health APIs disagree on numeric
// encoding; Normalize is the only place it is interpreted.
type RawSample struct {
	DeviceID          string
	Source            string
	Steps             string
	RecordedAt        *time.Time
	SpeedKmh          *float64
	GPSAccuracyMeters *float64
}

// StepSample is the canonical observation produced by Normalize. Immutable
// once scored; appended to the per-user rolling window for pattern detection.
type StepSample struct {
	ID                string
	TenantID          string
	UserID            string
	DeviceID          string
	Source            SampleSource
	Steps             int
	RecordedAt        time.Time
	SpeedKmh          float64
	GPSAccuracyMeters float64
	HasSpeed          bool
	HasLocation       bool
	FraudScore        int
	Accepted          bool
}

// DeviceProfile describes one device in a user's device set. Exactly one
// device per user is primary at a time.
type DeviceProfile struct {
	TenantID     string
	UserID       string
	DeviceID     string
	DeviceType   DeviceType
	IsPrimary    bool
	Revoked      bool
	LastSyncAt   time.Time
	BatteryLevel *int
}

// Normalize converts a raw payload into a canonical StepSample. Steps must
// parse as a non-negative integer; a missing timestamp defaults to the
// ingestion time. No side effects.
func Normalize(raw RawSample, now time.Time) (StepSample, error) {
	source, err := ParseSampleSource(raw.Source)
	if err != nil {
		return StepSample{}, err
	}

	stepsText := strings.TrimSpace(raw.Steps)
	if stepsText == "" {
		return StepSample{}, fmt.Errorf("%w: steps missing", ErrMalformedSample)
	}
	steps, err := strconv.Atoi(stepsText)
	if err != nil {
		return StepSample{}, fmt.Errorf("%w: steps %q is not an integer", ErrMalformedSample, raw.Steps)
	}
	if steps < 0 {
		return StepSample{}, fmt.Errorf("%w: steps %d is negative", ErrMalformedSample, steps)
	}

	recordedAt := now.UTC()
	if raw.RecordedAt != nil && !raw.RecordedAt.IsZero() {
		recordedAt = raw.RecordedAt.UTC()
	}

	sample := StepSample{
		DeviceID:   strings.TrimSpace(raw.DeviceID),
		Source:     source,
		Steps:      steps,
		RecordedAt: recordedAt,
	}

	// Speed and GPS accuracy are carried independently: a reported speed is
	// validated even when the client omits the accuracy radius.
	if raw.SpeedKmh != nil {
		sample.SpeedKmh = *raw.SpeedKmh
		sample.HasSpeed = true
	}
	if raw.GPSAccuracyMeters != nil {
		sample.GPSAccuracyMeters = *raw.GPSAccuracyMeters
		sample.HasLocation = true
	}

	return sample, nil
}
