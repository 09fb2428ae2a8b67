package domain

import (
	"context"
	"time"
)

// Event is a domain event staged for the transactional outbox. The postgres
// store persists it in the same transaction as the state change; the
// dispatcher delivers it asynchronously.
type Event struct {
	Type    string
	Payload interface{}
}

// StoredAssessment retains a fraud assessment for audit alongside the sample
// it scored. Rejected samples never silently vanish: the assessment and
// reason stay retrievable even though no steps were credited.
type StoredAssessment struct {
	SampleID   string
	TenantID   string
	UserID     string
	DeviceID   string
	Date       time.Time
	Steps      int
	Accepted   bool
	Reason     string
	Assessment FraudAssessment
	CreatedAt  time.Time
}

// Cursor models the pagination token for ledger history listings.
type Cursor struct {
	Date time.Time
}

// Store captures the persistence contract the engine requires. Per-user
// read-your-writes consistency is assumed; cross-user operations need no
// coordination.
type Store interface {
	// LedgerEntry returns the entry for (tenant, user, day) or nil.
	LedgerEntry(ctx context.Context, tenantID, userID string, date time.Time) (*DailyLedgerEntry, error)
	// ListLedgerHistory returns sealed-or-open entries newest first.
	ListLedgerHistory(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]DailyLedgerEntry, *Cursor, error)
	// ListUnsealedBefore returns every entry dated before cutoff that has
	// not been sealed, across all users. Used by rollover.
	ListUnsealedBefore(ctx context.Context, cutoff time.Time) ([]DailyLedgerEntry, error)
	// SaveIngest persists the ledger entry, phase state, and staged events
	// atomically. This is the engine's single commit point per sample.
	SaveIngest(ctx context.Context, entry *DailyLedgerEntry, state *UserPhaseState, events []Event) error
	// SaveLedgerEntry persists entry mutations (redeem, seal) with events.
	SaveLedgerEntry(ctx context.Context, entry *DailyLedgerEntry, events []Event) error

	// PhaseState returns the user's progression record or nil.
	PhaseState(ctx context.Context, tenantID, userID string) (*UserPhaseState, error)
	// SavePhaseState persists the progression record.
	SavePhaseState(ctx context.Context, state *UserPhaseState) error

	// Devices lists the user's device set.
	Devices(ctx context.Context, tenantID, userID string) ([]DeviceProfile, error)
	// SaveDevice upserts one device profile.
	SaveDevice(ctx context.Context, device *DeviceProfile) error
	// SetPrimaryDevice demotes the current primary and promotes deviceID in
	// one atomic step, so no moment exists with two primaries. Returns
	// ErrDeviceNotFound for an unregistered device.
	SetPrimaryDevice(ctx context.Context, tenantID, userID, deviceID string) error
	// RemoveDevice deletes a device from the set.
	RemoveDevice(ctx context.Context, tenantID, userID, deviceID string) error
	// AddDeviceDailySteps accumulates a device's reported steps for a day.
	AddDeviceDailySteps(ctx context.Context, tenantID, userID, deviceID string, date time.Time, steps int) error
	// DeviceDailySteps returns per-device reported totals for a day.
	DeviceDailySteps(ctx context.Context, tenantID, userID string, date time.Time) (map[string]int, error)

	// AppendSample appends to the user's rolling window, trimming to limit.
	AppendSample(ctx context.Context, sample StepSample, limit int) error
	// RecentSamples returns up to limit samples ordered oldest to newest.
	RecentSamples(ctx context.Context, tenantID, userID string, limit int) ([]StepSample, error)

	// SaveAssessment retains a fraud assessment for audit.
	SaveAssessment(ctx context.Context, record StoredAssessment) error
	// AssessmentsForDay lists assessments recorded for a calendar day.
	AssessmentsForDay(ctx context.Context, tenantID, userID string, date time.Time) ([]StoredAssessment, error)
}
