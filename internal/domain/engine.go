// Package domain implements the step validation, fraud detection, and
// phase-reward engine.
package domain

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"example.com/steprewards/internal/events"
)

// Notifier receives reward notifications. Calls are fire-and-forget: the
// engine never awaits delivery and delivery failures never affect ledger
// state.
type Notifier interface {
	TierAdvanced(ctx context.Context, evt events.TierAdvanced)
	GoalAchieved(ctx context.Context, evt events.GoalAchieved)
}

type nopNotifier struct{}

func (nopNotifier) TierAdvanced(context.Context, events.TierAdvanced) {}
func (nopNotifier) GoalAchieved(context.Context, events.GoalAchieved) {}

// IngestStatus classifies the outcome of one ingestion call.
type IngestStatus string

const (
	// StatusAccepted: sample credited in full.
	StatusAccepted IngestStatus = "accepted"
	// StatusLimited: sample accepted under a limit-tier fraud assessment;
	// reduced cap credit, no phase credit.
	StatusLimited IngestStatus = "accepted_limited"
	// StatusUncredited: sample accepted from a non-primary device; counted
	// for reconciliation only.
	StatusUncredited IngestStatus = "accepted_uncredited"
	// StatusRejectedMotion: physically implausible sample, hard reject.
	StatusRejectedMotion IngestStatus = "rejected_motion"
	// StatusRejectedFraud: fraud score above the block threshold.
	StatusRejectedFraud IngestStatus = "rejected_fraud"
)

// IngestInput is the engine's primary entry point payload.
type IngestInput struct {
	TenantID   string
	UserID     string
	DeviceType string // optional hint used on first connect
	Sample     RawSample
}

// IngestResult reports what happened to one sample, with the ledger snapshot
// after application.
type IngestResult struct {
	SampleID      string
	Status        IngestStatus
	Accepted      bool
	Reason        string
	CreditedSteps int
	Assessment    FraudAssessment
	Ledger        *DailyLedgerEntry
	Advance       *TierAdvance
}

// Engine is the step-reward service object. It holds no per-user state
// beyond a keyed lock table; all durable data lives behind Store. Work for a
// single user is serialized so ledger accumulation and phase transitions
// apply as one read-modify-write; cross-user calls run fully in parallel.
type Engine struct {
	store          Store
	phases         PhaseTable
	notifier       Notifier
	logger         *log.Logger
	location       *time.Location
	now            func() time.Time
	storageTimeout time.Duration
	graceWindow    time.Duration

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
}

// EngineOption configures optional Engine behaviour.
type EngineOption func(*Engine)

// WithNotifier installs a reward notifier.
func WithNotifier(n Notifier) EngineOption {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger overrides the engine logger.
func WithLogger(logger *log.Logger) EngineOption {
	return func(e *Engine) { e.logger = logger }
}

// WithClock overrides the time source. Intended for tests.
func WithClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithLocation sets the location used for day-boundary attribution.
func WithLocation(loc *time.Location) EngineOption {
	return func(e *Engine) { e.location = loc }
}

// WithStorageTimeout bounds each store call.
func WithStorageTimeout(d time.Duration) EngineOption {
	return func(e *Engine) { e.storageTimeout = d }
}

// WithGraceWindow sets how long after local midnight late samples for the
// previous day are attributed to the new day instead.
func WithGraceWindow(d time.Duration) EngineOption {
	return func(e *Engine) { e.graceWindow = d }
}

// NewEngine constructs an Engine with injected storage and phase
// configuration.
func NewEngine(store Store, phases PhaseTable, opts ...EngineOption) *Engine {
	e := &Engine{
		store:          store,
		phases:         phases,
		notifier:       nopNotifier{},
		logger:         log.New(log.Writer(), "[engine] ", log.LstdFlags),
		location:       time.UTC,
		now:            time.Now,
		storageTimeout: 5 * time.Second,
		graceWindow:    time.Minute,
		userLocks:      make(map[string]*sync.Mutex),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) lockUser(tenantID, userID string) *sync.Mutex {
	key := tenantID + "/" + userID
	e.mu.Lock()
	defer e.mu.Unlock()
	lock, ok := e.userLocks[key]
	if !ok {
		lock = &sync.Mutex{}
		e.userLocks[key] = lock
	}
	return lock
}

func (e *Engine) storageCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, e.storageTimeout)
}

func storageErr(err error) error {
	return fmt.Errorf("%w: %v", ErrStorageUnavailable, err)
}

// civilDate returns the calendar day of t in the engine location, keyed as
// UTC midnight.
func (e *Engine) civilDate(t time.Time) time.Time {
	year, month, day := t.In(e.location).Date()
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// IngestStep runs the full pipeline for one raw sample: normalize, motion
// validate, fraud score, reconcile device, apply to ledger, advance phase.
func (e *Engine) IngestStep(ctx context.Context, input IngestInput) (IngestResult, error) {
	now := e.now().UTC()

	sample, err := Normalize(input.Sample, now)
	if err != nil {
		return IngestResult{}, err
	}
	sample.ID = uuid.NewString()
	sample.TenantID = input.TenantID
	sample.UserID = input.UserID

	lock := e.lockUser(input.TenantID, input.UserID)
	lock.Lock()
	defer lock.Unlock()

	device, err := e.ensureDevice(ctx, input, sample.DeviceID, now)
	if err != nil {
		return IngestResult{}, err
	}

	motion := ValidateMotion(sample)

	sctx, cancel := e.storageCtx(ctx)
	recent, err := e.store.RecentSamples(sctx, input.TenantID, input.UserID, FraudWindowSize-1)
	cancel()
	if err != nil {
		return IngestResult{}, storageErr(err)
	}
	assessment := ScoreWindow(append(recent, sample))
	sample.FraudScore = assessment.Score

	result := IngestResult{
		SampleID:   sample.ID,
		Assessment: assessment,
	}

	switch {
	case !motion.Valid:
		result.Status = StatusRejectedMotion
		result.Reason = string(motion.Reason)
	case assessment.Action == FraudBlock:
		result.Status = StatusRejectedFraud
		result.Reason = fmt.Sprintf("fraud score %d exceeds block threshold", assessment.Score)
	default:
		result.Accepted = true
	}
	sample.Accepted = result.Accepted

	date := e.attributeDate(sample.RecordedAt, now)

	sctx, cancel = e.storageCtx(ctx)
	err = e.store.AppendSample(sctx, sample, SampleWindowRetention)
	cancel()
	if err != nil {
		return IngestResult{}, storageErr(err)
	}

	sctx, cancel = e.storageCtx(ctx)
	err = e.store.SaveAssessment(sctx, StoredAssessment{
		SampleID:   sample.ID,
		TenantID:   sample.TenantID,
		UserID:     sample.UserID,
		DeviceID:   sample.DeviceID,
		Date:       date,
		Steps:      sample.Steps,
		Accepted:   sample.Accepted,
		Reason:     result.Reason,
		Assessment: assessment,
		CreatedAt:  now,
	})
	cancel()
	if err != nil {
		return IngestResult{}, storageErr(err)
	}

	if !result.Accepted {
		// Rejections are terminal for the sample but stay auditable via the
		// stored assessment. Attach the current snapshot for the caller.
		result.Ledger, _ = e.loadLedger(ctx, input.TenantID, input.UserID, date)
		return result, nil
	}

	sctx, cancel = e.storageCtx(ctx)
	err = e.store.AddDeviceDailySteps(sctx, input.TenantID, input.UserID, sample.DeviceID, date, sample.Steps)
	cancel()
	if err != nil {
		return IngestResult{}, storageErr(err)
	}

	if !device.IsPrimary {
		result.Status = StatusUncredited
		result.Reason = fmt.Sprintf("device %s is not primary; steps held for reconciliation", sample.DeviceID)
		result.Ledger, _ = e.loadLedger(ctx, input.TenantID, input.UserID, date)
		return result, nil
	}

	capCredit := sample.Steps
	phaseCredit := sample.Steps
	if assessment.Action == FraudLimit {
		capCredit = sample.Steps * LimitCreditPercent / 100
		phaseCredit = 0
		result.Status = StatusLimited
	} else {
		result.Status = StatusAccepted
	}

	entry, err := e.loadLedger(ctx, input.TenantID, input.UserID, date)
	if err != nil {
		return IngestResult{}, err
	}
	if entry == nil {
		entry = &DailyLedgerEntry{
			TenantID:  input.TenantID,
			UserID:    input.UserID,
			Date:      date,
			CreatedAt: now,
		}
	}
	if entry.Sealed() {
		return IngestResult{}, fmt.Errorf("%w: %s", ErrDaySealed, entry.DateKey())
	}

	state, err := e.loadPhaseState(ctx, input.TenantID, input.UserID, now)
	if err != nil {
		return IngestResult{}, err
	}

	wasCapped := entry.CappedSteps >= DailyStepCap
	entry.ApplySteps(capCredit, e.phases.Definition(state.CurrentTier), now)

	var staged []Event
	var goalEvt *events.GoalAchieved
	if !wasCapped && entry.CappedSteps >= DailyStepCap {
		evt := events.GoalAchieved{
			TenantID:    entry.TenantID,
			UserID:      entry.UserID,
			Date:        entry.DateKey(),
			CappedSteps: entry.CappedSteps,
			OccurredAt:  now,
		}
		staged = append(staged, Event{Type: events.TypeGoalAchieved, Payload: evt})
		goalEvt = &evt
	}

	advance, err := e.phases.CreditSteps(state, phaseCredit, now)
	if err != nil {
		return IngestResult{}, err
	}
	var tierEvt *events.TierAdvanced
	if advance != nil {
		evt := events.TierAdvanced{
			TenantID:     state.TenantID,
			UserID:       state.UserID,
			FromTier:     advance.FromTier,
			ToTier:       advance.ToTier,
			PaisaPerUnit: e.phases.Definition(advance.ToTier).PaisaPerUnit,
			OccurredAt:   now,
		}
		staged = append(staged, Event{Type: events.TypeTierAdvanced, Payload: evt})
		tierEvt = &evt
	}

	sctx, cancel = e.storageCtx(ctx)
	err = e.store.SaveIngest(sctx, entry, state, staged)
	cancel()
	if err != nil {
		return IngestResult{}, storageErr(err)
	}

	e.dispatchNotifications(tierEvt, goalEvt)

	result.CreditedSteps = capCredit
	result.Ledger = entry
	result.Advance = advance
	return result, nil
}

// attributeDate decides which ledger day a sample belongs to. Samples
// stamped for the day that just closed and arriving within the grace window
// after local midnight are assigned to the new day; this keeps the sealed
// previous day immutable. Older days never shift: a sample recorded two days
// ago keeps its recorded day.
func (e *Engine) attributeDate(recordedAt, now time.Time) time.Time {
	date := e.civilDate(recordedAt)
	today := e.civilDate(now)
	if !date.Before(today) {
		return date
	}
	if date.Equal(today.AddDate(0, 0, -1)) {
		local := now.In(e.location)
		startOfToday := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, e.location)
		if local.Sub(startOfToday) <= e.graceWindow {
			return today
		}
	}
	return date
}

func (e *Engine) dispatchNotifications(tier *events.TierAdvanced, goal *events.GoalAchieved) {
	if tier == nil && goal == nil {
		return
	}
	// Detached from the request: notification delivery is never awaited.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if tier != nil {
			e.notifier.TierAdvanced(ctx, *tier)
		}
		if goal != nil {
			e.notifier.GoalAchieved(ctx, *goal)
		}
	}()
}

func (e *Engine) loadLedger(ctx context.Context, tenantID, userID string, date time.Time) (*DailyLedgerEntry, error) {
	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	entry, err := e.store.LedgerEntry(sctx, tenantID, userID, date)
	if err != nil {
		return nil, storageErr(err)
	}
	return entry, nil
}

func (e *Engine) loadPhaseState(ctx context.Context, tenantID, userID string, now time.Time) (*UserPhaseState, error) {
	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	state, err := e.store.PhaseState(sctx, tenantID, userID)
	if err != nil {
		return nil, storageErr(err)
	}
	if state == nil {
		state = NewUserPhaseState(tenantID, userID, now)
	}
	return state, nil
}

func (e *Engine) ensureDevice(ctx context.Context, input IngestInput, deviceID string, now time.Time) (*DeviceProfile, error) {
	if deviceID == "" {
		return nil, fmt.Errorf("%w: device id missing", ErrMalformedSample)
	}

	sctx, cancel := e.storageCtx(ctx)
	devices, err := e.store.Devices(sctx, input.TenantID, input.UserID)
	cancel()
	if err != nil {
		return nil, storageErr(err)
	}

	hasPrimary := false
	var device *DeviceProfile
	for i := range devices {
		if devices[i].IsPrimary {
			hasPrimary = true
		}
		if devices[i].DeviceID == deviceID {
			device = &devices[i]
		}
	}

	if device != nil && device.Revoked {
		return nil, fmt.Errorf("%w: %s", ErrPermissionRevoked, deviceID)
	}

	if device == nil {
		deviceType := DevicePhone
		if parsed, err := ParseDeviceType(input.DeviceType); err == nil {
			deviceType = parsed
		}
		// First device a user connects becomes primary; later devices need
		// an explicit promotion.
		device = &DeviceProfile{
			TenantID:   input.TenantID,
			UserID:     input.UserID,
			DeviceID:   deviceID,
			DeviceType: deviceType,
			IsPrimary:  !hasPrimary,
		}
	}
	device.LastSyncAt = now

	sctx, cancel = e.storageCtx(ctx)
	err = e.store.SaveDevice(sctx, device)
	cancel()
	if err != nil {
		return nil, storageErr(err)
	}
	return device, nil
}

// RedeemDay credits a day's coins to the wallet. Idempotent: a redeemed day
// reports already_redeemed forever; a day with no coins reports no_coins.
func (e *Engine) RedeemDay(ctx context.Context, tenantID, userID string, date time.Time) (RedeemStatus, *DailyLedgerEntry, error) {
	lock := e.lockUser(tenantID, userID)
	lock.Lock()
	defer lock.Unlock()

	day := e.civilDate(date)
	entry, err := e.loadLedger(ctx, tenantID, userID, day)
	if err != nil {
		return "", nil, err
	}
	if entry == nil {
		return RedeemNoCoins, nil, nil
	}

	now := e.now().UTC()
	status := entry.Redeem(now)
	if status != RedeemSuccess {
		return status, entry, nil
	}

	evt := Event{Type: events.TypeDayRedeemed, Payload: events.DayRedeemed{
		TenantID:    entry.TenantID,
		UserID:      entry.UserID,
		Date:        entry.DateKey(),
		PaisaEarned: entry.PaisaEarned,
		RedeemedAt:  now,
	}}

	sctx, cancel := e.storageCtx(ctx)
	err = e.store.SaveLedgerEntry(sctx, entry, []Event{evt})
	cancel()
	if err != nil {
		return "", nil, storageErr(err)
	}
	return RedeemSuccess, entry, nil
}

// PhaseState returns the user's progression record, defaulting a fresh user
// to tier 1 without persisting.
func (e *Engine) PhaseState(ctx context.Context, tenantID, userID string) (*UserPhaseState, error) {
	return e.loadPhaseState(ctx, tenantID, userID, e.now().UTC())
}

// LedgerDay returns the entry and audit assessments for a calendar day.
func (e *Engine) LedgerDay(ctx context.Context, tenantID, userID string, date time.Time) (*DailyLedgerEntry, []StoredAssessment, error) {
	day := e.civilDate(date)
	entry, err := e.loadLedger(ctx, tenantID, userID, day)
	if err != nil {
		return nil, nil, err
	}

	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	assessments, err := e.store.AssessmentsForDay(sctx, tenantID, userID, day)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	return entry, assessments, nil
}

// LedgerHistory lists ledger entries newest first with cursor pagination.
func (e *Engine) LedgerHistory(ctx context.Context, tenantID, userID string, cursor *Cursor, limit int) ([]DailyLedgerEntry, *Cursor, error) {
	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	entries, next, err := e.store.ListLedgerHistory(sctx, tenantID, userID, cursor, limit)
	if err != nil {
		return nil, nil, storageErr(err)
	}
	return entries, next, nil
}

// ReconcileDevices resolves per-device daily counts into the authoritative
// primary count. Conflicts are reported and logged, never applied.
func (e *Engine) ReconcileDevices(ctx context.Context, tenantID, userID string, date time.Time) (*ReconcileResult, error) {
	day := e.civilDate(date)

	sctx, cancel := e.storageCtx(ctx)
	devices, err := e.store.Devices(sctx, tenantID, userID)
	cancel()
	if err != nil {
		return nil, storageErr(err)
	}

	sctx, cancel = e.storageCtx(ctx)
	counts, err := e.store.DeviceDailySteps(sctx, tenantID, userID, day)
	cancel()
	if err != nil {
		return nil, storageErr(err)
	}

	result, err := ReconcileSteps(devices, counts)
	if err != nil {
		return nil, err
	}
	for _, conflict := range result.Conflicts {
		e.logger.Printf("sync conflict (user=%s, device=%s): reported %d, delta %d",
			userID, conflict.DeviceID, conflict.ReportedSteps, conflict.Delta)
	}
	return &result, nil
}

// PromotePrimaryDevice makes deviceID the single primary for the user. The
// store performs the swap atomically; promotion never leaves the set with
// two primaries or none.
func (e *Engine) PromotePrimaryDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	lock := e.lockUser(tenantID, userID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	if err := e.store.SetPrimaryDevice(sctx, tenantID, userID, deviceID); err != nil {
		if errors.Is(err, ErrDeviceNotFound) {
			return err
		}
		return storageErr(err)
	}
	return nil
}

// RevokeDevicePermission stops the engine from accepting samples for the
// device; subsequent ingests surface ErrPermissionRevoked so callers can
// fall back to manual entry.
func (e *Engine) RevokeDevicePermission(ctx context.Context, tenantID, userID, deviceID string) error {
	lock := e.lockUser(tenantID, userID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := e.storageCtx(ctx)
	devices, err := e.store.Devices(sctx, tenantID, userID)
	cancel()
	if err != nil {
		return storageErr(err)
	}

	for i := range devices {
		if devices[i].DeviceID != deviceID {
			continue
		}
		devices[i].Revoked = true
		sctx, cancel := e.storageCtx(ctx)
		err := e.store.SaveDevice(sctx, &devices[i])
		cancel()
		if err != nil {
			return storageErr(err)
		}
		return nil
	}
	return fmt.Errorf("%w: %s", ErrDeviceNotFound, deviceID)
}

// DisconnectDevice removes a device from the user's set. Primary status is
// never reassigned automatically.
func (e *Engine) DisconnectDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	lock := e.lockUser(tenantID, userID)
	lock.Lock()
	defer lock.Unlock()

	sctx, cancel := e.storageCtx(ctx)
	defer cancel()
	if err := e.store.RemoveDevice(sctx, tenantID, userID, deviceID); err != nil {
		return storageErr(err)
	}
	return nil
}

// RunRollover seals every ledger entry dated before the current day, updates
// streak counters, and emits day-sealed events. Safe to run more than once
// for the same boundary.
func (e *Engine) RunRollover(ctx context.Context, now time.Time) error {
	today := e.civilDate(now)

	sctx, cancel := e.storageCtx(ctx)
	entries, err := e.store.ListUnsealedBefore(sctx, today)
	cancel()
	if err != nil {
		return storageErr(err)
	}

	for i := range entries {
		if err := e.sealEntry(ctx, &entries[i], now); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) sealEntry(ctx context.Context, stale *DailyLedgerEntry, now time.Time) error {
	lock := e.lockUser(stale.TenantID, stale.UserID)
	lock.Lock()
	defer lock.Unlock()

	// Reload under the lock: a concurrent rollover may already have sealed.
	entry, err := e.loadLedger(ctx, stale.TenantID, stale.UserID, stale.Date)
	if err != nil {
		return err
	}
	if entry == nil || !entry.Seal(now) {
		return nil
	}

	state, err := e.loadPhaseState(ctx, entry.TenantID, entry.UserID, now)
	if err != nil {
		return err
	}
	state.RecordDayOutcome(entry.UnitsEarned > 0, now)

	evt := Event{Type: events.TypeDaySealed, Payload: events.DaySealed{
		TenantID:    entry.TenantID,
		UserID:      entry.UserID,
		Date:        entry.DateKey(),
		RawSteps:    entry.RawSteps,
		CappedSteps: entry.CappedSteps,
		UnitsEarned: entry.UnitsEarned,
		PaisaEarned: entry.PaisaEarned,
		SealedAt:    now.UTC(),
	}}

	sctx, cancel := e.storageCtx(ctx)
	err = e.store.SaveIngest(sctx, entry, state, []Event{evt})
	cancel()
	if err != nil {
		return storageErr(err)
	}
	return nil
}
