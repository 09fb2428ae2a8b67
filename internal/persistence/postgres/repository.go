package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/steprewards/internal/domain"
	"example.com/steprewards/internal/events"
	"example.com/steprewards/internal/observability"
)

// Repository provides Postgres-backed persistence for ledger entries, phase
// states, devices, the sample window, fraud audit records, and outbox events.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const ledgerColumns = `tenant_id, user_id, entry_date, raw_steps, capped_steps, units_earned, paisa_earned, tier_at_calc, is_redeemed, redeemed_at, sealed_at, created_at, updated_at`

func scanLedger(row pgx.Row) (*domain.DailyLedgerEntry, error) {
	var entry domain.DailyLedgerEntry
	err := row.Scan(&entry.TenantID, &entry.UserID, &entry.Date, &entry.RawSteps, &entry.CappedSteps,
		&entry.UnitsEarned, &entry.PaisaEarned, &entry.TierAtCalc, &entry.IsRedeemed,
		&entry.RedeemedAt, &entry.SealedAt, &entry.CreatedAt, &entry.UpdatedAt)
	if err != nil {
		return nil, err
	}
	entry.Date = entry.Date.UTC()
	return &entry, nil
}

// LedgerEntry returns the entry for (tenant, user, day) or nil.
func (r *Repository) LedgerEntry(ctx context.Context, tenantID, userID string, date time.Time) (*domain.DailyLedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE tenant_id=$1 AND user_id=$2 AND entry_date=$3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	entry, err := scanLedger(tx.QueryRow(ctx, query, tenantID, userID, date))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return entry, nil
}

// ListLedgerHistory returns entries newest first with cursor pagination.
func (r *Repository) ListLedgerHistory(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.DailyLedgerEntry, *domain.Cursor, error) {
	args := []interface{}{tenantID, userID, limit}
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE tenant_id=$1 AND user_id=$2`
	if cursor != nil {
		query += ` AND entry_date < $4`
		args = append(args, cursor.Date)
	}
	query += ` ORDER BY entry_date DESC LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, nil, err
	}

	rows, err := tx.Query(ctx, query, args...)
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	results := make([]domain.DailyLedgerEntry, 0, limit)
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, nil, err
		}
		results = append(results, *entry)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	var next *domain.Cursor
	if len(results) == limit {
		next = &domain.Cursor{Date: results[len(results)-1].Date}
	}
	return results, next, nil
}

// ListUnsealedBefore returns unsealed entries older than cutoff across all
// tenants. No tenant GUC is set; the ledger_rollover_read policy grants the
// cross-tenant read for unsealed rows only.
func (r *Repository) ListUnsealedBefore(ctx context.Context, cutoff time.Time) ([]domain.DailyLedgerEntry, error) {
	query := `SELECT ` + ledgerColumns + ` FROM ledger_entries WHERE sealed_at IS NULL AND entry_date < $1 ORDER BY entry_date`

	rows, err := r.pool.Query(ctx, query, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	results := make([]domain.DailyLedgerEntry, 0)
	for rows.Next() {
		entry, err := scanLedger(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, *entry)
	}
	return results, rows.Err()
}

const upsertLedger = `INSERT INTO ledger_entries (` + ledgerColumns + `)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
        ON CONFLICT (tenant_id, user_id, entry_date) DO UPDATE SET
            raw_steps=EXCLUDED.raw_steps, capped_steps=EXCLUDED.capped_steps,
            units_earned=EXCLUDED.units_earned, paisa_earned=EXCLUDED.paisa_earned,
            tier_at_calc=EXCLUDED.tier_at_calc, is_redeemed=EXCLUDED.is_redeemed,
            redeemed_at=EXCLUDED.redeemed_at, sealed_at=EXCLUDED.sealed_at,
            updated_at=EXCLUDED.updated_at`

func execUpsertLedger(ctx context.Context, tx pgx.Tx, entry *domain.DailyLedgerEntry) error {
	_, err := tx.Exec(ctx, upsertLedger,
		entry.TenantID, entry.UserID, entry.Date, entry.RawSteps, entry.CappedSteps,
		entry.UnitsEarned, entry.PaisaEarned, entry.TierAtCalc, entry.IsRedeemed,
		entry.RedeemedAt, entry.SealedAt, entry.CreatedAt, entry.UpdatedAt)
	return err
}

// SaveIngest persists the ledger entry, phase state, and staged outbox
// events inside a single transaction. This is the engine's atomic commit
// point: ledger accumulation and a tier transition land together or not at
// all.
func (r *Repository) SaveIngest(ctx context.Context, entry *domain.DailyLedgerEntry, state *domain.UserPhaseState, staged []domain.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", entry.TenantID); err != nil {
		return err
	}

	if err = execUpsertLedger(ctx, tx, entry); err != nil {
		return err
	}

	const upsertState = `INSERT INTO phase_states (tenant_id, user_id, current_tier, phase_start_date, cumulative_phase_steps, total_lifetime_steps, current_streak_days, longest_streak_days, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET
            current_tier=EXCLUDED.current_tier, phase_start_date=EXCLUDED.phase_start_date,
            cumulative_phase_steps=EXCLUDED.cumulative_phase_steps, total_lifetime_steps=EXCLUDED.total_lifetime_steps,
            current_streak_days=EXCLUDED.current_streak_days, longest_streak_days=EXCLUDED.longest_streak_days,
            updated_at=EXCLUDED.updated_at`
	if _, err = tx.Exec(ctx, upsertState,
		state.TenantID, state.UserID, state.CurrentTier, state.PhaseStartDate,
		state.CumulativePhaseSteps, state.TotalLifetimeSteps, state.CurrentStreakDays,
		state.LongestStreakDays, state.UpdatedAt); err != nil {
		return err
	}

	if err = insertOutbox(ctx, tx, entry.TenantID, entry.UserID, entry.DateKey(), staged); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLedgerPersisted(entry.UpdatedAt)
	return nil
}

// SaveLedgerEntry persists entry mutations (redeem, seal) with their events.
func (r *Repository) SaveLedgerEntry(ctx context.Context, entry *domain.DailyLedgerEntry, staged []domain.Event) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", entry.TenantID); err != nil {
		return err
	}
	if err = execUpsertLedger(ctx, tx, entry); err != nil {
		return err
	}
	if err = insertOutbox(ctx, tx, entry.TenantID, entry.UserID, entry.DateKey(), staged); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return err
	}
	observability.RecordLedgerPersisted(entry.UpdatedAt)
	return nil
}

// PhaseState returns the user's progression record or nil.
func (r *Repository) PhaseState(ctx context.Context, tenantID, userID string) (*domain.UserPhaseState, error) {
	const query = `SELECT tenant_id, user_id, current_tier, phase_start_date, cumulative_phase_steps, total_lifetime_steps, current_streak_days, longest_streak_days, updated_at
        FROM phase_states WHERE tenant_id=$1 AND user_id=$2`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	var state domain.UserPhaseState
	err = tx.QueryRow(ctx, query, tenantID, userID).Scan(&state.TenantID, &state.UserID,
		&state.CurrentTier, &state.PhaseStartDate, &state.CumulativePhaseSteps,
		&state.TotalLifetimeSteps, &state.CurrentStreakDays, &state.LongestStreakDays, &state.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, tx.Commit(ctx)
		}
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return &state, nil
}

// SavePhaseState persists the progression record on its own.
func (r *Repository) SavePhaseState(ctx context.Context, state *domain.UserPhaseState) error {
	const stmt = `INSERT INTO phase_states (tenant_id, user_id, current_tier, phase_start_date, cumulative_phase_steps, total_lifetime_steps, current_streak_days, longest_streak_days, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        ON CONFLICT (tenant_id, user_id) DO UPDATE SET
            current_tier=EXCLUDED.current_tier, phase_start_date=EXCLUDED.phase_start_date,
            cumulative_phase_steps=EXCLUDED.cumulative_phase_steps, total_lifetime_steps=EXCLUDED.total_lifetime_steps,
            current_streak_days=EXCLUDED.current_streak_days, longest_streak_days=EXCLUDED.longest_streak_days,
            updated_at=EXCLUDED.updated_at`
	return r.execTenant(ctx, state.TenantID, stmt,
		state.TenantID, state.UserID, state.CurrentTier, state.PhaseStartDate,
		state.CumulativePhaseSteps, state.TotalLifetimeSteps, state.CurrentStreakDays,
		state.LongestStreakDays, state.UpdatedAt)
}

// Devices lists the user's device set.
func (r *Repository) Devices(ctx context.Context, tenantID, userID string) ([]domain.DeviceProfile, error) {
	const query = `SELECT tenant_id, user_id, device_id, device_type, is_primary, revoked, last_sync_at, battery_level
        FROM devices WHERE tenant_id=$1 AND user_id=$2 ORDER BY device_id`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	devices := make([]domain.DeviceProfile, 0)
	for rows.Next() {
		var device domain.DeviceProfile
		if err := rows.Scan(&device.TenantID, &device.UserID, &device.DeviceID, &device.DeviceType,
			&device.IsPrimary, &device.Revoked, &device.LastSyncAt, &device.BatteryLevel); err != nil {
			return nil, err
		}
		devices = append(devices, device)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return devices, nil
}

// SaveDevice upserts one device profile.
func (r *Repository) SaveDevice(ctx context.Context, device *domain.DeviceProfile) error {
	const stmt = `INSERT INTO devices (tenant_id, user_id, device_id, device_type, is_primary, revoked, last_sync_at, battery_level)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
        ON CONFLICT (tenant_id, user_id, device_id) DO UPDATE SET
            device_type=EXCLUDED.device_type, is_primary=EXCLUDED.is_primary,
            revoked=EXCLUDED.revoked, last_sync_at=EXCLUDED.last_sync_at,
            battery_level=EXCLUDED.battery_level`
	return r.execTenant(ctx, device.TenantID, stmt,
		device.TenantID, device.UserID, device.DeviceID, device.DeviceType,
		device.IsPrimary, device.Revoked, device.LastSyncAt, device.BatteryLevel)
}

// SetPrimaryDevice reassigns the primary flag inside one transaction. The
// current primary is demoted before the new one is flagged, so the partial
// unique index on (tenant_id, user_id) WHERE is_primary never sees two
// primary rows regardless of device_id ordering.
func (r *Repository) SetPrimaryDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE devices SET is_primary=FALSE WHERE tenant_id=$1 AND user_id=$2 AND is_primary`,
		tenantID, userID); err != nil {
		return err
	}

	tag, execErr := tx.Exec(ctx,
		`UPDATE devices SET is_primary=TRUE WHERE tenant_id=$1 AND user_id=$2 AND device_id=$3`,
		tenantID, userID, deviceID)
	if execErr != nil {
		err = execErr
		return err
	}
	if tag.RowsAffected() == 0 {
		err = fmt.Errorf("%w: %s", domain.ErrDeviceNotFound, deviceID)
		return err
	}

	return tx.Commit(ctx)
}

// RemoveDevice deletes a device from the set.
func (r *Repository) RemoveDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	return r.execTenant(ctx, tenantID,
		`DELETE FROM devices WHERE tenant_id=$1 AND user_id=$2 AND device_id=$3`,
		tenantID, userID, deviceID)
}

// AddDeviceDailySteps accumulates a device's reported steps for a day.
func (r *Repository) AddDeviceDailySteps(ctx context.Context, tenantID, userID, deviceID string, date time.Time, steps int) error {
	const stmt = `INSERT INTO device_daily_steps (tenant_id, user_id, device_id, entry_date, steps)
        VALUES ($1,$2,$3,$4,$5)
        ON CONFLICT (tenant_id, user_id, device_id, entry_date) DO UPDATE SET
            steps = device_daily_steps.steps + EXCLUDED.steps`
	return r.execTenant(ctx, tenantID, stmt, tenantID, userID, deviceID, date, steps)
}

// DeviceDailySteps returns per-device reported totals for a day.
func (r *Repository) DeviceDailySteps(ctx context.Context, tenantID, userID string, date time.Time) (map[string]int, error) {
	const query = `SELECT device_id, steps FROM device_daily_steps WHERE tenant_id=$1 AND user_id=$2 AND entry_date=$3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var deviceID string
		var steps int
		if err := rows.Scan(&deviceID, &steps); err != nil {
			return nil, err
		}
		counts[deviceID] = steps
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return counts, tx.Commit(ctx)
}

// AppendSample inserts into the rolling window and trims rows beyond limit.
func (r *Repository) AppendSample(ctx context.Context, sample domain.StepSample, limit int) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", sample.TenantID); err != nil {
		return err
	}

	const insert = `INSERT INTO step_samples (sample_id, tenant_id, user_id, device_id, source, steps, recorded_at, speed_kmh, gps_accuracy_m, has_speed, has_location, fraud_score, accepted)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	if _, err = tx.Exec(ctx, insert,
		sample.ID, sample.TenantID, sample.UserID, sample.DeviceID, sample.Source,
		sample.Steps, sample.RecordedAt, sample.SpeedKmh, sample.GPSAccuracyMeters,
		sample.HasSpeed, sample.HasLocation, sample.FraudScore, sample.Accepted); err != nil {
		return err
	}

	const trim = `DELETE FROM step_samples WHERE sample_id IN (
            SELECT sample_id FROM step_samples
            WHERE tenant_id=$1 AND user_id=$2
            ORDER BY recorded_at DESC, sample_id DESC OFFSET $3)`
	if _, err = tx.Exec(ctx, trim, sample.TenantID, sample.UserID, limit); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RecentSamples returns up to limit samples ordered oldest to newest.
func (r *Repository) RecentSamples(ctx context.Context, tenantID, userID string, limit int) ([]domain.StepSample, error) {
	const query = `SELECT sample_id, tenant_id, user_id, device_id, source, steps, recorded_at, speed_kmh, gps_accuracy_m, has_speed, has_location, fraud_score, accepted
        FROM step_samples WHERE tenant_id=$1 AND user_id=$2
        ORDER BY recorded_at DESC, sample_id DESC LIMIT $3`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	samples := make([]domain.StepSample, 0, limit)
	for rows.Next() {
		var sample domain.StepSample
		if err := rows.Scan(&sample.ID, &sample.TenantID, &sample.UserID, &sample.DeviceID,
			&sample.Source, &sample.Steps, &sample.RecordedAt, &sample.SpeedKmh,
			&sample.GPSAccuracyMeters, &sample.HasSpeed, &sample.HasLocation,
			&sample.FraudScore, &sample.Accepted); err != nil {
			return nil, err
		}
		samples = append(samples, sample)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	// Reverse into chronological order for the scorer.
	for i, j := 0, len(samples)-1; i < j; i, j = i+1, j-1 {
		samples[i], samples[j] = samples[j], samples[i]
	}
	return samples, nil
}

// SaveAssessment retains a fraud assessment for audit.
func (r *Repository) SaveAssessment(ctx context.Context, record domain.StoredAssessment) error {
	reasons, err := json.Marshal(record.Assessment.Reasons)
	if err != nil {
		return err
	}
	const stmt = `INSERT INTO fraud_assessments (sample_id, tenant_id, user_id, device_id, entry_date, steps, accepted, reason, score, action, reasons, version, created_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`
	return r.execTenant(ctx, record.TenantID, stmt,
		record.SampleID, record.TenantID, record.UserID, record.DeviceID, record.Date,
		record.Steps, record.Accepted, record.Reason, record.Assessment.Score,
		record.Assessment.Action, reasons, record.Assessment.Version, record.CreatedAt)
}

// AssessmentsForDay lists assessments recorded for a calendar day.
func (r *Repository) AssessmentsForDay(ctx context.Context, tenantID, userID string, date time.Time) ([]domain.StoredAssessment, error) {
	const query = `SELECT sample_id, tenant_id, user_id, device_id, entry_date, steps, accepted, reason, score, action, reasons, version, created_at
        FROM fraud_assessments WHERE tenant_id=$1 AND user_id=$2 AND entry_date=$3 ORDER BY created_at`

	conn, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return nil, err
	}

	rows, err := tx.Query(ctx, query, tenantID, userID, date)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]domain.StoredAssessment, 0)
	for rows.Next() {
		var record domain.StoredAssessment
		var reasons []byte
		if err := rows.Scan(&record.SampleID, &record.TenantID, &record.UserID, &record.DeviceID,
			&record.Date, &record.Steps, &record.Accepted, &record.Reason,
			&record.Assessment.Score, &record.Assessment.Action, &reasons,
			&record.Assessment.Version, &record.CreatedAt); err != nil {
			return nil, err
		}
		if len(reasons) > 0 {
			if err := json.Unmarshal(reasons, &record.Assessment.Reasons); err != nil {
				return nil, err
			}
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, tx.Commit(ctx)
}

func (r *Repository) execTenant(ctx context.Context, tenantID, stmt string, args ...interface{}) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback(ctx)
		}
	}()

	if _, err = tx.Exec(ctx, "SELECT set_config('app.tenant_id', $1, true)", tenantID); err != nil {
		return err
	}
	if _, err = tx.Exec(ctx, stmt, args...); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func insertOutbox(ctx context.Context, tx pgx.Tx, tenantID, userID, dateKey string, staged []domain.Event) error {
	for _, event := range staged {
		meta, ok := eventCatalog[event.Type]
		if !ok {
			return fmt.Errorf("unknown event type: %s", event.Type)
		}

		body, err := json.Marshal(event.Payload)
		if err != nil {
			return err
		}

		partitionKey := meta.PartitionKeyFn(tenantID, userID, dateKey)
		dedupeKey := fmt.Sprintf("%s:%s:%s:%s", tenantID, userID, dateKey, event.Type)

		const stmt = `INSERT INTO outbox (tenant_id, aggregate_type, aggregate_id, event_type, topic, schema_subject, partition_key, payload, dedupe_key)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`
		if _, err := tx.Exec(ctx, stmt,
			tenantID, meta.AggregateType, userID, event.Type,
			meta.Topic, meta.SchemaSubject, partitionKey, body, dedupeKey); err != nil {
			return err
		}
	}
	return nil
}

// EventMetadata describes how to route an outbox event.
type EventMetadata struct {
	Topic          string
	SchemaSubject  string
	AggregateType  string
	PartitionKeyFn func(tenantID, userID, dateKey string) string
}

func userPartition(tenantID, userID, _ string) string {
	return fmt.Sprintf("%s:%s", tenantID, userID)
}

func dayPartition(tenantID, userID, dateKey string) string {
	return fmt.Sprintf("%s:%s:%s", tenantID, userID, dateKey)
}

var eventCatalog = map[string]EventMetadata{
	events.TypeTierAdvanced: {
		Topic:          "reward_events",
		SchemaSubject:  "reward_events-value",
		AggregateType:  "phase_state",
		PartitionKeyFn: userPartition,
	},
	events.TypeGoalAchieved: {
		Topic:          "reward_events",
		SchemaSubject:  "reward_events-value",
		AggregateType:  "ledger_entry",
		PartitionKeyFn: userPartition,
	},
	events.TypeDaySealed: {
		Topic:          "ledger_events",
		SchemaSubject:  "ledger_events-value",
		AggregateType:  "ledger_entry",
		PartitionKeyFn: dayPartition,
	},
	events.TypeDayRedeemed: {
		Topic:          "ledger_events",
		SchemaSubject:  "ledger_events-value",
		AggregateType:  "ledger_entry",
		PartitionKeyFn: dayPartition,
	},
}
