// Package memory provides an in-memory Store for local development and
// tests.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"example.com/steprewards/internal/domain"
)

// Store keeps all engine state in process memory behind a RWMutex. Events
// staged through SaveIngest/SaveLedgerEntry are appended to Events for test
// assertions instead of an outbox table.
type Store struct {
	mu          sync.RWMutex
	ledgers     map[string]domain.DailyLedgerEntry   // tenant/user/date
	phases      map[string]domain.UserPhaseState     // tenant/user
	devices     map[string][]domain.DeviceProfile    // tenant/user
	deviceSteps map[string]map[string]int            // tenant/user/date -> deviceID -> steps
	samples     map[string][]domain.StepSample       // tenant/user
	assessments map[string][]domain.StoredAssessment // tenant/user/date

	Events []domain.Event
}

// NewStore constructs an empty Store.
func NewStore() *Store {
	return &Store{
		ledgers:     make(map[string]domain.DailyLedgerEntry),
		phases:      make(map[string]domain.UserPhaseState),
		devices:     make(map[string][]domain.DeviceProfile),
		deviceSteps: make(map[string]map[string]int),
		samples:     make(map[string][]domain.StepSample),
		assessments: make(map[string][]domain.StoredAssessment),
	}
}

func userKey(tenantID, userID string) string {
	return tenantID + "/" + userID
}

func dayKey(tenantID, userID string, date time.Time) string {
	return tenantID + "/" + userID + "/" + date.Format(domain.DateLayout)
}

// LedgerEntry implements domain.Store.
func (s *Store) LedgerEntry(ctx context.Context, tenantID, userID string, date time.Time) (*domain.DailyLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.ledgers[dayKey(tenantID, userID, date)]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

// ListLedgerHistory returns entries newest first with cursor pagination.
func (s *Store) ListLedgerHistory(ctx context.Context, tenantID, userID string, cursor *domain.Cursor, limit int) ([]domain.DailyLedgerEntry, *domain.Cursor, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	prefix := userKey(tenantID, userID) + "/"
	entries := make([]domain.DailyLedgerEntry, 0)
	for key, entry := range s.ledgers {
		if len(key) < len(prefix) || key[:len(prefix)] != prefix {
			continue
		}
		if cursor != nil && !entry.Date.Before(cursor.Date) {
			continue
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.After(entries[j].Date) })

	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	var next *domain.Cursor
	if limit > 0 && len(entries) == limit {
		next = &domain.Cursor{Date: entries[len(entries)-1].Date}
	}
	return entries, next, nil
}

// ListUnsealedBefore implements domain.Store.
func (s *Store) ListUnsealedBefore(ctx context.Context, cutoff time.Time) ([]domain.DailyLedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entries := make([]domain.DailyLedgerEntry, 0)
	for _, entry := range s.ledgers {
		if entry.SealedAt == nil && entry.Date.Before(cutoff) {
			entries = append(entries, entry)
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Date.Before(entries[j].Date) })
	return entries, nil
}

// SaveIngest implements domain.Store.
func (s *Store) SaveIngest(ctx context.Context, entry *domain.DailyLedgerEntry, state *domain.UserPhaseState, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[dayKey(entry.TenantID, entry.UserID, entry.Date)] = *entry
	s.phases[userKey(state.TenantID, state.UserID)] = *state
	s.Events = append(s.Events, events...)
	return nil
}

// SaveLedgerEntry implements domain.Store.
func (s *Store) SaveLedgerEntry(ctx context.Context, entry *domain.DailyLedgerEntry, events []domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.ledgers[dayKey(entry.TenantID, entry.UserID, entry.Date)] = *entry
	s.Events = append(s.Events, events...)
	return nil
}

// PhaseState implements domain.Store.
func (s *Store) PhaseState(ctx context.Context, tenantID, userID string) (*domain.UserPhaseState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state, ok := s.phases[userKey(tenantID, userID)]
	if !ok {
		return nil, nil
	}
	return &state, nil
}

// SavePhaseState implements domain.Store.
func (s *Store) SavePhaseState(ctx context.Context, state *domain.UserPhaseState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.phases[userKey(state.TenantID, state.UserID)] = *state
	return nil
}

// Devices implements domain.Store.
func (s *Store) Devices(ctx context.Context, tenantID, userID string) ([]domain.DeviceProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slice := s.devices[userKey(tenantID, userID)]
	out := make([]domain.DeviceProfile, len(slice))
	copy(out, slice)
	return out, nil
}

// SaveDevice implements domain.Store.
func (s *Store) SaveDevice(ctx context.Context, device *domain.DeviceProfile) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(device.TenantID, device.UserID)
	slice := s.devices[key]
	for i := range slice {
		if slice[i].DeviceID == device.DeviceID {
			slice[i] = *device
			return nil
		}
	}
	s.devices[key] = append(slice, *device)
	return nil
}

// SetPrimaryDevice implements domain.Store. The demote and promote happen
// under one lock acquisition, mirroring the single-transaction swap of the
// Postgres store.
func (s *Store) SetPrimaryDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	slice := s.devices[userKey(tenantID, userID)]
	found := false
	for i := range slice {
		if slice[i].DeviceID == deviceID {
			found = true
			break
		}
	}
	if !found {
		return domain.ErrDeviceNotFound
	}
	for i := range slice {
		slice[i].IsPrimary = slice[i].DeviceID == deviceID
	}
	return nil
}

// RemoveDevice implements domain.Store.
func (s *Store) RemoveDevice(ctx context.Context, tenantID, userID, deviceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(tenantID, userID)
	slice := s.devices[key]
	for i := range slice {
		if slice[i].DeviceID == deviceID {
			s.devices[key] = append(slice[:i], slice[i+1:]...)
			return nil
		}
	}
	return nil
}

// AddDeviceDailySteps implements domain.Store.
func (s *Store) AddDeviceDailySteps(ctx context.Context, tenantID, userID, deviceID string, date time.Time, steps int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(tenantID, userID, date)
	counts, ok := s.deviceSteps[key]
	if !ok {
		counts = make(map[string]int)
		s.deviceSteps[key] = counts
	}
	counts[deviceID] += steps
	return nil
}

// DeviceDailySteps implements domain.Store.
func (s *Store) DeviceDailySteps(ctx context.Context, tenantID, userID string, date time.Time) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]int)
	for deviceID, steps := range s.deviceSteps[dayKey(tenantID, userID, date)] {
		out[deviceID] = steps
	}
	return out, nil
}

// AppendSample implements domain.Store.
func (s *Store) AppendSample(ctx context.Context, sample domain.StepSample, limit int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := userKey(sample.TenantID, sample.UserID)
	slice := append(s.samples[key], sample)
	if limit > 0 && len(slice) > limit {
		slice = slice[len(slice)-limit:]
	}
	s.samples[key] = slice
	return nil
}

// RecentSamples implements domain.Store.
func (s *Store) RecentSamples(ctx context.Context, tenantID, userID string, limit int) ([]domain.StepSample, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slice := s.samples[userKey(tenantID, userID)]
	if limit > 0 && len(slice) > limit {
		slice = slice[len(slice)-limit:]
	}
	out := make([]domain.StepSample, len(slice))
	copy(out, slice)
	return out, nil
}

// SaveAssessment implements domain.Store.
func (s *Store) SaveAssessment(ctx context.Context, record domain.StoredAssessment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := dayKey(record.TenantID, record.UserID, record.Date)
	s.assessments[key] = append(s.assessments[key], record)
	return nil
}

// AssessmentsForDay implements domain.Store.
func (s *Store) AssessmentsForDay(ctx context.Context, tenantID, userID string, date time.Time) ([]domain.StoredAssessment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	slice := s.assessments[dayKey(tenantID, userID, date)]
	out := make([]domain.StoredAssessment, len(slice))
	copy(out, slice)
	return out, nil
}
