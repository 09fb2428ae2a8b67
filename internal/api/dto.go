package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"example.com/steprewards/internal/domain"
)

// IngestStepRequest is the payload for POST /v1/steps.
type IngestStepRequest struct {
	DeviceID          string     `json:"device_id"`
	DeviceType        string     `json:"device_type,omitempty"`
	Source            string     `json:"source"`
	Steps             string     `json:"steps"`
	RecordedAt        *time.Time `json:"recorded_at,omitempty"`
	SpeedKmh          *float64   `json:"speed_kmh,omitempty"`
	GPSAccuracyMeters *float64   `json:"gps_accuracy_meters,omitempty"`
}

// Validate ensures request correctness. Step count validation is left to the
// engine so malformed values are still recorded for audit.
func (r IngestStepRequest) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	if strings.TrimSpace(r.Source) == "" {
		return errors.New("source is required")
	}
	if strings.TrimSpace(r.Steps) == "" {
		return errors.New("steps is required")
	}
	return nil
}

// RedeemRequest is the payload for POST /v1/ledger/redeem.
type RedeemRequest struct {
	Date string `json:"date"`
}

// Validate ensures request correctness.
func (r RedeemRequest) Validate() error {
	if _, err := time.Parse(domain.DateLayout, r.Date); err != nil {
		return errors.New("date must be YYYY-MM-DD")
	}
	return nil
}

// DeviceActionRequest names the device targeted by a device mutation.
type DeviceActionRequest struct {
	DeviceID string `json:"device_id"`
}

// Validate ensures request correctness.
func (r DeviceActionRequest) Validate() error {
	if strings.TrimSpace(r.DeviceID) == "" {
		return errors.New("device_id is required")
	}
	return nil
}

// IngestStepResponse describes the outcome of one ingested sample.
type IngestStepResponse struct {
	SampleID      string                 `json:"sample_id"`
	Status        string                 `json:"status"`
	Accepted      bool                   `json:"accepted"`
	Reason        string                 `json:"reason,omitempty"`
	CreditedSteps int                    `json:"credited_steps"`
	FraudScore    int                    `json:"fraud_score"`
	FraudAction   string                 `json:"fraud_action"`
	FraudReasons  []domain.ReasonDetail  `json:"fraud_reasons,omitempty"`
	Ledger        *LedgerEntryView       `json:"ledger,omitempty"`
	TierAdvance   *TierAdvanceView       `json:"tier_advance,omitempty"`
}

// TierAdvanceView reports a phase transition triggered by the sample.
type TierAdvanceView struct {
	FromTier int `json:"from_tier"`
	ToTier   int `json:"to_tier"`
}

// LedgerEntryView exposes one day of reward accounting.
type LedgerEntryView struct {
	Date        string     `json:"date"`
	RawSteps    int        `json:"raw_steps"`
	CappedSteps int        `json:"capped_steps"`
	UnitsEarned int        `json:"units_earned"`
	PaisaEarned int        `json:"paisa_earned"`
	TierAtCalc  int        `json:"tier_at_calc"`
	IsRedeemed  bool       `json:"is_redeemed"`
	RedeemedAt  *time.Time `json:"redeemed_at,omitempty"`
	SealedAt    *time.Time `json:"sealed_at,omitempty"`
}

// LedgerHistoryResponse packages paginated history results.
type LedgerHistoryResponse struct {
	Items      []LedgerEntryView `json:"items"`
	NextCursor string            `json:"next_cursor,omitempty"`
}

// AssessmentView exposes an audit record for one scored sample.
type AssessmentView struct {
	SampleID    string                `json:"sample_id"`
	DeviceID    string                `json:"device_id"`
	Steps       int                   `json:"steps"`
	Accepted    bool                  `json:"accepted"`
	Reason      string                `json:"reason,omitempty"`
	FraudScore  int                   `json:"fraud_score"`
	FraudAction string                `json:"fraud_action"`
	Reasons     []domain.ReasonDetail `json:"fraud_reasons,omitempty"`
	CreatedAt   time.Time             `json:"created_at"`
}

// LedgerDayResponse merges a day's entry with its audit assessments.
type LedgerDayResponse struct {
	Date        string           `json:"date"`
	Entry       *LedgerEntryView `json:"entry,omitempty"`
	Assessments []AssessmentView `json:"assessments"`
}

// RedeemResponse describes the outcome of a redemption attempt.
type RedeemResponse struct {
	Date        string `json:"date"`
	Status      string `json:"status"`
	PaisaEarned int    `json:"paisa_earned"`
}

// PhaseStateView exposes the user's progression record.
type PhaseStateView struct {
	CurrentTier          int       `json:"current_tier"`
	PhaseStartDate       time.Time `json:"phase_start_date"`
	CumulativePhaseSteps int       `json:"cumulative_phase_steps"`
	TotalLifetimeSteps   int64     `json:"total_lifetime_steps"`
	CurrentStreakDays    int       `json:"current_streak_days"`
	LongestStreakDays    int       `json:"longest_streak_days"`
}

func toIngestView(result domain.IngestResult) IngestStepResponse {
	resp := IngestStepResponse{
		SampleID:      result.SampleID,
		Status:        string(result.Status),
		Accepted:      result.Accepted,
		Reason:        result.Reason,
		CreditedSteps: result.CreditedSteps,
		FraudScore:    result.Assessment.Score,
		FraudAction:   string(result.Assessment.Action),
		FraudReasons:  result.Assessment.Reasons,
	}
	if result.Ledger != nil {
		view := toLedgerView(result.Ledger)
		resp.Ledger = &view
	}
	if result.Advance != nil {
		resp.TierAdvance = &TierAdvanceView{FromTier: result.Advance.FromTier, ToTier: result.Advance.ToTier}
	}
	return resp
}

func toLedgerView(entry *domain.DailyLedgerEntry) LedgerEntryView {
	return LedgerEntryView{
		Date:        entry.DateKey(),
		RawSteps:    entry.RawSteps,
		CappedSteps: entry.CappedSteps,
		UnitsEarned: entry.UnitsEarned,
		PaisaEarned: entry.PaisaEarned,
		TierAtCalc:  entry.TierAtCalc,
		IsRedeemed:  entry.IsRedeemed,
		RedeemedAt:  entry.RedeemedAt,
		SealedAt:    entry.SealedAt,
	}
}

func toAssessmentView(record domain.StoredAssessment) AssessmentView {
	return AssessmentView{
		SampleID:    record.SampleID,
		DeviceID:    record.DeviceID,
		Steps:       record.Steps,
		Accepted:    record.Accepted,
		Reason:      record.Reason,
		FraudScore:  record.Assessment.Score,
		FraudAction: string(record.Assessment.Action),
		Reasons:     record.Assessment.Reasons,
		CreatedAt:   record.CreatedAt,
	}
}

func writeError(w http.ResponseWriter, status int, code, detail string) {
	payload := map[string]string{
		"type":   code,
		"detail": detail,
	}
	writeJSON(w, status, payload)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
