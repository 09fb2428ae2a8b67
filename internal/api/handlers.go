// Package api exposes HTTP handlers for the step-reward engine.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"example.com/steprewards/internal/auth"
	"example.com/steprewards/internal/domain"
	"example.com/steprewards/internal/observability"
	"example.com/steprewards/internal/persistence"
)

// Handler coordinates HTTP requests with the reward engine.
type Handler struct {
	engine *domain.Engine
}

// NewHandler builds a Handler.
func NewHandler(engine *domain.Engine) *Handler {
	return &Handler{engine: engine}
}

// RegisterRoutes wires endpoints to the mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/v1/steps", h.steps)
	mux.HandleFunc("/v1/ledger", h.ledger)
	mux.HandleFunc("/v1/ledger/", h.ledgerSubpath)
	mux.HandleFunc("/v1/phase", h.phase)
	mux.HandleFunc("/v1/devices/", h.devices)
	mux.HandleFunc("/healthz", healthz)
}

// healthz reports a simple OK status for container health checks.
func healthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) steps(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:write required")
		return
	}

	var req IngestStepRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	result, err := h.engine.IngestStep(r.Context(), domain.IngestInput{
		TenantID:   claims.TenantID,
		UserID:     claims.Subject,
		DeviceType: req.DeviceType,
		Sample: domain.RawSample{
			DeviceID:          req.DeviceID,
			Source:            req.Source,
			Steps:             req.Steps,
			RecordedAt:        req.RecordedAt,
			SpeedKmh:          req.SpeedKmh,
			GPSAccuracyMeters: req.GPSAccuracyMeters,
		},
	})
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrMalformedSample):
			writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		case errors.Is(err, domain.ErrPermissionRevoked):
			writeError(w, http.StatusConflict, "permission_revoked", "device permission revoked; use manual entry")
		case errors.Is(err, domain.ErrDaySealed):
			writeError(w, http.StatusConflict, "day_sealed", "ledger day already sealed")
		case errors.Is(err, domain.ErrStorageUnavailable):
			writeError(w, http.StatusServiceUnavailable, "storage_unavailable", "try again later")
		default:
			writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		}
		return
	}

	observability.RecordSample(string(result.Status), result.Assessment.Score)
	if result.Advance != nil {
		observability.RecordTierAdvance()
	}

	writeJSON(w, http.StatusAccepted, toIngestView(result))
}

func (h *Handler) ledger(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsRead) && !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:read required")
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			if parsed > 100 {
				parsed = 100
			}
			limit = parsed
		}
	}

	cursor, err := persistence.DecodeCursor(r.URL.Query().Get("cursor"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "invalid cursor")
		return
	}

	entries, next, err := h.engine.LedgerHistory(r.Context(), claims.TenantID, claims.Subject, cursor, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	items := make([]LedgerEntryView, 0, len(entries))
	for i := range entries {
		items = append(items, toLedgerView(&entries[i]))
	}
	writeJSON(w, http.StatusOK, LedgerHistoryResponse{
		Items:      items,
		NextCursor: persistence.EncodeCursor(next),
	})
}

func (h *Handler) ledgerSubpath(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/v1/ledger/")
	switch {
	case rest == "redeem":
		h.redeem(w, r)
	case rest != "":
		h.ledgerDay(w, r, rest)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown ledger resource")
	}
}

func (h *Handler) ledgerDay(w http.ResponseWriter, r *http.Request, dateKey string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsRead) && !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:read required")
		return
	}

	date, err := time.Parse(domain.DateLayout, dateKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}

	entry, assessments, err := h.engine.LedgerDay(r.Context(), claims.TenantID, claims.Subject, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := LedgerDayResponse{
		Date:        dateKey,
		Assessments: make([]AssessmentView, 0, len(assessments)),
	}
	if entry != nil {
		view := toLedgerView(entry)
		resp.Entry = &view
	}
	for _, a := range assessments {
		resp.Assessments = append(resp.Assessments, toAssessmentView(a))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) redeem(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeWalletRedeem) {
		writeError(w, http.StatusForbidden, "forbidden", "scope wallet:redeem required")
		return
	}

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	date, err := time.Parse(domain.DateLayout, req.Date)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
		return
	}
	status, entry, err := h.engine.RedeemDay(r.Context(), claims.TenantID, claims.Subject, date)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	resp := RedeemResponse{Date: req.Date, Status: string(status)}
	if entry != nil {
		resp.PaisaEarned = entry.PaisaEarned
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) phase(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsRead) && !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:read required")
		return
	}

	state, err := h.engine.PhaseState(r.Context(), claims.TenantID, claims.Subject)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, PhaseStateView{
		CurrentTier:          state.CurrentTier,
		PhaseStartDate:       state.PhaseStartDate,
		CumulativePhaseSteps: state.CumulativePhaseSteps,
		TotalLifetimeSteps:   state.TotalLifetimeSteps,
		CurrentStreakDays:    state.CurrentStreakDays,
		LongestStreakDays:    state.LongestStreakDays,
	})
}

func (h *Handler) devices(w http.ResponseWriter, r *http.Request) {
	action := strings.TrimPrefix(r.URL.Path, "/v1/devices/")
	switch action {
	case "reconcile":
		h.reconcile(w, r)
	case "primary":
		h.deviceAction(w, r, h.engine.PromotePrimaryDevice)
	case "revoke":
		h.deviceAction(w, r, h.engine.RevokeDevicePermission)
	case "disconnect":
		h.deviceAction(w, r, h.engine.DisconnectDevice)
	default:
		writeError(w, http.StatusNotFound, "not_found", "unknown device action")
	}
}

func (h *Handler) reconcile(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsRead) && !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:read required")
		return
	}

	date := time.Now()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse(domain.DateLayout, raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "validation_failed", "date must be YYYY-MM-DD")
			return
		}
		date = parsed
	}

	result, err := h.engine.ReconcileDevices(r.Context(), claims.TenantID, claims.Subject, date)
	if err != nil {
		if errors.Is(err, domain.ErrNoPrimaryDevice) {
			writeError(w, http.StatusConflict, "no_primary_device", "no primary device registered")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) deviceAction(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, tenantID, userID, deviceID string) error) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method_not_allowed", "unsupported method")
		return
	}

	claims, ok := auth.FromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "unauthorized", "missing bearer token")
		return
	}
	if !claims.HasScope(auth.ScopeStepsWrite) {
		writeError(w, http.StatusForbidden, "forbidden", "scope steps:write required")
		return
	}

	var req DeviceActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "unable to parse body")
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
		return
	}

	if err := fn(r.Context(), claims.TenantID, claims.Subject, req.DeviceID); err != nil {
		if errors.Is(err, domain.ErrDeviceNotFound) {
			writeError(w, http.StatusNotFound, "not_found", "device not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "server_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
