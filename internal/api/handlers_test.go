package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"example.com/steprewards/internal/auth"
	"example.com/steprewards/internal/domain"
	"example.com/steprewards/internal/persistence/memory"
)

func testClaims(scopes ...string) *auth.Claims {
	claimScopes := make(map[string]struct{}, len(scopes))
	for _, scope := range scopes {
		claimScopes[scope] = struct{}{}
	}
	return &auth.Claims{
		Subject:   "user-1",
		TenantID:  "tenant-1",
		Scopes:    claimScopes,
		ExpiresAt: time.Now().Add(time.Hour),
	}
}

func newTestHandler() (*Handler, *http.ServeMux) {
	store := memory.NewStore()
	engine := domain.NewEngine(store, domain.DefaultPhaseTable(),
		domain.WithClock(func() time.Time { return time.Date(2026, 8, 29, 10, 0, 0, 0, time.UTC) }),
	)
	handler := NewHandler(engine)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	return handler, mux
}

func authedRequest(method, target, body string, claims *auth.Claims) *http.Request {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	if claims != nil {
		req = req.WithContext(auth.WithClaims(req.Context(), claims))
	}
	return req
}

func TestIngestStepSuccess(t *testing.T) {
	_, mux := newTestHandler()

	body := `{"device_id":"phone-1","source":"native-health","steps":"5000"}`
	req := authedRequest(http.MethodPost, "/v1/steps", body, testClaims(auth.ScopeStepsWrite))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp IngestStepResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "accepted" {
		t.Fatalf("expected accepted got %s", resp.Status)
	}
	if resp.CreditedSteps != 5000 {
		t.Fatalf("expected 5000 credited got %d", resp.CreditedSteps)
	}
	if resp.Ledger == nil || resp.Ledger.UnitsEarned != 200 {
		t.Fatalf("unexpected ledger view: %+v", resp.Ledger)
	}
}

func TestIngestStepRequiresWriteScope(t *testing.T) {
	_, mux := newTestHandler()

	body := `{"device_id":"phone-1","source":"native-health","steps":"5000"}`
	req := authedRequest(http.MethodPost, "/v1/steps", body, testClaims(auth.ScopeStepsRead))

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestIngestStepRejectsMissingFields(t *testing.T) {
	_, mux := newTestHandler()

	req := authedRequest(http.MethodPost, "/v1/steps", `{"source":"manual","steps":"10"}`, testClaims(auth.ScopeStepsWrite))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestIngestStepMalformedSteps(t *testing.T) {
	_, mux := newTestHandler()

	body := `{"device_id":"phone-1","source":"manual","steps":"many"}`
	req := authedRequest(http.MethodPost, "/v1/steps", body, testClaims(auth.ScopeStepsWrite))
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRedeemFlow(t *testing.T) {
	_, mux := newTestHandler()

	ingestBody := `{"device_id":"phone-1","source":"native-health","steps":"5000"}`
	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/steps", ingestBody, testClaims(auth.ScopeStepsWrite)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("ingest failed: %d %s", rr.Code, rr.Body.String())
	}

	redeemBody := `{"date":"2026-08-29"}`
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/ledger/redeem", redeemBody, testClaims(auth.ScopeWalletRedeem)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp RedeemResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "success" {
		t.Fatalf("expected success got %s", resp.Status)
	}
	if resp.PaisaEarned != 200 {
		t.Fatalf("expected 200 paisa got %d", resp.PaisaEarned)
	}

	// A second redeem reports already_redeemed, not an error.
	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/ledger/redeem", redeemBody, testClaims(auth.ScopeWalletRedeem)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.Status != "already_redeemed" {
		t.Fatalf("expected already_redeemed got %s", resp.Status)
	}
}

func TestRedeemRejectsMalformedDate(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/ledger/redeem", `{"date":"29-08-2026"}`, testClaims(auth.ScopeWalletRedeem)))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestRedeemRequiresWalletScope(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/ledger/redeem", `{"date":"2026-08-29"}`, testClaims(auth.ScopeStepsWrite)))
	if rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 got %d", rr.Code)
	}
}

func TestLedgerHistoryAndDayDetail(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/steps",
		`{"device_id":"phone-1","source":"native-health","steps":"2500"}`, testClaims(auth.ScopeStepsWrite)))
	if rr.Code != http.StatusAccepted {
		t.Fatalf("ingest failed: %d", rr.Code)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/v1/ledger", "", testClaims(auth.ScopeStepsRead)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var history LedgerHistoryResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &history); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if len(history.Items) != 1 {
		t.Fatalf("expected 1 entry got %d", len(history.Items))
	}
	if history.Items[0].Date != "2026-08-29" {
		t.Fatalf("unexpected date %s", history.Items[0].Date)
	}

	rr = httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/v1/ledger/2026-08-29", "", testClaims(auth.ScopeStepsRead)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var day LedgerDayResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &day); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if day.Entry == nil || day.Entry.CappedSteps != 2500 {
		t.Fatalf("unexpected day entry: %+v", day.Entry)
	}
	if len(day.Assessments) != 1 {
		t.Fatalf("expected 1 assessment got %d", len(day.Assessments))
	}
}

func TestPhaseEndpointDefaultsFreshUser(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/v1/phase", "", testClaims(auth.ScopeStepsRead)))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rr.Code, rr.Body.String())
	}

	var resp PhaseStateView
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp.CurrentTier != 1 {
		t.Fatalf("expected tier 1 got %d", resp.CurrentTier)
	}
}

func TestDeviceReconcileWithoutDevices(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/v1/devices/reconcile?date=2026-08-29", "", testClaims(auth.ScopeStepsRead)))
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestDevicePromoteUnknownDevice(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodPost, "/v1/devices/primary", `{"device_id":"ghost"}`, testClaims(auth.ScopeStepsWrite)))
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUnauthenticatedRequestsRejected(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, authedRequest(http.MethodGet, "/v1/phase", "", nil))
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rr.Code)
	}
}

func TestHealthzOpen(t *testing.T) {
	_, mux := newTestHandler()

	rr := httptest.NewRecorder()
	mux.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rr.Code)
	}
}
