package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

var testConfig = Config{Secret: "unit-test-secret", Issuer: "steprewards-test"}

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testConfig.Secret))
	require.NoError(t, err)
	return signed
}

func validClaims() jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user-1",
		"tenant_id": "tenant-1",
		"iss":       testConfig.Issuer,
		"exp":       time.Now().Add(time.Hour).Unix(),
		"scopes":    []string{ScopeStepsWrite, ScopeStepsRead},
	}
}

func TestParseValidToken(t *testing.T) {
	claims, err := Parse(signToken(t, validClaims()), testConfig)
	require.NoError(t, err)
	require.Equal(t, "user-1", claims.Subject)
	require.Equal(t, "tenant-1", claims.TenantID)
	require.True(t, claims.HasScope(ScopeStepsWrite))
	require.False(t, claims.HasScope(ScopeWalletRedeem))
}

func TestParseScopesFromSpaceSeparatedString(t *testing.T) {
	mapClaims := validClaims()
	mapClaims["scopes"] = ScopeStepsWrite + " " + ScopeWalletRedeem
	claims, err := Parse(signToken(t, mapClaims), testConfig)
	require.NoError(t, err)
	require.True(t, claims.HasScope(ScopeStepsWrite))
	require.True(t, claims.HasScope(ScopeWalletRedeem))
}

func TestParseRejectsWrongIssuer(t *testing.T) {
	mapClaims := validClaims()
	mapClaims["iss"] = "someone-else"
	_, err := Parse(signToken(t, mapClaims), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsWrongSecret(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, validClaims())
	signed, err := token.SignedString([]byte("other-secret"))
	require.NoError(t, err)
	_, err = Parse(signed, testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRejectsExpiredToken(t *testing.T) {
	mapClaims := validClaims()
	mapClaims["exp"] = time.Now().Add(-time.Minute).Unix()
	_, err := Parse(signToken(t, mapClaims), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseRequiresTenant(t *testing.T) {
	mapClaims := validClaims()
	delete(mapClaims, "tenant_id")
	_, err := Parse(signToken(t, mapClaims), testConfig)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestParseEmptyToken(t *testing.T) {
	_, err := Parse("  ", testConfig)
	require.ErrorIs(t, err, ErrMissingToken)
}

func TestMiddlewareInjectsClaims(t *testing.T) {
	middleware := NewMiddleware(testConfig)

	var seen *Claims
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = FromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/phase", nil)
	req.Header.Set("Authorization", "Bearer "+signToken(t, validClaims()))
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusNoContent, rr.Code)
	require.NotNil(t, seen)
	require.Equal(t, "tenant-1", seen.TenantID)
}

func TestMiddlewareRejectsMissingHeader(t *testing.T) {
	middleware := NewMiddleware(testConfig)
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler should not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/v1/phase", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMiddlewareSkipsHealthz(t *testing.T) {
	middleware := NewMiddleware(testConfig)
	handler := middleware.Wrap(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
}
