package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signTestToken(t *testing.T, role string, exp time.Time) string {
	t.Helper()
	claims := jwt.MapClaims{
		"user_id": "u-1",
		"email":   "tech@example.com",
		"name":    "Tech One",
		"role":    role,
		"exp":     exp.Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(testSecret)
	require.NoError(t, err)
	return token
}

func TestParseTokenRoundTrip(t *testing.T) {
	token := signTestToken(t, RoleTechnician, time.Now().Add(time.Hour))

	claims, err := ParseToken(testSecret, token)
	require.NoError(t, err)
	assert.Equal(t, "u-1", claims.UserID)
	assert.Equal(t, RoleTechnician, claims.Role)
	assert.False(t, claims.IsAdmin())
}

func TestParseTokenExpired(t *testing.T) {
	token := signTestToken(t, RoleTechnician, time.Now().Add(-time.Hour))

	_, err := ParseToken(testSecret, token)
	assert.Error(t, err)
}

func TestParseTokenWrongSecret(t *testing.T) {
	token := signTestToken(t, RoleAdmin, time.Now().Add(time.Hour))

	_, err := ParseToken([]byte("other-secret"), token)
	assert.Error(t, err)
}

func TestAuthMiddlewareRejectsMissingHeader(t *testing.T) {
	handler := Auth(testSecret)(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not be called")
	})

	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/reports", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestAuthMiddlewareStoresClaims(t *testing.T) {
	called := false
	handler := Auth(testSecret)(func(w http.ResponseWriter, r *http.Request) {
		called = true
		claims, ok := ClaimsFrom(r)
		require.True(t, ok)
		assert.Equal(t, "u-1", claims.UserID)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/reports", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, RoleAdmin, time.Now().Add(time.Hour)))
	rec := httptest.NewRecorder()
	handler(rec, req)

	assert.True(t, called)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireRole(t *testing.T) {
	handler := RequireRole(RoleAdmin)(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	// No claims in context: fails closed.
	rec := httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Authenticated but wrong role.
	auth := Auth(testSecret)(handler)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, RoleTechnician, time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	auth(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admin passes.
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+signTestToken(t, RoleAdmin, time.Now().Add(time.Hour)))
	rec = httptest.NewRecorder()
	auth(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}
