package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTokenRoundTrip(t *testing.T) {
	userID := uuid.New()

	token, err := GenerateToken(userID)
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	_, err := ValidateToken("not.a.token")
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	userID := uuid.New()
	var seen uuid.UUID

	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = GetUserIDFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	protected := JWTMiddleware(next)

	// No token
	w := httptest.NewRecorder()
	protected.ServeHTTP(w, httptest.NewRequest("GET", "/conversations", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	// Valid token threads the identity through.
	token, err := GenerateToken(userID)
	require.NoError(t, err)

	req := httptest.NewRequest("GET", "/conversations", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, userID, seen)

	// Unprotected routes pass straight through.
	w = httptest.NewRecorder()
	protected.ServeHTTP(w, httptest.NewRequest("POST", "/user/login", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestConfiguredSecretInvalidatesOldTokens(t *testing.T) {
	t.Cleanup(func() { configuredSecret = nil })

	userID := uuid.New()
	old, err := GenerateToken(userID)
	require.NoError(t, err)

	SetJWTSecret("rotated-secret")

	// Tokens signed under the previous secret stop verifying.
	_, err = ValidateToken(old)
	assert.Error(t, err)

	fresh, err := GenerateToken(userID)
	require.NoError(t, err)
	claims, err := ValidateToken(fresh)
	require.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)

	// Empty means not configured, not cleared.
	SetJWTSecret("")
	_, err = ValidateToken(fresh)
	assert.NoError(t, err)
}
