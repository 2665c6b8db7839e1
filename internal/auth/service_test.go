package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/johnrirwin/newsradar/internal/config"
	"github.com/johnrirwin/newsradar/internal/testutil"
)

func testConfig() config.AuthConfig {
	return config.AuthConfig{
		JWTSecret:   "test-secret-key-minimum-32-chars-long",
		JWTIssuer:   "newsradar-test",
		JWTAudience: "newsradar-users",
		TokenTTL:    15 * time.Minute,
	}
}

func TestAuthError(t *testing.T) {
	err := &AuthError{Code: "invalid_token", Message: "invalid or expired token"}
	assert.Equal(t, "invalid or expired token", err.Error())
}

func TestVerifier_RoundTrip(t *testing.T) {
	v := NewVerifier(testConfig(), testutil.NullLogger())

	token, err := v.IssueToken("user-1")
	require.NoError(t, err)

	userID, err := v.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-1", userID)
}

func TestVerifier_Rejects(t *testing.T) {
	cfg := testConfig()
	v := NewVerifier(cfg, testutil.NullLogger())

	sign := func(claims jwt.MapClaims, secret string) string {
		s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
		require.NoError(t, err)
		return s
	}
	exp := time.Now().Add(time.Hour).Unix()

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not-a-token"},
		{"wrong secret", sign(jwt.MapClaims{"sub": "u", "iss": cfg.JWTIssuer, "aud": cfg.JWTAudience, "exp": exp}, "other-secret")},
		{"wrong issuer", sign(jwt.MapClaims{"sub": "u", "iss": "someone-else", "aud": cfg.JWTAudience, "exp": exp}, cfg.JWTSecret)},
		{"wrong audience", sign(jwt.MapClaims{"sub": "u", "iss": cfg.JWTIssuer, "aud": "admins", "exp": exp}, cfg.JWTSecret)},
		{"missing subject", sign(jwt.MapClaims{"iss": cfg.JWTIssuer, "aud": cfg.JWTAudience, "exp": exp}, cfg.JWTSecret)},
		{"expired", sign(jwt.MapClaims{"sub": "u", "iss": cfg.JWTIssuer, "aud": cfg.JWTAudience, "exp": time.Now().Add(-time.Hour).Unix()}, cfg.JWTSecret)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := v.ValidateAccessToken(tt.token)
			var authErr *AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, "invalid_token", authErr.Code)
		})
	}
}

func TestVerifier_IssueWithoutSecret(t *testing.T) {
	v := NewVerifier(config.AuthConfig{}, testutil.NullLogger())
	assert.False(t, v.Enabled())

	_, err := v.IssueToken("user-1")
	assert.Error(t, err)
}

func TestMiddleware_RequireAuth(t *testing.T) {
	v := NewVerifier(testConfig(), testutil.NullLogger())
	m := NewMiddleware(v)

	var seen string
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	})

	token, err := v.IssueToken("reader-7")
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "reader-7", seen)

	// The dev header is ignored once a secret is configured
	req = httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set(DevUserHeader, "intruder")
	rec = httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMiddleware_DevHeader(t *testing.T) {
	m := NewMiddleware(NewVerifier(config.AuthConfig{}, testutil.NullLogger()))

	var seen string
	handler := m.RequireAuth(func(w http.ResponseWriter, r *http.Request) {
		seen = GetUserID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/api/feed", nil)
	req.Header.Set(DevUserHeader, "local-dev")
	rec := httptest.NewRecorder()
	handler(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "local-dev", seen)

	rec = httptest.NewRecorder()
	handler(rec, httptest.NewRequest(http.MethodGet, "/api/feed", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
