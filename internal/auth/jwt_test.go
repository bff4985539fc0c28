package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/citytrace/citytrace/internal/auth"
)

const testIssuer = "https://citytrace.example.com"

func newService(t *testing.T, key, issuer, audience string) *auth.JWTService {
	t.Helper()
	svc, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: key,
		Issuer:     issuer,
		Audience:   audience,
	})
	require.NoError(t, err)
	return svc
}

func TestJWTService_GenerateAndValidateAccessToken(t *testing.T) {
	svc := newService(t, "test-secret-key-for-testing-only", testIssuer, "")

	token, expiresAt, err := svc.GenerateAccessToken("dashboard", "render timeseries")
	require.NoError(t, err)
	assert.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(auth.DefaultAccessTokenExpiry), expiresAt, time.Minute)

	claims, err := svc.ValidateAccessToken(token)
	require.NoError(t, err)
	assert.Equal(t, "dashboard", claims.Subject)
	assert.Equal(t, "render timeseries", claims.Scope)
	assert.Equal(t, testIssuer, claims.Issuer)
}

func TestNewJWTService_RequiresKey(t *testing.T) {
	_, err := auth.NewJWTService(auth.JWTConfig{})
	assert.ErrorIs(t, err, auth.ErrMissingSigningKey)
}

func TestJWTService_EmptyClient(t *testing.T) {
	svc := newService(t, "k", testIssuer, "")
	_, _, err := svc.GenerateAccessToken("", "")
	assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
}

func TestJWTService_InvalidToken(t *testing.T) {
	svc := newService(t, "test-secret-key-for-testing-only", testIssuer, "")

	tests := []struct {
		name  string
		token string
	}{
		{"empty token", ""},
		{"malformed token", "not.a.valid.jwt"},
		{"invalid base64", "xxx.yyy.zzz"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateAccessToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Mismatch(t *testing.T) {
	tests := []struct {
		name      string
		validator *auth.JWTService
	}{
		{"signing key", newService(t, "key-two", testIssuer, "")},
		{"issuer", newService(t, "key-one", "issuer-two", "")},
		{"audience", newService(t, "key-one", testIssuer, "other-api")},
	}

	token, _, err := newService(t, "key-one", testIssuer, "").GenerateAccessToken("batch", "")
	require.NoError(t, err)

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.validator.ValidateAccessToken(token)
			assert.ErrorIs(t, err, auth.ErrInvalidAccessToken)
		})
	}
}

func TestJWTService_Expired(t *testing.T) {
	issued := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := issued

	svc, err := auth.NewJWTService(auth.JWTConfig{
		SigningKey: "k",
		Issuer:     testIssuer,
		Expiry:     time.Hour,
		Now:        func() time.Time { return clock },
	})
	require.NoError(t, err)

	token, _, err := svc.GenerateAccessToken("batch", "")
	require.NoError(t, err)

	clock = issued.Add(2 * time.Hour)
	_, err = svc.ValidateAccessToken(token)
	assert.ErrorIs(t, err, auth.ErrAccessTokenExpired)
}
