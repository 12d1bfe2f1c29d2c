package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "test-secret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func validClaims(userID, tenantID string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":       "user@example.com",
		"user_id":   userID,
		"tenant_id": tenantID,
		"exp":       time.Now().UTC().Add(time.Hour).Unix(),
	}
}

func TestAuthenticateTenantScoped(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()
	tenantID := uuid.NewString()

	claims, err := a.Authenticate(signToken(t, testSecret, validClaims(userID, tenantID)))
	require.NoError(t, err)

	assert.Equal(t, "user@example.com", claims.Subject)
	assert.Equal(t, userID, claims.Identity.UserID.String())
	assert.False(t, claims.Identity.SuperAdmin)
	assert.Equal(t, tenantID, claims.Identity.TenantString())
}

func TestAuthenticateSuperAdminSentinel(t *testing.T) {
	a := NewAuthenticator(testSecret)
	userID := uuid.NewString()

	claims, err := a.Authenticate(signToken(t, testSecret, validClaims(userID, TenantNone)))
	require.NoError(t, err)

	assert.True(t, claims.Identity.SuperAdmin)
	assert.Equal(t, TenantNone, claims.Identity.TenantString())
}

func TestAuthenticateExpired(t *testing.T) {
	a := NewAuthenticator(testSecret)
	claims := validClaims(uuid.NewString(), uuid.NewString())
	claims["exp"] = time.Now().UTC().Add(-time.Minute).Unix()

	_, err := a.Authenticate(signToken(t, testSecret, claims))
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestAuthenticateWrongSecret(t *testing.T) {
	a := NewAuthenticator(testSecret)
	_, err := a.Authenticate(signToken(t, "other-secret", validClaims(uuid.NewString(), uuid.NewString())))
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateGarbage(t *testing.T) {
	a := NewAuthenticator(testSecret)
	_, err := a.Authenticate("not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestAuthenticateMissingClaims(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(jwt.MapClaims)
		want   string // field named in the error
	}{
		{"no sub", func(m jwt.MapClaims) { delete(m, "sub") }, "sub"},
		{"no user_id", func(m jwt.MapClaims) { delete(m, "user_id") }, "user_id"},
		{"no tenant_id", func(m jwt.MapClaims) { delete(m, "tenant_id") }, "tenant_id"},
		{"numeric sub", func(m jwt.MapClaims) { m["sub"] = 42 }, "sub"},
		{"numeric user_id", func(m jwt.MapClaims) { m["user_id"] = 42 }, "user_id"},
	}
	a := NewAuthenticator(testSecret)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			claims := validClaims(uuid.NewString(), uuid.NewString())
			tt.mutate(claims)
			_, err := a.Authenticate(signToken(t, testSecret, claims))
			require.ErrorIs(t, err, ErrInvalidToken)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestAuthenticateBadUUIDs(t *testing.T) {
	a := NewAuthenticator(testSecret)

	claims := validClaims("not-a-uuid", uuid.NewString())
	_, err := a.Authenticate(signToken(t, testSecret, claims))
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "user_id")

	claims = validClaims(uuid.NewString(), "not-a-uuid")
	_, err = a.Authenticate(signToken(t, testSecret, claims))
	require.ErrorIs(t, err, ErrInvalidToken)
	assert.Contains(t, err.Error(), "tenant_id")
}
