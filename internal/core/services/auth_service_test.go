package services

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mltrack/backend/internal/config"
	"github.com/mltrack/backend/pkg/utils/passhash"
)

func newTestAuthService(t *testing.T, ttl time.Duration) *AuthService {
	t.Helper()
	hash, err := passhash.Hash("hunter2")
	require.NoError(t, err)
	return NewAuthService(config.AuthConfig{
		AdminPasswordHash: hash,
		JWTSecret:         "test-secret",
		TokenTTL:          ttl,
	}, nil)
}

func TestLogin(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	token, expiresAt, err := svc.Login("hunter2")
	require.NoError(t, err)
	require.NotEmpty(t, token)
	assert.WithinDuration(t, time.Now().Add(time.Hour), expiresAt, 5*time.Second)

	assert.NoError(t, svc.ValidateToken(token))
}

func TestLogin_WrongPassword(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	_, _, err := svc.Login("password123")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLogin_DefaultTTL(t *testing.T) {
	svc := newTestAuthService(t, 0)

	_, expiresAt, err := svc.Login("hunter2")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(defaultTokenTTL), expiresAt, 5*time.Second)
}

func TestLogin_NotConfigured(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{JWTSecret: "test-secret"}, nil)
	_, _, err := svc.Login("anything")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)

	hash, hashErr := passhash.Hash("hunter2")
	require.NoError(t, hashErr)
	svc = NewAuthService(config.AuthConfig{AdminPasswordHash: hash}, nil)
	_, _, err = svc.Login("hunter2")
	assert.ErrorIs(t, err, ErrAuthNotConfigured)
}

func TestValidateToken_Rejections(t *testing.T) {
	svc := newTestAuthService(t, time.Hour)

	assert.ErrorIs(t, svc.ValidateToken("not-a-token"), ErrInvalidCredentials)

	// Signed with somebody else's secret.
	foreign, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString([]byte("other-secret"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidateToken(foreign), ErrInvalidCredentials)

	// Expired.
	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Minute)),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidateToken(expired), ErrInvalidCredentials)

	// alg=none is not HMAC and must not get past the keyfunc.
	unsigned, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "operator",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	assert.ErrorIs(t, svc.ValidateToken(unsigned), ErrInvalidCredentials)
}

func TestValidateToken_NotConfigured(t *testing.T) {
	svc := NewAuthService(config.AuthConfig{}, nil)
	assert.ErrorIs(t, svc.ValidateToken("whatever"), ErrAuthNotConfigured)
}
