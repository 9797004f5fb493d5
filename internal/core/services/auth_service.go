package services

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/mltrack/backend/internal/config"
	"github.com/mltrack/backend/internal/infrastructure/logger"
	"github.com/mltrack/backend/pkg/utils/passhash"
)

const defaultTokenTTL = 12 * time.Hour

// AuthService issues and validates the console's session tokens. The
// console is single-operator: one bcrypt password hash in the config,
// JWTs signed with a shared secret.
type AuthService struct {
	cfg    config.AuthConfig
	logger *logger.Logger
}

func NewAuthService(cfg config.AuthConfig, log *logger.Logger) *AuthService {
	if log == nil {
		log = logger.NewNop()
	}
	return &AuthService{cfg: cfg, logger: log}
}

// Login exchanges the operator password for a signed session token.
func (s *AuthService) Login(password string) (string, time.Time, error) {
	if s.cfg.AdminPasswordHash == "" || s.cfg.JWTSecret == "" {
		return "", time.Time{}, ErrAuthNotConfigured
	}
	if !passhash.Compare(s.cfg.AdminPasswordHash, password) {
		s.logger.Warnw("login rejected, wrong password")
		return "", time.Time{}, ErrInvalidCredentials
	}

	ttl := s.cfg.TokenTTL
	if ttl <= 0 {
		ttl = defaultTokenTTL
	}
	expiresAt := time.Now().Add(ttl)

	claims := jwt.RegisteredClaims{
		Subject:   "operator",
		Issuer:    "mltrack",
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.cfg.JWTSecret))
	if err != nil {
		return "", time.Time{}, fmt.Errorf("failed to sign session token: %w", err)
	}

	s.logger.Infow("operator logged in", "expires_at", expiresAt)
	return token, expiresAt, nil
}

// ValidateToken checks a session token's signature and expiry.
func (s *AuthService) ValidateToken(tokenString string) error {
	if s.cfg.JWTSecret == "" {
		return ErrAuthNotConfigured
	}
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.cfg.JWTSecret), nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidCredentials
	}
	return nil
}
