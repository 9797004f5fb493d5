package passhash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var (
	ErrEmptyPassword = errors.New("passhash: empty password")
	ErrHashFailed    = errors.New("passhash: hashing failed")
)

// Hash derives a bcrypt hash suitable for the auth.admin_password_hash
// config entry.
func Hash(password string) (string, error) {
	if password == "" {
		return "", ErrEmptyPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", ErrHashFailed
	}
	return string(hash), nil
}

// Compare reports whether password matches the stored bcrypt hash.
func Compare(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
