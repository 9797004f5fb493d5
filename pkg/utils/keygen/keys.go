package keygen

import (
	"crypto/rand"
	"encoding/base64"
	"math/big"
)

const tokenCharset = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Token returns a random alphanumeric string of the given length,
// suitable for the auth.admin_api_key config entry.
func Token(length int) string {
	result := make([]byte, length)
	for i := range result {
		num, _ := rand.Int(rand.Reader, big.NewInt(int64(len(tokenCharset))))
		result[i] = tokenCharset[num.Int64()]
	}
	return string(result)
}

// Secret returns n random bytes base64-encoded, suitable for the
// auth.jwt_secret config entry.
func Secret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(b), nil
}
