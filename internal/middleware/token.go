// Package middleware provides HTTP middleware for the toggld server:
// bearer-token authentication with bcrypt-hashed tokens, per-IP rate
// limiting of failed attempts, and request-scoped logging.
package middleware

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const tokenHashCost = bcrypt.DefaultCost

// HashToken returns a salted bcrypt hash for a bearer token, suitable for
// the AUTH_TOKEN_HASH configuration value.
func HashToken(token string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(token), tokenHashCost)
	if err != nil {
		return "", fmt.Errorf("hash token: %w", err)
	}
	return string(hash), nil
}

// TokenMatchesHash compares a bearer token against a stored bcrypt hash.
func TokenMatchesHash(expectedHash, token string) bool {
	return bcrypt.CompareHashAndPassword([]byte(expectedHash), []byte(token)) == nil
}
