// Package hash handles the bcrypt credential that guards /metrics.
package hash

import (
	"errors"

	"golang.org/x/crypto/bcrypt"
)

var ErrEmptyPassword = errors.New("password is empty")

// HashPassword returns the value to put in METRICS_PASSWORD_HASH.
func HashPassword(plain string) (string, error) {
	if plain == "" {
		return "", ErrEmptyPassword
	}
	out, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// ValidateHash rejects anything that is not a bcrypt hash, so a plaintext
// password pasted into the environment fails at startup instead of locking
// every scrape out.
func ValidateHash(hashed string) error {
	_, err := bcrypt.Cost([]byte(hashed))
	return err
}

// CheckPassword reports whether plain matches hashed. An empty or malformed
// hash never matches.
func CheckPassword(hashed, plain string) bool {
	if hashed == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(hashed), []byte(plain)) == nil
}
