package auth

import (
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

// MinPasswordLength is the minimum accepted password length.
const MinPasswordLength = 6

// ErrPasswordTooShort is returned when a password fails validation.
var ErrPasswordTooShort = fmt.Errorf("password must be at least %d characters", MinPasswordLength)

// ValidatePassword checks password policy for registration and password changes.
func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return ErrPasswordTooShort
	}
	return nil
}

// HashPassword hashes a password with bcrypt at the default cost.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(hash), nil
}

// CheckPassword verifies a password against a stored hash. It accepts
// bcrypt hashes as well as legacy unsalted SHA-256 hex digests left
// over from earlier deployments. The second return value reports
// whether the stored hash is legacy and should be upgraded after a
// successful login.
func CheckPassword(password, storedHash string) (ok bool, legacy bool) {
	if isLegacyHash(storedHash) {
		sum := sha256.Sum256([]byte(password))
		digest := hex.EncodeToString(sum[:])
		return subtle.ConstantTimeCompare([]byte(digest), []byte(strings.ToLower(storedHash))) == 1, true
	}
	err := bcrypt.CompareHashAndPassword([]byte(storedHash), []byte(password))
	if err == nil {
		return true, false
	}
	if !errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		// Unrecognized hash format. Treat as mismatch.
		return false, false
	}
	return false, false
}

// isLegacyHash reports whether a stored hash looks like an unsalted
// SHA-256 hex digest rather than a bcrypt hash.
func isLegacyHash(hash string) bool {
	if len(hash) != sha256.Size*2 {
		return false
	}
	for _, r := range hash {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return false
		}
	}
	return true
}

// NormalizeEmail lowercases and trims an email address so lookups and
// uniqueness checks are case insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
