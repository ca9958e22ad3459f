package service

import (
	"errors"

	"golang.org/x/crypto/bcrypt"

	"opsboard/internal/core"
)

// MaxPasswordBytes is the longest input bcrypt accepts.
const MaxPasswordBytes = 72

// CredentialManager hashes, verifies and validates passwords with bcrypt.
type CredentialManager struct {
	cost int
}

// NewCredentialManager uses bcrypt.DefaultCost when cost is out of range.
func NewCredentialManager(cost int) *CredentialManager {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &CredentialManager{cost: cost}
}

// Hash returns a salted bcrypt digest. Two calls with the same input differ.
func (m *CredentialManager) Hash(plain string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(plain), m.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return "", &core.WeakPasswordError{Reason: "Password must be at most 72 bytes long"}
	}
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Verify never fails loudly: a malformed hash simply does not match.
func (m *CredentialManager) Verify(plain, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// ValidateStrength checks length, then uppercase, lowercase and digit, and
// reports the first rule that fails.
func (m *CredentialManager) ValidateStrength(password string) (bool, string) {
	if len(password) < 8 {
		return false, "Password must be at least 8 characters long"
	}

	var hasUpper, hasLower, hasDigit bool
	for i := 0; i < len(password); i++ {
		c := password[i]
		switch {
		case c >= 'A' && c <= 'Z':
			hasUpper = true
		case c >= 'a' && c <= 'z':
			hasLower = true
		case c >= '0' && c <= '9':
			hasDigit = true
		}
	}

	switch {
	case !hasUpper:
		return false, "Password must contain at least one uppercase letter"
	case !hasLower:
		return false, "Password must contain at least one lowercase letter"
	case !hasDigit:
		return false, "Password must contain at least one number"
	}
	return true, "Password is valid"
}
