package auth

import (
	"crypto/subtle"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

const placeholderPrefix = "temp_hash_"

// PasswordVerifier hashes and checks credentials.
type PasswordVerifier interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// NewPasswordVerifier returns the verifier for scheme: "placeholder" (default)
// or "bcrypt".
func NewPasswordVerifier(scheme string) (PasswordVerifier, error) {
	switch strings.ToLower(scheme) {
	case "", "placeholder":
		return placeholder{}, nil
	case "bcrypt":
		return bcryptVerifier{cost: bcrypt.DefaultCost}, nil
	default:
		return nil, fmt.Errorf("unknown password scheme %q", scheme)
	}
}

// placeholder stores "temp_hash_" + password. It exists for parity with
// accounts created before real hashing was turned on.
type placeholder struct{}

func (placeholder) Hash(password string) (string, error) {
	return placeholderPrefix + password, nil
}

func (placeholder) Verify(hash, password string) bool {
	return subtle.ConstantTimeCompare([]byte(hash), []byte(placeholderPrefix+password)) == 1
}

type bcryptVerifier struct {
	cost int
}

func (b bcryptVerifier) Hash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), b.cost)
	if err != nil {
		return "", err
	}
	return string(h), nil
}

func (bcryptVerifier) Verify(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
