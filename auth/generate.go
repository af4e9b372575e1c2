package auth

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

const (
	// PasswordCharset is the alphabet used for generated service passwords.
	PasswordCharset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*()_+-=[]{}|;:,.<>?"

	DefaultPasswordLength = 20
	MinPasswordLength     = 8
	MaxPasswordLength     = 256
)

// GeneratePassword returns length characters drawn uniformly from PasswordCharset.
func GeneratePassword(length int) (string, error) {
	if length < MinPasswordLength || length > MaxPasswordLength {
		return "", fmt.Errorf("password length must be between %d and %d, got %d", MinPasswordLength, MaxPasswordLength, length)
	}

	max := big.NewInt(int64(len(PasswordCharset)))
	out := make([]byte, length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("generate password: %w", err)
		}
		out[i] = PasswordCharset[n.Int64()]
	}
	return string(out), nil
}
