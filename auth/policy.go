package auth

import (
	"errors"
	"fmt"
	"strings"
	"unicode"
)

const specialChars = "!\"#$%&'()*+,-./:;<=>?@[\\]^_{|}~`"

// Policy lists the composition rules for a master password.
type Policy struct {
	MinLength      int
	RequireUpper   bool
	RequireDigit   bool
	RequireSpecial bool
}

// DefaultPolicy is the policy applied by ValidateMasterPassword.
var DefaultPolicy = Policy{
	MinLength:      12,
	RequireUpper:   true,
	RequireDigit:   true,
	RequireSpecial: true,
}

// Validate returns the first rule pw breaks, or nil.
func (p Policy) Validate(pw string) error {
	if n := len([]rune(pw)); n < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}
	if p.RequireUpper && !strings.ContainsFunc(pw, unicode.IsUpper) {
		return errors.New("password must include an uppercase letter")
	}
	if p.RequireDigit && !strings.ContainsFunc(pw, unicode.IsDigit) {
		return errors.New("password must include a digit")
	}
	if p.RequireSpecial && !strings.ContainsAny(pw, specialChars) {
		return errors.New("password must include a special character")
	}
	return nil
}

// ValidateMasterPassword applies DefaultPolicy.
func ValidateMasterPassword(pw string) error {
	return DefaultPolicy.Validate(pw)
}
