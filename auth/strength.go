package auth

import (
	"errors"
	"fmt"

	"github.com/nbutton23/zxcvbn-go"
)

// MinStrengthScore is the lowest zxcvbn score accepted without a warning.
const MinStrengthScore = 3

// ErrWeakPassword is returned by CheckMasterPassword in strict mode.
var ErrWeakPassword = errors.New("master password is too weak")

// Strength summarises a zxcvbn estimate.
type Strength struct {
	Score     int // 0 (guessable) .. 4 (very strong)
	CrackTime string
}

// EstimateStrength scores pw with zxcvbn. hints are user-specific words
// (service names, usernames) that should not count as entropy.
func EstimateStrength(pw string, hints ...string) Strength {
	m := zxcvbn.PasswordStrength(pw, hints)
	return Strength{Score: m.Score, CrackTime: m.CrackTimeDisplay}
}

// CheckMasterPassword applies the composition policy and the zxcvbn score.
// It returns a list of human-readable problems; with strict set, any problem
// is also reported as an error wrapping ErrWeakPassword.
func CheckMasterPassword(pw string, strict bool, hints ...string) ([]string, error) {
	var problems []string
	if err := ValidateMasterPassword(pw); err != nil {
		problems = append(problems, err.Error())
	}
	if s := EstimateStrength(pw, hints...); s.Score < MinStrengthScore {
		problems = append(problems, fmt.Sprintf("estimated strength %d/4 (cracked in %s)", s.Score, s.CrackTime))
	}

	if strict && len(problems) > 0 {
		return problems, fmt.Errorf("%w: %s", ErrWeakPassword, problems[0])
	}
	return problems, nil
}
