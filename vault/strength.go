package vault

import (
	"regexp"
	"unicode"
)

// StrengthResult is the outcome of password strength validation.
type StrengthResult struct {
	IsValid     bool     `json:"isValid"`
	Score       int      `json:"score"`
	Suggestions []string `json:"suggestions"`
}

const (
	minPasswordLength    = 8
	strongPasswordLength = 12
	minAcceptableScore   = 4
	maxScore             = 5
)

var commonSequenceRE = regexp.MustCompile(`(?i)123|abc|qwerty|password`)

// ValidatePasswordStrength scores a password 0..5 using rule-based checks:
// length, case mix, digits, symbols and a penalty for common sequences.
// A password is acceptable when it scores at least 4 and meets the minimum
// length. Pure and deterministic.
func ValidatePasswordStrength(password string) StrengthResult {
	var suggestions []string
	score := 0

	switch {
	case len(password) < minPasswordLength:
		suggestions = append(suggestions, "use at least 8 characters")
	case len(password) >= strongPasswordLength:
		score += 2
	default:
		score++
	}

	var hasUpper, hasLower, hasDigit, hasSymbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			hasSymbol = true
		}
	}

	if hasUpper {
		score++
	} else {
		suggestions = append(suggestions, "include at least one uppercase letter")
	}
	if hasLower {
		score++
	} else {
		suggestions = append(suggestions, "include at least one lowercase letter")
	}
	if hasDigit {
		score++
	} else {
		suggestions = append(suggestions, "include at least one digit")
	}
	if hasSymbol {
		score++
	} else {
		suggestions = append(suggestions, "include at least one symbol")
	}

	if commonSequenceRE.MatchString(password) {
		suggestions = append(suggestions, `avoid common sequences like "123" or "abc"`)
		score--
	}

	if score < 0 {
		score = 0
	}
	if score > maxScore {
		score = maxScore
	}

	return StrengthResult{
		IsValid:     score >= minAcceptableScore && len(password) >= minPasswordLength,
		Score:       score,
		Suggestions: suggestions,
	}
}
