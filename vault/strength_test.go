package vault

import (
	"strings"
	"testing"
)

func TestValidatePasswordStrengthWeak(t *testing.T) {
	result := ValidatePasswordStrength("abc")
	if result.IsValid {
		t.Fatal("expected 'abc' to be invalid")
	}
	if len(result.Suggestions) == 0 {
		t.Fatal("expected suggestions for a weak password")
	}
	joined := strings.Join(result.Suggestions, "; ")
	if !strings.Contains(joined, "8 characters") {
		t.Errorf("expected a length suggestion, got %q", joined)
	}
	if !strings.Contains(joined, "uppercase") {
		t.Errorf("expected an uppercase suggestion, got %q", joined)
	}
}

func TestValidatePasswordStrengthStrong(t *testing.T) {
	result := ValidatePasswordStrength("Str0ng!Pass12")
	if !result.IsValid {
		t.Fatalf("expected strong password to be valid, suggestions: %v", result.Suggestions)
	}
	if result.Score < 4 {
		t.Errorf("expected score >= 4, got %d", result.Score)
	}
}

func TestValidatePasswordStrengthScoring(t *testing.T) {
	tests := []struct {
		password string
		valid    bool
	}{
		{"", false},
		{"short1!", false},      // under minimum length
		{"alllowercase", false}, // long but one character class
		{"abc123ABC", false},    // common sequences drop it below the bar
		{"Tr1cky&Horse", true},
		{"xY9#long-enough", true},
	}
	for _, tt := range tests {
		result := ValidatePasswordStrength(tt.password)
		if result.IsValid != tt.valid {
			t.Errorf("ValidatePasswordStrength(%q).IsValid = %v, want %v (score %d)",
				tt.password, result.IsValid, tt.valid, result.Score)
		}
	}
}

func TestValidatePasswordStrengthCommonSequencePenalty(t *testing.T) {
	with := ValidatePasswordStrength("Hrs123x!")
	without := ValidatePasswordStrength("Hrs987x!")
	if with.Score >= without.Score {
		t.Errorf("expected common-sequence penalty: %d vs %d", with.Score, without.Score)
	}
}
