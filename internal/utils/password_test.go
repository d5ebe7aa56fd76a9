package utils

import (
	"strings"
	"testing"
)

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		name     string
		password string
		want     string // expected violation substring, "" means valid
	}{
		{"valid", "CorrectPass1!", ""},
		{"too short", "Ab1!", "at least 8 characters"},
		{"too long", strings.Repeat("Ab1!", 40), "not exceed 128"},
		// 7 characters but 8 bytes: the bound counts runes.
		{"multibyte short", "Pañ1!xy", "at least 8 characters"},
		// 128 characters but 160 bytes: still within the maximum.
		{"multibyte max length", strings.Repeat("Aá1!", 32), ""},
		{"no lowercase", "PASSWORD1!", "lowercase letter"},
		{"no uppercase", "password1!", "uppercase letter"},
		{"no digit", "Weak!pass", "must contain a number"},
		{"no special", "Password1", "special character"},
		{"common", "Password123", "too common"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			violations := ValidatePasswordStrength(tc.password)
			if tc.want == "" {
				if len(violations) != 0 {
					t.Fatalf("expected valid, got violations: %v", violations)
				}
				return
			}
			found := false
			for _, v := range violations {
				if strings.Contains(v, tc.want) {
					found = true
				}
			}
			if !found {
				t.Fatalf("expected violation containing %q, got %v", tc.want, violations)
			}
		})
	}
}

func TestHashAndVerifyPassword(t *testing.T) {
	const pw = "CorrectPass1!"
	hash, err := HashPassword(pw)
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if !strings.HasPrefix(hash, "$argon2id$") {
		t.Fatalf("expected argon2id PHC string, got %q", hash)
	}
	if !VerifyPassword(pw, hash) {
		t.Fatal("correct password did not verify")
	}
	if VerifyPassword("CorrectPass1?", hash) {
		t.Fatal("single-character mutation verified")
	}
	if VerifyPassword("", hash) {
		t.Fatal("empty password verified")
	}
}

func TestHashPasswordSalted(t *testing.T) {
	a, err := HashPassword("CorrectPass1!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	b, err := HashPassword("CorrectPass1!")
	if err != nil {
		t.Fatalf("HashPassword: %v", err)
	}
	if a == b {
		t.Fatal("two hashes of the same password are identical; salt is not random")
	}
}

func TestVerifyPasswordMalformedHash(t *testing.T) {
	// A verification error must read as a non-match, never a panic or error.
	for _, bad := range []string{
		"",
		"not a hash",
		"$argon2id$v=19$m=65536,t=3,p=1$short",
		"$bcrypt$whatever",
		"$argon2id$v=19$m=65536,t=3,p=1$!!!$!!!",
	} {
		if VerifyPassword("CorrectPass1!", bad) {
			t.Fatalf("malformed hash %q verified", bad)
		}
	}
}
