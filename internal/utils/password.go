package utils

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters per OWASP guidance: three passes over 64 MiB with a
// single lane.  Tuned so a single verification is expensive for an
// attacker replaying a dumped table but tolerable inline for a login.
const (
	argonTime    = 3
	argonMemory  = 64 * 1024 // KiB
	argonThreads = 1
	argonKeyLen  = 32
	argonSaltLen = 16
)

// commonPasswords is a small denylist of credentials that pass the
// structural rules but are still trivially guessable.
var commonPasswords = map[string]bool{
	"password":    true,
	"123456":      true,
	"password123": true,
	"admin123":    true,
	"qwerty":      true,
	"12345678":    true,
	"111111":      true,
	"abc123":      true,
	"password1":   true,
	"123123":      true,
}

// ValidatePasswordStrength checks the structural password policy and
// returns the list of unmet rules.  An empty slice means the password is
// acceptable.  This is a pure rule check, not a breach-database lookup.
func ValidatePasswordStrength(password string) []string {
	var violations []string
	// Length bounds count characters, not bytes, so a multi-byte rune
	// contributes one toward the limit.
	length := utf8.RuneCountInString(password)
	if length < 8 {
		violations = append(violations, "password must be at least 8 characters")
	}
	if length > 128 {
		violations = append(violations, "password must not exceed 128 characters")
	}
	var lower, upper, digit, special bool
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= '0' && r <= '9':
			digit = true
		case strings.ContainsRune("!@#$%^&*()_+-=[]{};':\"\\|,.<>/?", r):
			special = true
		}
	}
	if !lower {
		violations = append(violations, "must contain a lowercase letter")
	}
	if !upper {
		violations = append(violations, "must contain an uppercase letter")
	}
	if !digit {
		violations = append(violations, "must contain a number")
	}
	if !special {
		violations = append(violations, "must contain a special character")
	}
	if commonPasswords[strings.ToLower(password)] {
		violations = append(violations, "password is too common")
	}
	return violations
}

// HashPassword derives an Argon2id hash with a fresh random salt and
// encodes it in the standard PHC string format so the parameters travel
// with the hash.
func HashPassword(plain string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	key := argon2.IDKey([]byte(plain), salt, argonTime, argonMemory, argonThreads, argonKeyLen)
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(key)), nil
}

// VerifyPassword re-derives the key with the parameters stored in the hash
// and compares in constant time.  Any malformed or foreign hash reads as a
// non-match; this function never returns an error to its caller because a
// verification failure and a broken hash must be indistinguishable.
func VerifyPassword(plain, encoded string) bool {
	salt, key, time, memory, threads, err := decodeArgonHash(encoded)
	if err != nil {
		return false
	}
	derived := argon2.IDKey([]byte(plain), salt, time, memory, threads, uint32(len(key)))
	return subtle.ConstantTimeCompare(derived, key) == 1
}

// decodeArgonHash splits a PHC argon2id string back into salt, key and
// cost parameters.
func decodeArgonHash(encoded string) (salt, key []byte, time, memory uint32, threads uint8, err error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, nil, 0, 0, 0, errors.New("not an argon2id hash")
	}
	var version int
	if _, err = fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, nil, 0, 0, 0, err
	}
	if version != argon2.Version {
		return nil, nil, 0, 0, 0, errors.New("unsupported argon2 version")
	}
	if _, err = fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &time, &threads); err != nil {
		return nil, nil, 0, 0, 0, err
	}
	if salt, err = base64.RawStdEncoding.DecodeString(parts[4]); err != nil {
		return nil, nil, 0, 0, 0, err
	}
	if key, err = base64.RawStdEncoding.DecodeString(parts[5]); err != nil {
		return nil, nil, 0, 0, 0, err
	}
	return salt, key, time, memory, threads, nil
}
