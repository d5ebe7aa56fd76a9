package utils // package utils provides helper functions for token creation and hashing

import (
	"crypto/rand"   // secure random number generation for refresh secrets
	"crypto/sha256" // SHA‑256 hashing for refresh tokens
	"encoding/base64"
	"encoding/hex" // hex encoding for stored token hashes
	"errors"
	"strconv"
	"time" // time utilities for generating expirations

	"github.com/golang-jwt/jwt/v5" // JWT library for creating signed tokens
	"github.com/google/uuid"       // unique jti claim per issued token
)

// Fixed issuer and audience strings.  Both are checked on verification so
// a token minted for another deployment of the same codebase is rejected.
const (
	TokenIssuer   = "arepabuelas-api"
	TokenAudience = "arepabuelas-app"
)

// Verification failures are collapsed into three kinds so handlers can
// give distinct user-facing messages without inspecting library errors.
// ErrTokenRevoked is produced by the middleware when the version claim no
// longer matches the user's current token_version; it belongs to the same
// taxonomy even though VerifyAccessToken itself cannot detect it.
var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrTokenRevoked = errors.New("token revoked")
)

// AccessClaims is the payload of a signed access token.  TokenVersion is a
// snapshot of the user's version counter at mint time; verification
// cross-checks it against the current value, which is how the service
// revokes outstanding tokens without keeping a blacklist.
type AccessClaims struct {
	Email        string `json:"email"`
	Role         string `json:"role"`
	TokenVersion int64  `json:"ver"`
	jwt.RegisteredClaims
}

// AccessToken bundles a signed JWT with its expiry.  Access tokens are
// short‑lived and presented in the Authorization header on protected
// endpoints.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// RefreshToken carries a freshly generated opaque secret and its expiry.
// The Raw field goes to the client over the protected cookie transport; in
// the database only the SHA‑256 hash of it is stored.
type RefreshToken struct {
	Raw string    // raw token secret returned to the client
	Exp time.Time // UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT for a user.  The claims
// embed the subject id, email, role, the token-version snapshot, a fresh
// random jti and the fixed issuer/audience pair.  The signing algorithm is
// never negotiated: HS256 in, HS256 out.
func NewAccessToken(secret string, userID uint64, email, role string, tokenVersion int64, ttlMin int) (AccessToken, error) {
	now := time.Now().UTC()
	exp := now.Add(time.Duration(ttlMin) * time.Minute)
	claims := AccessClaims{
		Email:        email,
		Role:         role,
		TokenVersion: tokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   strconv.FormatUint(userID, 10),
			Issuer:    TokenIssuer,
			Audience:  jwt.ClaimStrings{TokenAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}

// VerifyAccessToken parses and validates an access token.  The signing
// method is pinned to HS256 and the issuer and audience are enforced, so a
// token signed with another algorithm or minted for another service fails
// as invalid.  Expiry maps to ErrTokenExpired; every other failure maps to
// ErrTokenInvalid.
func VerifyAccessToken(secret, raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(TokenIssuer),
		jwt.WithAudience(TokenAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, ErrTokenInvalid
	}
	return claims, nil
}

// UserID returns the numeric subject of the claims.
func (c *AccessClaims) UserID() (uint64, error) {
	return strconv.ParseUint(c.Subject, 10, 64)
}

// NewRefreshToken returns a new opaque refresh secret and its expiration.
// The secret is 64 bytes of cryptographically secure randomness encoded
// URL-safe; it carries full entropy, which is why the at-rest hash can be
// a fast digest rather than a memory-hard one.
func NewRefreshToken(ttlDays int) (RefreshToken, error) {
	buf := make([]byte, 64)
	if _, err := rand.Read(buf); err != nil {
		return RefreshToken{}, err
	}
	return RefreshToken{
		Raw: base64.RawURLEncoding.EncodeToString(buf),
		Exp: time.Now().UTC().Add(time.Duration(ttlDays) * 24 * time.Hour),
	}, nil
}

// HashRefreshRaw returns the SHA‑256 hash of a raw refresh secret as a hex
// string.  The same deterministic function locates the stored row at
// redemption time and protects the at-rest value against database
// disclosure.
func HashRefreshRaw(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// decodeUnverified extracts claims WITHOUT validating the signature.  It
// exists purely for diagnostics (inspecting what a rejected token claimed
// to be) and must never feed an authorization decision.
func decodeUnverified(raw string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return nil, err
	}
	return claims, nil
}
