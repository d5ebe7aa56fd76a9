package utils

import (
	"errors"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const testSecret = "0123456789abcdef0123456789abcdef" // 32 bytes

func TestAccessTokenRoundtrip(t *testing.T) {
	at, err := NewAccessToken(testSecret, 42, "ana@x.com", "user", 3, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if time.Until(at.Exp) <= 0 {
		t.Fatalf("expected future expiry, got %v", at.Exp)
	}

	claims, err := VerifyAccessToken(testSecret, at.Token)
	if err != nil {
		t.Fatalf("VerifyAccessToken: %v", err)
	}
	uid, err := claims.UserID()
	if err != nil || uid != 42 {
		t.Fatalf("unexpected subject: %v (err=%v)", uid, err)
	}
	if claims.Email != "ana@x.com" || claims.Role != "user" {
		t.Fatalf("claims not preserved: %+v", claims)
	}
	if claims.TokenVersion != 3 {
		t.Fatalf("token version not preserved: %d", claims.TokenVersion)
	}
	if claims.ID == "" {
		t.Fatal("expected a jti claim")
	}
}

func TestVerifyAccessTokenExpired(t *testing.T) {
	at, err := NewAccessToken(testSecret, 1, "a@b.c", "user", 1, -1)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	if _, err := VerifyAccessToken(testSecret, at.Token); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyAccessTokenRejectsTampering(t *testing.T) {
	at, err := NewAccessToken(testSecret, 1, "a@b.c", "user", 1, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}

	if _, err := VerifyAccessToken(testSecret, at.Token+"x"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("tampered signature: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := VerifyAccessToken("another-secret-that-is-32-bytes!", at.Token); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("wrong secret: expected ErrTokenInvalid, got %v", err)
	}
	if _, err := VerifyAccessToken(testSecret, "not.a.jwt"); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("garbage token: expected ErrTokenInvalid, got %v", err)
	}
}

func TestVerifyAccessTokenPinsIssuerAudienceAlg(t *testing.T) {
	now := time.Now().UTC()
	mint := func(method jwt.SigningMethod, issuer, audience string) string {
		claims := AccessClaims{
			Email: "a@b.c", Role: "user", TokenVersion: 1,
			RegisteredClaims: jwt.RegisteredClaims{
				Subject:   "1",
				Issuer:    issuer,
				Audience:  jwt.ClaimStrings{audience},
				IssuedAt:  jwt.NewNumericDate(now),
				ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
			},
		}
		s, err := jwt.NewWithClaims(method, claims).SignedString([]byte(testSecret))
		if err != nil {
			t.Fatalf("sign: %v", err)
		}
		return s
	}

	if _, err := VerifyAccessToken(testSecret, mint(jwt.SigningMethodHS256, "evil-issuer", TokenAudience)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("wrong issuer accepted: %v", err)
	}
	if _, err := VerifyAccessToken(testSecret, mint(jwt.SigningMethodHS256, TokenIssuer, "evil-app")); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("wrong audience accepted: %v", err)
	}
	// Same secret, different HMAC variant: algorithm negotiation is off.
	if _, err := VerifyAccessToken(testSecret, mint(jwt.SigningMethodHS512, TokenIssuer, TokenAudience)); !errors.Is(err, ErrTokenInvalid) {
		t.Fatalf("HS512 token accepted: %v", err)
	}
}

func TestNewRefreshToken(t *testing.T) {
	rt, err := NewRefreshToken(30)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	// 64 random bytes base64url-encode to 86 characters.
	if len(rt.Raw) != 86 {
		t.Fatalf("unexpected secret length %d", len(rt.Raw))
	}
	if until := time.Until(rt.Exp); until < 29*24*time.Hour || until > 31*24*time.Hour {
		t.Fatalf("unexpected expiry %v", rt.Exp)
	}

	other, err := NewRefreshToken(30)
	if err != nil {
		t.Fatalf("NewRefreshToken: %v", err)
	}
	if rt.Raw == other.Raw {
		t.Fatal("two refresh secrets are identical")
	}
}

func TestHashRefreshRaw(t *testing.T) {
	h1 := HashRefreshRaw("some-secret")
	h2 := HashRefreshRaw("some-secret")
	if h1 != h2 {
		t.Fatal("hash is not deterministic")
	}
	if len(h1) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(h1))
	}
	if h1 == HashRefreshRaw("some-secres") {
		t.Fatal("distinct secrets collided")
	}
}

func TestDecodeUnverified(t *testing.T) {
	at, err := NewAccessToken(testSecret, 7, "a@b.c", "admin", 2, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	claims, err := decodeUnverified(at.Token)
	if err != nil {
		t.Fatalf("decodeUnverified: %v", err)
	}
	if claims.Role != "admin" || claims.TokenVersion != 2 {
		t.Fatalf("unexpected claims: %+v", claims)
	}
}
