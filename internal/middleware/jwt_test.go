package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"

	"github.com/arepabuelas/arepabuelas-api/internal/utils"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// stubVersions is a canned TokenVersionSource.
type stubVersions struct {
	version int64
	err     error
}

func (s stubVersions) GetTokenVersion(ctx context.Context, id uint64) (int64, error) {
	return s.version, s.err
}

func runJWT(t *testing.T, mw echo.MiddlewareFunc, authHeader string) (*httptest.ResponseRecorder, echo.Context) {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	handler := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
	if err := handler(c); err != nil {
		t.Fatalf("middleware returned error: %v", err)
	}
	return rec, c
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &m); err != nil {
		t.Fatalf("invalid JSON response %q: %v", rec.Body.String(), err)
	}
	code, _ := m["code"].(string)
	return code
}

func TestJWTAuthAcceptsCurrentToken(t *testing.T) {
	access, err := utils.NewAccessToken(testSecret, 9, "ana@x.com", "user", 3, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	mw := JWTAuth(testSecret, stubVersions{version: 3})
	rec, c := runJWT(t, mw, "Bearer "+access.Token)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if uid, _ := c.Get("user_id").(uint64); uid != 9 {
		t.Fatalf("user_id not injected: %v", c.Get("user_id"))
	}
	if c.Get("email") != "ana@x.com" || c.Get("role") != "user" {
		t.Fatalf("identity not injected: email=%v role=%v", c.Get("email"), c.Get("role"))
	}
}

func TestJWTAuthRejectsRevokedVersion(t *testing.T) {
	// Token minted at version 3; the store has since moved to 4.
	access, err := utils.NewAccessToken(testSecret, 9, "ana@x.com", "user", 3, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	mw := JWTAuth(testSecret, stubVersions{version: 4})
	rec, _ := runJWT(t, mw, "Bearer "+access.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "TOKEN_REVOKED" {
		t.Fatalf("expected TOKEN_REVOKED, got %q", code)
	}
}

func TestJWTAuthRejectsExpiredToken(t *testing.T) {
	access, err := utils.NewAccessToken(testSecret, 9, "ana@x.com", "user", 1, -1)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	mw := JWTAuth(testSecret, stubVersions{version: 1})
	rec, _ := runJWT(t, mw, "Bearer "+access.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "TOKEN_EXPIRED" {
		t.Fatalf("expected TOKEN_EXPIRED, got %q", code)
	}
}

func TestJWTAuthRejectsGarbage(t *testing.T) {
	mw := JWTAuth(testSecret, stubVersions{version: 1})
	for _, header := range []string{"", "Bearer not-a-jwt", "Basic abc"} {
		rec, _ := runJWT(t, mw, header)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("header %q: expected 401, got %d", header, rec.Code)
		}
		if code := errorCode(t, rec); code != "TOKEN_INVALID" {
			t.Fatalf("header %q: expected TOKEN_INVALID, got %q", header, code)
		}
	}
}

func TestJWTAuthRejectsOnVersionLookupError(t *testing.T) {
	access, err := utils.NewAccessToken(testSecret, 9, "ana@x.com", "user", 1, 15)
	if err != nil {
		t.Fatalf("NewAccessToken: %v", err)
	}
	mw := JWTAuth(testSecret, stubVersions{err: errors.New("store down")})
	rec, _ := runJWT(t, mw, "Bearer "+access.Token)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestRequireRole(t *testing.T) {
	mw := RequireRole("admin")
	e := echo.New()

	run := func(role interface{}) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPatch, "/api/admin/users/1/approve", nil)
		rec := httptest.NewRecorder()
		c := e.NewContext(req, rec)
		if role != nil {
			c.Set("role", role)
		}
		handler := mw(func(c echo.Context) error { return c.String(http.StatusOK, "ok") })
		if err := handler(c); err != nil {
			t.Fatalf("middleware returned error: %v", err)
		}
		return rec
	}

	if rec := run("admin"); rec.Code != http.StatusOK {
		t.Fatalf("admin refused: %d", rec.Code)
	}
	if rec := run("user"); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for user, got %d", rec.Code)
	}
	if rec := run(nil); rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 with no role, got %d", rec.Code)
	}
}
