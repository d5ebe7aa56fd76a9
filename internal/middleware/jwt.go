package middleware // middleware contains reusable HTTP middleware functions

import (
	"context"
	"errors"
	"net/http" // HTTP status codes for responses
	"strings"  // string utilities for prefix checking and trimming
	"time"

	"github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

	"github.com/arepabuelas/arepabuelas-api/internal/utils"
)

// TokenVersionSource supplies the current token version for a user.  The
// user repository satisfies it; tests provide a fake.
type TokenVersionSource interface {
	GetTokenVersion(ctx context.Context, id uint64) (int64, error)
}

// JWTAuth returns an Echo middleware that validates a Bearer access token
// and injects the authenticated identity into the request context under
// "user_id", "email" and "role".  Beyond the signature/expiry checks, the
// token's version claim is compared against the user's CURRENT version in
// the credential store: a mismatch means the token was revoked (password
// change, logout-all) and the request is rejected with a distinct code so
// clients know to clear their session entirely rather than silently retry.
func JWTAuth(secret string, versions TokenVersionSource) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			// A valid header starts with "Bearer " followed by the JWT.
			auth := c.Request().Header.Get("Authorization")
			if !strings.HasPrefix(auth, "Bearer ") {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "missing bearer token", "code": "TOKEN_INVALID"})
			}
			raw := strings.TrimPrefix(auth, "Bearer ")

			claims, err := utils.VerifyAccessToken(secret, raw)
			if err != nil {
				if errors.Is(err, utils.ErrTokenExpired) {
					return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token expired", "code": "TOKEN_EXPIRED"})
				}
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "TOKEN_INVALID"})
			}

			uid, err := claims.UserID()
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "TOKEN_INVALID"})
			}

			// Revocation check.  The version lookup is bounded so a stalled
			// credential store cannot hang every protected request.
			ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
			defer cancel()
			current, err := versions.GetTokenVersion(ctx, uid)
			if err != nil {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid token", "code": "TOKEN_INVALID"})
			}
			if current != claims.TokenVersion {
				return c.JSON(http.StatusUnauthorized, echo.Map{"error": "token has been revoked", "code": "TOKEN_REVOKED"})
			}

			c.Set("user_id", uid)
			c.Set("email", claims.Email)
			c.Set("role", claims.Role)
			return next(c)
		}
	}
}
