package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // the Echo web framework handles routing

	"github.com/arepabuelas/arepabuelas-api/internal/handler"    // handlers implement the endpoint logic
	"github.com/arepabuelas/arepabuelas-api/internal/middleware" // JWT, role and rate-limit middleware
	"github.com/arepabuelas/arepabuelas-api/internal/repository"
)

// RegisterRoutes registers routes that do not require authentication on
// the provided Echo instance.  Currently it exposes only a health check
// for load balancers and monitoring.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth wires the authentication endpoints under /api/auth and the
// admin approval endpoint under /api/admin.  The limiter guards the three
// unauthenticated entry points (register, login, refresh), the ones an
// attacker can hammer without credentials.  Protected endpoints run the
// JWT middleware, which also performs the token-version revocation check.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, adm *handler.AdminHandler, limiter echo.MiddlewareFunc, jwtSecret string, users *repository.UserRepo) {
	g := e.Group("/api/auth")
	g.POST("/register", a.Register, limiter)
	g.POST("/login", a.Login, limiter)
	// Refresh and logout read the refresh cookie; the cookie path scopes it
	// to this prefix.
	g.POST("/refresh", a.Refresh, limiter)
	g.POST("/logout", a.Logout)

	auth := middleware.JWTAuth(jwtSecret, users)
	g.POST("/logout-all", a.LogoutAll, auth)
	g.POST("/password", a.ChangePassword, auth)
	g.GET("/me", a.Me, auth)

	admin := e.Group("/api/admin", auth, middleware.RequireRole(repository.RoleAdmin))
	admin.PATCH("/users/:id/approve", adm.ApproveUser)
}
