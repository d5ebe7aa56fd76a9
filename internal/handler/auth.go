package handler

import (
	"context"  // context with cancellation for DB calls
	"errors"   // sentinel error comparison
	"html"           // entity unescape after sanitization
	"io"             // reading the uploaded photo
	"mime/multipart" // uploaded photo file header
	"net/http"       // HTTP status codes and cookie primitives
	"net/mail"      // email address syntax validation
	"strings"       // string manipulation utilities
	"time"          // timeouts and lock arithmetic
	"unicode/utf8"  // rune-based length bounds

	"github.com/labstack/echo/v4"            // Echo framework for HTTP routing
	"github.com/microcosm-cc/bluemonday"     // strips markup from display names

	"github.com/arepabuelas/arepabuelas-api/internal/config"
	"github.com/arepabuelas/arepabuelas-api/internal/queue"
	"github.com/arepabuelas/arepabuelas-api/internal/repository"
	queue_publisher "github.com/arepabuelas/arepabuelas-api/internal/service"
	"github.com/arepabuelas/arepabuelas-api/internal/storage"
	"github.com/arepabuelas/arepabuelas-api/internal/utils"
)

// refreshCookieName is the cookie carrying the raw refresh secret.  The
// cookie is the ONLY transport for it: HTTP-only and SameSite=Strict so
// page scripts can never read it, scoped to the auth path so it is not
// replayed to unrelated endpoints.
const refreshCookieName = "refreshToken"

// authPathPrefix scopes the refresh cookie.
const authPathPrefix = "/api/auth"

// dummyHash is a well-formed Argon2id string that matches no password.
// When a login names an unknown email the password is still verified
// against it, so the unknown-email and wrong-password paths burn
// comparable CPU and the response timing does not confirm account
// existence.
const dummyHash = "$argon2id$v=19$m=65536,t=3,p=1$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// namePolicy strips every tag and attribute from display names, mirroring
// a zero-allow-list HTML sanitizer.
var namePolicy = bluemonday.StrictPolicy()

// AuthHandler bundles dependencies for the authentication endpoints.
type AuthHandler struct {
	Cfg    config.Config
	Users  *repository.UserRepo
	Tokens *repository.TokenRepo
	Photos *storage.PhotoStore // nil when no object store is configured
}

func NewAuthHandler(cfg config.Config, u *repository.UserRepo, t *repository.TokenRepo, p *storage.PhotoStore) *AuthHandler {
	return &AuthHandler{Cfg: cfg, Users: u, Tokens: t, Photos: p}
}

// ----- DTOs -----

type loginReq struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

// safeUser is the projection returned to clients.  The password hash and
// the lockout counters never leave the server.
type safeUser struct {
	ID       uint64  `json:"id"`
	Name     string  `json:"name"`
	Email    string  `json:"email"`
	Role     string  `json:"role"`
	PhotoURL *string `json:"photo_url"`
}

func toSafeUser(u repository.User) safeUser {
	s := safeUser{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
	if u.PhotoURL.Valid {
		v := u.PhotoURL.String
		s.PhotoURL = &v
	}
	return s
}

// ----- cookie helpers -----

func (h *AuthHandler) setRefreshCookie(c echo.Context, raw string, exp time.Time) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    raw,
		Path:     authPathPrefix,
		Expires:  exp,
		MaxAge:   int(time.Until(exp) / time.Second),
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     refreshCookieName,
		Value:    "",
		Path:     authPathPrefix,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.Cfg.Env == "prod",
		SameSite: http.SameSiteStrictMode,
	})
}

// issueSession mints an access token against the user's current token
// version, stores a new hashed refresh token with client metadata,
// enforces the session cap and sets the refresh cookie.  Shared by login
// and refresh.
func (h *AuthHandler) issueSession(ctx context.Context, c echo.Context, u repository.User, tokenVersion int64) (utils.AccessToken, error) {
	access, err := utils.NewAccessToken(h.Cfg.JWTSecret, u.ID, u.Email, u.Role, tokenVersion, h.Cfg.AccessTTLMin)
	if err != nil {
		return utils.AccessToken{}, err
	}
	refresh, err := utils.NewRefreshToken(h.Cfg.RefreshTTLDays)
	if err != nil {
		return utils.AccessToken{}, err
	}
	ip, ua := utils.ClientInfo(c.Request())
	if err := h.Tokens.Store(ctx, u.ID, utils.HashRefreshRaw(refresh.Raw), refresh.Exp, ua, ip); err != nil {
		return utils.AccessToken{}, err
	}
	// Cap standing sessions AFTER the insert; a pre-insert count would race
	// with concurrent logins.
	if err := h.Tokens.LimitSessions(ctx, u.ID, h.Cfg.MaxSessions); err != nil {
		return utils.AccessToken{}, err
	}
	h.setRefreshCookie(c, refresh.Raw, refresh.Exp)
	return access, nil
}

// ----- endpoints -----

// Register creates an account in the pending role.  Multipart form fields:
// name, email, password and an optional photo.  The display name is
// stripped of markup before storage; the photo is validated by content
// signature and delegated to the object store, only its URL is kept.
func (h *AuthHandler) Register(c echo.Context) error {
	name := strings.TrimSpace(c.FormValue("name"))
	email := strings.ToLower(strings.TrimSpace(c.FormValue("email")))
	password := c.FormValue("password")

	if n := utf8.RuneCountInString(name); n < 2 || n > 100 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "name must be between 2 and 100 characters"})
	}
	if email == "" || len(email) > 255 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid email"})
	}
	if violations := utils.ValidatePasswordStrength(password); len(violations) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "password does not meet security requirements",
			"details": violations,
		})
	}

	// Strip markup from the display name.  Entities are decoded BEFORE
	// sanitizing so an entity-encoded payload cannot slip through as raw
	// markup; the sanitizer runs last and its output never contains tags.
	// Sanitizing can shrink the name below the minimum ("<b></b>x"), so
	// the length is re-checked.
	cleanName := strings.TrimSpace(namePolicy.Sanitize(html.UnescapeString(name)))
	if utf8.RuneCountInString(cleanName) < 2 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid name after sanitization"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Users.GetByEmail(ctx, email); err == nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered", "code": "CONFLICT"})
	} else if !errors.Is(err, repository.ErrNotFound) {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	var photoURL *string
	if file, err := c.FormFile("photo"); err == nil && file != nil {
		// A missing object store is a deployment choice, not a server
		// fault: refuse the upload before touching the file.
		if h.Photos == nil {
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "photo uploads disabled"})
		}
		url, perr := h.uploadPhoto(ctx, file.Filename, file)
		if perr != nil {
			if errors.Is(perr, storage.ErrInvalidImage) {
				return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid image file"})
			}
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "error uploading profile photo"})
		}
		photoURL = &url
	}

	uid, err := h.Users.Create(ctx, cleanName, email, password, photoURL)
	if err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			// The pre-check raced with a concurrent registration.
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "email already registered", "code": "CONFLICT"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "registration failed"})
	}

	go func() {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pubCancel()
		_ = queue_publisher.Publish(pubCtx, queue.QueueUserRegistered, queue.UserRegisteredEvent{
			UserID:       uid,
			Email:        email,
			Name:         cleanName,
			RegisteredAt: time.Now().UTC().Format(time.RFC3339),
		})
	}()

	u := repository.User{ID: uid, Name: cleanName, Email: email, Role: repository.RolePending}
	if photoURL != nil {
		u.PhotoURL.Valid = true
		u.PhotoURL.String = *photoURL
	}
	return c.JSON(http.StatusCreated, echo.Map{
		"message": "account created, pending admin approval",
		"user":    toSafeUser(u),
	})
}

func (h *AuthHandler) uploadPhoto(ctx context.Context, filename string, file *multipart.FileHeader) (string, error) {
	src, err := file.Open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	// Read one byte past the limit so oversized files are detected without
	// buffering them whole.
	data, err := io.ReadAll(io.LimitReader(src, storage.MaxPhotoBytes+1))
	if err != nil {
		return "", err
	}
	contentType, err := storage.ValidateImage(filename, data)
	if err != nil {
		return "", err
	}
	return h.Photos.Upload(ctx, filename, contentType, data)
}

// Login verifies credentials and opens a session.  The ordering of checks
// is deliberate: unknown email and wrong password produce the same
// response, the lockout gate runs before password verification, and
// pending accounts are refused tokens even with a correct password.
func (h *AuthHandler) Login(c echo.Context) error {
	var req loginReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if req.Email == "" || req.Password == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "email and password required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			// Burn a verification anyway so response timing does not reveal
			// whether the account exists, then answer exactly as a wrong
			// password would.
			utils.VerifyPassword(req.Password, dummyHash)
			return invalidCredentials(c)
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	locked, until, err := h.Users.IsAccountLocked(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	if locked {
		return accountLocked(c, until)
	}

	if !utils.VerifyPassword(req.Password, u.PasswordHash) {
		st, err := h.Users.IncrementFailedLogins(ctx, u.ID,
			h.Cfg.LockoutAttempts, time.Duration(h.Cfg.LockoutMinutes)*time.Minute)
		if err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
		}
		if st.LockedUntil != nil && time.Now().UTC().Before(*st.LockedUntil) {
			ip, ua := utils.ClientInfo(c.Request())
			go func(lockedUntil time.Time) {
				pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer pubCancel()
				_ = queue_publisher.Publish(pubCtx, queue.QueueAccountLocked, queue.AccountLockedEvent{
					UserID:      u.ID,
					Email:       u.Email,
					LockedUntil: lockedUntil.Format(time.RFC3339),
					IPAddress:   ip,
					UserAgent:   ua,
				})
			}(*st.LockedUntil)
			return accountLocked(c, *st.LockedUntil)
		}
		if left := h.Cfg.LockoutAttempts - st.Attempts; left > 0 {
			return c.JSON(http.StatusUnauthorized, echo.Map{
				"error":         "invalid credentials",
				"code":          "INVALID_CREDENTIALS",
				"attempts_left": left,
			})
		}
		return invalidCredentials(c)
	}

	if err := h.Users.ResetFailedLogins(ctx, u.ID); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	if u.Role == repository.RolePending {
		return c.JSON(http.StatusForbidden, echo.Map{
			"error": "account pending approval",
			"code":  "PENDING_APPROVAL",
		})
	}

	tokenVersion, err := h.Users.GetTokenVersion(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}
	access, err := h.issueSession(ctx, c, u, tokenVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "login failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{
		"accessToken": access.Token,
		"user":        toSafeUser(u),
	})
}

// Refresh redeems the refresh secret from the protected cookie, rotates it
// and returns a new access token.  A refresh token is valid for exactly
// one redemption: the old row is deleted before the new one is stored, so
// replaying an already-rotated secret reads as invalid.  That is also the
// theft signal when an attacker and the legitimate user race.
func (h *AuthHandler) Refresh(c echo.Context) error {
	cookie, err := c.Cookie(refreshCookieName)
	if err != nil || cookie.Value == "" {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token not found", "code": "NO_REFRESH_TOKEN"})
	}
	hash := utils.HashRefreshRaw(cookie.Value)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	t, err := h.Tokens.FindByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid refresh token", "code": "INVALID_REFRESH_TOKEN"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	if time.Now().UTC().After(t.ExpiresAt) {
		// Expired rows are removed on discovery so they cannot resurface.
		_ = h.Tokens.Delete(ctx, hash)
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "refresh token expired", "code": "REFRESH_TOKEN_EXPIRED"})
	}

	u, err := h.Users.GetByID(ctx, t.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			_ = h.Tokens.Delete(ctx, hash)
			return c.JSON(http.StatusUnauthorized, echo.Map{"error": "user no longer exists", "code": "USER_NOT_FOUND"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	locked, until, err := h.Users.IsAccountLocked(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	if locked {
		// A locked account keeps its session but cannot rotate or mint.
		return accountLocked(c, until)
	}

	if err := h.Tokens.UpdateLastUsed(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	// Rotation: hard-delete the redeemed row, then issue the replacement.
	if err := h.Tokens.Delete(ctx, hash); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	tokenVersion, err := h.Users.GetTokenVersion(ctx, u.ID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}
	access, err := h.issueSession(ctx, c, u, tokenVersion)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "refresh failed"})
	}

	return c.JSON(http.StatusOK, echo.Map{"accessToken": access.Token})
}

// Logout deletes the session behind the presented refresh cookie and
// clears it.  Idempotent: a missing or unknown cookie is not an error,
// since the client's goal (no live session on this device) is already met.
func (h *AuthHandler) Logout(c echo.Context) error {
	if cookie, err := c.Cookie(refreshCookieName); err == nil && cookie.Value != "" {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()
		if err := h.Tokens.Delete(ctx, utils.HashRefreshRaw(cookie.Value)); err != nil {
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
		}
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "session closed"})
}

// LogoutAll deletes every session owned by the authenticated user.  It
// requires a valid bearer token (middleware) since it names no specific
// session of its own.
func (h *AuthHandler) LogoutAll(c echo.Context) error {
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()
	if err := h.Tokens.DeleteAllForUser(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "logout failed"})
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "all sessions closed"})
}

// ChangePassword verifies the current password, applies the policy to the
// new one and updates the hash.  The update bumps token_version (killing
// every outstanding access token) and the refresh sessions are revoked
// explicitly, so the only way back in is a fresh login.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	uid, ok := c.Get("user_id").(uint64)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "not authenticated"})
	}
	var req changePasswordReq
	if err := c.Bind(&req); err != nil || req.CurrentPassword == "" || req.NewPassword == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "current and new password required"})
	}
	if violations := utils.ValidatePasswordStrength(req.NewPassword); len(violations) > 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{
			"error":   "password does not meet security requirements",
			"details": violations,
		})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	u, err := h.Users.GetByID(ctx, uid)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	if !utils.VerifyPassword(req.CurrentPassword, u.PasswordHash) {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials", "code": "INVALID_CREDENTIALS"})
	}

	if err := h.Users.UpdatePassword(ctx, uid, req.NewPassword); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	if err := h.Tokens.RevokeAllForUser(ctx, uid); err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "password change failed"})
	}
	h.clearRefreshCookie(c)

	go func() {
		pubCtx, pubCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer pubCancel()
		_ = queue_publisher.Publish(pubCtx, queue.QueuePasswordChanged, queue.PasswordChangedEvent{
			UserID:    uid,
			Email:     u.Email,
			ChangedAt: time.Now().UTC().Format(time.RFC3339),
		})
	}()

	return c.JSON(http.StatusOK, echo.Map{"message": "password updated, please log in again"})
}

// Me returns the authenticated identity extracted by the JWT middleware.
func (h *AuthHandler) Me(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"user_id": c.Get("user_id"),
		"email":   c.Get("email"),
		"role":    c.Get("role"),
	})
}

// ----- shared responses -----

// invalidCredentials is the single response for both "no such account" and
// "wrong password".  Sharing one function guarantees the two paths can
// never drift apart and start leaking account existence.
func invalidCredentials(c echo.Context) error {
	return c.JSON(http.StatusUnauthorized, echo.Map{
		"error": "invalid credentials",
		"code":  "INVALID_CREDENTIALS",
	})
}

// accountLocked answers with the remaining lock time in whole minutes.
// The failed-attempt count itself is never revealed.
func accountLocked(c echo.Context, until time.Time) error {
	minutes := int(time.Until(until).Minutes()) + 1
	if minutes < 1 {
		minutes = 1
	}
	return c.JSON(http.StatusLocked, echo.Map{
		"error":        "account temporarily locked",
		"code":         "ACCOUNT_LOCKED",
		"minutes_left": minutes,
	})
}
