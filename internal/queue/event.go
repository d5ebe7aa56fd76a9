// Package queue defines message payloads exchanged over the message broker.
package queue

// Queue names for authentication security events.
const (
	QueueUserRegistered  = "auth.user.registered"
	QueueAccountLocked   = "auth.account.locked"
	QueuePasswordChanged = "auth.password.changed"
)

// UserRegisteredEvent is published when a new account is created and is
// waiting for admin approval.  Downstream consumers can notify admins or
// feed onboarding analytics without querying the primary database.
type UserRegisteredEvent struct {
	UserID       uint64 `json:"user_id"`
	Email        string `json:"email"`
	Name         string `json:"name"`
	RegisteredAt string `json:"registered_at"`
}

// AccountLockedEvent is published when repeated failed logins trip the
// lockout guard.  It is a security signal: a spike of these is a
// brute-force campaign in progress.
type AccountLockedEvent struct {
	UserID      uint64 `json:"user_id"`
	Email       string `json:"email"`
	LockedUntil string `json:"locked_until"`
	IPAddress   string `json:"ip_address"`
	UserAgent   string `json:"user_agent"`
}

// PasswordChangedEvent is published when a user rotates their password.
// By this point every outstanding access token has already been revoked
// via the token-version bump.
type PasswordChangedEvent struct {
	UserID    uint64 `json:"user_id"`
	Email     string `json:"email"`
	ChangedAt string `json:"changed_at"`
}
