package repository

import (
	"context"
	"database/sql"
	"time"
)

// RefreshToken mirrors the 'refresh_tokens' table plus the owning user's
// email, role and token version joined in by FindByHash.  Only the SHA-256
// hash of the opaque secret is ever stored; the raw value exists solely in
// transit.
type RefreshToken struct {
	ID         uint64
	UserID     uint64
	TokenHash  string
	ExpiresAt  time.Time
	RevokedAt  sql.NullTime
	CreatedAt  time.Time
	LastUsedAt time.Time
	UserAgent  sql.NullString
	IPAddress  sql.NullString

	UserEmail    string
	UserRole     string
	TokenVersion int64
}

// TokenRepo persists and validates refresh tokens.  One row is one live
// session; deleting a row is the unit of "log this device out".
type TokenRepo struct{ DB *sql.DB }

func NewTokenRepo(db *sql.DB) *TokenRepo { return &TokenRepo{DB: db} }

// Store inserts a refresh-token hash row together with client metadata.
func (r *TokenRepo) Store(ctx context.Context, userID uint64, tokenHash string, exp time.Time, userAgent, ip string) error {
	_, err := r.DB.ExecContext(ctx,
		`INSERT INTO refresh_tokens (user_id, token_hash, expires_at, user_agent, ip_address, last_used_at)
		 VALUES (?,?,?,?,?,UTC_TIMESTAMP())`,
		userID, tokenHash, exp, userAgent, ip)
	return err
}

// FindByHash returns the session row for a token hash joined with the
// current user state.  Soft-revoked rows are excluded here so a revoked
// session reads identically to a missing one.  Expiry is NOT checked in
// SQL: the caller distinguishes "expired" from "unknown" to delete the
// stale row and report the right error code.
func (r *TokenRepo) FindByHash(ctx context.Context, tokenHash string) (RefreshToken, error) {
	var t RefreshToken
	err := r.DB.QueryRowContext(ctx,
		`SELECT rt.id, rt.user_id, rt.token_hash, rt.expires_at, rt.revoked_at,
		        rt.created_at, rt.last_used_at, rt.user_agent, rt.ip_address,
		        u.email, u.role, u.token_version
		 FROM refresh_tokens rt
		 JOIN users u ON u.id = rt.user_id
		 WHERE rt.token_hash = ? AND rt.revoked_at IS NULL
		 LIMIT 1`,
		tokenHash).Scan(&t.ID, &t.UserID, &t.TokenHash, &t.ExpiresAt, &t.RevokedAt,
		&t.CreatedAt, &t.LastUsedAt, &t.UserAgent, &t.IPAddress,
		&t.UserEmail, &t.UserRole, &t.TokenVersion)
	if err == sql.ErrNoRows {
		return RefreshToken{}, ErrNotFound
	}
	return t, err
}

// UpdateLastUsed stamps the session as just redeemed.  last_used_at is the
// eviction key for the session cap, so every successful refresh keeps the
// session young.
func (r *TokenRepo) UpdateLastUsed(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET last_used_at=UTC_TIMESTAMP() WHERE token_hash=?", tokenHash)
	return err
}

// Delete removes a single session row.  Rotation relies on this being a
// hard delete: once the winner of a concurrent redemption deletes the row,
// the loser's lookup misses and the token cannot be replayed.
func (r *TokenRepo) Delete(ctx context.Context, tokenHash string) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE token_hash=?", tokenHash)
	return err
}

// DeleteAllForUser removes every session owned by the user ("logout
// everywhere").
func (r *TokenRepo) DeleteAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE user_id=?", userID)
	return err
}

// RevokeAllForUser soft-revokes every live session via timestamp.  Distinct
// from the hard delete: the rows remain visible for audit until swept.
func (r *TokenRepo) RevokeAllForUser(ctx context.Context, userID uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE refresh_tokens SET revoked_at=UTC_TIMESTAMP() WHERE user_id=? AND revoked_at IS NULL",
		userID)
	return err
}

// ActiveSessionCount returns how many live (unexpired, unrevoked) sessions
// the user holds.
func (r *TokenRepo) ActiveSessionCount(ctx context.Context, userID uint64) (int, error) {
	var n int
	err := r.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM refresh_tokens
		 WHERE user_id=? AND expires_at > UTC_TIMESTAMP() AND revoked_at IS NULL`,
		userID).Scan(&n)
	return n, err
}

// LimitSessions deletes the user's oldest live sessions beyond max.  It is
// called after inserting a new session so the cap applies to standing
// sessions rather than racing a pre-insert count.  Rows are ranked by
// last_used_at with id as the tiebreak, so simultaneous logins evict in
// insertion order.
func (r *TokenRepo) LimitSessions(ctx context.Context, userID uint64, max int) error {
	if max < 1 {
		return nil
	}
	// Skip the newest `max` rows and delete the remainder.  The huge second
	// LIMIT operand is MySQL's documented "to the end" idiom.
	_, err := r.DB.ExecContext(ctx,
		`DELETE rt FROM refresh_tokens rt
		 JOIN (
		   SELECT id FROM refresh_tokens
		   WHERE user_id=? AND expires_at > UTC_TIMESTAMP() AND revoked_at IS NULL
		   ORDER BY last_used_at DESC, id DESC
		   LIMIT ?, 18446744073709551615
		 ) doomed ON doomed.id = rt.id`,
		userID, max)
	return err
}

// CleanupExpired hard-deletes sessions past their expiry and returns the
// number of rows removed.
func (r *TokenRepo) CleanupExpired(ctx context.Context) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE expires_at < UTC_TIMESTAMP()")
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CleanupInactive hard-deletes sessions not used within the given number
// of days, regardless of their expiry.
func (r *TokenRepo) CleanupInactive(ctx context.Context, days int) (int64, error) {
	res, err := r.DB.ExecContext(ctx,
		"DELETE FROM refresh_tokens WHERE last_used_at < DATE_SUB(UTC_TIMESTAMP(), INTERVAL ? DAY)",
		days)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
