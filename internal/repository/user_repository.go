package repository

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/arepabuelas/arepabuelas-api/internal/utils"
)

// Roles a user can hold.  Accounts start as RolePending and are promoted
// to RoleUser by an admin approval; the transition never reverts.
const (
	RolePending = "pending"
	RoleUser    = "user"
	RoleAdmin   = "admin"
)

// User mirrors the 'users' table.
type User struct {
	ID                  uint64
	Name                string
	Email               string
	PasswordHash        string
	Role                string
	PhotoURL            sql.NullString
	FailedLoginAttempts int
	LockedUntil         sql.NullTime
	TokenVersion        int64
	CreatedAt           time.Time
	UpdatedAt           time.Time
}

// LockState reports the outcome of a failed-login increment: the new
// attempt count and, when the threshold was crossed, the lock expiry.
type LockState struct {
	Attempts    int
	LockedUntil *time.Time
}

type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

const userColumns = "id,name,email,password_hash,role,photo_url,failed_login_attempts,locked_until,token_version,created_at,updated_at"

// Create inserts a user and returns its ID.  The password is hashed with
// Argon2id before it touches the database, the email is normalized to
// lower case, and every new account starts in the pending role with
// token_version 1.
func (r *UserRepo) Create(ctx context.Context, name, email, password string, photoURL *string) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, role, photo_url, token_version) VALUES (?,?,?,?,?,1)",
		name, email, hash, RolePending, photoURL)
	if err != nil {
		// MySQL error 1062 = duplicate key (unique email index).
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (User, error) {
	return r.scanOne(r.DB.QueryRowContext(ctx,
		"SELECT "+userColumns+" FROM users WHERE id=? LIMIT 1", id))
}

func (r *UserRepo) scanOne(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &u.PhotoURL,
		&u.FailedLoginAttempts, &u.LockedUntil, &u.TokenVersion, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return User{}, ErrNotFound
	}
	return u, err
}

// Approve promotes a pending account to the user role.  The WHERE clause
// restricts the update to pending rows so repeated or misdirected calls
// cannot change admins or demote anyone.
func (r *UserRepo) Approve(ctx context.Context, id uint64) (bool, error) {
	res, err := r.DB.ExecContext(ctx,
		"UPDATE users SET role=? WHERE id=? AND role=?", RoleUser, id, RolePending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// IncrementFailedLogins bumps the failed-attempt counter and, when the
// incremented value reaches the threshold, sets locked_until inside the
// same UPDATE.  Folding both into one statement is a correctness
// requirement: two concurrent failures must not both read a sub-threshold
// counter and skip the lock.
func (r *UserRepo) IncrementFailedLogins(ctx context.Context, id uint64, maxAttempts int, lockFor time.Duration) (LockState, error) {
	_, err := r.DB.ExecContext(ctx,
		`UPDATE users
		 SET failed_login_attempts = failed_login_attempts + 1,
		     locked_until = CASE
		       WHEN failed_login_attempts + 1 >= ?
		       THEN DATE_ADD(UTC_TIMESTAMP(), INTERVAL ? MINUTE)
		       ELSE locked_until
		     END
		 WHERE id=?`,
		maxAttempts, int(lockFor.Minutes()), id)
	if err != nil {
		return LockState{}, err
	}
	var (
		attempts int
		until    sql.NullTime
	)
	err = r.DB.QueryRowContext(ctx,
		"SELECT failed_login_attempts, locked_until FROM users WHERE id=?", id).
		Scan(&attempts, &until)
	if err != nil {
		return LockState{}, err
	}
	st := LockState{Attempts: attempts}
	if until.Valid {
		t := until.Time
		st.LockedUntil = &t
	}
	return st, nil
}

// ResetFailedLogins clears the attempt counter and any standing lock.
func (r *UserRepo) ResetFailedLogins(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET failed_login_attempts=0, locked_until=NULL WHERE id=?", id)
	return err
}

// IsAccountLocked reports whether the account is currently locked and, if
// so, until when.  An expired lock is cleared lazily on observation,
// which spares the service a separate cleanup job.
func (r *UserRepo) IsAccountLocked(ctx context.Context, id uint64) (bool, time.Time, error) {
	var until sql.NullTime
	err := r.DB.QueryRowContext(ctx,
		"SELECT locked_until FROM users WHERE id=?", id).Scan(&until)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, time.Time{}, nil
		}
		return false, time.Time{}, err
	}
	if !until.Valid {
		return false, time.Time{}, nil
	}
	if time.Now().UTC().Before(until.Time) {
		return true, until.Time, nil
	}
	// Lock elapsed: reset so stale attempts do not count against the next
	// failure window.
	if err := r.ResetFailedLogins(ctx, id); err != nil {
		return false, time.Time{}, err
	}
	return false, time.Time{}, nil
}

// IncrementTokenVersion invalidates every outstanding access token for the
// user by bumping the version counter they are checked against.
func (r *UserRepo) IncrementTokenVersion(ctx context.Context, id uint64) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET token_version = token_version + 1 WHERE id=?", id)
	return err
}

// GetTokenVersion returns the user's current token version.
func (r *UserRepo) GetTokenVersion(ctx context.Context, id uint64) (int64, error) {
	var v int64
	err := r.DB.QueryRowContext(ctx,
		"SELECT token_version FROM users WHERE id=?", id).Scan(&v)
	if err == sql.ErrNoRows {
		return 0, ErrNotFound
	}
	return v, err
}

// UpdatePassword rehashes the password and, in the same mutation, bumps
// token_version and clears lockout state.  The version bump invalidates
// every outstanding access token; refresh tokens are revoked separately
// by the caller.
func (r *UserRepo) UpdatePassword(ctx context.Context, id uint64, newPassword string) error {
	hash, err := utils.HashPassword(newPassword)
	if err != nil {
		return err
	}
	_, err = r.DB.ExecContext(ctx,
		`UPDATE users
		 SET password_hash=?,
		     token_version = token_version + 1,
		     failed_login_attempts = 0,
		     locked_until = NULL
		 WHERE id=?`,
		hash, id)
	return err
}
