package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	userpkg "github.com/trustflow/service-core/internal/user"
	"github.com/trustflow/service-core/internal/user/entity"
)

// UserRepo provides data access for the users table using sqlx.
type UserRepo struct {
	db *sqlx.DB
}

func NewUserRepo(db *sqlx.DB) *UserRepo { return &UserRepo{db: db} }

// EnsureTable creates the users tables if not exists (idempotent).
func (r *UserRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE EXTENSION IF NOT EXISTS citext;
CREATE TABLE IF NOT EXISTS users (
  id varchar(32) PRIMARY KEY,
  first_name TEXT NOT NULL DEFAULT '',
  last_name TEXT NOT NULL DEFAULT '',
  username TEXT NOT NULL UNIQUE,
  email CITEXT NOT NULL UNIQUE,
  phone_number TEXT NOT NULL DEFAULT '',
  profile_picture_url TEXT NOT NULL DEFAULT '',
  role_id varchar(32) NOT NULL,
  password_hash TEXT,
  password_algo TEXT,
  password_updated_at TIMESTAMPTZ,
  default_password_changed BOOLEAN NOT NULL DEFAULT false,
  status TEXT NOT NULL DEFAULT 'active',
  login_failed_attempts INT NOT NULL DEFAULT 0,
  locked_until TIMESTAMPTZ,
  last_login_at TIMESTAMPTZ,
  version BIGINT NOT NULL DEFAULT 1,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_users_role_id ON users(role_id);
CREATE TABLE IF NOT EXISTS user_notification_settings (
  user_id varchar(32) PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
  default_notification_method TEXT NOT NULL DEFAULT 'email',
  notify_on_assigned_bug BOOLEAN NOT NULL DEFAULT true,
  notify_on_new_comment BOOLEAN NOT NULL DEFAULT true,
  notify_on_status_change BOOLEAN NOT NULL DEFAULT true
);
CREATE TABLE IF NOT EXISTS password_reset_tokens (
  token TEXT PRIMARY KEY,
  user_id varchar(32) NOT NULL REFERENCES users(id) ON DELETE CASCADE,
  expires_at TIMESTAMPTZ NOT NULL,
  used_at TIMESTAMPTZ,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const userCols = `id, first_name, last_name, username, email, phone_number,
  profile_picture_url, role_id, password_hash, password_algo, password_updated_at,
  default_password_changed, status, login_failed_attempts, locked_until,
  last_login_at, version, created_at, updated_at`

func (r *UserRepo) Create(ctx context.Context, u *entity.User) error {
	const q = `INSERT INTO users (id, first_name, last_name, username, email, phone_number,
      profile_picture_url, role_id, password_hash, password_algo,
      default_password_changed, status, version, created_at, updated_at)
    VALUES (:id, :first_name, :last_name, :username, :email, :phone_number,
      :profile_picture_url, :role_id, :password_hash, :password_algo,
      :default_password_changed, :status, :version, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, u)
	if isUniqueViolation(err) {
		return userpkg.ErrDuplicate
	}
	return err
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*entity.User, error) {
	return r.getOne(ctx, `WHERE id=$1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*entity.User, error) {
	return r.getOne(ctx, `WHERE username=$1`, username)
}

func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*entity.User, error) {
	return r.getOne(ctx, `WHERE email=$1`, email)
}

func (r *UserRepo) getOne(ctx context.Context, where string, arg any) (*entity.User, error) {
	var row entity.User
	if err := r.db.GetContext(ctx, &row, `SELECT `+userCols+` FROM users `+where, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepo) List(ctx context.Context) ([]*entity.User, error) {
	var rows []*entity.User
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+userCols+` FROM users ORDER BY created_at`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *UserRepo) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users`); err != nil {
		return 0, err
	}
	return n, nil
}

func (r *UserRepo) Update(ctx context.Context, u *entity.User) (int64, error) {
	const q = `UPDATE users SET first_name=:first_name, last_name=:last_name,
      username=:username, email=:email, phone_number=:phone_number,
      profile_picture_url=:profile_picture_url, role_id=:role_id,
      version=version+1, updated_at=:updated_at
    WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, u)
	if isUniqueViolation(err) {
		return 0, userpkg.ErrDuplicate
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// UpdateProfile touches only the self-service profile columns. It leaves
// version alone so the caller's sessions stay valid, and never writes role_id.
func (r *UserRepo) UpdateProfile(ctx context.Context, u *entity.User) (int64, error) {
	const q = `UPDATE users SET first_name=:first_name, last_name=:last_name,
      username=:username, email=:email, phone_number=:phone_number,
      updated_at=:updated_at
    WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, u)
	if isUniqueViolation(err) {
		return 0, userpkg.ErrDuplicate
	}
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *UserRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM users WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// IncrementFailedLogin increments the failure counter atomically and returns the new value.
func (r *UserRepo) IncrementFailedLogin(ctx context.Context, id string) (int, error) {
	const q = `UPDATE users SET login_failed_attempts = login_failed_attempts + 1, updated_at=NOW() WHERE id=$1 RETURNING login_failed_attempts`
	var v int
	if err := r.db.GetContext(ctx, &v, q, id); err != nil {
		return 0, err
	}
	return v, nil
}

// LockIfThreshold locks the user if attempts >= threshold and currently active.
func (r *UserRepo) LockIfThreshold(ctx context.Context, id string, threshold, lockMinutes int) (bool, error) {
	const q = `UPDATE users SET status='locked', locked_until = NOW() + ($2 || ' minutes')::interval, updated_at=NOW()
      WHERE id=$1 AND status='active' AND login_failed_attempts >= $3 RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id, lockMinutes, threshold)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// UnlockIfExpired sets status back to active if locked_until passed.
func (r *UserRepo) UnlockIfExpired(ctx context.Context, id string) (bool, error) {
	const q = `UPDATE users SET status='active', locked_until=NULL, updated_at=NOW()
      WHERE id=$1 AND status='locked' AND locked_until IS NOT NULL AND locked_until < NOW() RETURNING 1`
	var one int
	err := r.db.GetContext(ctx, &one, q, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// ResetLoginSuccess resets failure metrics on successful authentication.
func (r *UserRepo) ResetLoginSuccess(ctx context.Context, id string) error {
	const q = `UPDATE users SET login_failed_attempts=0, last_login_at=NOW(), locked_until=NULL, updated_at=NOW() WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id)
	return err
}

// UpdatePassword stores a new password hash, bumps version, and optionally
// marks the default password as rotated.
func (r *UserRepo) UpdatePassword(ctx context.Context, id, hash, algo string, markRotated bool) error {
	const q = `UPDATE users SET password_hash=$2, password_algo=$3, password_updated_at=NOW(),
      default_password_changed = default_password_changed OR $4,
      version=version+1, updated_at=NOW()
    WHERE id=$1`
	_, err := r.db.ExecContext(ctx, q, id, hash, algo, markRotated)
	return err
}

func (r *UserRepo) Version(ctx context.Context, id string) (int64, error) {
	var v int64
	if err := r.db.GetContext(ctx, &v, `SELECT version FROM users WHERE id=$1`, id); err != nil {
		return 0, err
	}
	return v, nil
}

func (r *UserRepo) GetNotificationSettings(ctx context.Context, userID string) (*entity.NotificationSettings, error) {
	const q = `SELECT default_notification_method, notify_on_assigned_bug,
      notify_on_new_comment, notify_on_status_change
    FROM user_notification_settings WHERE user_id=$1`
	var ns entity.NotificationSettings
	if err := r.db.GetContext(ctx, &ns, q, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &ns, nil
}

func (r *UserRepo) PutNotificationSettings(ctx context.Context, userID string, ns entity.NotificationSettings) error {
	const q = `INSERT INTO user_notification_settings
      (user_id, default_notification_method, notify_on_assigned_bug, notify_on_new_comment, notify_on_status_change)
    VALUES ($1, $2, $3, $4, $5)
    ON CONFLICT (user_id) DO UPDATE SET
      default_notification_method=EXCLUDED.default_notification_method,
      notify_on_assigned_bug=EXCLUDED.notify_on_assigned_bug,
      notify_on_new_comment=EXCLUDED.notify_on_new_comment,
      notify_on_status_change=EXCLUDED.notify_on_status_change`
	_, err := r.db.ExecContext(ctx, q, userID, ns.DefaultNotificationMethod,
		ns.NotifyOnAssignedBug, ns.NotifyOnNewComment, ns.NotifyOnStatusChange)
	return err
}

func (r *UserRepo) SaveResetToken(ctx context.Context, t *entity.ResetToken) error {
	const q = `INSERT INTO password_reset_tokens (token, user_id, expires_at, created_at)
    VALUES (:token, :user_id, :expires_at, :created_at)`
	_, err := r.db.NamedExecContext(ctx, q, t)
	return err
}

func (r *UserRepo) GetResetToken(ctx context.Context, token string) (*entity.ResetToken, error) {
	const q = `SELECT token, user_id, expires_at, used_at, created_at FROM password_reset_tokens WHERE token=$1`
	var row entity.ResetToken
	if err := r.db.GetContext(ctx, &row, q, token); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *UserRepo) MarkResetTokenUsed(ctx context.Context, token string) error {
	_, err := r.db.ExecContext(ctx, `UPDATE password_reset_tokens SET used_at=NOW() WHERE token=$1`, token)
	return err
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
