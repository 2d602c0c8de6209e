package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/trustflow/service-core/internal/role"
)

// RoleRepo provides data access for the role_permissions table using sqlx.
type RoleRepo struct {
	db *sqlx.DB
}

func NewRoleRepo(db *sqlx.DB) *RoleRepo { return &RoleRepo{db: db} }

// EnsureTable creates the role_permissions table if not exists (idempotent).
func (r *RoleRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS role_permissions (
  id varchar(32) PRIMARY KEY,
  role_name TEXT NOT NULL UNIQUE,
  description TEXT NOT NULL DEFAULT '',
  can_create_project BOOLEAN NOT NULL DEFAULT false,
  can_edit_project BOOLEAN NOT NULL DEFAULT false,
  can_delete_project BOOLEAN NOT NULL DEFAULT false,
  can_create_bug BOOLEAN NOT NULL DEFAULT false,
  can_edit_bug BOOLEAN NOT NULL DEFAULT false,
  can_change_bug_status BOOLEAN NOT NULL DEFAULT false,
  can_comment_on_bugs BOOLEAN NOT NULL DEFAULT false,
  can_manage_admin_settings BOOLEAN NOT NULL DEFAULT false,
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const roleCols = `id, role_name, description,
  can_create_project, can_edit_project, can_delete_project,
  can_create_bug, can_edit_bug, can_change_bug_status,
  can_comment_on_bugs, can_manage_admin_settings,
  created_at, updated_at`

func (r *RoleRepo) List(ctx context.Context) ([]*role.Role, error) {
	q := `SELECT ` + roleCols + ` FROM role_permissions ORDER BY created_at`
	var rows []*role.Role
	if err := r.db.SelectContext(ctx, &rows, q); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *RoleRepo) GetByID(ctx context.Context, id string) (*role.Role, error) {
	q := `SELECT ` + roleCols + ` FROM role_permissions WHERE id=$1`
	var row role.Role
	if err := r.db.GetContext(ctx, &row, q, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *RoleRepo) GetByName(ctx context.Context, name string) (*role.Role, error) {
	q := `SELECT ` + roleCols + ` FROM role_permissions WHERE LOWER(role_name)=LOWER($1)`
	var row role.Role
	if err := r.db.GetContext(ctx, &row, q, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *RoleRepo) Create(ctx context.Context, in *role.Role) error {
	const q = `INSERT INTO role_permissions (id, role_name, description,
      can_create_project, can_edit_project, can_delete_project,
      can_create_bug, can_edit_bug, can_change_bug_status,
      can_comment_on_bugs, can_manage_admin_settings, created_at, updated_at)
    VALUES (:id, :role_name, :description,
      :can_create_project, :can_edit_project, :can_delete_project,
      :can_create_bug, :can_edit_bug, :can_change_bug_status,
      :can_comment_on_bugs, :can_manage_admin_settings, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, in)
	return err
}

func (r *RoleRepo) Update(ctx context.Context, in *role.Role) (int64, error) {
	const q = `UPDATE role_permissions SET role_name=:role_name, description=:description,
      can_create_project=:can_create_project, can_edit_project=:can_edit_project,
      can_delete_project=:can_delete_project, can_create_bug=:can_create_bug,
      can_edit_bug=:can_edit_bug, can_change_bug_status=:can_change_bug_status,
      can_comment_on_bugs=:can_comment_on_bugs,
      can_manage_admin_settings=:can_manage_admin_settings, updated_at=:updated_at
    WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, in)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RoleRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM role_permissions WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *RoleRepo) CountUsers(ctx context.Context, roleID string) (int, error) {
	var n int
	if err := r.db.GetContext(ctx, &n, `SELECT COUNT(1) FROM users WHERE role_id=$1`, roleID); err != nil {
		return 0, err
	}
	return n, nil
}
