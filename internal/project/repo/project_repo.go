package repo

import (
	"context"
	"database/sql"
	"errors"

	"github.com/jmoiron/sqlx"

	"github.com/trustflow/service-core/internal/project"
)

// ProjectRepo provides data access for projects and project members.
type ProjectRepo struct {
	db *sqlx.DB
}

func NewProjectRepo(db *sqlx.DB) *ProjectRepo { return &ProjectRepo{db: db} }

// EnsureTable creates the project tables if not exists (idempotent).
func (r *ProjectRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS projects (
  id varchar(32) PRIMARY KEY,
  name TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  lead_user_id varchar(32) NOT NULL DEFAULT '',
  lead_user_name TEXT NOT NULL DEFAULT '',
  manager_user_id varchar(32) NOT NULL DEFAULT '',
  manager_user_name TEXT NOT NULL DEFAULT '',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS project_members (
  project_id varchar(32) NOT NULL REFERENCES projects(id) ON DELETE CASCADE,
  user_id varchar(32) NOT NULL,
  user_name TEXT NOT NULL DEFAULT '',
  email TEXT NOT NULL DEFAULT '',
  role TEXT NOT NULL DEFAULT '',
  joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  PRIMARY KEY (project_id, user_id)
);`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const projectCols = `id, name, description, lead_user_id, lead_user_name,
  manager_user_id, manager_user_name, created_at, updated_at`

func (r *ProjectRepo) List(ctx context.Context) ([]*project.Project, error) {
	var rows []*project.Project
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+projectCols+` FROM projects ORDER BY created_at`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProjectRepo) GetByID(ctx context.Context, id string) (*project.Project, error) {
	var row project.Project
	if err := r.db.GetContext(ctx, &row, `SELECT `+projectCols+` FROM projects WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

func (r *ProjectRepo) Create(ctx context.Context, p *project.Project) error {
	const q = `INSERT INTO projects (id, name, description, lead_user_id, lead_user_name,
      manager_user_id, manager_user_name, created_at, updated_at)
    VALUES (:id, :name, :description, :lead_user_id, :lead_user_name,
      :manager_user_id, :manager_user_name, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, q, p)
	return err
}

func (r *ProjectRepo) Update(ctx context.Context, p *project.Project) (int64, error) {
	const q = `UPDATE projects SET name=:name, description=:description,
      lead_user_id=:lead_user_id, lead_user_name=:lead_user_name,
      manager_user_id=:manager_user_id, manager_user_name=:manager_user_name,
      updated_at=:updated_at
    WHERE id=:id`
	res, err := r.db.NamedExecContext(ctx, q, p)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ProjectRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM projects WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ProjectRepo) Members(ctx context.Context, projectID string) ([]project.Member, error) {
	const q = `SELECT user_id, user_name, email, role, joined_at
    FROM project_members WHERE project_id=$1 ORDER BY joined_at`
	var rows []project.Member
	if err := r.db.SelectContext(ctx, &rows, q, projectID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *ProjectRepo) AddMember(ctx context.Context, projectID string, m project.Member) error {
	const q = `INSERT INTO project_members (project_id, user_id, user_name, email, role, joined_at)
    VALUES ($1, $2, $3, $4, $5, $6)`
	_, err := r.db.ExecContext(ctx, q, projectID, m.UserID, m.UserName, m.Email, m.Role, m.JoinedAt)
	return err
}

func (r *ProjectRepo) RemoveMember(ctx context.Context, projectID, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM project_members WHERE project_id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *ProjectRepo) HasMember(ctx context.Context, projectID, userID string) (bool, error) {
	var one int
	err := r.db.GetContext(ctx, &one,
		`SELECT 1 FROM project_members WHERE project_id=$1 AND user_id=$2`, projectID, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (r *ProjectRepo) CountOpenIssues(ctx context.Context, projectID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n,
		`SELECT COUNT(1) FROM issues WHERE project_id=$1 AND status <> 'Done'`, projectID)
	if err != nil {
		return 0, err
	}
	return n, nil
}
