package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/trustflow/service-core/internal/issue"
)

// IssueRepo provides data access for the issues table using sqlx.
type IssueRepo struct {
	db *sqlx.DB
}

func NewIssueRepo(db *sqlx.DB) *IssueRepo { return &IssueRepo{db: db} }

// EnsureTable creates the issues table if not exists (idempotent). The
// issue_seq BIGSERIAL feeds the human-readable TF-n key.
func (r *IssueRepo) EnsureTable(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS issues (
  id varchar(32) PRIMARY KEY,
  issue_seq BIGSERIAL,
  issue_key TEXT NOT NULL DEFAULT '',
  project_id varchar(32) NOT NULL,
  project_name TEXT NOT NULL DEFAULT '',
  title TEXT NOT NULL,
  description TEXT NOT NULL DEFAULT '',
  status TEXT NOT NULL DEFAULT 'To Do',
  priority TEXT NOT NULL DEFAULT 'Medium',
  severity TEXT NOT NULL DEFAULT '',
  issue_type TEXT NOT NULL DEFAULT 'Bug',
  reporter_user_id varchar(32) NOT NULL DEFAULT '',
  reporter_user_name TEXT NOT NULL DEFAULT '',
  assignee_user_ids TEXT[] NOT NULL DEFAULT '{}',
  assignee_user_names TEXT[] NOT NULL DEFAULT '{}',
  created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
  updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_issues_project_id ON issues (project_id);
CREATE INDEX IF NOT EXISTS idx_issues_status ON issues (status);`
	_, err := r.db.ExecContext(ctx, ddl)
	return err
}

const issueCols = `id, issue_key, project_id, project_name, title, description,
  status, priority, severity, issue_type, reporter_user_id, reporter_user_name,
  assignee_user_ids, assignee_user_names, created_at, updated_at`

func (r *IssueRepo) List(ctx context.Context) ([]*issue.Issue, error) {
	var rows []*issue.Issue
	if err := r.db.SelectContext(ctx, &rows, `SELECT `+issueCols+` FROM issues ORDER BY created_at DESC`); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IssueRepo) ListByAssignee(ctx context.Context, userID string) ([]*issue.Issue, error) {
	const q = `SELECT ` + issueCols + ` FROM issues WHERE $1 = ANY(assignee_user_ids) ORDER BY created_at DESC`
	var rows []*issue.Issue
	if err := r.db.SelectContext(ctx, &rows, q, userID); err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *IssueRepo) GetByID(ctx context.Context, id string) (*issue.Issue, error) {
	var row issue.Issue
	if err := r.db.GetContext(ctx, &row, `SELECT `+issueCols+` FROM issues WHERE id=$1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &row, nil
}

// Create inserts the issue and derives its human key from the sequence.
func (r *IssueRepo) Create(ctx context.Context, i *issue.Issue) error {
	const q = `INSERT INTO issues (id, project_id, project_name, title, description,
      status, priority, severity, issue_type, reporter_user_id, reporter_user_name,
      assignee_user_ids, assignee_user_names, created_at, updated_at)
    VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
    RETURNING issue_seq`
	var seq int64
	err := r.db.QueryRowxContext(ctx, q,
		i.ID, i.ProjectID, i.ProjectName, i.Title, i.Description,
		i.Status, i.Priority, i.Severity, i.Type, i.ReporterUserID, i.ReporterUserName,
		i.AssigneeUserIDs, i.AssigneeUserNames, i.CreatedAt, i.UpdatedAt,
	).Scan(&seq)
	if err != nil {
		return err
	}
	i.IssueID = fmt.Sprintf("TF-%d", seq)
	_, err = r.db.ExecContext(ctx, `UPDATE issues SET issue_key=$2 WHERE id=$1`, i.ID, i.IssueID)
	return err
}

func (r *IssueRepo) Update(ctx context.Context, i *issue.Issue) (int64, error) {
	const q = `UPDATE issues SET project_id=$2, project_name=$3, title=$4, description=$5,
      status=$6, priority=$7, severity=$8, issue_type=$9,
      assignee_user_ids=$10, assignee_user_names=$11, updated_at=$12
    WHERE id=$1`
	res, err := r.db.ExecContext(ctx, q,
		i.ID, i.ProjectID, i.ProjectName, i.Title, i.Description,
		i.Status, i.Priority, i.Severity, i.Type,
		i.AssigneeUserIDs, i.AssigneeUserNames, i.UpdatedAt)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func (r *IssueRepo) Delete(ctx context.Context, id string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM issues WHERE id=$1`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FilterOptions collects the distinct values the list page offers as filters.
func (r *IssueRepo) FilterOptions(ctx context.Context) (*issue.FilterOptions, error) {
	out := &issue.FilterOptions{
		Statuses:   issue.Statuses,
		Priorities: issue.Priorities,
		Projects:   []issue.FilterOption{},
		Assignees:  []issue.FilterOption{},
	}
	if err := r.db.SelectContext(ctx, &out.Projects,
		`SELECT DISTINCT project_id AS id, project_name AS name FROM issues ORDER BY name`); err != nil {
		return nil, err
	}
	const assigneeQ = `SELECT DISTINCT t.id, t.name FROM issues,
      unnest(assignee_user_ids, assignee_user_names) AS t(id, name) ORDER BY t.name`
	if err := r.db.SelectContext(ctx, &out.Assignees, assigneeQ); err != nil {
		return nil, err
	}
	return out, nil
}
