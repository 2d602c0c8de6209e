package repo

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/trustflow/service-core/internal/dashboard"
)

type DashboardRepo struct {
	db *sqlx.DB
}

func NewDashboardRepo(db *sqlx.DB) *DashboardRepo {
	return &DashboardRepo{db: db}
}

func (r *DashboardRepo) EnsureTable(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS activity_log (
			id varchar(32) PRIMARY KEY,
			user_id varchar(32) NOT NULL,
			user_name TEXT NOT NULL,
			action TEXT NOT NULL,
			issue_key TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		);
		CREATE INDEX IF NOT EXISTS idx_activity_log_created_at ON activity_log(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_activity_log_user_id ON activity_log(user_id);
	`)
	return err
}

func (r *DashboardRepo) InsertActivity(ctx context.Context, e *dashboard.ActivityEntry) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO activity_log (id, user_id, user_name, action, issue_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.UserID, e.UserName, e.Action, e.IssueKey, e.CreatedAt)
	return err
}

func (r *DashboardRepo) RecentActivity(ctx context.Context, limit int) ([]*dashboard.ActivityEntry, error) {
	var entries []*dashboard.ActivityEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, user_name, action, issue_key, created_at
		FROM activity_log
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	return entries, err
}

func (r *DashboardRepo) RecentActivityForUser(ctx context.Context, userID string, limit int) ([]*dashboard.ActivityEntry, error) {
	var entries []*dashboard.ActivityEntry
	err := r.db.SelectContext(ctx, &entries, `
		SELECT id, user_id, user_name, action, issue_key, created_at
		FROM activity_log
		WHERE user_id = $1
		   OR issue_key IN (SELECT issue_key FROM issues WHERE $1 = ANY(assignee_user_ids))
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, limit)
	return entries, err
}

func (r *DashboardRepo) CountActivitySince(ctx context.Context, userID string, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM activity_log WHERE user_id = $1 AND created_at >= $2
	`, userID, since)
	return n, err
}

func (r *DashboardRepo) CountUsers(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM users`)
}

func (r *DashboardRepo) CountProjects(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM projects`)
}

func (r *DashboardRepo) CountIssues(ctx context.Context) (int, error) {
	return r.count(ctx, `SELECT COUNT(*) FROM issues`)
}

func (r *DashboardRepo) CountIssuesCreatedSince(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM issues WHERE created_at >= $1`, since)
	return n, err
}

// roleOverviewSQL joins roles to their users; role_permissions stores the
// display name in role_name.
const roleOverviewSQL = `
		SELECT rp.role_name AS name, COUNT(u.id) AS count
		FROM role_permissions rp
		LEFT JOIN users u ON u.role_id = rp.id
		GROUP BY rp.role_name
		ORDER BY count DESC, rp.role_name`

func (r *DashboardRepo) RoleOverview(ctx context.Context) ([]*dashboard.RoleCount, error) {
	var rows []*dashboard.RoleCount
	err := r.db.SelectContext(ctx, &rows, roleOverviewSQL)
	return rows, err
}

func (r *DashboardRepo) CountOpenIssuesForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM issues WHERE status <> 'Done' AND $1 = ANY(assignee_user_ids)
	`, userID)
	return n, err
}

func (r *DashboardRepo) CountProjectsForUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM project_members WHERE user_id = $1
	`, userID)
	return n, err
}

func (r *DashboardRepo) CountResolvedByUser(ctx context.Context, userID string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `
		SELECT COUNT(*) FROM issues WHERE status = 'Done' AND $1 = ANY(assignee_user_ids)
	`, userID)
	return n, err
}

func (r *DashboardRepo) OpenIssuesForUser(ctx context.Context, userID string) ([]*dashboard.OpenIssue, error) {
	rows, err := r.db.QueryxContext(ctx, `
		SELECT issue_key, title, project_name, priority
		FROM issues
		WHERE status <> 'Done' AND $1 = ANY(assignee_user_ids)
		ORDER BY created_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*dashboard.OpenIssue
	for rows.Next() {
		var it dashboard.OpenIssue
		if err := rows.Scan(&it.ID, &it.Title, &it.Project, &it.Priority); err != nil {
			return nil, err
		}
		out = append(out, &it)
	}
	return out, rows.Err()
}

func (r *DashboardRepo) count(ctx context.Context, query string) (int, error) {
	var n int
	err := r.db.GetContext(ctx, &n, query)
	return n, err
}
