package dashboard

import "time"

// ActivityEntry is one row in the audit trail mutating operations append to.
type ActivityEntry struct {
	ID        string    `db:"id" json:"id"`
	UserID    string    `db:"user_id" json:"-"`
	UserName  string    `db:"user_name" json:"user"`
	Action    string    `db:"action" json:"action"`
	IssueKey  string    `db:"issue_key" json:"issue,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"-"`

	// Date is the relative timestamp the console renders ("5m ago").
	Date string `db:"-" json:"date"`
}

// AdminStats backs the admin dashboard summary cards.
type AdminStats struct {
	TotalUsers         int `json:"totalUsers"`
	TotalProjects      int `json:"totalProjects"`
	TotalIssues        int `json:"totalIssues"`
	IssuesCreatedToday int `json:"issuesCreatedToday"`
}

// UserStats backs the personal dashboard summary cards.
type UserStats struct {
	MyOpenIssues   int `json:"myOpenIssues"`
	MyProjects     int `json:"myProjects"`
	ResolvedByMe   int `json:"resolvedByMe"`
	RecentActivity int `json:"recentActivity"`
}

// RoleCount is one row of the role overview panel.
type RoleCount struct {
	Name  string `db:"name" json:"name"`
	Count int    `db:"count" json:"count"`
}

// OpenIssue is one row of the "my open issues" table.
type OpenIssue struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Project  string `json:"project"`
	Priority string `json:"priority"`
}
