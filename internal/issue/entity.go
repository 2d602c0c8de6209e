package issue

import (
	"time"

	"github.com/lib/pq"
)

// Workflow vocabularies. Configurable values live in system settings; these
// are the defaults new installs start with.
var (
	Statuses   = []string{"To Do", "In Progress", "Done"}
	Priorities = []string{"Low", "Medium", "High"}
	Severities = []string{"Minor", "Major", "Blocker"}
	Types      = []string{"Bug", "Feature Request", "Task"}
)

// Issue is a tracked work item inside a project.
type Issue struct {
	ID                string         `json:"id" db:"id"`
	IssueID           string         `json:"issueId" db:"issue_key"` // human key, e.g. TF-42
	ProjectID         string         `json:"projectId" db:"project_id"`
	ProjectName       string         `json:"projectName" db:"project_name"`
	Title             string         `json:"title" db:"title"`
	Description       string         `json:"description" db:"description"`
	Status            string         `json:"status" db:"status"`
	Priority          string         `json:"priority" db:"priority"`
	Severity          string         `json:"severity" db:"severity"`
	Type              string         `json:"type" db:"issue_type"`
	ReporterUserID    string         `json:"reporterUserId" db:"reporter_user_id"`
	ReporterUserName  string         `json:"reporterUserName" db:"reporter_user_name"`
	AssigneeUserIDs   pq.StringArray `json:"assigneeUserIds" db:"assignee_user_ids"`
	AssigneeUserNames pq.StringArray `json:"assigneeUserNames" db:"assignee_user_names"`
	CreatedAt         time.Time      `json:"createdAt" db:"created_at"`
	UpdatedAt         time.Time      `json:"updatedAt" db:"updated_at"`
}

// Filters are the list-page query parameters. The zero value and the literal
// "all" both mean no filtering on that dimension.
type Filters struct {
	Search   string
	Status   string
	Priority string
	Assignee string
	Project  string
}

// FilterOptions feeds the list page's dropdowns.
type FilterOptions struct {
	Statuses   []string       `json:"statuses"`
	Priorities []string       `json:"priorities"`
	Projects   []FilterOption `json:"projects"`
	Assignees  []FilterOption `json:"assignees"`
}

type FilterOption struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}
