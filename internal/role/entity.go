package role

import "time"

// Permission names as the console sees them. A role's boolean capability
// columns project onto this set.
const (
	PermCreateProject       = "CanCreateProject"
	PermEditProject         = "CanEditProject"
	PermDeleteProject       = "CanDeleteProject"
	PermCreateBug           = "CanCreateBug"
	PermEditBug             = "CanEditBug"
	PermChangeBugStatus     = "CanChangeBugStatus"
	PermCommentOnBugs       = "CanCommentOnBugs"
	PermManageAdminSettings = "CanManageAdminSettings"
)

// Role is a named permission bundle assigned to users.
type Role struct {
	ID                     string    `json:"id" db:"id"`
	RoleName               string    `json:"roleName" db:"role_name"`
	Description            string    `json:"description" db:"description"`
	CanCreateProject       bool      `json:"canCreateProject" db:"can_create_project"`
	CanEditProject         bool      `json:"canEditProject" db:"can_edit_project"`
	CanDeleteProject       bool      `json:"canDeleteProject" db:"can_delete_project"`
	CanCreateBug           bool      `json:"canCreateBug" db:"can_create_bug"`
	CanEditBug             bool      `json:"canEditBug" db:"can_edit_bug"`
	CanChangeBugStatus     bool      `json:"canChangeBugStatus" db:"can_change_bug_status"`
	CanCommentOnBugs       bool      `json:"canCommentOnBugs" db:"can_comment_on_bugs"`
	CanManageAdminSettings bool      `json:"canManageAdminSettings" db:"can_manage_admin_settings"`
	CreatedAt              time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt              time.Time `json:"updatedAt" db:"updated_at"`
}

// Permissions returns the permission names granted by this role.
func (r *Role) Permissions() []string {
	out := make([]string, 0, 8)
	for _, p := range []struct {
		set  bool
		name string
	}{
		{r.CanCreateProject, PermCreateProject},
		{r.CanEditProject, PermEditProject},
		{r.CanDeleteProject, PermDeleteProject},
		{r.CanCreateBug, PermCreateBug},
		{r.CanEditBug, PermEditBug},
		{r.CanChangeBugStatus, PermChangeBugStatus},
		{r.CanCommentOnBugs, PermCommentOnBugs},
		{r.CanManageAdminSettings, PermManageAdminSettings},
	} {
		if p.set {
			out = append(out, p.name)
		}
	}
	return out
}

// GrantsAny reports whether at least one capability is set. Roles without a
// single permission are rejected at create/update time.
func (r *Role) GrantsAny() bool {
	return len(r.Permissions()) > 0
}
