package project

import "time"

// Project is a container for issues with a lead, a manager, and members.
type Project struct {
	ID              string    `json:"id" db:"id"`
	Name            string    `json:"name" db:"name"`
	Description     string    `json:"description" db:"description"`
	LeadUserID      string    `json:"leadUserId" db:"lead_user_id"`
	LeadUserName    string    `json:"leadUserName" db:"lead_user_name"`
	ManagerUserID   string    `json:"managerUserId" db:"manager_user_id"`
	ManagerUserName string    `json:"managerUserName" db:"manager_user_name"`
	CreatedAt       time.Time `json:"createdAt" db:"created_at"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`

	// Members is populated on detail fetches.
	Members []Member `json:"members,omitempty"`
}

// Member is a user's membership in a project.
type Member struct {
	UserID   string    `json:"userId" db:"user_id"`
	UserName string    `json:"userName" db:"user_name"`
	Email    string    `json:"email" db:"email"`
	Role     string    `json:"role" db:"role"`
	JoinedAt time.Time `json:"joinedAt" db:"joined_at"`
}
