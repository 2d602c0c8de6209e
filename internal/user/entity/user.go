package entity

import "time"

// User represents an account row in the users table.
type User struct {
	ID                     string     `db:"id"`
	FirstName              string     `db:"first_name"`
	LastName               string     `db:"last_name"`
	Username               string     `db:"username"`
	Email                  string     `db:"email"`
	PhoneNumber            string     `db:"phone_number"`
	ProfilePictureURL      string     `db:"profile_picture_url"`
	RoleID                 string     `db:"role_id"`
	PasswordHash           *string    `db:"password_hash"`
	PasswordAlgo           *string    `db:"password_algo"`
	PasswordUpdatedAt      *time.Time `db:"password_updated_at"`
	DefaultPasswordChanged bool       `db:"default_password_changed"`
	Status                 string     `db:"status"` // active / locked / disabled
	LoginFailedAttempts    int        `db:"login_failed_attempts"`
	LockedUntil            *time.Time `db:"locked_until"`
	LastLoginAt            *time.Time `db:"last_login_at"`
	Version                int64      `db:"version"`
	CreatedAt              time.Time  `db:"created_at"`
	UpdatedAt              time.Time  `db:"updated_at"`
}

// Profile is the read-mostly projection the console caches after login.
// Served under the "result" key of /users/me.
type Profile struct {
	ID                     string   `json:"id"`
	FirstName              string   `json:"firstName"`
	LastName               string   `json:"lastName"`
	Username               string   `json:"username"`
	Email                  string   `json:"email"`
	PhoneNumber            string   `json:"phoneNumber"`
	ProfilePictureURL      string   `json:"profilePictureUrl,omitempty"`
	Role                   string   `json:"role"`
	RoleID                 string   `json:"roleId"`
	Permissions            []string `json:"permissions"`
	DefaultPasswordChanged bool     `json:"defaultPasswordChanged"`
}

// ListItem is the row shape for the admin Users table.
type ListItem struct {
	ID                string `json:"id"`
	FirstName         string `json:"firstname"`
	LastName          string `json:"lastname"`
	Username          string `json:"username"`
	Email             string `json:"email"`
	Role              string `json:"role"`
	RoleID            string `json:"roleId"`
	ProfilePictureURL string `json:"profilePictureUrl,omitempty"`
	Status            string `json:"status"`
}

// NotificationSettings mirror the console's notification preferences form.
type NotificationSettings struct {
	DefaultNotificationMethod string `json:"defaultNotificationMethod" db:"default_notification_method"`
	NotifyOnAssignedBug       bool   `json:"notifyOnAssignedBug" db:"notify_on_assigned_bug"`
	NotifyOnNewComment        bool   `json:"notifyOnNewComment" db:"notify_on_new_comment"`
	NotifyOnStatusChange      bool   `json:"notifyOnStatusChange" db:"notify_on_status_change"`
}

// DefaultNotificationSettings is what a fresh account starts with.
func DefaultNotificationSettings() NotificationSettings {
	return NotificationSettings{
		DefaultNotificationMethod: "email",
		NotifyOnAssignedBug:       true,
		NotifyOnNewComment:        true,
		NotifyOnStatusChange:      true,
	}
}

// ResetToken is a persisted single-use password reset token.
type ResetToken struct {
	Token     string     `db:"token"`
	UserID    string     `db:"user_id"`
	ExpiresAt time.Time  `db:"expires_at"`
	UsedAt    *time.Time `db:"used_at"`
	CreatedAt time.Time  `db:"created_at"`
}

// Reset token states the console branches on.
const (
	TokenValid   = "valid"
	TokenExpired = "expired"
	TokenUsed    = "used"
	TokenInvalid = "invalid"
)

// State classifies the token at a point in time.
func (t *ResetToken) State(now time.Time) string {
	switch {
	case t == nil:
		return TokenInvalid
	case t.UsedAt != nil:
		return TokenUsed
	case now.After(t.ExpiresAt):
		return TokenExpired
	default:
		return TokenValid
	}
}
