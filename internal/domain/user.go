package domain

import "time"

// Roles assignable to workspace users.
const (
	RoleOwner  = "OWNER"
	RoleAdmin  = "ADMIN"
	RoleMember = "MEMBER"
)

// User represents an end user that can authenticate within a workspace.
type User struct {
	ID              int64
	WorkspaceID     int64
	Name            string
	Email           string
	EmailVerifiedAt *time.Time
	PasswordHash    string
	Locale          string
	Role            string
	DiscordID       string
	AvatarURL       string
	Status          string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsAdmin reports whether the user may manage workspace settings.
func (u User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleOwner
}
