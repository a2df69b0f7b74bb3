package domain

import "time"

// PendingSignupKind discriminates pending-signup records. Only Discord
// logins use the deferred setup step today.
const PendingSignupKindDiscord = "DISCORD_PENDING_LOGIN"

// PendingSignupTTL bounds how long a callback-issued signup token stays
// redeemable.
const PendingSignupTTL = time.Hour

// PendingSignup bridges an OAuth callback and the follow-up
// password-setup request. It carries the draft profile so no user row
// exists until the signup is completed. Single use.
type PendingSignup struct {
	Token       string
	Kind        string
	WorkspaceID int64
	UserID      int64
	Name        string
	Email       string
	Locale      string
	DiscordID   string
	AvatarURL   string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

// Expired reports whether the record is past its expiry instant.
func (p PendingSignup) Expired(now time.Time) bool {
	return now.After(p.ExpiresAt)
}
