package domain

import "time"

// Workspace represents a wiki workspace (a single tenant).
type Workspace struct {
	ID            int64
	Name          string
	Host          string
	DefaultLocale string
	Discord       DiscordConfig
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DiscordConfig holds the per-workspace Discord OAuth integration settings.
// Credentials are supplied by workspace admins, not at process start.
type DiscordConfig struct {
	Enabled      bool
	ClientID     string
	ClientSecret string
	GuildID      string
	JITEnabled   bool
}

// Configured reports whether the integration is usable for login.
func (c DiscordConfig) Configured() bool {
	return c.Enabled && c.ClientID != "" && c.ClientSecret != ""
}

// Group is a user group within a workspace. Every workspace has exactly
// one default group that newly provisioned members join.
type Group struct {
	ID          int64
	WorkspaceID int64
	Name        string
	IsDefault   bool
	CreatedAt   time.Time
}
