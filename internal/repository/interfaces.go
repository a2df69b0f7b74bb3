package repository

import (
	"context"

	"github.com/notehaven/notehaven-auth/internal/domain"
)

// WorkspaceRepository exposes workspace-level queries.
type WorkspaceRepository interface {
	GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error)
	GetByHost(ctx context.Context, host string) (domain.Workspace, error)
	GetFirst(ctx context.Context) (domain.Workspace, error)
	Create(ctx context.Context, workspace domain.Workspace) (domain.Workspace, error)
	UpdateDiscordConfig(ctx context.Context, workspaceID int64, cfg domain.DiscordConfig) (domain.Workspace, error)
}

// UserRepository exposes persistence for workspace users.
type UserRepository interface {
	GetByID(ctx context.Context, workspaceID, userID int64) (domain.User, error)
	GetByEmail(ctx context.Context, workspaceID int64, email string) (domain.User, error)
	GetByDiscordID(ctx context.Context, workspaceID int64, discordID string) (domain.User, error)
	Create(ctx context.Context, user domain.User) (domain.User, error)
	UpdateAvatarURL(ctx context.Context, workspaceID, userID int64, avatarURL string) error
	UpdatePassword(ctx context.Context, workspaceID, userID int64, passwordHash string) error
	// CreateProvisioned inserts the user together with workspace and
	// default-group membership in a single transaction. Either all three
	// rows land or none do.
	CreateProvisioned(ctx context.Context, user domain.User) (domain.User, error)
}

// KeyRepository stores session signing keys per workspace.
type KeyRepository interface {
	GetActiveKey(ctx context.Context, workspaceID int64) (domain.SigningKey, error)
	CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error)
}

// PendingSignupStore holds short-lived pending-signup records keyed by
// their opaque token. Consume is atomic: a token can be redeemed once.
type PendingSignupStore interface {
	Save(ctx context.Context, signup domain.PendingSignup) error
	Consume(ctx context.Context, token string) (*domain.PendingSignup, error)
}
