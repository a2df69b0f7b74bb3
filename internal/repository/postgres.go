package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/notehaven/notehaven-auth/internal/domain"
)

// Compile-time interface assertions.
var (
	_ WorkspaceRepository = (*PostgresWorkspaceRepo)(nil)
	_ UserRepository      = (*PostgresUserRepo)(nil)
	_ KeyRepository       = (*PostgresKeyRepo)(nil)
)

// PostgresWorkspaceRepo implements WorkspaceRepository on pgx.
type PostgresWorkspaceRepo struct {
	db *pgxpool.Pool
}

func NewPostgresWorkspaceRepo(pool *pgxpool.Pool) *PostgresWorkspaceRepo {
	return &PostgresWorkspaceRepo{db: pool}
}

const workspaceColumns = `id, name, host, default_locale, discord_enabled, discord_client_id, discord_client_secret, discord_guild_id, discord_jit_enabled, created_at, updated_at`

func (r *PostgresWorkspaceRepo) GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error) {
	row := r.db.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE id = $1`, workspaceID)
	return scanWorkspace(row)
}

func (r *PostgresWorkspaceRepo) GetByHost(ctx context.Context, host string) (domain.Workspace, error) {
	row := r.db.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces WHERE host = $1`, strings.ToLower(host))
	return scanWorkspace(row)
}

func (r *PostgresWorkspaceRepo) GetFirst(ctx context.Context) (domain.Workspace, error) {
	row := r.db.QueryRow(ctx, `SELECT `+workspaceColumns+` FROM workspaces ORDER BY id LIMIT 1`)
	return scanWorkspace(row)
}

func (r *PostgresWorkspaceRepo) Create(ctx context.Context, workspace domain.Workspace) (domain.Workspace, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO workspaces (id, name, host, default_locale, discord_enabled, discord_client_id, discord_client_secret, discord_guild_id, discord_jit_enabled)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING `+workspaceColumns,
		workspace.ID,
		workspace.Name,
		strings.ToLower(workspace.Host),
		workspace.DefaultLocale,
		workspace.Discord.Enabled,
		workspace.Discord.ClientID,
		workspace.Discord.ClientSecret,
		workspace.Discord.GuildID,
		workspace.Discord.JITEnabled,
	)
	created, err := scanWorkspace(row)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("create workspace: %w", err)
	}
	return created, nil
}

func (r *PostgresWorkspaceRepo) UpdateDiscordConfig(ctx context.Context, workspaceID int64, cfg domain.DiscordConfig) (domain.Workspace, error) {
	row := r.db.QueryRow(ctx, `
UPDATE workspaces
SET discord_enabled = $2,
    discord_client_id = $3,
    discord_client_secret = $4,
    discord_guild_id = $5,
    discord_jit_enabled = $6,
    updated_at = now()
WHERE id = $1
RETURNING `+workspaceColumns,
		workspaceID,
		cfg.Enabled,
		cfg.ClientID,
		cfg.ClientSecret,
		cfg.GuildID,
		cfg.JITEnabled,
	)
	updated, err := scanWorkspace(row)
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("update discord config: %w", err)
	}
	return updated, nil
}

func scanWorkspace(row pgx.Row) (domain.Workspace, error) {
	var w domain.Workspace
	if err := row.Scan(
		&w.ID,
		&w.Name,
		&w.Host,
		&w.DefaultLocale,
		&w.Discord.Enabled,
		&w.Discord.ClientID,
		&w.Discord.ClientSecret,
		&w.Discord.GuildID,
		&w.Discord.JITEnabled,
		&w.CreatedAt,
		&w.UpdatedAt,
	); err != nil {
		return domain.Workspace{}, fmt.Errorf("scan workspace: %w", err)
	}
	return w, nil
}

// PostgresUserRepo implements UserRepository.
type PostgresUserRepo struct {
	db *pgxpool.Pool
}

func NewPostgresUserRepo(pool *pgxpool.Pool) *PostgresUserRepo {
	return &PostgresUserRepo{db: pool}
}

const userColumns = `id, workspace_id, name, email, email_verified_at, password_hash, locale, role, discord_id, avatar_url, status, created_at, updated_at`

func (r *PostgresUserRepo) GetByID(ctx context.Context, workspaceID, userID int64) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE workspace_id = $1 AND id = $2`, workspaceID, userID)
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByEmail(ctx context.Context, workspaceID int64, email string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE workspace_id = $1 AND email = $2`, workspaceID, strings.ToLower(email))
	return scanUser(row)
}

func (r *PostgresUserRepo) GetByDiscordID(ctx context.Context, workspaceID int64, discordID string) (domain.User, error) {
	row := r.db.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE workspace_id = $1 AND discord_id = $2`, workspaceID, discordID)
	return scanUser(row)
}

const insertUserSQL = `
INSERT INTO users (id, workspace_id, name, email, email_verified_at, password_hash, locale, role, discord_id, avatar_url, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULLIF($9, ''), $10, $11)
RETURNING ` + userColumns

func (r *PostgresUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	row := r.db.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.WorkspaceID,
		user.Name,
		strings.ToLower(user.Email),
		user.EmailVerifiedAt,
		user.PasswordHash,
		user.Locale,
		user.Role,
		user.DiscordID,
		user.AvatarURL,
		user.Status,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("create user: %w", err)
	}
	return created, nil
}

func (r *PostgresUserRepo) UpdateAvatarURL(ctx context.Context, workspaceID, userID int64, avatarURL string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE users SET avatar_url = $3, updated_at = now() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, userID, avatarURL,
	); err != nil {
		return fmt.Errorf("update avatar: %w", err)
	}
	return nil
}

func (r *PostgresUserRepo) UpdatePassword(ctx context.Context, workspaceID, userID int64, passwordHash string) error {
	if _, err := r.db.Exec(ctx,
		`UPDATE users SET password_hash = $3, updated_at = now() WHERE workspace_id = $1 AND id = $2`,
		workspaceID, userID, passwordHash,
	); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	return nil
}

// CreateProvisioned inserts the user row plus workspace and default-group
// memberships in one transaction so a partially provisioned account is
// never observable.
func (r *PostgresUserRepo) CreateProvisioned(ctx context.Context, user domain.User) (domain.User, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("begin provision: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, insertUserSQL,
		user.ID,
		user.WorkspaceID,
		user.Name,
		strings.ToLower(user.Email),
		user.EmailVerifiedAt,
		user.PasswordHash,
		user.Locale,
		user.Role,
		user.DiscordID,
		user.AvatarURL,
		user.Status,
	)
	created, err := scanUser(row)
	if err != nil {
		return domain.User{}, fmt.Errorf("provision user: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO workspace_members (workspace_id, user_id, role) VALUES ($1, $2, $3)`,
		created.WorkspaceID, created.ID, created.Role,
	); err != nil {
		return domain.User{}, fmt.Errorf("provision workspace member: %w", err)
	}

	tag, err := tx.Exec(ctx, `
INSERT INTO group_members (group_id, user_id)
SELECT id, $2 FROM groups WHERE workspace_id = $1 AND is_default
`, created.WorkspaceID, created.ID)
	if err != nil {
		return domain.User{}, fmt.Errorf("provision group member: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.User{}, fmt.Errorf("provision group member: no default group for workspace %d", created.WorkspaceID)
	}

	if err := tx.Commit(ctx); err != nil {
		return domain.User{}, fmt.Errorf("commit provision: %w", err)
	}
	return created, nil
}

func scanUser(row pgx.Row) (domain.User, error) {
	var (
		u         domain.User
		discordID *string
	)
	if err := row.Scan(
		&u.ID,
		&u.WorkspaceID,
		&u.Name,
		&u.Email,
		&u.EmailVerifiedAt,
		&u.PasswordHash,
		&u.Locale,
		&u.Role,
		&discordID,
		&u.AvatarURL,
		&u.Status,
		&u.CreatedAt,
		&u.UpdatedAt,
	); err != nil {
		return domain.User{}, err
	}
	if discordID != nil {
		u.DiscordID = *discordID
	}
	return u, nil
}

// PostgresKeyRepo implements KeyRepository.
type PostgresKeyRepo struct {
	db *pgxpool.Pool
}

func NewPostgresKeyRepo(pool *pgxpool.Pool) *PostgresKeyRepo {
	return &PostgresKeyRepo{db: pool}
}

func (r *PostgresKeyRepo) GetActiveKey(ctx context.Context, workspaceID int64) (domain.SigningKey, error) {
	var key domain.SigningKey
	err := r.db.QueryRow(ctx, `
SELECT id, workspace_id, kid, secret, algorithm, is_active, created_at, rotated_at
FROM signing_keys
WHERE workspace_id = $1 AND is_active
ORDER BY created_at DESC
LIMIT 1`, workspaceID).Scan(
		&key.ID,
		&key.WorkspaceID,
		&key.KID,
		&key.Secret,
		&key.Algorithm,
		&key.IsActive,
		&key.CreatedAt,
		&key.RotatedAt,
	)
	if err != nil {
		return domain.SigningKey{}, err
	}
	return key, nil
}

func (r *PostgresKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	row := r.db.QueryRow(ctx, `
INSERT INTO signing_keys (id, workspace_id, kid, secret, algorithm, is_active)
VALUES ($1, $2, $3, $4, $5, true)
RETURNING id, workspace_id, kid, secret, algorithm, is_active, created_at, rotated_at`,
		key.ID,
		key.WorkspaceID,
		key.KID,
		key.Secret,
		key.Algorithm,
	)
	var created domain.SigningKey
	if err := row.Scan(
		&created.ID,
		&created.WorkspaceID,
		&created.KID,
		&created.Secret,
		&created.Algorithm,
		&created.IsActive,
		&created.CreatedAt,
		&created.RotatedAt,
	); err != nil {
		return domain.SigningKey{}, fmt.Errorf("insert signing key: %w", err)
	}
	return created, nil
}
