package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/password"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

const insertGroupSQL = `INSERT INTO groups (id, workspace_id, name, is_default)
VALUES ($1, $2, $3, true)`

// EnsureWorkspace creates the default workspace, its default group, and
// the admin account on first boot.
func EnsureWorkspace(lc fx.Lifecycle, cfg config.Config, workspaces repository.WorkspaceRepository, users repository.UserRepository, pool *pgxpool.Pool, node *snowflake.Node, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			workspace, err := ensureWorkspace(ctx, cfg, workspaces, pool, node, logger)
			if err != nil {
				return err
			}
			return ensureAdmin(ctx, cfg, workspace, users, node, logger)
		},
	})
}

func ensureWorkspace(ctx context.Context, cfg config.Config, workspaces repository.WorkspaceRepository, pool *pgxpool.Pool, node *snowflake.Node, logger *zap.Logger) (domain.Workspace, error) {
	workspace, err := workspaces.GetFirst(ctx)
	if err == nil {
		return workspace, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.Workspace{}, fmt.Errorf("bootstrap workspace lookup: %w", err)
	}

	workspace, err = workspaces.Create(ctx, domain.Workspace{
		ID:            node.Generate().Int64(),
		Name:          cfg.WorkspaceName,
		Host:          cfg.WorkspaceHost,
		DefaultLocale: "en-US",
	})
	if err != nil {
		return domain.Workspace{}, fmt.Errorf("bootstrap create workspace: %w", err)
	}

	if _, err := pool.Exec(ctx, insertGroupSQL, node.Generate().Int64(), workspace.ID, "Everyone"); err != nil {
		return domain.Workspace{}, fmt.Errorf("bootstrap create default group: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap workspace created",
			zap.Int64("workspace_id", workspace.ID),
			zap.String("host", workspace.Host),
		)
	}
	return workspace, nil
}

func ensureAdmin(ctx context.Context, cfg config.Config, workspace domain.Workspace, users repository.UserRepository, node *snowflake.Node, logger *zap.Logger) error {
	email := strings.ToLower(strings.TrimSpace(cfg.AdminEmail))
	if email == "" || strings.TrimSpace(cfg.AdminPassword) == "" {
		return fmt.Errorf("admin bootstrap missing required config")
	}

	if _, err := users.GetByEmail(ctx, workspace.ID, email); err == nil {
		return nil
	} else if !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("bootstrap lookup user: %w", err)
	}

	hashed, err := password.Hash(cfg.AdminPassword)
	if err != nil {
		return fmt.Errorf("bootstrap hash password: %w", err)
	}

	now := time.Now().UTC()
	created, err := users.CreateProvisioned(ctx, domain.User{
		ID:              node.Generate().Int64(),
		WorkspaceID:     workspace.ID,
		Name:            "Admin",
		Email:           email,
		EmailVerifiedAt: &now,
		PasswordHash:    hashed,
		Locale:          workspace.DefaultLocale,
		Role:            domain.RoleOwner,
		Status:          "ACTIVE",
	})
	if err != nil {
		return fmt.Errorf("bootstrap create admin: %w", err)
	}

	if logger != nil {
		logger.Info("bootstrap admin user created",
			zap.String("email", created.Email),
			zap.Int64("workspace_id", workspace.ID),
			zap.Int64("user_id", created.ID),
		)
	}
	return nil
}
