package workspace

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

// Context stores the resolved workspace for the request lifecycle.
type Context struct {
	Workspace domain.Workspace
}

// Resolver loads workspace metadata from the repository.
type Resolver struct {
	repo repository.WorkspaceRepository
}

// NewResolver creates a workspace resolver.
func NewResolver(repo repository.WorkspaceRepository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve loads the workspace serving the given host.
func (r *Resolver) Resolve(ctx context.Context, host string) (*Context, error) {
	cleaned := strings.ToLower(strings.TrimSpace(host))
	if cleaned == "" {
		zap.L().Warn("workspace resolver received empty host")
		return nil, fmt.Errorf("resolve workspace: empty host")
	}

	workspace, err := r.repo.GetByHost(ctx, cleaned)
	if err != nil {
		zap.L().Error("failed to resolve workspace", zap.String("host", cleaned), zap.Error(err))
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}

	zap.L().Debug("workspace resolved", zap.String("host", cleaned), zap.Int64("workspace_id", workspace.ID))
	return &Context{Workspace: workspace}, nil
}

// ResolveByID loads a workspace from an explicit identifier, as sent in
// the X-Workspace-ID header or the workspace_id query parameter.
func (r *Resolver) ResolveByID(ctx context.Context, raw string) (*Context, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil || id <= 0 {
		return nil, fmt.Errorf("resolve workspace: bad id %q", raw)
	}

	workspace, err := r.repo.GetByID(ctx, id)
	if err != nil {
		zap.L().Error("failed to resolve workspace by id", zap.Int64("workspace_id", id), zap.Error(err))
		return nil, fmt.Errorf("resolve workspace: %w", err)
	}
	return &Context{Workspace: workspace}, nil
}

// ResolveDefault falls back to the oldest workspace. Single-tenant
// installs never send workspace hints, so every request lands here.
func (r *Resolver) ResolveDefault(ctx context.Context) (*Context, error) {
	workspace, err := r.repo.GetFirst(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve default workspace: %w", err)
	}
	return &Context{Workspace: workspace}, nil
}
