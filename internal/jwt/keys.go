package jwt

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/go-jose/go-jose/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

// KeyManager ensures workspaces always have an active signing key.
type KeyManager struct {
	repo repository.KeyRepository
	node *snowflake.Node
}

// NewKeyManager creates a KeyManager.
func NewKeyManager(repo repository.KeyRepository, node *snowflake.Node) *KeyManager {
	return &KeyManager{repo: repo, node: node}
}

// EnsureSigningKey returns the active key or creates a new one if missing.
func (m *KeyManager) EnsureSigningKey(ctx context.Context, workspaceID int64) (domain.SigningKey, error) {
	key, err := m.repo.GetActiveKey(ctx, workspaceID)
	if err == nil {
		return key, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.SigningKey{}, fmt.Errorf("ensure signing key: %w", err)
	}

	secret := make([]byte, 64)
	if _, randErr := rand.Read(secret); randErr != nil {
		return domain.SigningKey{}, fmt.Errorf("generate secret: %w", randErr)
	}

	key = domain.SigningKey{
		ID:          m.node.Generate().Int64(),
		WorkspaceID: workspaceID,
		KID:         uuid.NewString(),
		Secret:      secret,
		Algorithm:   string(jose.HS256),
		IsActive:    true,
	}

	created, err := m.repo.CreateKey(ctx, key)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("persist signing key: %w", err)
	}

	return created, nil
}

// ActiveKey retrieves an existing signing key without creating one.
func (m *KeyManager) ActiveKey(ctx context.Context, workspaceID int64) (domain.SigningKey, error) {
	key, err := m.repo.GetActiveKey(ctx, workspaceID)
	if err != nil {
		return domain.SigningKey{}, fmt.Errorf("active key: %w", err)
	}
	return key, nil
}
