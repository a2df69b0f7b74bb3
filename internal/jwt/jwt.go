package jwt

import (
	"context"
	"fmt"
	"time"

	gojose "github.com/go-jose/go-jose/v4"
	gojwt "github.com/go-jose/go-jose/v4/jwt"

	"github.com/notehaven/notehaven-auth/internal/domain"
)

// Generator is responsible for signing and validating session tokens.
type Generator struct {
	keys       *KeyManager
	sessionTTL time.Duration
}

// NewGenerator constructs a session token generator.
func NewGenerator(manager *KeyManager, sessionTTL time.Duration) *Generator {
	return &Generator{keys: manager, sessionTTL: sessionTTL}
}

// SessionTTL exposes the configured token lifetime, which also drives
// cookie expiry.
func (g *Generator) SessionTTL() time.Duration {
	return g.sessionTTL
}

// SessionClaims represent the JWT payload for session tokens.
type SessionClaims struct {
	WorkspaceID int64  `json:"workspace_id"`
	Email       string `json:"email"`
	Name        string `json:"name"`
	Picture     string `json:"picture,omitempty"`
	Role        string `json:"role"`
}

// GenerateSessionToken produces a signed JWT for the user.
func (g *Generator) GenerateSessionToken(ctx context.Context, workspace domain.Workspace, user domain.User, issuer string) (string, error) {
	key, err := g.keys.EnsureSigningKey(ctx, workspace.ID)
	if err != nil {
		return "", fmt.Errorf("ensure signing key: %w", err)
	}

	signer, err := gojose.NewSigner(
		gojose.SigningKey{Algorithm: gojose.SignatureAlgorithm(key.Algorithm), Key: key.Secret},
		(&gojose.SignerOptions{}).WithType("JWT").WithHeader("kid", key.KID),
	)
	if err != nil {
		return "", fmt.Errorf("new signer: %w", err)
	}

	now := time.Now().UTC()
	std := gojwt.Claims{
		Subject:   fmt.Sprintf("%d", user.ID),
		Audience:  gojwt.Audience{workspace.Name},
		Issuer:    issuer,
		IssuedAt:  gojwt.NewNumericDate(now),
		Expiry:    gojwt.NewNumericDate(now.Add(g.sessionTTL)),
		NotBefore: gojwt.NewNumericDate(now),
	}

	custom := SessionClaims{
		WorkspaceID: workspace.ID,
		Email:       user.Email,
		Name:        user.Name,
		Picture:     user.AvatarURL,
		Role:        user.Role,
	}

	token, err := gojwt.Signed(signer).Claims(std).Claims(custom).Serialize()
	if err != nil {
		return "", fmt.Errorf("serialize jwt: %w", err)
	}

	return token, nil
}

// ValidateSessionToken ensures the token is valid and returns its claims.
func (g *Generator) ValidateSessionToken(ctx context.Context, workspaceID int64, token, issuer string) (*gojwt.Claims, *SessionClaims, error) {
	key, err := g.keys.ActiveKey(ctx, workspaceID)
	if err != nil {
		return nil, nil, fmt.Errorf("load key: %w", err)
	}

	allowed := []gojose.SignatureAlgorithm{gojose.SignatureAlgorithm(key.Algorithm)}
	parsed, err := gojwt.ParseSigned(token, allowed)
	if err != nil {
		return nil, nil, fmt.Errorf("parse token: %w", err)
	}

	var std gojwt.Claims
	var custom SessionClaims
	if err := parsed.Claims(key.Secret, &std, &custom); err != nil {
		return nil, nil, fmt.Errorf("verify token: %w", err)
	}

	if err := std.Validate(gojwt.Expected{Issuer: issuer, Time: time.Now()}); err != nil {
		return nil, nil, fmt.Errorf("validate claims: %w", err)
	}

	if custom.WorkspaceID != workspaceID {
		return nil, nil, fmt.Errorf("token workspace mismatch")
	}

	return &std, &custom, nil
}
