package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/jwt"
	pw "github.com/notehaven/notehaven-auth/internal/password"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

// ErrInvalidCredentials is returned for any failed email/password login.
// The cause is deliberately not distinguished.
var ErrInvalidCredentials = errors.New("invalid email or password")

// AuthService handles password logins and authenticated account actions.
type AuthService struct {
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	jwt        *jwt.Generator
	cfg        config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
}

// NewAuthService wires dependencies.
func NewAuthService(workspaces repository.WorkspaceRepository, users repository.UserRepository, generator *jwt.Generator, cfg config.Config, logger *zap.Logger) *AuthService {
	return &AuthService{
		workspaces: workspaces,
		users:      users,
		jwt:        generator,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("github.com/notehaven/notehaven-auth/internal/service"),
	}
}

// Login authenticates with email and password and issues a session.
func (s *AuthService) Login(ctx context.Context, workspaceID int64, email, password string) (*Session, error) {
	ctx, span := s.startSpan(ctx, "AuthService.Login")
	defer span.End()

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, ErrInvalidCredentials
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	user, err := s.users.GetByEmail(ctx, workspace.ID, normalized)
	if err != nil {
		span.RecordError(err)
		return nil, ErrInvalidCredentials
	}

	valid, err := pw.Verify(password, user.PasswordHash)
	if err != nil || !valid {
		return nil, ErrInvalidCredentials
	}

	token, err := s.jwt.GenerateSessionToken(ctx, workspace, user, s.cfg.AppURL)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("generate session token: %w", err)
	}

	s.auditLogin(workspace.ID, user.ID)
	return &Session{
		Token:     token,
		ExpiresIn: s.jwt.SessionTTL(),
		User:      user,
		Workspace: workspace,
	}, nil
}

// ValidateSession verifies a session token and loads its user.
func (s *AuthService) ValidateSession(ctx context.Context, workspaceID int64, token string) (domain.User, error) {
	std, claims, err := s.jwt.ValidateSessionToken(ctx, workspaceID, token, s.cfg.AppURL)
	if err != nil {
		return domain.User{}, fmt.Errorf("validate session: %w", err)
	}

	userID, err := strconv.ParseInt(std.Subject, 10, 64)
	if err != nil {
		return domain.User{}, fmt.Errorf("session subject: %w", err)
	}

	user, err := s.users.GetByID(ctx, claims.WorkspaceID, userID)
	if err != nil {
		return domain.User{}, fmt.Errorf("load session user: %w", err)
	}
	return user, nil
}

// ChangePassword verifies the current password and stores a new hash.
func (s *AuthService) ChangePassword(ctx context.Context, workspaceID, userID int64, current, next string) error {
	ctx, span := s.startSpan(ctx, "AuthService.ChangePassword")
	defer span.End()

	user, err := s.users.GetByID(ctx, workspaceID, userID)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("load user: %w", err)
	}

	valid, err := pw.Verify(current, user.PasswordHash)
	if err != nil || !valid {
		return ErrInvalidCredentials
	}

	hash, err := pw.Hash(next)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, workspaceID, userID, hash); err != nil {
		span.RecordError(err)
		return fmt.Errorf("update password: %w", err)
	}

	s.log().Info("audit",
		zap.String("event", "password.changed"),
		zap.Time("timestamp", time.Now().UTC()),
		zap.Int64("workspace_id", workspaceID),
		zap.Int64("user_id", userID))
	return nil
}

func (s *AuthService) auditLogin(workspaceID, userID int64) {
	s.log().Info("audit",
		zap.String("event", "password.login.success"),
		zap.Time("timestamp", time.Now().UTC()),
		zap.Int64("workspace_id", workspaceID),
		zap.Int64("user_id", userID))
}

func (s *AuthService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *AuthService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}
