package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	discordapi "github.com/notehaven/notehaven-auth/internal/adapter/discord"
	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/domain/discord"
	"github.com/notehaven/notehaven-auth/internal/jwt"
	"github.com/notehaven/notehaven-auth/internal/oauthstate"
	pw "github.com/notehaven/notehaven-auth/internal/password"
	"github.com/notehaven/notehaven-auth/internal/repository"
)

const pendingTokenBytes = 32

// Session is the result of any login path: a signed token plus the
// authenticated user, ready to be set as a cookie by the handler.
type Session struct {
	Token     string
	ExpiresIn time.Duration
	User      domain.User
	Workspace domain.Workspace
}

// PendingUser describes a signup waiting on the password-setup step. It
// is the payload echoed to the frontend setup page.
type PendingUser struct {
	Token       string `json:"token"`
	WorkspaceID int64  `json:"workspaceId,string"`
	UserID      int64  `json:"id,string"`
}

// CallbackResult carries whichever outcome the callback produced.
// Exactly one of Session and Pending is set.
type CallbackResult struct {
	Session *Session
	Pending *PendingUser
}

// DiscordService implements the Discord login flow end to end: redirect,
// callback, deferred signup completion, and admin configuration.
type DiscordService struct {
	workspaces repository.WorkspaceRepository
	users      repository.UserRepository
	pending    repository.PendingSignupStore
	provider   discordapi.Client
	state      *oauthstate.Codec
	jwt        *jwt.Generator
	snowflake  *snowflake.Node
	cfg        config.Config
	logger     *zap.Logger
	tracer     trace.Tracer
	now        func() time.Time
}

// NewDiscordService wires dependencies.
func NewDiscordService(workspaces repository.WorkspaceRepository, users repository.UserRepository, pending repository.PendingSignupStore, provider discordapi.Client, state *oauthstate.Codec, generator *jwt.Generator, snowflake *snowflake.Node, cfg config.Config, logger *zap.Logger) *DiscordService {
	return &DiscordService{
		workspaces: workspaces,
		users:      users,
		pending:    pending,
		provider:   provider,
		state:      state,
		jwt:        generator,
		snowflake:  snowflake,
		cfg:        cfg,
		logger:     logger,
		tracer:     otel.Tracer("github.com/notehaven/notehaven-auth/internal/service"),
		now:        time.Now,
	}
}

// resolveClient maps a workspace's stored credentials to an OAuth client
// configuration. Pure and per-request: concurrent logins against
// different workspaces never observe each other's credentials.
func (s *DiscordService) resolveClient(workspace domain.Workspace) (discordapi.ClientConfig, error) {
	if !workspace.Discord.Configured() {
		return discordapi.ClientConfig{}, discord.ErrNotConfigured
	}
	return discordapi.ClientConfig{
		ClientID:     workspace.Discord.ClientID,
		ClientSecret: workspace.Discord.ClientSecret,
		CallbackURL:  s.cfg.DiscordCallbackURL(),
	}, nil
}

// Start validates the workspace's integration and returns the provider
// authorize URL carrying a freshly minted encrypted state.
func (s *DiscordService) Start(ctx context.Context, workspaceID int64) (string, error) {
	ctx, span := s.startSpan(ctx, "DiscordService.Start")
	defer span.End()

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return "", discord.ErrNotConfigured
	}

	client, err := s.resolveClient(workspace)
	if err != nil {
		return "", err
	}

	token, err := s.state.New(workspace.ID)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("mint state: %w", err)
	}
	encoded, err := s.state.Encode(token)
	if err != nil {
		span.RecordError(err)
		return "", fmt.Errorf("encode state: %w", err)
	}

	return discordapi.AuthorizeURL(client, encoded), nil
}

// Callback handles the provider redirect: it verifies state, exchanges
// the code, checks guild membership, and links the external identity to
// a local account or a pending signup.
func (s *DiscordService) Callback(ctx context.Context, stateParam, code string) (*CallbackResult, error) {
	ctx, span := s.startSpan(ctx, "DiscordService.Callback")
	defer span.End()

	token, err := s.state.Decode(stateParam)
	if err != nil {
		return nil, err
	}

	workspace, err := s.workspaces.GetByID(ctx, token.WorkspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, discord.ErrNotConfigured
	}
	client, err := s.resolveClient(workspace)
	if err != nil {
		return nil, err
	}

	accessToken, err := s.provider.Exchange(ctx, client, code)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}

	identity, err := s.provider.Identity(ctx, accessToken)
	if err != nil {
		span.RecordError(err)
		return nil, err
	}
	if strings.TrimSpace(identity.Email) == "" {
		return nil, discord.ErrEmailMissing
	}

	var member *discord.GuildMember
	if workspace.Discord.GuildID != "" {
		member, err = s.provider.GuildMember(ctx, accessToken, workspace.Discord.GuildID)
		if err != nil {
			span.RecordError(err)
			return nil, err
		}
	}

	guildAvatarHash := ""
	if member != nil {
		guildAvatarHash = member.AvatarHash
	}
	avatarURL, err := discordapi.AvatarURL(identity.ID, identity.AvatarHash, workspace.Discord.GuildID, guildAvatarHash, discordapi.AvatarOptions{})
	if err != nil {
		return nil, err
	}

	user, err := s.users.GetByDiscordID(ctx, workspace.ID, identity.ID)
	switch {
	case err == nil:
		return s.linkExisting(ctx, workspace, user, avatarURL)
	case errors.Is(err, pgx.ErrNoRows):
		return s.linkNew(ctx, workspace, identity, member, avatarURL)
	default:
		span.RecordError(err)
		return nil, fmt.Errorf("lookup linked user: %w", err)
	}
}

func (s *DiscordService) linkExisting(ctx context.Context, workspace domain.Workspace, user domain.User, avatarURL string) (*CallbackResult, error) {
	if user.AvatarURL != avatarURL {
		if err := s.users.UpdateAvatarURL(ctx, workspace.ID, user.ID, avatarURL); err != nil {
			s.log().Warn("avatar refresh failed",
				zap.Int64("workspace_id", workspace.ID),
				zap.Int64("user_id", user.ID),
				zap.Error(err))
		} else {
			user.AvatarURL = avatarURL
		}
	}

	session, err := s.issueSession(ctx, workspace, user)
	if err != nil {
		return nil, err
	}
	s.audit("discord.login.success", "workspace_id", workspace.ID, "user_id", user.ID)
	return &CallbackResult{Session: session}, nil
}

func (s *DiscordService) linkNew(ctx context.Context, workspace domain.Workspace, identity *discord.Identity, member *discord.GuildMember, avatarURL string) (*CallbackResult, error) {
	if !workspace.Discord.JITEnabled {
		return nil, discord.ErrProvisioningDisabled
	}

	token, err := randomToken(pendingTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("mint pending token: %w", err)
	}

	now := s.now().UTC()
	signup := domain.PendingSignup{
		Token:       token,
		Kind:        domain.PendingSignupKindDiscord,
		WorkspaceID: workspace.ID,
		UserID:      s.snowflake.Generate().Int64(),
		Name:        displayName(identity, member),
		Email:       strings.ToLower(strings.TrimSpace(identity.Email)),
		Locale:      defaultLocale(workspace),
		DiscordID:   identity.ID,
		AvatarURL:   avatarURL,
		CreatedAt:   now,
		ExpiresAt:   now.Add(domain.PendingSignupTTL),
	}

	if err := s.pending.Save(ctx, signup); err != nil {
		return nil, fmt.Errorf("persist pending signup: %w", err)
	}

	s.audit("discord.signup.pending", "workspace_id", workspace.ID, "user_id", signup.UserID)
	return &CallbackResult{Pending: &PendingUser{
		Token:       signup.Token,
		WorkspaceID: signup.WorkspaceID,
		UserID:      signup.UserID,
	}}, nil
}

// CompleteSetup redeems a pending signup: the token is consumed exactly
// once, the user row is created together with its memberships, and a
// session is issued.
func (s *DiscordService) CompleteSetup(ctx context.Context, pending PendingUser, password string) (*Session, error) {
	ctx, span := s.startSpan(ctx, "DiscordService.CompleteSetup")
	defer span.End()

	if strings.TrimSpace(pending.Token) == "" || strings.TrimSpace(password) == "" {
		return nil, discord.ErrInvalidOrExpiredToken
	}

	signup, err := s.pending.Consume(ctx, pending.Token)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("consume pending signup: %w", err)
	}
	if signup == nil ||
		signup.Kind != domain.PendingSignupKindDiscord ||
		signup.WorkspaceID != pending.WorkspaceID ||
		signup.UserID != pending.UserID ||
		signup.Expired(s.now()) {
		return nil, discord.ErrInvalidOrExpiredToken
	}

	workspace, err := s.workspaces.GetByID(ctx, signup.WorkspaceID)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("load workspace: %w", err)
	}

	hash, err := pw.Hash(password)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("hash password: %w", err)
	}

	verifiedAt := s.now().UTC()
	user := domain.User{
		ID:              signup.UserID,
		WorkspaceID:     signup.WorkspaceID,
		Name:            signup.Name,
		Email:           signup.Email,
		EmailVerifiedAt: &verifiedAt,
		PasswordHash:    hash,
		Locale:          signup.Locale,
		Role:            domain.RoleMember,
		DiscordID:       signup.DiscordID,
		AvatarURL:       signup.AvatarURL,
		Status:          "ACTIVE",
	}

	created, err := s.users.CreateProvisioned(ctx, user)
	if err != nil {
		span.RecordError(err)
		return nil, fmt.Errorf("provision user: %w", err)
	}

	session, err := s.issueSession(ctx, workspace, created)
	if err != nil {
		return nil, err
	}
	s.audit("discord.signup.completed", "workspace_id", workspace.ID, "user_id", created.ID)
	return session, nil
}

// GetConfig returns the workspace's Discord settings.
func (s *DiscordService) GetConfig(ctx context.Context, workspaceID int64) (domain.DiscordConfig, error) {
	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		return domain.DiscordConfig{}, fmt.Errorf("load workspace: %w", err)
	}
	return workspace.Discord, nil
}

// ConfigPatch is a partial update of the Discord settings. Nil fields
// leave the stored value untouched.
type ConfigPatch struct {
	Enabled      *bool   `json:"enabled"`
	ClientID     *string `json:"clientId"`
	ClientSecret *string `json:"clientSecret"`
	GuildID      *string `json:"guildId"`
	JITEnabled   *bool   `json:"jitEnabled"`
}

// UpdateConfig applies a partial update and returns the stored settings.
func (s *DiscordService) UpdateConfig(ctx context.Context, workspaceID int64, patch ConfigPatch) (domain.DiscordConfig, error) {
	ctx, span := s.startSpan(ctx, "DiscordService.UpdateConfig")
	defer span.End()

	workspace, err := s.workspaces.GetByID(ctx, workspaceID)
	if err != nil {
		span.RecordError(err)
		return domain.DiscordConfig{}, fmt.Errorf("load workspace: %w", err)
	}

	next := workspace.Discord
	if patch.Enabled != nil {
		next.Enabled = *patch.Enabled
	}
	if patch.ClientID != nil {
		next.ClientID = strings.TrimSpace(*patch.ClientID)
	}
	if patch.ClientSecret != nil {
		next.ClientSecret = strings.TrimSpace(*patch.ClientSecret)
	}
	if patch.GuildID != nil {
		next.GuildID = strings.TrimSpace(*patch.GuildID)
	}
	if patch.JITEnabled != nil {
		next.JITEnabled = *patch.JITEnabled
	}

	updated, err := s.workspaces.UpdateDiscordConfig(ctx, workspaceID, next)
	if err != nil {
		span.RecordError(err)
		return domain.DiscordConfig{}, fmt.Errorf("update discord config: %w", err)
	}

	s.audit("discord.config.updated", "workspace_id", workspaceID, "enabled", updated.Discord.Enabled)
	return updated.Discord, nil
}

func (s *DiscordService) issueSession(ctx context.Context, workspace domain.Workspace, user domain.User) (*Session, error) {
	token, err := s.jwt.GenerateSessionToken(ctx, workspace, user, s.cfg.AppURL)
	if err != nil {
		return nil, fmt.Errorf("generate session token: %w", err)
	}
	return &Session{
		Token:     token,
		ExpiresIn: s.jwt.SessionTTL(),
		User:      user,
		Workspace: workspace,
	}, nil
}

func (s *DiscordService) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	if s == nil || s.tracer == nil {
		return ctx, trace.SpanFromContext(ctx)
	}
	return s.tracer.Start(ctx, name)
}

func (s *DiscordService) audit(event string, attrs ...any) {
	logger := s.log()
	if logger == nil {
		return
	}
	fields := make([]zap.Field, 0, len(attrs)/2+2)
	fields = append(fields, zap.String("event", event), zap.Time("timestamp", time.Now().UTC()))
	for i := 0; i+1 < len(attrs); i += 2 {
		key, ok := attrs[i].(string)
		if !ok {
			continue
		}
		fields = append(fields, zap.Any(key, attrs[i+1]))
	}
	logger.Info("audit", fields...)
}

func (s *DiscordService) log() *zap.Logger {
	if s != nil && s.logger != nil {
		return s.logger
	}
	return zap.L()
}

// displayName prefers the guild nickname, then the global display name,
// then the login username.
func displayName(identity *discord.Identity, member *discord.GuildMember) string {
	if member != nil && strings.TrimSpace(member.Nick) != "" {
		return member.Nick
	}
	if strings.TrimSpace(identity.GlobalName) != "" {
		return identity.GlobalName
	}
	return identity.Username
}

func defaultLocale(workspace domain.Workspace) string {
	if workspace.DefaultLocale != "" {
		return workspace.DefaultLocale
	}
	return "en-US"
}

func randomToken(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
