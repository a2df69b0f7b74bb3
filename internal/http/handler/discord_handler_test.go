package handler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	discordadapter "github.com/notehaven/notehaven-auth/internal/adapter/discord"
	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/domain"
	"github.com/notehaven/notehaven-auth/internal/domain/discord"
	httpHandler "github.com/notehaven/notehaven-auth/internal/http/handler"
	"github.com/notehaven/notehaven-auth/internal/jwt"
	"github.com/notehaven/notehaven-auth/internal/oauthstate"
	"github.com/notehaven/notehaven-auth/internal/service"
	"github.com/notehaven/notehaven-auth/internal/workspace"
)

func testDiscordHandler(t *testing.T, ws domain.Workspace, pending *stubPendingStore) (*httpHandler.DiscordHandler, *stubUserRepo) {
	t.Helper()

	key := make([]byte, 32)
	codec, err := oauthstate.NewCodec(key)
	require.NoError(t, err)

	cfg := config.Config{AppURL: "http://localhost:8080", FrontendURL: "http://localhost:3000", SessionTTL: time.Hour}
	node, err := snowflake.NewNode(2)
	require.NoError(t, err)
	keys := jwt.NewKeyManager(&stubKeyRepo{}, node)
	generator := jwt.NewGenerator(keys, cfg.SessionTTL)

	users := &stubUserRepo{}
	svc := service.NewDiscordService(&stubWorkspaceRepo{workspace: ws}, users, pending, &stubProvider{}, codec, generator, node, cfg, zap.NewNop())
	return httpHandler.NewDiscordHandler(svc, cfg), users
}

func TestStartRedirectsToAuthorize(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := testDiscordHandler(t, enabledWorkspace(), &stubPendingStore{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://localhost:8080/auth/discord?workspace_id=1", nil)
	c.Set("workspaceContext", &workspace.Context{Workspace: enabledWorkspace()})

	h.Start(c)

	require.Equal(t, http.StatusFound, w.Code)
	location := w.Header().Get("Location")
	require.Contains(t, location, "https://discord.com/api/oauth2/authorize")
	require.Contains(t, location, "state=")
}

func TestCallbackRejectsGarbageState(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := testDiscordHandler(t, enabledWorkspace(), &stubPendingStore{})

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://localhost:8080/auth/discord/callback?code=abc&state=garbage", nil)

	h.Callback(c)

	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid_state")
}

func TestCompleteSetupSetsSessionCookie(t *testing.T) {
	gin.SetMode(gin.TestMode)
	pending := &stubPendingStore{record: &domain.PendingSignup{
		Token:       "tok",
		Kind:        domain.PendingSignupKindDiscord,
		WorkspaceID: 1,
		UserID:      7,
		Name:        "bob",
		Email:       "a@b.com",
		Locale:      "en-US",
		DiscordID:   "U1",
		ExpiresAt:   time.Now().Add(time.Hour),
	}}
	h, users := testDiscordHandler(t, enabledWorkspace(), pending)

	body := `{"pendingUser":{"token":"tok","workspaceId":"1","id":"7"},"password":"Str0ngPass!"}`
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "http://localhost:8080/auth/discord/complete-setup", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")

	h.CompleteSetup(c)

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, 1, users.created)
	require.Contains(t, w.Body.String(), `"discordId":"U1"`)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	cookie := cookies[0]
	require.Equal(t, "authToken", cookie.Name)
	require.NotEmpty(t, cookie.Value)
	require.Equal(t, "/", cookie.Path)
	require.True(t, cookie.HttpOnly)
	require.False(t, cookie.Secure, "plain http deployment")
	require.Equal(t, http.SameSiteLaxMode, cookie.SameSite)

	// Same token again must fail.
	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodPost, "http://localhost:8080/auth/discord/complete-setup", strings.NewReader(body))
	c2.Request.Header.Set("Content-Type", "application/json")
	h.CompleteSetup(c2)
	require.Equal(t, http.StatusBadRequest, w2.Code)
	require.Contains(t, w2.Body.String(), "invalid_token")
}

func TestConfigEndpointsReportUnknownWorkspace(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h, _ := testDiscordHandler(t, enabledWorkspace(), &stubPendingStore{})
	gone := &workspace.Context{Workspace: domain.Workspace{ID: 99}}

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "http://localhost:8080/auth/discord-config", nil)
	c.Set("workspaceContext", gone)
	h.GetConfig(c)
	require.Equal(t, http.StatusNotFound, w.Code)
	require.Contains(t, w.Body.String(), "invalid_workspace")

	w2 := httptest.NewRecorder()
	c2, _ := gin.CreateTestContext(w2)
	c2.Request = httptest.NewRequest(http.MethodPatch, "http://localhost:8080/auth/discord-config", strings.NewReader(`{"enabled":true}`))
	c2.Request.Header.Set("Content-Type", "application/json")
	c2.Set("workspaceContext", gone)
	h.UpdateConfig(c2)
	require.Equal(t, http.StatusNotFound, w2.Code)
	require.Contains(t, w2.Body.String(), "invalid_workspace")
}

func enabledWorkspace() domain.Workspace {
	return domain.Workspace{
		ID:            1,
		Name:          "Notehaven",
		Host:          "localhost",
		DefaultLocale: "en-US",
		Discord: domain.DiscordConfig{
			Enabled:      true,
			ClientID:     "client-id",
			ClientSecret: "client-secret",
			GuildID:      "G",
			JITEnabled:   true,
		},
	}
}

type stubWorkspaceRepo struct {
	workspace domain.Workspace
}

func (s *stubWorkspaceRepo) GetByID(ctx context.Context, workspaceID int64) (domain.Workspace, error) {
	if workspaceID != s.workspace.ID {
		return domain.Workspace{}, pgx.ErrNoRows
	}
	return s.workspace, nil
}

func (s *stubWorkspaceRepo) GetByHost(ctx context.Context, host string) (domain.Workspace, error) {
	return s.workspace, nil
}

func (s *stubWorkspaceRepo) GetFirst(ctx context.Context) (domain.Workspace, error) {
	return s.workspace, nil
}

func (s *stubWorkspaceRepo) Create(ctx context.Context, w domain.Workspace) (domain.Workspace, error) {
	return w, nil
}

func (s *stubWorkspaceRepo) UpdateDiscordConfig(ctx context.Context, workspaceID int64, cfg domain.DiscordConfig) (domain.Workspace, error) {
	s.workspace.Discord = cfg
	return s.workspace, nil
}

type stubUserRepo struct {
	users   []domain.User
	created int
}

func (s *stubUserRepo) GetByID(ctx context.Context, workspaceID, userID int64) (domain.User, error) {
	for _, u := range s.users {
		if u.ID == userID {
			return u, nil
		}
	}
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUserRepo) GetByEmail(ctx context.Context, workspaceID int64, email string) (domain.User, error) {
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUserRepo) GetByDiscordID(ctx context.Context, workspaceID int64, discordID string) (domain.User, error) {
	return domain.User{}, pgx.ErrNoRows
}

func (s *stubUserRepo) Create(ctx context.Context, user domain.User) (domain.User, error) {
	s.users = append(s.users, user)
	s.created++
	return user, nil
}

func (s *stubUserRepo) UpdateAvatarURL(ctx context.Context, workspaceID, userID int64, avatarURL string) error {
	return nil
}

func (s *stubUserRepo) UpdatePassword(ctx context.Context, workspaceID, userID int64, passwordHash string) error {
	return nil
}

func (s *stubUserRepo) CreateProvisioned(ctx context.Context, user domain.User) (domain.User, error) {
	return s.Create(ctx, user)
}

type stubPendingStore struct {
	record *domain.PendingSignup
}

func (s *stubPendingStore) Save(ctx context.Context, signup domain.PendingSignup) error {
	s.record = &signup
	return nil
}

func (s *stubPendingStore) Consume(ctx context.Context, token string) (*domain.PendingSignup, error) {
	if s.record == nil || s.record.Token != token {
		return nil, nil
	}
	record := *s.record
	s.record = nil
	return &record, nil
}

type stubKeyRepo struct {
	key domain.SigningKey
}

func (s *stubKeyRepo) GetActiveKey(ctx context.Context, workspaceID int64) (domain.SigningKey, error) {
	if s.key.ID == 0 {
		return domain.SigningKey{}, pgx.ErrNoRows
	}
	return s.key, nil
}

func (s *stubKeyRepo) CreateKey(ctx context.Context, key domain.SigningKey) (domain.SigningKey, error) {
	s.key = key
	return key, nil
}

type stubProvider struct{}

func (stubProvider) Exchange(ctx context.Context, cfg discordadapter.ClientConfig, code string) (string, error) {
	return "access-token", nil
}

func (stubProvider) Identity(ctx context.Context, accessToken string) (*discord.Identity, error) {
	return &discord.Identity{ID: "U1", Username: "bob", Email: "a@b.com", Verified: true}, nil
}

func (stubProvider) GuildMember(ctx context.Context, accessToken, guildID string) (*discord.GuildMember, error) {
	return &discord.GuildMember{}, nil
}
