package discord

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"

	domaindiscord "github.com/notehaven/notehaven-auth/internal/domain/discord"
)

const (
	authorizeURL = "https://discord.com/api/oauth2/authorize"
	tokenURL     = "https://discord.com/api/oauth2/token"
	apiBaseURL   = "https://discord.com/api/v10"
)

// Scopes requested on every login. guilds.members.read is what lets the
// callback check membership in the required guild.
var Scopes = []string{"identify", "email", "guilds", "guilds.members.read"}

// ClientConfig is the per-workspace OAuth client configuration resolved
// at request time. It is a plain value: nothing here is shared between
// requests.
type ClientConfig struct {
	ClientID     string
	ClientSecret string
	CallbackURL  string
}

func (c ClientConfig) oauth2Config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
		RedirectURL:  c.CallbackURL,
		Scopes:       Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  authorizeURL,
			TokenURL: tokenURL,
		},
	}
}

// AuthorizeURL builds the provider authorize URL carrying the encrypted
// state. Pure; safe to call from concurrent requests.
func AuthorizeURL(cfg ClientConfig, state string) string {
	return cfg.oauth2Config().AuthCodeURL(state)
}

// Client encapsulates outbound calls to Discord.
type Client interface {
	Exchange(ctx context.Context, cfg ClientConfig, code string) (string, error)
	Identity(ctx context.Context, accessToken string) (*domaindiscord.Identity, error)
	GuildMember(ctx context.Context, accessToken, guildID string) (*domaindiscord.GuildMember, error)
}

// HTTPClient is the default HTTP implementation.
type HTTPClient struct {
	httpClient *http.Client
}

var _ Client = (*HTTPClient)(nil)

// NewHTTPClient constructs the default Client.
func NewHTTPClient(client *http.Client) *HTTPClient {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &HTTPClient{httpClient: client}
}

// Exchange swaps the authorization code for a bearer access token.
func (c *HTTPClient) Exchange(ctx context.Context, cfg ClientConfig, code string) (string, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	token, err := cfg.oauth2Config().Exchange(ctx, code)
	if err != nil {
		return "", fmt.Errorf("%w: token exchange: %v", domaindiscord.ErrProviderUnavailable, err)
	}
	if strings.TrimSpace(token.AccessToken) == "" {
		return "", fmt.Errorf("%w: empty access token", domaindiscord.ErrProviderUnavailable)
	}
	return token.AccessToken, nil
}

// Identity loads the authenticated user's profile from /users/@me.
func (c *HTTPClient) Identity(ctx context.Context, accessToken string) (*domaindiscord.Identity, error) {
	body, _, err := c.get(ctx, apiBaseURL+"/users/@me", accessToken)
	if err != nil {
		return nil, err
	}

	var raw struct {
		ID         string `json:"id"`
		Username   string `json:"username"`
		GlobalName string `json:"global_name"`
		Email      string `json:"email"`
		Verified   bool   `json:"verified"`
		Avatar     string `json:"avatar"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode profile: %v", domaindiscord.ErrProviderUnavailable, err)
	}

	return &domaindiscord.Identity{
		ID:          raw.ID,
		Username:    raw.Username,
		GlobalName:  raw.GlobalName,
		Email:       raw.Email,
		Verified:    raw.Verified,
		AvatarHash:  raw.Avatar,
		AccessToken: accessToken,
	}, nil
}

// GuildMember confirms membership in the required guild. Discord answers
// 404 for non-members, which surfaces as ErrNotAMember; any other
// non-2xx status is treated the same way so absence and rejection are
// indistinguishable to the caller.
func (c *HTTPClient) GuildMember(ctx context.Context, accessToken, guildID string) (*domaindiscord.GuildMember, error) {
	body, status, err := c.getAllowingStatus(ctx, fmt.Sprintf("%s/users/@me/guilds/%s/member", apiBaseURL, guildID), accessToken)
	if err != nil {
		return nil, err
	}
	if status < 200 || status >= 300 {
		return nil, domaindiscord.ErrNotAMember
	}

	var raw struct {
		Nick   string   `json:"nick"`
		Avatar string   `json:"avatar"`
		Roles  []string `json:"roles"`
	}
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, fmt.Errorf("%w: decode guild member: %v", domaindiscord.ErrProviderUnavailable, err)
	}

	return &domaindiscord.GuildMember{
		Nick:       raw.Nick,
		AvatarHash: raw.Avatar,
		Roles:      raw.Roles,
	}, nil
}

func (c *HTTPClient) get(ctx context.Context, url, accessToken string) ([]byte, int, error) {
	body, status, err := c.getAllowingStatus(ctx, url, accessToken)
	if err != nil {
		return nil, 0, err
	}
	if status < 200 || status >= 300 {
		return nil, 0, fmt.Errorf("%w: status=%d", domaindiscord.ErrProviderUnavailable, status)
	}
	return body, status, nil
}

func (c *HTTPClient) getAllowingStatus(ctx context.Context, url, accessToken string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", domaindiscord.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read response: %v", domaindiscord.ErrProviderUnavailable, err)
	}
	return body, resp.StatusCode, nil
}
