package config

import (
	"encoding/hex"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config contains runtime configuration values.
type Config struct {
	Environment          string
	HTTPPort             string
	DatabaseURL          string
	MigrationsURL        string
	RedisAddr            string
	RedisPassword        string
	RedisDB              int
	AppURL               string
	FrontendURL          string
	StateEncryptionKey   []byte
	SessionTTL           time.Duration
	AdminEmail           string
	AdminPassword        string
	WorkspaceName        string
	WorkspaceHost        string
	ServiceName          string
	RateLimitRPM         int
	TelemetryEndpoint    string
	TelemetryInsecure    bool
	CORSAllowedOrigins   []string
	CORSAllowedMethods   []string
	CORSAllowedHeaders   []string
	CORSAllowCredentials bool
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	_ = godotenv.Load()

	keyHex := strings.TrimSpace(os.Getenv("STATE_ENCRYPTION_KEY"))
	if keyHex == "" {
		return Config{}, fmt.Errorf("STATE_ENCRYPTION_KEY is required")
	}
	stateKey, err := hex.DecodeString(keyHex)
	if err != nil {
		return Config{}, fmt.Errorf("STATE_ENCRYPTION_KEY must be hex encoded")
	}
	if len(stateKey) != 32 {
		return Config{}, fmt.Errorf("STATE_ENCRYPTION_KEY must decode to 32 bytes")
	}

	adminEmail := strings.TrimSpace(os.Getenv("ADMIN_EMAIL"))
	if adminEmail == "" {
		return Config{}, fmt.Errorf("ADMIN_EMAIL is required")
	}
	adminPassword := strings.TrimSpace(os.Getenv("ADMIN_PASSWORD"))
	if adminPassword == "" {
		return Config{}, fmt.Errorf("ADMIN_PASSWORD is required")
	}

	cfg := Config{
		Environment:          getEnv("APP_ENV", "development"),
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		MigrationsURL:        getEnv("MIGRATIONS_URL", "file://migrations"),
		RedisAddr:            getEnv("REDIS_ADDR", "127.0.0.1:6379"),
		RedisPassword:        os.Getenv("REDIS_PASSWORD"),
		RedisDB:              getInt("REDIS_DB", 0),
		AppURL:               getEnv("APP_URL", "http://localhost:8080"),
		FrontendURL:          getEnv("FRONTEND_URL", "http://localhost:3000"),
		StateEncryptionKey:   stateKey,
		SessionTTL:           getDuration("SESSION_TTL", 30*24*time.Hour),
		AdminEmail:           adminEmail,
		AdminPassword:        adminPassword,
		WorkspaceName:        getEnv("WORKSPACE_NAME", "Notehaven"),
		WorkspaceHost:        getEnv("WORKSPACE_HOST", "localhost"),
		ServiceName:          getEnv("SERVICE_NAME", "notehaven-auth"),
		RateLimitRPM:         getInt("RATE_LIMIT_RPM", 600),
		TelemetryEndpoint:    os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
		TelemetryInsecure:    getBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		CORSAllowedOrigins:   getList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		CORSAllowedMethods:   getList("CORS_ALLOWED_METHODS", []string{"GET", "POST", "PATCH", "OPTIONS"}),
		CORSAllowedHeaders:   getList("CORS_ALLOWED_HEADERS", []string{"Authorization", "Content-Type"}),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", true),
	}

	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("DATABASE_URL is required")
	}

	cfg.AppURL = strings.TrimRight(cfg.AppURL, "/")
	cfg.FrontendURL = strings.TrimRight(cfg.FrontendURL, "/")

	return cfg, nil
}

// DiscordCallbackURL is the redirect URI registered with Discord.
func (c Config) DiscordCallbackURL() string {
	return c.AppURL + "/auth/discord/callback"
}

// IsHTTPS reports whether the deployment serves over TLS, which controls
// the secure flag on session cookies.
func (c Config) IsHTTPS() bool {
	return strings.HasPrefix(c.AppURL, "https://")
}

func getEnv(key, def string) string {
	if v, ok := os.LookupEnv(key); ok {
		return v
	}
	return def
}

func getDuration(key string, def time.Duration) time.Duration {
	if v, ok := os.LookupEnv(key); ok {
		d, err := time.ParseDuration(v)
		if err == nil {
			return d
		}
	}
	return def
}

func getInt(key string, def int) int {
	if v, ok := os.LookupEnv(key); ok {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return def
}

func getBool(key string, def bool) bool {
	if v, ok := os.LookupEnv(key); ok {
		switch strings.ToLower(v) {
		case "1", "true", "t", "yes", "y", "on":
			return true
		case "0", "false", "f", "no", "n", "off":
			return false
		}
	}
	return def
}

func getList(key string, def []string) []string {
	if v, ok := os.LookupEnv(key); ok {
		parts := strings.Split(v, ",")
		var cleaned []string
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				cleaned = append(cleaned, trimmed)
			}
		}
		if len(cleaned) > 0 {
			return cleaned
		}
	}
	return def
}
