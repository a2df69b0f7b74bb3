package main

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"

	cacheadapter "github.com/notehaven/notehaven-auth/internal/adapter/cache"
	discordadapter "github.com/notehaven/notehaven-auth/internal/adapter/discord"
	"github.com/notehaven/notehaven-auth/internal/bootstrap"
	"github.com/notehaven/notehaven-auth/internal/config"
	"github.com/notehaven/notehaven-auth/internal/database"
	httptransport "github.com/notehaven/notehaven-auth/internal/http"
	"github.com/notehaven/notehaven-auth/internal/http/handler"
	"github.com/notehaven/notehaven-auth/internal/http/middleware"
	"github.com/notehaven/notehaven-auth/internal/jwt"
	"github.com/notehaven/notehaven-auth/internal/oauthstate"
	"github.com/notehaven/notehaven-auth/internal/repository"
	"github.com/notehaven/notehaven-auth/internal/server"
	"github.com/notehaven/notehaven-auth/internal/service"
	"github.com/notehaven/notehaven-auth/internal/telemetry"
	"github.com/notehaven/notehaven-auth/internal/workspace"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newTelemetry,
			newSnowflake,
			newPGXPool,
			newWorkspaceRepository,
			newUserRepository,
			newKeyRepository,
			newRedisClient,
			newPendingSignupStore,
			newDiscordClient,
			newStateCodec,
			newThrottle,
			workspace.NewResolver,
			newKeyManager,
			newTokenGenerator,
			service.NewAuthService,
			service.NewDiscordService,
			handler.NewAuthHandler,
			handler.NewDiscordHandler,
			newAuthMiddleware,
			httptransport.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(useTelemetry, runMigrations, bootstrap.EnsureWorkspace, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newTelemetry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (*telemetry.Provider, error) {
	provider, err := telemetry.Init(context.Background(), cfg, logger)
	if err != nil {
		return nil, fmt.Errorf("telemetry init: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			stopCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()
			return provider.Shutdown(stopCtx)
		},
	})

	return provider, nil
}

func newSnowflake() (*snowflake.Node, error) {
	node, err := snowflake.NewNode(1)
	return node, err
}

func newPGXPool(lc fx.Lifecycle, cfg config.Config) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			pool.Close()
			return nil
		},
	})

	return pool, nil
}

func newWorkspaceRepository(pool *pgxpool.Pool) repository.WorkspaceRepository {
	return repository.NewPostgresWorkspaceRepo(pool)
}

func newUserRepository(pool *pgxpool.Pool) repository.UserRepository {
	return repository.NewPostgresUserRepo(pool)
}

func newKeyRepository(pool *pgxpool.Pool) repository.KeyRepository {
	return repository.NewPostgresKeyRepo(pool)
}

func newRedisClient(lc fx.Lifecycle, cfg config.Config) (redis.UniversalClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client, nil
}

func newPendingSignupStore(client redis.UniversalClient) repository.PendingSignupStore {
	return cacheadapter.NewRedisPendingSignupStore(client)
}

func newDiscordClient() discordadapter.Client {
	return discordadapter.NewHTTPClient(nil)
}

func newStateCodec(cfg config.Config) (*oauthstate.Codec, error) {
	return oauthstate.NewCodec(cfg.StateEncryptionKey)
}

func newThrottle(cfg config.Config) *middleware.Throttle {
	return middleware.NewThrottle(cfg.RateLimitRPM)
}

func newKeyManager(repo repository.KeyRepository, node *snowflake.Node) *jwt.KeyManager {
	return jwt.NewKeyManager(repo, node)
}

func newTokenGenerator(manager *jwt.KeyManager, cfg config.Config) *jwt.Generator {
	return jwt.NewGenerator(manager, cfg.SessionTTL)
}

func newAuthMiddleware(authService *service.AuthService) *middleware.Auth {
	return &middleware.Auth{AuthService: authService}
}

func runMigrations(cfg config.Config, logger *zap.Logger) error {
	return database.Migrate(cfg, logger)
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.HTTPPort
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()

			logger.Info("http server listening", zap.String("addr", addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}

func useTelemetry(*telemetry.Provider) {}
