package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/quillhq/entra-sso/internal/bootstrap"
)

func main() {
	ctx := context.Background()
	logger := bootstrap.InitLogger()
	if err := run(ctx, logger); err != nil {
		logger.ErrorContext(ctx, "fatal error", "error", err)
		os.Exit(1) //nolint:forbidigo // Main entrypoint should exit with non-zero status on fatal errors.
	}
}

func run(ctx context.Context, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := bootstrap.LoadConfig()
	if err != nil {
		return err
	}

	logger.InfoContext(ctx, "starting entra-sso service",
		"addr", cfg.HTTP.Addr,
		"db_host", cfg.Postgres.Host,
		"db_name", cfg.Postgres.Name,
		"entra_enabled", cfg.Entra.IsEnabled(),
	)

	db, err := bootstrap.ConnectDB(bootstrap.DatabaseConfig{
		DBConfig: cfg.Postgres,
		Logger:   logger,
	})
	if err != nil {
		return err
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			logger.ErrorContext(ctx, "close database failed", "error", cerr)
		}
	}()

	redisClient, err := bootstrap.ConnectRedis(bootstrap.DatabaseConfig{
		RedisConfig: cfg.Redis,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	if redisClient != nil {
		defer func() {
			if cerr := redisClient.Close(); cerr != nil {
				logger.ErrorContext(ctx, "close redis failed", "error", cerr)
			}
		}()
	}

	if cfg.Postgres.RunMigrationsOnStart {
		if err = bootstrap.RunMigrations(ctx, db, logger); err != nil {
			return err
		}
	} else {
		logger.InfoContext(ctx, "skipping database migrations on startup", "reason", "disabled via config")
	}

	authSvc := bootstrap.BuildAuthService(bootstrap.AuthConfig{
		Entra:       cfg.Entra,
		Session:     cfg.Session,
		DB:          db,
		RedisClient: redisClient,
		Logger:      logger,
	})
	if authSvc == nil {
		logger.InfoContext(ctx, "entra login disabled")
	}

	server := bootstrap.NewHTTPServer(bootstrap.HTTPServerConfig{
		Config: &cfg,
		Auth:   authSvc,
		Logger: logger,
	})

	return bootstrap.RunHTTPServer(ctx, server, logger)
}
