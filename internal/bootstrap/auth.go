package bootstrap

import (
	"database/sql"
	"log/slog"

	"github.com/quillhq/entra-sso/config"
	jwtadapter "github.com/quillhq/entra-sso/internal/adapters/jwt"
	"github.com/quillhq/entra-sso/internal/adapters/oidc"
	redisadapter "github.com/quillhq/entra-sso/internal/adapters/redis"
	"github.com/quillhq/entra-sso/internal/data"
	"github.com/quillhq/entra-sso/internal/ports"
	"github.com/quillhq/entra-sso/internal/service"
	"github.com/redis/go-redis/v9"
)

// AuthConfig contains configuration for the login flow service.
type AuthConfig struct {
	Entra       config.EntraConfig
	Session     config.SessionConfig
	DB          *sql.DB
	RedisClient redis.UniversalClient // optional; nil disables the single-use state guard
	Logger      *slog.Logger
}

// BuildAuthService creates the login flow service when Entra login is
// fully configured. Returns nil when the feature is disabled or its
// configuration is incomplete; disabled is a normal operating mode.
func BuildAuthService(cfg AuthConfig) *service.AuthService {
	if !cfg.Entra.IsEnabled() {
		return nil
	}

	if cfg.Session.Secret == "" {
		if cfg.Logger != nil {
			cfg.Logger.Warn("entra login enabled but JWT_SECRET missing; login disabled")
		}
		return nil
	}

	provider, err := oidc.New(oidc.Config{
		IssuerURL:    cfg.Entra.IssuerURL(),
		ClientID:     cfg.Entra.ClientID,
		ClientSecret: cfg.Entra.ClientSecret,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create OIDC provider; login disabled", "error", err)
		}
		return nil
	}

	issuer, err := jwtadapter.New(jwtadapter.Config{
		Secret: cfg.Session.Secret,
		Expiry: cfg.Session.Expiry,
	})
	if err != nil {
		if cfg.Logger != nil {
			cfg.Logger.Warn("failed to create token issuer; login disabled", "error", err)
		}
		return nil
	}

	var guard ports.StateGuard = redisadapter.NoopGuard{}
	if cfg.RedisClient != nil {
		guard = redisadapter.NewStateGuard(cfg.RedisClient)
	} else if cfg.Logger != nil {
		cfg.Logger.Warn("redis not configured; state single-use enforcement relies on cookie clearing")
	}

	return service.NewAuthService(service.AuthServiceOptions{
		Provider:      provider,
		Users:         data.NewUserRepo(cfg.DB),
		Tokens:        issuer,
		Guard:         guard,
		Logger:        cfg.Logger,
		AutoProvision: cfg.Entra.AutoProvision,
		DefaultRole:   cfg.Entra.DefaultRole,
	})
}
