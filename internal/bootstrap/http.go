package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/quillhq/entra-sso/config"
	httpx "github.com/quillhq/entra-sso/internal/http"
	"github.com/quillhq/entra-sso/internal/service"
	"golang.org/x/sync/errgroup"
)

// HTTPServerConfig contains configuration for the HTTP server.
type HTTPServerConfig struct {
	Config *config.AppConfig
	Auth   *service.AuthService // nil when federated login is disabled
	Logger *slog.Logger
}

// NewHTTPServer builds the HTTP server with routes and middleware applied.
func NewHTTPServer(cfg HTTPServerConfig) *http.Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	appCfg := cfg.Config
	if appCfg == nil {
		appCfg = &config.AppConfig{}
	}

	services := httpx.RouterServices{
		AuthEnabled:      cfg.Auth != nil,
		FrontendURL:      appCfg.HTTP.FrontendURL,
		RedirectOverride: appCfg.Entra.RedirectURI,
		CookieDomain:     appCfg.HTTP.CookieDomain,
		IsDev:            appCfg.IsDev,
		Logger:           logger,
	}
	if cfg.Auth != nil {
		services.Auth = cfg.Auth
	}

	addr := appCfg.HTTP.Addr
	if addr == "" {
		addr = ":3001"
	}

	return &http.Server{
		Addr:         addr,
		Handler:      httpx.NewRouter(services),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
}

// RunHTTPServer serves until ctx is canceled, then shuts down gracefully.
func RunHTTPServer(ctx context.Context, server *http.Server, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting HTTP server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down HTTP server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			return err
		}
		logger.Info("HTTP server stopped")
		return nil
	})

	return g.Wait()
}
