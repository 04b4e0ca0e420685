package httpx

// Package httpx wires the login endpoints, health checks, and shared
// middleware into an http.Handler.

import (
	"log/slog"
	"net/http"
)

// RouterServices holds the services and settings needed by the HTTP router.
type RouterServices struct {
	Auth        AuthServiceInterface // nil when federated login is disabled
	AuthEnabled bool

	FrontendURL      string
	RedirectOverride string
	CookieDomain     string
	IsDev            bool
	Logger           *slog.Logger
}

// NewRouter creates and configures a new HTTP router.
func NewRouter(services RouterServices) http.Handler {
	logger := services.Logger
	if logger == nil {
		logger = slog.Default()
	}

	mux := http.NewServeMux()

	authHandlers := &AuthHandlers{
		Svc:              services.Auth,
		Enabled:          services.AuthEnabled,
		FrontendURL:      services.FrontendURL,
		RedirectOverride: services.RedirectOverride,
		CookieDomain:     services.CookieDomain,
		IsDev:            services.IsDev,
		Logger:           logger,
	}
	registerAuthRoutes(mux, authHandlers)

	mux.Handle("GET /healthz", http.HandlerFunc(healthHandler))
	mux.Handle("HEAD /healthz", http.HandlerFunc(healthHandler))

	var handler http.Handler = mux
	handler = Logging(logger)(handler)
	handler = Recover(logger)(handler)
	return handler
}

func registerAuthRoutes(mux *http.ServeMux, h *AuthHandlers) {
	mux.HandleFunc("GET /auth/entra/enabled", h.EnabledCheck)
	mux.HandleFunc("GET /auth/entra/login", h.Login)
	mux.HandleFunc("GET /auth/entra/callback", h.Callback)
}
