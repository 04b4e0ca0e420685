package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"

	apperrors "github.com/quillhq/entra-sso/internal/errors"
	"github.com/quillhq/entra-sso/internal/service"
)

// Cookie names binding a login attempt to the browser that started it.
const (
	stateCookie       = "entra_state"
	nonceCookie       = "entra_nonce"
	redirectURICookie = "entra_redirect_uri"
)

// bindingMaxAge caps the attempt cookies at the binding window (seconds).
const bindingMaxAge = 600

// completePath is the frontend route that receives the login outcome.
const completePath = "/auth/entra/complete"

// AuthServiceInterface defines the interface for login flow operations.
type AuthServiceInterface interface {
	BeginLogin(ctx context.Context, redirectURI string) (*service.BeginLoginResult, error)
	CompleteLogin(ctx context.Context, input service.CompleteLoginInput) (*service.CompleteLoginResult, error)
}

// AuthHandlers provides HTTP handlers for the federated login endpoints.
type AuthHandlers struct {
	Svc     AuthServiceInterface
	Enabled bool
	// FrontendURL is the SPA origin that receives login outcomes.
	FrontendURL string
	// RedirectOverride, when set, replaces the derived callback URL.
	RedirectOverride string
	CookieDomain     string
	IsDev            bool
	Logger           *slog.Logger
}

func (h *AuthHandlers) logger() *slog.Logger {
	if h != nil && h.Logger != nil {
		return h.Logger
	}
	return slog.Default()
}

// EnabledCheck reports whether federated login is available.
// GET /auth/entra/enabled.
func (h *AuthHandlers) EnabledCheck(w http.ResponseWriter, _ *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]bool{"enabled": h.enabled()})
}

// Login initiates a login attempt: binds state and nonce to the browser
// and hands back the provider authorization URL.
// GET /auth/entra/login.
func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		WriteError(w, ErrorParams{
			Code:    http.StatusBadRequest,
			ErrCode: string(apperrors.ErrCodeDisabled),
			Err:     errors.New("Entra SSO is not enabled"),
		})
		return
	}

	redirectURI := h.callbackURL(r)
	result, err := h.Svc.BeginLogin(r.Context(), redirectURI)
	if err != nil {
		h.logger().WarnContext(r.Context(), "login initiation failed", "error", err)
		WriteError(w, ErrorParams{
			Code:    http.StatusInternalServerError,
			ErrCode: apperrors.Category(err),
			Err:     errors.New("failed to initiate login"),
		})
		return
	}

	h.setBindingCookie(w, stateCookie, result.State)
	h.setBindingCookie(w, nonceCookie, result.Nonce)
	h.setBindingCookie(w, redirectURICookie, redirectURI)

	WriteJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"authUrl": result.AuthURL,
	})
}

// Callback finishes the login attempt and hands the outcome to the
// frontend. Success and every failure mode end in a 302 to the frontend
// completion route; failures carry only a category, never detail.
// GET /auth/entra/callback.
func (h *AuthHandlers) Callback(w http.ResponseWriter, r *http.Request) {
	if !h.enabled() {
		h.redirectError(w, r, apperrors.New(apperrors.ErrCodeDisabled, "disabled"))
		return
	}

	expectedState := h.readBindingCookie(r, stateCookie)
	expectedNonce := h.readBindingCookie(r, nonceCookie)
	redirectURI := h.readBindingCookie(r, redirectURICookie)

	// Bindings are single-use: clear them before any verification so a
	// replayed callback starts from nothing.
	h.clearBindingCookie(w, stateCookie)
	h.clearBindingCookie(w, nonceCookie)
	h.clearBindingCookie(w, redirectURICookie)

	if expectedState == "" || expectedNonce == "" {
		h.redirectError(w, r, apperrors.New(apperrors.ErrCodeSessionExpired, "login attempt bindings are missing"))
		return
	}
	if redirectURI == "" {
		redirectURI = h.callbackURL(r)
	}

	result, err := h.Svc.CompleteLogin(r.Context(), service.CompleteLoginInput{
		Code:          r.URL.Query().Get("code"),
		State:         r.URL.Query().Get("state"),
		ExpectedState: expectedState,
		ExpectedNonce: expectedNonce,
		RedirectURI:   redirectURI,
	})
	if err != nil {
		h.redirectError(w, r, err)
		return
	}

	profileJSON, err := json.Marshal(result.User)
	if err != nil {
		h.redirectError(w, r, apperrors.Wrap(err, apperrors.ErrCodeInternal, "encode user profile"))
		return
	}

	query := url.Values{}
	query.Set("token", result.Token)
	query.Set("user", string(profileJSON))
	http.Redirect(w, r, h.FrontendURL+completePath+"?"+query.Encode(), http.StatusFound)
}

func (h *AuthHandlers) enabled() bool {
	return h.Enabled && h.Svc != nil
}

// callbackURL derives the absolute callback URL for this deployment from
// the incoming request, honoring proxy headers.
func (h *AuthHandlers) callbackURL(r *http.Request) string {
	if h.RedirectOverride != "" {
		return h.RedirectOverride
	}

	scheme := "http"
	if r.TLS != nil || r.Header.Get("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + r.Host + "/auth/entra/callback"
}

// redirectError sends the browser to the frontend completion route with
// only the error category. Detail stays in the server log.
func (h *AuthHandlers) redirectError(w http.ResponseWriter, r *http.Request, err error) {
	h.logger().WarnContext(r.Context(), "login failed",
		"category", apperrors.Category(err),
		"error", err,
	)

	query := url.Values{}
	query.Set("error", apperrors.Category(err))
	http.Redirect(w, r, h.FrontendURL+completePath+"?"+query.Encode(), http.StatusFound)
}

func (h *AuthHandlers) setBindingCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   bindingMaxAge,
		HttpOnly: true,
		Secure:   !h.IsDev,
		SameSite: http.SameSiteLaxMode,
	})
}

func (h *AuthHandlers) readBindingCookie(r *http.Request, name string) string {
	c, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return c.Value
}

func (h *AuthHandlers) clearBindingCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   !h.IsDev,
		SameSite: http.SameSiteLaxMode,
	})
}
