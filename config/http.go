package config

import (
	"strings"

	"golang.org/x/net/publicsuffix"
)

// HTTPConfig contains HTTP server configuration.
type HTTPConfig struct {
	// Addr is the address to bind the HTTP server to.
	Addr string `env:"HTTP_ADDR" envDefault:":3001"`

	// FrontendURL is the base URL the login callback redirects back to
	// (e.g., "https://app.example.com"). Empty means same-origin relative
	// redirects.
	FrontendURL string `env:"FRONTEND_URL" envDefault:""`

	// CookieDomain is the domain for login-flow cookies.
	// Leave empty to use the request domain.
	CookieDomain string `env:"APP_COOKIE_DOMAIN" envDefault:""`
}

// Sanitize applies guardrails to HTTP configuration values.
func (h *HTTPConfig) Sanitize() {
	h.FrontendURL = strings.TrimRight(strings.TrimSpace(h.FrontendURL), "/")

	// Browsers drop cookies scoped to a public suffix (e.g., "co.uk");
	// fall back to the request domain instead of setting dead cookies.
	if d := strings.TrimPrefix(strings.TrimSpace(h.CookieDomain), "."); d != "" {
		if suffix, _ := publicsuffix.PublicSuffix(d); suffix == d {
			h.CookieDomain = ""
		} else {
			h.CookieDomain = d
		}
	} else {
		h.CookieDomain = ""
	}
}
