package config

import (
	"strings"
	"time"
)

// EntraConfig contains Microsoft Entra ID (Azure AD) OIDC configuration.
//
// The feature is enabled only when Enabled is exactly "true" (case-insensitive)
// and client id, client secret, and tenant id are all present. A partially
// configured provider is treated as disabled, not as an error.
type EntraConfig struct {
	// Enabled must be the string "true" to turn the feature on.
	Enabled string `env:"ENABLED" envDefault:""`

	ClientID     string `env:"CLIENT_ID"`
	ClientSecret string `env:"CLIENT_SECRET"`
	TenantID     string `env:"TENANT_ID"`

	// RedirectURI optionally overrides the callback URL derived from the
	// incoming request (scheme://host/auth/entra/callback).
	RedirectURI string `env:"REDIRECT_URI"`

	// AutoProvision creates a local account on first successful login.
	AutoProvision bool `env:"AUTO_PROVISION" envDefault:"false"`

	// DefaultRole is assigned to auto-provisioned users.
	DefaultRole string `env:"DEFAULT_ROLE" envDefault:"default"`
}

// IsEnabled reports whether Entra login is fully configured.
func (c EntraConfig) IsEnabled() bool {
	return strings.EqualFold(strings.TrimSpace(c.Enabled), "true") &&
		c.ClientID != "" &&
		c.ClientSecret != "" &&
		c.TenantID != ""
}

// IssuerURL returns the tenant-scoped v2.0 issuer endpoint.
func (c EntraConfig) IssuerURL() string {
	return "https://login.microsoftonline.com/" + c.TenantID + "/v2.0"
}

// SessionConfig controls session token issuance.
type SessionConfig struct {
	// Secret signs session JWTs. Required when Entra login is enabled.
	Secret string `env:"JWT_SECRET"`

	// Expiry is the session token lifetime.
	Expiry time.Duration `env:"JWT_EXPIRY" envDefault:"720h"`
}

// Sanitize applies guardrails to session configuration values.
func (s *SessionConfig) Sanitize() {
	if s.Expiry <= 0 {
		s.Expiry = 720 * time.Hour
	}
}
