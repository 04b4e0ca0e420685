package oidc

// Package oidc implements the IdentityProvider port against Microsoft
// Entra ID using OIDC discovery and the OAuth2 authorization-code flow.

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	gooidc "github.com/coreos/go-oidc/v3/oidc"
	domainauth "github.com/quillhq/entra-sso/internal/domain/auth"
	apperrors "github.com/quillhq/entra-sso/internal/errors"
	"github.com/quillhq/entra-sso/internal/ports"
	"golang.org/x/oauth2"
)

// Scope covers identity, profile, and email claims.
const Scope = "openid profile email"

// Config holds configuration for the Entra OIDC provider.
type Config struct {
	IssuerURL    string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client // Optional, defaults to a 30s-timeout client
}

// Provider implements ports.IdentityProvider. Discovery of provider
// endpoints is lazy: the first login attempt fetches the issuer metadata
// and the result is cached for the process lifetime.
type Provider struct {
	cfg        Config
	httpClient *http.Client

	mu       sync.Mutex
	op       *gooidc.Provider
	verifier *gooidc.IDTokenVerifier
	endpoint oauth2.Endpoint
}

// New validates the configuration and returns an unresolved provider.
// No network calls are made until the first login attempt.
func New(cfg Config) (*Provider, error) {
	if cfg.IssuerURL == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "issuer URL is required")
	}
	if cfg.ClientID == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "client ID is required")
	}
	if cfg.ClientSecret == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "client secret is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 30 * time.Second}
	}

	return &Provider{
		cfg:        cfg,
		httpClient: httpClient,
	}, nil
}

// discover fetches the issuer metadata once and caches the go-oidc
// provider, verifier, and OAuth2 endpoint.
func (p *Provider) discover(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.op != nil {
		return nil
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	op, err := gooidc.NewProvider(ctx, p.cfg.IssuerURL)
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrCodeProviderUnreachable, "oidc discovery failed")
	}

	p.op = op
	p.verifier = op.Verifier(&gooidc.Config{ClientID: p.cfg.ClientID})
	p.endpoint = op.Endpoint()
	return nil
}

// oauthConfig builds an oauth2.Config bound to the attempt's redirect URI.
func (p *Provider) oauthConfig(redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.cfg.ClientID,
		ClientSecret: p.cfg.ClientSecret,
		RedirectURL:  redirectURI,
		Scopes:       strings.Fields(Scope),
		Endpoint:     p.endpoint,
	}
}

// AuthCodeURL builds the provider authorization URL for the bound attempt.
func (p *Provider) AuthCodeURL(ctx context.Context, in ports.BeginInput) (string, error) {
	if in.RedirectURI == "" {
		return "", apperrors.New(apperrors.ErrCodeConfigInvalid, "redirect URI is required")
	}
	if in.State == "" || in.Nonce == "" {
		return "", apperrors.New(apperrors.ErrCodeConfigInvalid, "state and nonce are required")
	}

	if err := p.discover(ctx); err != nil {
		return "", err
	}

	authURL := p.oauthConfig(in.RedirectURI).AuthCodeURL(in.State,
		oauth2.SetAuthURLParam("nonce", in.Nonce),
		oauth2.SetAuthURLParam("response_type", "code"),
	)
	return authURL, nil
}

// idTokenClaims is the subset of Entra id-token claims the flow inspects.
type idTokenClaims struct {
	Nonce             string `json:"nonce"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
}

// userInfoClaims is the subset of user-info claims mapped onto the identity.
type userInfoClaims struct {
	Subject           string `json:"sub"`
	Email             string `json:"email"`
	PreferredUsername string `json:"preferred_username"`
	Name              string `json:"name"`
}

// Exchange verifies the callback against the bound attempt and exchanges
// the authorization code for the external identity.
//
// Verification order: state equality first (CSRF), then id-token signature
// and nonce (replay), then user-info subject consistency. Each failure is
// terminal; nothing is retried.
func (p *Provider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	var identity domainauth.ExternalIdentity

	if in.Code == "" {
		return identity, apperrors.New(apperrors.ErrCodeProviderError, "authorization code is missing from callback")
	}
	if in.State != in.ExpectedState {
		return identity, apperrors.New(apperrors.ErrCodeStateMismatch, "callback state does not match login attempt")
	}

	if err := p.discover(ctx); err != nil {
		return identity, err
	}

	ctx = gooidc.ClientContext(ctx, p.httpClient)
	token, err := p.oauthConfig(in.RedirectURI).Exchange(ctx, in.Code)
	if err != nil {
		return identity, apperrors.Wrap(err, apperrors.ErrCodeProviderError, "authorization code exchange failed")
	}

	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return identity, apperrors.New(apperrors.ErrCodeProviderError, "token response is missing id_token")
	}

	idToken, err := p.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return identity, apperrors.Wrap(err, apperrors.ErrCodeProviderError, "id_token verification failed")
	}
	if idToken.Nonce != in.ExpectedNonce {
		return identity, apperrors.New(apperrors.ErrCodeNonceMismatch, "id_token nonce does not match login attempt")
	}

	var claims idTokenClaims
	if claimsErr := idToken.Claims(&claims); claimsErr != nil {
		return identity, apperrors.Wrap(claimsErr, apperrors.ErrCodeProviderError, "parse id_token claims")
	}
	allClaims := map[string]any{}
	if claimsErr := idToken.Claims(&allClaims); claimsErr != nil {
		return identity, apperrors.Wrap(claimsErr, apperrors.ErrCodeProviderError, "decode id_token claims")
	}

	userInfo, err := p.fetchUserInfo(ctx, token.AccessToken)
	if err != nil {
		return identity, err
	}
	if userInfo.Subject != idToken.Subject {
		return identity, apperrors.New(apperrors.ErrCodeSubjectMismatch, "user-info subject does not match id_token subject")
	}

	identity = domainauth.ExternalIdentity{
		Subject:           idToken.Subject,
		Email:             userInfo.Email,
		PreferredUsername: firstNonEmpty(userInfo.PreferredUsername, claims.PreferredUsername),
		Name:              firstNonEmpty(userInfo.Name, claims.Name),
		Claims:            allClaims,
	}
	return identity, nil
}

func (p *Provider) fetchUserInfo(ctx context.Context, accessToken string) (userInfoClaims, error) {
	var out userInfoClaims

	ui, err := p.op.UserInfo(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken}))
	if err != nil {
		return out, apperrors.Wrap(err, apperrors.ErrCodeProviderError, "fetch user info")
	}
	if claimsErr := ui.Claims(&out); claimsErr != nil {
		return out, apperrors.Wrap(claimsErr, apperrors.ErrCodeProviderError, "decode user info")
	}
	if out.Subject == "" {
		out.Subject = ui.Subject
	}
	if out.Email == "" {
		out.Email = ui.Email
	}
	return out, nil
}

// firstNonEmpty returns the first non-empty string from vals, or empty string if none.
func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

// Resolved reports whether issuer metadata has been fetched.
func (p *Provider) Resolved() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.op != nil
}
