package oidc

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	apperrors "github.com/quillhq/entra-sso/internal/errors"
	"github.com/quillhq/entra-sso/internal/ports"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ ports.IdentityProvider = (*Provider)(nil)

// newDiscoveryServer serves a minimal OIDC discovery document whose issuer
// matches the server's own URL, as go-oidc requires.
func newDiscoveryServer(t *testing.T) *httptest.Server {
	t.Helper()

	var issuer string
	handler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]string{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/oauth2/v2.0/authorize",
			"token_endpoint":         issuer + "/oauth2/v2.0/token",
			"userinfo_endpoint":      issuer + "/oidc/userinfo",
			"jwks_uri":               issuer + "/discovery/v2.0/keys",
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	issuer = server.URL
	return server
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()

	server := newDiscoveryServer(t)
	provider, err := New(Config{
		IssuerURL:    server.URL,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)
	return provider
}

func TestNew_ValidationErrors(t *testing.T) {
	tests := []struct {
		name   string
		cfg    Config
		errMsg string
	}{
		{
			name:   "missing issuer URL",
			cfg:    Config{ClientID: "client", ClientSecret: "secret"},
			errMsg: "issuer URL is required",
		},
		{
			name:   "missing client ID",
			cfg:    Config{IssuerURL: "https://issuer.example.com", ClientSecret: "secret"},
			errMsg: "client ID is required",
		},
		{
			name:   "missing client secret",
			cfg:    Config{IssuerURL: "https://issuer.example.com", ClientID: "client"},
			errMsg: "client secret is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.cfg)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.errMsg)
			assert.Equal(t, apperrors.ErrCodeConfigInvalid, apperrors.GetCode(err))
		})
	}
}

func TestNew_NoNetworkCalls(t *testing.T) {
	// Construction must not trigger discovery; the issuer does not exist.
	provider, err := New(Config{
		IssuerURL:    "https://login.microsoftonline.com/nonexistent/v2.0",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	require.NoError(t, err)
	assert.False(t, provider.Resolved())
}

func TestAuthCodeURL(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	authURL, err := provider.AuthCodeURL(ctx, ports.BeginInput{
		RedirectURI: "http://localhost:3001/auth/entra/callback",
		State:       "state-value",
		Nonce:       "nonce-value",
	})

	require.NoError(t, err)
	assert.Contains(t, authURL, "/oauth2/v2.0/authorize")
	assert.Contains(t, authURL, "client_id=test-client")
	assert.Contains(t, authURL, "state=state-value")
	assert.Contains(t, authURL, "nonce=nonce-value")
	assert.Contains(t, authURL, "response_type=code")
	assert.Contains(t, authURL, "scope=openid+profile+email")
	assert.Contains(t, authURL, "redirect_uri=http%3A%2F%2Flocalhost%3A3001%2Fauth%2Fentra%2Fcallback")
	assert.True(t, provider.Resolved())
}

func TestAuthCodeURL_Deterministic(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()
	in := ports.BeginInput{
		RedirectURI: "http://localhost:3001/auth/entra/callback",
		State:       "s",
		Nonce:       "n",
	}

	first, err := provider.AuthCodeURL(ctx, in)
	require.NoError(t, err)
	second, err := provider.AuthCodeURL(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestAuthCodeURL_ValidationErrors(t *testing.T) {
	provider := newTestProvider(t)
	ctx := context.Background()

	_, err := provider.AuthCodeURL(ctx, ports.BeginInput{State: "s", Nonce: "n"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "redirect URI is required")

	_, err = provider.AuthCodeURL(ctx, ports.BeginInput{RedirectURI: "http://localhost/cb"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state and nonce are required")
}

func TestAuthCodeURL_DiscoveryFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	provider, err := New(Config{
		IssuerURL:    server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)

	_, err = provider.AuthCodeURL(context.Background(), ports.BeginInput{
		RedirectURI: "http://localhost/cb",
		State:       "s",
		Nonce:       "n",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderUnreachable, apperrors.GetCode(err))
	assert.False(t, provider.Resolved())
}

func TestExchange_StateMismatch(t *testing.T) {
	// State equality is checked before any network traffic; the provider
	// never needs to resolve for this to fail closed.
	provider, err := New(Config{
		IssuerURL:    "https://login.microsoftonline.com/tenant/v2.0",
		ClientID:     "client",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "valid-looking-code",
		State:         "attacker-state",
		ExpectedState: "bound-state",
		ExpectedNonce: "bound-nonce",
		RedirectURI:   "http://localhost/cb",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeStateMismatch, apperrors.GetCode(err))
	assert.False(t, provider.Resolved())
}

func TestExchange_MissingCode(t *testing.T) {
	provider := newTestProvider(t)

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		State:         "s",
		ExpectedState: "s",
		ExpectedNonce: "n",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "authorization code is missing")
}

func TestExchange_TokenEndpointFailure(t *testing.T) {
	var issuer string
	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]string{
			"issuer":                 issuer,
			"authorization_endpoint": issuer + "/authorize",
			"token_endpoint":         issuer + "/token",
			"userinfo_endpoint":      issuer + "/userinfo",
			"jwks_uri":               issuer + "/keys",
		}
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"invalid_grant"}`, http.StatusBadRequest)
	})
	server := httptest.NewServer(mux)
	defer server.Close()
	issuer = server.URL

	provider, err := New(Config{
		IssuerURL:    server.URL,
		ClientID:     "client",
		ClientSecret: "secret",
		HTTPClient:   server.Client(),
	})
	require.NoError(t, err)

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "expired-code",
		State:         "s",
		ExpectedState: "s",
		ExpectedNonce: "n",
		RedirectURI:   "http://localhost/cb",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "authorization code exchange failed")
}

// fakeIdP is a complete in-process identity provider: discovery, a JWKS
// holding a freshly generated RSA key, a token endpoint that signs real
// RS256 id tokens, and a user-info endpoint. Tests mutate idClaims and
// userInfo before driving Exchange.
type fakeIdP struct {
	t      *testing.T
	key    *rsa.PrivateKey
	server *httptest.Server
	issuer string

	signKey  *rsa.PrivateKey // key the token endpoint signs with; defaults to key
	idClaims jwtv5.MapClaims
	userInfo map[string]any
}

func newFakeIdP(t *testing.T) *fakeIdP {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	f := &fakeIdP{t: t, key: key, signKey: key}

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		doc := map[string]string{
			"issuer":                 f.issuer,
			"authorization_endpoint": f.issuer + "/authorize",
			"token_endpoint":         f.issuer + "/token",
			"userinfo_endpoint":      f.issuer + "/userinfo",
			"jwks_uri":               f.issuer + "/keys",
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(doc)
	})
	mux.HandleFunc("/keys", f.serveJWKS)
	mux.HandleFunc("/token", f.serveToken)
	mux.HandleFunc("/userinfo", f.serveUserInfo)

	f.server = httptest.NewServer(mux)
	t.Cleanup(f.server.Close)
	f.issuer = f.server.URL

	now := time.Now()
	f.idClaims = jwtv5.MapClaims{
		"iss":                f.issuer,
		"aud":                "test-client",
		"sub":                "subject-1",
		"iat":                now.Unix(),
		"exp":                now.Add(time.Hour).Unix(),
		"nonce":              "bound-nonce",
		"email":              "alice@example.com",
		"preferred_username": "alice@example.com",
		"name":               "Alice Example",
	}
	f.userInfo = map[string]any{
		"sub":                "subject-1",
		"email":              "alice@example.com",
		"preferred_username": "Alice.Info@corp.example.com",
		"name":               "Alice Example",
	}
	return f
}

func (f *fakeIdP) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	pub := &f.key.PublicKey
	jwks := map[string]any{
		"keys": []map[string]any{{
			"kty": "RSA",
			"alg": "RS256",
			"use": "sig",
			"kid": "test-key",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(jwks)
}

func (f *fakeIdP) serveToken(w http.ResponseWriter, _ *http.Request) {
	token := jwtv5.NewWithClaims(jwtv5.SigningMethodRS256, f.idClaims)
	token.Header["kid"] = "test-key"
	signed, err := token.SignedString(f.signKey)
	require.NoError(f.t, err)

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": "fake-access-token",
		"token_type":   "Bearer",
		"expires_in":   3600,
		"id_token":     signed,
	})
}

func (f *fakeIdP) serveUserInfo(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(f.userInfo)
}

func (f *fakeIdP) provider() *Provider {
	f.t.Helper()

	provider, err := New(Config{
		IssuerURL:    f.issuer,
		ClientID:     "test-client",
		ClientSecret: "test-secret",
		HTTPClient:   f.server.Client(),
	})
	require.NoError(f.t, err)
	return provider
}

func TestExchange_Success(t *testing.T) {
	idp := newFakeIdP(t)
	provider := idp.provider()

	identity, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "auth-code",
		State:         "bound-state",
		ExpectedState: "bound-state",
		ExpectedNonce: "bound-nonce",
		RedirectURI:   "http://localhost/cb",
	})
	require.NoError(t, err)

	assert.Equal(t, "subject-1", identity.Subject)
	assert.Equal(t, "alice@example.com", identity.Email)
	// User-info takes precedence over the id-token claim.
	assert.Equal(t, "Alice.Info@corp.example.com", identity.PreferredUsername)
	assert.Equal(t, "Alice Example", identity.Name)
	assert.Equal(t, "bound-nonce", identity.StringClaim("nonce"))
}

func TestExchange_NonceMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	idp.idClaims["nonce"] = "attacker-nonce"
	provider := idp.provider()

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "auth-code",
		State:         "bound-state",
		ExpectedState: "bound-state",
		ExpectedNonce: "bound-nonce",
		RedirectURI:   "http://localhost/cb",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeNonceMismatch, apperrors.GetCode(err))
}

func TestExchange_UserInfoSubjectMismatch(t *testing.T) {
	idp := newFakeIdP(t)
	idp.userInfo["sub"] = "different-subject"
	provider := idp.provider()

	_, err := provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "auth-code",
		State:         "bound-state",
		ExpectedState: "bound-state",
		ExpectedNonce: "bound-nonce",
		RedirectURI:   "http://localhost/cb",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeSubjectMismatch, apperrors.GetCode(err))
}

func TestExchange_TamperedIDTokenRejected(t *testing.T) {
	idp := newFakeIdP(t)
	// Sign with a key the JWKS does not advertise.
	otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	idp.signKey = otherKey
	provider := idp.provider()

	_, err = provider.Exchange(context.Background(), ports.ExchangeInput{
		Code:          "auth-code",
		State:         "bound-state",
		ExpectedState: "bound-state",
		ExpectedNonce: "bound-nonce",
		RedirectURI:   "http://localhost/cb",
	})
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeProviderError, apperrors.GetCode(err))
	assert.Contains(t, err.Error(), "id_token verification failed")
}

func TestFirstNonEmpty(t *testing.T) {
	assert.Equal(t, "a", firstNonEmpty("a", "b"))
	assert.Equal(t, "b", firstNonEmpty("", "b"))
	assert.Equal(t, "", firstNonEmpty("", ""))
	assert.Equal(t, "", firstNonEmpty())
}
