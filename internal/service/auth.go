// Package service orchestrates the federated login flow: attempt
// initiation, callback verification, and identity reconciliation.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	domainauth "github.com/quillhq/entra-sso/internal/domain/auth"
	apperrors "github.com/quillhq/entra-sso/internal/errors"
	"github.com/quillhq/entra-sso/internal/ports"
)

// BindingTTL is how long a login attempt's state/nonce bindings stay valid.
const BindingTTL = 10 * time.Minute

// AuthServiceOptions groups dependencies for AuthService.
type AuthServiceOptions struct {
	Provider ports.IdentityProvider
	Users    ports.UserStore
	Tokens   ports.TokenIssuer
	Guard    ports.StateGuard
	Logger   *slog.Logger

	AutoProvision bool
	DefaultRole   string
}

// AuthService coordinates the identity provider, user store, state guard,
// and token issuer across a login round-trip.
type AuthService struct {
	provider ports.IdentityProvider
	users    ports.UserStore
	tokens   ports.TokenIssuer
	guard    ports.StateGuard
	logger   *slog.Logger

	autoProvision bool
	defaultRole   string
}

// NewAuthService constructs a new AuthService.
func NewAuthService(opts AuthServiceOptions) *AuthService {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	guard := opts.Guard
	if guard == nil {
		guard = noopGuard{}
	}
	role := opts.DefaultRole
	if role == "" {
		role = "default"
	}
	return &AuthService{
		provider:      opts.Provider,
		users:         opts.Users,
		tokens:        opts.Tokens,
		guard:         guard,
		logger:        logger,
		autoProvision: opts.AutoProvision,
		defaultRole:   role,
	}
}

type noopGuard struct{}

func (noopGuard) Consume(context.Context, string, time.Duration) (bool, error) {
	return true, nil
}

// BeginLoginResult contains the result of initiating a login attempt.
// State and Nonce must be bound to the caller before redirecting.
type BeginLoginResult struct {
	AuthURL string
	State   string
	Nonce   string
}

// BeginLogin mints fresh state and nonce values and builds the provider
// authorization URL for them.
func (s *AuthService) BeginLogin(ctx context.Context, redirectURI string) (*BeginLoginResult, error) {
	if redirectURI == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "redirect URI is required")
	}

	state, err := NewState()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate state")
	}
	nonce, err := NewNonce()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "generate nonce")
	}

	authURL, err := s.provider.AuthCodeURL(ctx, ports.BeginInput{
		RedirectURI: redirectURI,
		State:       state,
		Nonce:       nonce,
	})
	if err != nil {
		return nil, err
	}

	return &BeginLoginResult{
		AuthURL: authURL,
		State:   state,
		Nonce:   nonce,
	}, nil
}

// CompleteLoginInput groups parameters for completing a login attempt.
// ExpectedState and ExpectedNonce are the values bound at initiation;
// Code and State arrive on the provider callback.
type CompleteLoginInput struct {
	Code          string
	State         string
	ExpectedState string
	ExpectedNonce string
	RedirectURI   string
}

// CompleteLoginResult contains the session token and user profile handed
// back to the frontend.
type CompleteLoginResult struct {
	Token string
	User  domainauth.Profile
}

// CompleteLogin verifies the callback against the bound attempt, exchanges
// the code, reconciles the external identity to a local account, and
// issues a session token.
func (s *AuthService) CompleteLogin(ctx context.Context, in CompleteLoginInput) (*CompleteLoginResult, error) {
	if in.ExpectedState == "" || in.ExpectedNonce == "" {
		return nil, apperrors.New(apperrors.ErrCodeSessionExpired, "login attempt bindings are missing or expired")
	}

	ok, err := s.guard.Consume(ctx, in.ExpectedState, BindingTTL)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "consume state binding")
	}
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeSessionExpired, "state binding was already used")
	}

	identity, err := s.provider.Exchange(ctx, ports.ExchangeInput{
		Code:          in.Code,
		State:         in.State,
		ExpectedState: in.ExpectedState,
		ExpectedNonce: in.ExpectedNonce,
		RedirectURI:   in.RedirectURI,
	})
	if err != nil {
		return nil, err
	}

	user, err := s.reconcile(ctx, identity)
	if err != nil {
		return nil, err
	}
	if user.Suspended {
		return nil, apperrors.Newf(apperrors.ErrCodeUserSuspended, "account %s is suspended", user.Username)
	}

	token, err := s.tokens.Issue(user.ID, user.Username)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "issue session token")
	}

	s.logger.InfoContext(ctx, "login completed",
		"user_id", user.ID,
		"username", user.Username,
	)

	return &CompleteLoginResult{
		Token: token,
		User:  user.Profile(),
	}, nil
}

// reconcile maps the external identity onto a local account, provisioning
// one when allowed.
func (s *AuthService) reconcile(ctx context.Context, identity domainauth.ExternalIdentity) (*domainauth.User, error) {
	email := reconciliationEmail(identity)
	if email == "" {
		return nil, apperrors.New(apperrors.ErrCodeNoEmailClaim, "identity has no usable email claim")
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ports.ErrUserNotFound) {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "look up user by email")
	}
	if !s.autoProvision {
		return nil, apperrors.Newf(apperrors.ErrCodeUserNotFound, "no account for %s and auto-provisioning is disabled", email)
	}

	return s.provision(ctx, identity, email)
}

func (s *AuthService) provision(ctx context.Context, identity domainauth.ExternalIdentity, email string) (*domainauth.User, error) {
	passwordHash, err := randomPasswordHash()
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvisioningFailed, "generate account credentials")
	}

	username := UsernameCandidate(
		identity.PreferredUsername,
		email,
		identity.Subject,
	)

	user, err := s.users.Create(ctx, ports.CreateUserInput{
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		Role:         s.defaultRole,
	})
	if err != nil {
		if errors.Is(err, ports.ErrUserExists) {
			// A concurrent first login won the race; use the winning row.
			existing, getErr := s.users.GetByEmail(ctx, email)
			if getErr != nil {
				return nil, apperrors.Wrap(getErr, apperrors.ErrCodeProvisioningFailed, "re-read user after create collision")
			}
			return existing, nil
		}
		return nil, apperrors.Wrap(err, apperrors.ErrCodeProvisioningFailed, "create user")
	}

	s.logger.InfoContext(ctx, "auto-provisioned new user",
		"user_id", user.ID,
		"username", user.Username,
		"role", user.Role,
	)
	return user, nil
}

// reconciliationEmail selects the email used to key the local account.
// Precedence: user-info email, id-token email claim, then the
// preferred_username claim (commonly a UPN in email form).
func reconciliationEmail(identity domainauth.ExternalIdentity) string {
	candidates := []string{
		identity.Email,
		identity.StringClaim("email"),
		identity.StringClaim("preferred_username"),
	}
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c != "" {
			return strings.ToLower(c)
		}
	}
	return ""
}
