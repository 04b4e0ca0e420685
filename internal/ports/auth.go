package ports

// Package ports defines interfaces (hexagonal ports) for the login flow.
// Implementations live in internal/adapters and internal/data;
// orchestration in internal/service.

import (
	"context"
	"errors"
	"time"

	domainauth "github.com/quillhq/entra-sso/internal/domain/auth"
)

// Sentinel errors shared across UserStore implementations.
var (
	// ErrUserNotFound is returned when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserExists is returned when a create collides with an existing
	// username or email (e.g., a concurrent first-login provisioning race).
	ErrUserExists = errors.New("user already exists")
)

// BeginInput carries the bound attempt values for initiating a login flow.
type BeginInput struct {
	RedirectURI string
	State       string
	Nonce       string
}

// ExchangeInput groups parameters for the callback verification and
// code/token exchange.
type ExchangeInput struct {
	Code string
	// State is the value presented in the callback query.
	State string
	// ExpectedState and ExpectedNonce are the values bound to the attempt
	// at login initiation.
	ExpectedState string
	ExpectedNonce string
	RedirectURI   string
}

// IdentityProvider initiates and completes an authentication flow against
// the configured IdP.
type IdentityProvider interface {
	// AuthCodeURL builds the provider authorization URL for the bound attempt.
	AuthCodeURL(ctx context.Context, in BeginInput) (string, error)

	// Exchange verifies the callback (state, nonce, subject) and exchanges
	// the authorization code for the external identity.
	Exchange(ctx context.Context, in ExchangeInput) (domainauth.ExternalIdentity, error)
}

// CreateUserInput groups parameters for provisioning a local user.
type CreateUserInput struct {
	Username     string
	Email        string
	PasswordHash string
	Role         string
}

// UserStore is the external user-account collaborator. It must guarantee
// at-most-one-row-per-email under concurrent creates.
type UserStore interface {
	// GetByEmail looks up a user by email, matching case-insensitively.
	GetByEmail(ctx context.Context, email string) (*domainauth.User, error)

	// Create inserts a new user record. Collisions return ErrUserExists.
	Create(ctx context.Context, in CreateUserInput) (*domainauth.User, error)
}

// TokenIssuer issues signed session tokens binding a user id and username.
type TokenIssuer interface {
	Issue(userID, username string) (string, error)
}

// StateGuard enforces single-use anti-forgery state values across a login
// round-trip.
type StateGuard interface {
	// Consume marks the state value used for the given window. It returns
	// false when the value was already consumed.
	Consume(ctx context.Context, state string, ttl time.Duration) (bool, error)
}
