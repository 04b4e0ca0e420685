package auth

// Package auth contains simple hand-written test doubles for the login
// flow ports. These are lightweight and suitable for unit tests without
// codegen.

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	domainauth "github.com/quillhq/entra-sso/internal/domain/auth"
	"github.com/quillhq/entra-sso/internal/ports"
)

// Ensure compile-time conformance to ports.
var (
	_ ports.IdentityProvider = (*MockIdentityProvider)(nil)
	_ ports.UserStore        = (*MemoryUserStore)(nil)
	_ ports.TokenIssuer      = (*StaticTokenIssuer)(nil)
	_ ports.StateGuard       = (*MemoryStateGuard)(nil)
)

// MockIdentityProvider simulates an IdP for tests with deterministic
// URL building and exchange behavior.
type MockIdentityProvider struct {
	AuthCodeURLFunc func(ctx context.Context, in ports.BeginInput) (string, error)
	ExchangeFunc    func(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error)

	// Deterministic values for predictable testing
	AuthURL         string
	DefaultIdentity domainauth.ExternalIdentity

	// LastBegin and LastExchange record the most recent inputs.
	LastBegin    ports.BeginInput
	LastExchange ports.ExchangeInput
}

// NewMockIdentityProvider creates a MockIdentityProvider with sensible defaults.
func NewMockIdentityProvider() *MockIdentityProvider {
	return &MockIdentityProvider{
		AuthURL: "https://mock-idp/authorize",
		DefaultIdentity: domainauth.ExternalIdentity{
			Subject: "mock-subject-1",
			Email:   "mock.user@example.com",
			Name:    "Mock User",
			Claims: map[string]any{
				"preferred_username": "mock.user@example.com",
			},
		},
	}
}

func (m *MockIdentityProvider) AuthCodeURL(ctx context.Context, in ports.BeginInput) (string, error) {
	m.LastBegin = in
	if m.AuthCodeURLFunc != nil {
		return m.AuthCodeURLFunc(ctx, in)
	}
	return m.AuthURL + "?state=" + in.State + "&nonce=" + in.Nonce, nil
}

func (m *MockIdentityProvider) Exchange(ctx context.Context, in ports.ExchangeInput) (domainauth.ExternalIdentity, error) {
	m.LastExchange = in
	if m.ExchangeFunc != nil {
		return m.ExchangeFunc(ctx, in)
	}
	return m.DefaultIdentity, nil
}

// MemoryUserStore is an in-memory UserStore keyed by lowercase email.
type MemoryUserStore struct {
	mu    sync.Mutex
	users map[string]*domainauth.User
	seq   int

	// CreateErr, when set, is returned by every Create call.
	CreateErr error
	// GetErr, when set, is returned by every GetByEmail call.
	GetErr error
}

// NewMemoryUserStore creates an empty in-memory user store.
func NewMemoryUserStore() *MemoryUserStore {
	return &MemoryUserStore{users: make(map[string]*domainauth.User)}
}

// Seed inserts a user directly, bypassing Create semantics.
func (s *MemoryUserStore) Seed(u domainauth.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := u
	s.users[strings.ToLower(u.Email)] = &copied
}

func (s *MemoryUserStore) GetByEmail(_ context.Context, email string) (*domainauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.GetErr != nil {
		return nil, s.GetErr
	}
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return nil, ports.ErrUserNotFound
	}
	copied := *u
	return &copied, nil
}

func (s *MemoryUserStore) Create(_ context.Context, in ports.CreateUserInput) (*domainauth.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.CreateErr != nil {
		return nil, s.CreateErr
	}
	key := strings.ToLower(in.Email)
	if _, ok := s.users[key]; ok {
		return nil, ports.ErrUserExists
	}
	s.seq++
	now := time.Now().UTC()
	u := &domainauth.User{
		ID:           fmt.Sprintf("user-%d", s.seq),
		Username:     in.Username,
		Email:        key,
		Role:         in.Role,
		PasswordHash: in.PasswordHash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.users[key] = u
	copied := *u
	return &copied, nil
}

// StaticTokenIssuer returns a fixed token, recording the last issue call.
type StaticTokenIssuer struct {
	Token string
	Err   error

	LastUserID   string
	LastUsername string
}

func (i *StaticTokenIssuer) Issue(userID, username string) (string, error) {
	i.LastUserID = userID
	i.LastUsername = username
	if i.Err != nil {
		return "", i.Err
	}
	if i.Token == "" {
		return "token-" + userID, nil
	}
	return i.Token, nil
}

// MemoryStateGuard enforces single use in memory.
type MemoryStateGuard struct {
	mu   sync.Mutex
	used map[string]bool

	// Err, when set, is returned by every Consume call.
	Err error
}

// NewMemoryStateGuard creates an empty in-memory state guard.
func NewMemoryStateGuard() *MemoryStateGuard {
	return &MemoryStateGuard{used: make(map[string]bool)}
}

func (g *MemoryStateGuard) Consume(_ context.Context, state string, _ time.Duration) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.Err != nil {
		return false, g.Err
	}
	if g.used[state] {
		return false, nil
	}
	g.used[state] = true
	return true, nil
}
