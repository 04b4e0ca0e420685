package auth

// Package auth contains domain-level types for federated authentication.
// It is pure and free of framework/adapter concerns.

import "time"

// ExternalIdentity represents the verified principal returned by the
// identity provider. Adapters map provider-specific claims into this shape.
// It is never persisted as-is.
type ExternalIdentity struct {
	Subject           string // stable provider subject (sub claim)
	Email             string // email from the user-info response, may be empty
	PreferredUsername string
	Name              string
	Claims            map[string]any // id-token claims by name
}

// StringClaim returns the named id-token claim when it is a string,
// or empty string otherwise.
func (id ExternalIdentity) StringClaim(name string) string {
	v, _ := id.Claims[name].(string)
	return v
}

// User is the local account record owned by the user store.
// PasswordHash and Suspended never cross the HTTP boundary; see Profile.
type User struct {
	ID           string
	Username     string
	Email        string
	Role         string
	Suspended    bool
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Profile is the sanitized user projection handed back to clients.
type Profile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
}

// Profile returns the client-safe projection of the user.
func (u User) Profile() Profile {
	return Profile{
		ID:       u.ID,
		Username: u.Username,
		Email:    u.Email,
		Role:     u.Role,
	}
}
