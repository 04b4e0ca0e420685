package jwt

// Package jwt implements the TokenIssuer port with HMAC-signed JWTs
// compatible with the rest of the application's session handling.

import (
	"time"

	jwtv5 "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	apperrors "github.com/quillhq/entra-sso/internal/errors"
)

// DefaultExpiry matches the application session lifetime of 30 days.
const DefaultExpiry = 720 * time.Hour

// Config holds configuration for the token issuer.
type Config struct {
	Secret string
	Expiry time.Duration // Optional, defaults to DefaultExpiry
}

// Issuer signs session tokens carrying the user's id and username.
type Issuer struct {
	secret []byte
	expiry time.Duration
	now    func() time.Time
}

// New validates the configuration and returns a token issuer.
func New(cfg Config) (*Issuer, error) {
	if cfg.Secret == "" {
		return nil, apperrors.New(apperrors.ErrCodeConfigInvalid, "session token secret is required")
	}
	expiry := cfg.Expiry
	if expiry <= 0 {
		expiry = DefaultExpiry
	}
	return &Issuer{
		secret: []byte(cfg.Secret),
		expiry: expiry,
		now:    time.Now,
	}, nil
}

// Issue signs a session token for the given user.
func (i *Issuer) Issue(userID, username string) (string, error) {
	now := i.now()
	claims := jwtv5.MapClaims{
		"id":       userID,
		"username": username,
		"iat":      now.Unix(),
		"exp":      now.Add(i.expiry).Unix(),
		"jti":      uuid.NewString(),
	}

	token := jwtv5.NewWithClaims(jwtv5.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", apperrors.Wrap(err, apperrors.ErrCodeInternal, "sign session token")
	}
	return signed, nil
}
