package redis

// Package redis provides Redis-based adapters for the login flow.

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StateGuard enforces single-use anti-forgery state values with Redis.
// The first Consume for a value wins; any later Consume within the TTL
// window is rejected, so a replayed callback cannot reuse a state even
// if the browser still carries its cookie.
type StateGuard struct {
	client redis.UniversalClient
	prefix string
}

// NewStateGuard creates a Redis-backed state guard.
func NewStateGuard(client redis.UniversalClient) *StateGuard {
	return &StateGuard{
		client: client,
		prefix: "login_state:",
	}
}

// NewStateGuardWithPrefix creates a state guard with a custom key prefix.
func NewStateGuardWithPrefix(client redis.UniversalClient, prefix string) *StateGuard {
	return &StateGuard{
		client: client,
		prefix: prefix,
	}
}

func (g *StateGuard) Consume(ctx context.Context, state string, ttl time.Duration) (bool, error) {
	if state == "" {
		return false, errors.New("state cannot be empty")
	}
	if ttl <= 0 {
		return false, errors.New("ttl must be positive")
	}

	ok, err := g.client.SetNX(ctx, g.prefix+state, "1", ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis setnx: %w", err)
	}
	return ok, nil
}

// NoopGuard accepts every state value. It is used when no Redis is
// configured; single-use enforcement then rests on cookie clearing alone.
type NoopGuard struct{}

func (NoopGuard) Consume(_ context.Context, _ string, _ time.Duration) (bool, error) {
	return true, nil
}
