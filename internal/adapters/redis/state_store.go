// Package redis provides Redis-backed adapters for killfeed.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// defaultStateTTL bounds how long a login attempt stays valid.
const defaultStateTTL = 15 * time.Minute

// StateStore persists outstanding OAuth login state nonces. Each nonce is
// valid for one callback within a short TTL; consuming it removes it, so a
// replayed callback is rejected.
type StateStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewStateStore creates a login-state store with the default TTL and prefix.
func NewStateStore(client redis.UniversalClient) *StateStore {
	return &StateStore{
		client: client,
		prefix: "oauth:state:",
		ttl:    defaultStateTTL,
	}
}

// Save records a freshly issued state nonce.
func (s *StateStore) Save(ctx context.Context, state string) error {
	if state == "" {
		return errors.New("state cannot be empty")
	}
	if err := s.client.Set(ctx, s.prefix+state, "1", s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set login state: %w", err)
	}
	return nil
}

// Consume atomically checks and removes a state nonce. It returns false when
// the nonce was never issued, already consumed, or expired.
func (s *StateStore) Consume(ctx context.Context, state string) (bool, error) {
	if state == "" {
		return false, nil
	}
	if err := s.client.GetDel(ctx, s.prefix+state).Err(); err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("redis consume login state: %w", err)
	}
	return true, nil
}
