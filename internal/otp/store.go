package otp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"authcore/internal/identifier"
)

// ErrStoreUnavailable is returned when the backing Redis cannot be reached.
var ErrStoreUnavailable = errors.New("otp store unavailable")

// consumeScript atomically compares the stored code hash against the provided
// one and deletes the challenge only on a match. Exactly one concurrent caller
// can win; a wrong code leaves the challenge in place for retry within TTL.
const consumeScript = `
local stored = redis.call("GET", KEYS[1])
if not stored then
  return 0
end
if stored == ARGV[1] then
  redis.call("DEL", KEYS[1])
  return 1
end
return 0
`

var consumeLua = redis.NewScript(consumeScript)

// Store keeps at most one live challenge per (channel, identifier) in Redis.
// Challenges expire via key TTL, so an expired challenge is indistinguishable
// from an absent one.
type Store struct {
	redis redis.UniversalClient
	ttl   time.Duration
}

// NewStore returns a challenge store with the given TTL for issued codes.
func NewStore(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &Store{redis: client, ttl: ttl}
}

func challengeKey(channel identifier.Kind, value string) string {
	return fmt.Sprintf("otp:%s:%s", channel, value)
}

// Issue generates a fresh code for the identifier and stores its hash,
// replacing any prior unconsumed challenge for the same identifier.
// Returns the plain code for delivery.
func (s *Store) Issue(ctx context.Context, channel identifier.Kind, value string) (string, error) {
	code, err := GenerateCode()
	if err != nil {
		return "", err
	}
	if err := s.redis.Set(ctx, challengeKey(channel, value), HashCode(code), s.ttl).Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return code, nil
}

// Consume redeems code for the identifier. The check-and-clear is a single
// atomic operation; under concurrent redemption only one caller observes true.
// Absent, expired, and already-consumed challenges all report false.
func (s *Store) Consume(ctx context.Context, channel identifier.Kind, value, code string) (bool, error) {
	if code == "" {
		return false, nil
	}
	n, err := consumeLua.Run(ctx, s.redis, []string{challengeKey(channel, value)}, HashCode(code)).Int64()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}

// Peek reports whether a live challenge exists for the identifier without
// consuming it. Used by tests and the dev OTP endpoint.
func (s *Store) Peek(ctx context.Context, channel identifier.Kind, value string) (bool, error) {
	n, err := s.redis.Exists(ctx, challengeKey(channel, value)).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return n == 1, nil
}
