package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var (
	// ErrThrottled signals that the identifier or IP has exhausted its
	// failure budget for the current window. Callers surface this as a
	// distinct throttling response, never as a credential failure.
	ErrThrottled = errors.New("too many attempts")
	// ErrStoreUnavailable signals that the backing counter store could
	// not be reached.
	ErrStoreUnavailable = errors.New("rate limit store unavailable")
)

// Config tunes the failure-counter windows.
type Config struct {
	MaxFailures int
	Window      time.Duration
}

// Guard tracks failure counters per identifier and per IP in Redis and
// admits or throttles requests against them. Counters use fixed-window
// semantics: the first failure in a window starts the TTL.
type Guard struct {
	rdb redis.UniversalClient
	cfg Config
}

func NewGuard(rdb redis.UniversalClient, cfg Config) *Guard {
	return &Guard{rdb: rdb, cfg: cfg}
}

// CheckAdmission reports whether the identifier+IP pair may proceed.
// Returns ErrThrottled when either counter is over budget. ip may be
// empty, in which case only the identifier counter is consulted.
func (g *Guard) CheckAdmission(ctx context.Context, identifier, ip string) error {
	if err := g.checkCounter(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		if err := g.checkCounter(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// RecordFailure increments the failure counters for the identifier+IP pair.
func (g *Guard) RecordFailure(ctx context.Context, identifier, ip string) error {
	if _, err := g.incrementWithTTL(ctx, identifierKey(identifier)); err != nil {
		return err
	}
	if ip != "" {
		if _, err := g.incrementWithTTL(ctx, ipKey(ip)); err != nil {
			return err
		}
	}
	return nil
}

// Reset clears the failure counters after a successful verification.
func (g *Guard) Reset(ctx context.Context, identifier, ip string) error {
	keys := []string{identifierKey(identifier)}
	if ip != "" {
		keys = append(keys, ipKey(ip))
	}
	if err := g.rdb.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

// Failures returns the current failure count for the identifier. Missing
// counters read as zero.
func (g *Guard) Failures(ctx context.Context, identifier string) (int, error) {
	n, err := g.rdb.Get(ctx, identifierKey(identifier)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return int(n), nil
}

func (g *Guard) checkCounter(ctx context.Context, key string) error {
	n, err := g.rdb.Get(ctx, key).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if n >= int64(g.cfg.MaxFailures) {
		return ErrThrottled
	}
	return nil
}

func (g *Guard) incrementWithTTL(ctx context.Context, key string) (int64, error) {
	n, err := g.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	// Fixed window: only the first failure starts the clock.
	if n == 1 {
		if err := g.rdb.Expire(ctx, key, g.cfg.Window).Err(); err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return n, nil
}

func identifierKey(identifier string) string {
	return "guard:id:" + identifier
}

func ipKey(ip string) string {
	return "guard:ip:" + ip
}
