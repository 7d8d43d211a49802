// Package idempotency remembers which order a checkout request produced so
// that client retries do not charge twice.
package idempotency

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"
)

// ErrInFlight is returned by Reserve while another request holds the key.
var ErrInFlight = errors.New("request with this idempotency key is in progress")

// DefaultTTL is how long keys are remembered.
const DefaultTTL = 24 * time.Hour

const (
	keyPrefix     = "checkout:idem:"
	pendingMarker = "pending"
)

// RedisStore keeps idempotency keys in Redis.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore creates a RedisStore. A non-positive ttl uses DefaultTTL.
func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

// Reserve claims key for a new request. It returns the order id recorded by
// an earlier completed request, "" when the caller now owns the key, or
// ErrInFlight when another request owns it.
func (s *RedisStore) Reserve(ctx context.Context, key string) (string, error) {
	k := keyPrefix + key
	for range 2 {
		ok, err := s.client.SetNX(ctx, k, pendingMarker, s.ttl).Result()
		if err != nil {
			return "", errors.Wrap(err, "reserve key")
		}
		if ok {
			return "", nil
		}

		v, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			// Expired between SETNX and GET.
			continue
		}
		if err != nil {
			return "", errors.Wrap(err, "get key")
		}
		if v == pendingMarker {
			return "", ErrInFlight
		}
		return v, nil
	}
	return "", ErrInFlight
}

// Complete records the order produced for key.
func (s *RedisStore) Complete(ctx context.Context, key, orderID string) error {
	if err := s.client.Set(ctx, keyPrefix+key, orderID, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "complete key")
	}
	return nil
}

// Release forgets key so the request may be retried.
func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		return errors.Wrap(err, "release key")
	}
	return nil
}

// Ping checks the Redis connection.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
