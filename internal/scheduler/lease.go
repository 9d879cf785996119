package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Lease gates scheduler ticks so that one instance drives escalations at a
// time. Acquire reports whether this instance holds the lease for the tick.
type Lease interface {
	Acquire(ctx context.Context) (bool, error)
	Release(ctx context.Context) error
}

// leaseStore is the slice of the redis client the lease uses.
type leaseStore interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) *redis.BoolCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Expire(ctx context.Context, key string, ttl time.Duration) *redis.BoolCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// RedisLease is an advisory lock held in Redis under a per-instance holder
// token. The holder refreshes the TTL on every Acquire, so a single
// instance keeps passing its own checks tick after tick; a crashed holder
// frees the lease when the TTL expires. The lease is advisory only: the
// get-then-delete on release is not atomic, and correctness never depends
// on mutual exclusion here.
type RedisLease struct {
	store leaseStore
	key   string
	token string
	ttl   time.Duration
}

// NewRedisLease builds the lease with a fresh holder token.
func NewRedisLease(client *redis.Client, key string, ttl time.Duration) *RedisLease {
	return &RedisLease{store: client, key: key, token: uuid.NewString(), ttl: ttl}
}

func (l *RedisLease) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.store.SetNX(ctx, l.key, l.token, l.ttl).Result()
	if err != nil || ok {
		return ok, err
	}
	holder, err := l.store.Get(ctx, l.key).Result()
	if err == redis.Nil {
		// Holder vanished between the two calls; the next tick takes it.
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if holder != l.token {
		return false, nil
	}
	return l.store.Expire(ctx, l.key, l.ttl).Result()
}

// Release frees the lease if this instance holds it. Another holder's key
// is left untouched.
func (l *RedisLease) Release(ctx context.Context) error {
	holder, err := l.store.Get(ctx, l.key).Result()
	if err == redis.Nil {
		return nil
	}
	if err != nil {
		return err
	}
	if holder != l.token {
		return nil
	}
	return l.store.Del(ctx, l.key).Err()
}

// NoopLease always grants the lease. Used in single-instance deployments
// and tests.
type NoopLease struct{}

func (NoopLease) Acquire(context.Context) (bool, error) { return true, nil }
func (NoopLease) Release(context.Context) error         { return nil }
