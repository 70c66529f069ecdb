// Package lock serializes mutating ledger calls per event across instances.
package lock

import (
	"context"
	"fmt"
	"time"

	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

const keyPrefix = "ledger_event_lock:"

const retryInterval = 25 * time.Millisecond

// Locker hands out exclusive per-event locks.
type Locker interface {
	Lock(ctx context.Context, eventID string) (token string, err error)
	Unlock(ctx context.Context, eventID, token string) error
}

// Delete the key only while it still holds our token.
var unlockScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Redis struct {
	Client *redis.Client
	Logger *logger.Logger
	// TTL bounds how long a lock survives a crashed holder.
	TTL time.Duration
	// Wait is how long Lock retries before reporting the event busy.
	Wait time.Duration
}

func NewRedis(client *redis.Client, log *logger.Logger, ttl, wait time.Duration) *Redis {
	return &Redis{Client: client, Logger: log, TTL: ttl, Wait: wait}
}

func key(eventID string) string {
	return keyPrefix + eventID
}

// TryLock makes a single SETNX attempt.
func (r *Redis) TryLock(ctx context.Context, eventID, token string) (bool, error) {
	return r.Client.SetNX(ctx, key(eventID), token, r.TTL).Result()
}

// Lock retries until the event lock is free, Wait elapses, or ctx ends.
func (r *Redis) Lock(ctx context.Context, eventID string) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(r.Wait)

	for {
		ok, err := r.TryLock(ctx, eventID, token)
		if err != nil {
			return "", fmt.Errorf("redis lock error: %w", err)
		}
		if ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			r.Logger.Warn("REDIS", fmt.Sprintf("Event %s still locked after %s", eventID, r.Wait))
			return "", fmt.Errorf("event %s: %w", eventID, models.ErrEventBusy)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(retryInterval):
		}
	}
}

// Unlock releases the lock if token still owns it. A lock that expired or
// moved to another holder is left alone.
func (r *Redis) Unlock(ctx context.Context, eventID, token string) error {
	return unlockScript.Run(ctx, r.Client, []string{key(eventID)}, token).Err()
}

// IsLocked reports whether any holder owns the event lock.
func (r *Redis) IsLocked(ctx context.Context, eventID string) (bool, error) {
	_, err := r.Client.Get(ctx, key(eventID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Guard runs fn while holding the event lock.
func Guard(ctx context.Context, l Locker, eventID string, fn func(ctx context.Context) error) error {
	token, err := l.Lock(ctx, eventID)
	if err != nil {
		return err
	}
	defer func() {
		// the caller's ctx may already be cancelled
		_ = l.Unlock(context.Background(), eventID, token)
	}()
	return fn(ctx)
}
