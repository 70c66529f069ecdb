package lock

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"ms-ledger/internal/logger"
	"ms-ledger/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("Failed to create miniredis: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return NewRedis(client, logger.Nop(), time.Minute, 100*time.Millisecond), mr
}

func TestLock_ExclusiveUntilUnlocked(t *testing.T) {
	ctx := context.Background()
	r, _ := setupTestRedis(t)

	token, err := r.Lock(ctx, "evt")
	require.NoError(t, err)

	_, err = r.Lock(ctx, "evt")
	assert.ErrorIs(t, err, models.ErrEventBusy)

	other, err := r.Lock(ctx, "evt-2")
	require.NoError(t, err)
	assert.NotEqual(t, token, other)

	require.NoError(t, r.Unlock(ctx, "evt", token))
	locked, err := r.IsLocked(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, locked)

	_, err = r.Lock(ctx, "evt")
	assert.NoError(t, err)
}

func TestUnlock_OnlyOwnerReleases(t *testing.T) {
	ctx := context.Background()
	r, _ := setupTestRedis(t)

	token, err := r.Lock(ctx, "evt")
	require.NoError(t, err)

	require.NoError(t, r.Unlock(ctx, "evt", "someone-else"))
	locked, err := r.IsLocked(ctx, "evt")
	require.NoError(t, err)
	assert.True(t, locked)

	require.NoError(t, r.Unlock(ctx, "evt", token))
	locked, err = r.IsLocked(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLock_ExpiresAfterTTL(t *testing.T) {
	ctx := context.Background()
	r, mr := setupTestRedis(t)

	_, err := r.Lock(ctx, "evt")
	require.NoError(t, err)

	mr.FastForward(2 * time.Minute)

	_, err = r.Lock(ctx, "evt")
	assert.NoError(t, err)
}

func TestLock_WaitsForRelease(t *testing.T) {
	ctx := context.Background()
	r, _ := setupTestRedis(t)
	r.Wait = 2 * time.Second

	token, err := r.Lock(ctx, "evt")
	require.NoError(t, err)

	go func() {
		time.Sleep(50 * time.Millisecond)
		_ = r.Unlock(context.Background(), "evt", token)
	}()

	_, err = r.Lock(ctx, "evt")
	assert.NoError(t, err)
}

func TestGuard_SerializesCriticalSection(t *testing.T) {
	r, _ := setupTestRedis(t)
	r.Wait = 5 * time.Second

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		overlap bool
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := Guard(context.Background(), r, "evt", func(ctx context.Context) error {
				mu.Lock()
				inside++
				if inside > 1 {
					overlap = true
				}
				mu.Unlock()

				time.Sleep(5 * time.Millisecond)

				mu.Lock()
				inside--
				mu.Unlock()
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	assert.False(t, overlap)
}

func TestGuard_ReleasesOnError(t *testing.T) {
	ctx := context.Background()
	r, _ := setupTestRedis(t)
	boom := errors.New("boom")

	err := Guard(ctx, r, "evt", func(ctx context.Context) error { return boom })
	assert.ErrorIs(t, err, boom)

	locked, err := r.IsLocked(ctx, "evt")
	require.NoError(t, err)
	assert.False(t, locked)
}

func TestLocal_Guard(t *testing.T) {
	l := NewLocal()
	ctx := context.Background()

	token, err := l.Lock(ctx, "evt")
	require.NoError(t, err)

	short, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Lock(short, "evt")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, l.Unlock(ctx, "evt", "stranger"))
	require.NoError(t, l.Unlock(ctx, "evt", token))

	assert.NoError(t, Guard(ctx, l, "evt", func(context.Context) error { return nil }))
}
