package redislock

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker(t *testing.T) (*RedisLocker, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	l, err := New(client, 5*time.Second, nil)
	require.NoError(t, err)
	return l, mr
}

func TestTryWithLockRunsAndReleases(t *testing.T) {
	l, mr := setupLocker(t)
	ctx := context.Background()

	ran := false
	ok, err := l.TryWithLock(ctx, "lock:sweep", func(ctx context.Context) error {
		ran = true
		assert.True(t, mr.Exists("lock:sweep"))
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, ran)
	assert.False(t, mr.Exists("lock:sweep"))
}

func TestTryWithLockSkipsWhenHeld(t *testing.T) {
	l, _ := setupLocker(t)
	ctx := context.Background()

	ok, err := l.TryWithLock(ctx, "lock:sweep", func(ctx context.Context) error {
		inner, innerErr := l.TryWithLock(ctx, "lock:sweep", func(ctx context.Context) error {
			t.Fatal("nested holder must not run")
			return nil
		})
		assert.NoError(t, innerErr)
		assert.False(t, inner)
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestTryWithLockPropagatesFnError(t *testing.T) {
	l, _ := setupLocker(t)
	boom := errors.New("boom")

	ok, err := l.TryWithLock(context.Background(), "k", func(ctx context.Context) error { return boom })
	assert.True(t, ok)
	assert.ErrorIs(t, err, boom)
}

func TestValidation(t *testing.T) {
	l, _ := setupLocker(t)

	_, err := l.TryWithLock(context.Background(), "", func(ctx context.Context) error { return nil })
	assert.ErrorIs(t, err, ErrEmptyKey)

	_, err = l.TryWithLock(context.Background(), "k", nil)
	assert.ErrorIs(t, err, ErrNilLockFn)

	_, err = New(redis.NewClient(&redis.Options{}), 0, nil)
	assert.ErrorIs(t, err, ErrInvalidTTL)
}

func TestLocalAlwaysAcquires(t *testing.T) {
	ok, err := Local{}.TryWithLock(context.Background(), "k", func(ctx context.Context) error { return nil })
	assert.NoError(t, err)
	assert.True(t, ok)
}
