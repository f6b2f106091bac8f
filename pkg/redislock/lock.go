// Package redislock serialises work across service instances with a Redis
// (redsync) mutex.
package redislock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	ErrEmptyKey   = errors.New("lock key cannot be empty")
	ErrNilLockFn  = errors.New("lock function is nil")
	ErrInvalidTTL = errors.New("lock ttl must be greater than 0")
)

// Locker runs fn while holding key. It reports false without running fn when
// another holder owns the key.
type Locker interface {
	TryWithLock(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error)
}

type RedisLocker struct {
	rs     *redsync.Redsync
	ttl    time.Duration
	logger *zap.Logger
}

func New(client redis.UniversalClient, ttl time.Duration, logger *zap.Logger) (*RedisLocker, error) {
	if ttl <= 0 {
		return nil, ErrInvalidTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisLocker{
		rs:     redsync.New(goredis.NewPool(client)),
		ttl:    ttl,
		logger: logger.Named("redislock"),
	}, nil
}

func (l *RedisLocker) TryWithLock(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	if key == "" {
		return false, ErrEmptyKey
	}
	if fn == nil {
		return false, ErrNilLockFn
	}

	mutex := l.rs.NewMutex(key, redsync.WithExpiry(l.ttl), redsync.WithTries(1))
	if err := mutex.LockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			l.logger.Debug("lock held elsewhere", zap.String("key", key))
			return false, nil
		}
		return false, fmt.Errorf("acquire lock %s: %w", key, err)
	}

	defer func() {
		if ok, err := mutex.UnlockContext(context.WithoutCancel(ctx)); err != nil || !ok {
			l.logger.Warn("failed to release lock", zap.String("key", key), zap.Bool("released", ok), zap.Error(err))
		}
	}()

	return true, fn(ctx)
}

// Local is a Locker for single-instance deployments; it always acquires.
type Local struct{}

func (Local) TryWithLock(ctx context.Context, key string, fn func(ctx context.Context) error) (bool, error) {
	if fn == nil {
		return false, ErrNilLockFn
	}
	return true, fn(ctx)
}
