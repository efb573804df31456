package redis

import (
	"context"
	"time"

	"github.com/google/uuid"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.Locker = (*RedisLocker)(nil)

// RedisLocker is a SET NX lock with token-checked release.
type RedisLocker struct {
	client RedisClient
	wait   time.Duration
	retry  time.Duration
}

// NewLocker retries for up to wait before giving up with domain.ErrLockNotAcquired.
func NewLocker(client RedisClient, wait time.Duration) *RedisLocker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &RedisLocker{client: client, wait: wait, retry: 50 * time.Millisecond}
}

func (l *RedisLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)
	for {
		ok, err := l.client.SetNX(ctx, key, token, ttl)
		if err == nil && ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			if err != nil {
				return "", err
			}
			return "", domain.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *RedisLocker) Unlock(ctx context.Context, key, token string) error {
	_, err := l.client.DelIfEqual(ctx, key, token)
	return err
}
