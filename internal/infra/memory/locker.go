package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.Locker = (*Locker)(nil)

type held struct {
	token   string
	expires time.Time
}

// Locker is a keyed in-process lock with lease expiry.
type Locker struct {
	mu    sync.Mutex
	locks map[string]held
	wait  time.Duration
	retry time.Duration
}

// NewLocker waits up to wait for a busy key before returning domain.ErrLockNotAcquired.
func NewLocker(wait time.Duration) *Locker {
	if wait <= 0 {
		wait = 5 * time.Second
	}
	return &Locker{locks: map[string]held{}, wait: wait, retry: 10 * time.Millisecond}
}

func (l *Locker) try(key string, ttl time.Duration) (string, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := time.Now()
	if h, ok := l.locks[key]; ok && now.Before(h.expires) {
		return "", false
	}
	token := uuid.NewString()
	l.locks[key] = held{token: token, expires: now.Add(ttl)}
	return token, true
}

func (l *Locker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	deadline := time.Now().Add(l.wait)
	for {
		if token, ok := l.try(key, ttl); ok {
			return token, nil
		}
		if time.Now().After(deadline) {
			return "", domain.ErrLockNotAcquired
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(l.retry):
		}
	}
}

func (l *Locker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if h, ok := l.locks[key]; ok && h.token == token {
		delete(l.locks, key)
	}
	return nil
}
