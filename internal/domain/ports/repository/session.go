package repository

import (
	"context"
	"time"

	"telegram-invoicing-bot/internal/domain/model"
)

// SessionRepository persists conversational sessions keyed by (chat, user).
// Load returns a fresh idle session when nothing is stored.
type SessionRepository interface {
	Load(ctx context.Context, key model.SessionKey) (*model.Session, error)
	Save(ctx context.Context, key model.SessionKey, s *model.Session) error
	Delete(ctx context.Context, key model.SessionKey) error
}

// Locker serialises read-modify-write of one session key across workers and instances.
type Locker interface {
	TryLock(ctx context.Context, key string, ttl time.Duration) (token string, err error)
	Unlock(ctx context.Context, key, token string) error
}
