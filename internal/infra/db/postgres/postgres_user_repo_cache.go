package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
	"telegram-invoicing-bot/internal/infra/metrics"
	red "telegram-invoicing-bot/internal/infra/redis"
)

var _ repository.UserRepository = (*userRepoCacheDecorator)(nil)

// userRepoCacheDecorator caches user lookups, which run on every incoming update.
// Reads inside a transaction always go to the database.
type userRepoCacheDecorator struct {
	inner repository.UserRepository
	cache red.RedisClient
	ttl   time.Duration
	log   *zerolog.Logger
}

func NewUserRepoCacheDecorator(inner repository.UserRepository, cache red.RedisClient, ttl time.Duration, logger *zerolog.Logger) repository.UserRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &userRepoCacheDecorator{inner: inner, cache: cache, ttl: ttl, log: logger}
}

func userIDKey(id int64) string     { return fmt.Sprintf("user:id:%d", id) }
func userTgIDKey(tgID int64) string { return fmt.Sprintf("user:tgid:%d", tgID) }

func (d *userRepoCacheDecorator) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	if err := d.inner.Save(ctx, tx, u); err != nil {
		return err
	}
	_ = d.cache.Del(ctx, userIDKey(u.ID), userTgIDKey(u.TelegramID))
	return nil
}

func (d *userRepoCacheDecorator) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByTelegramID(ctx, tx, tgID)
	}
	if u := d.lookup(ctx, userTgIDKey(tgID)); u != nil {
		return u, nil
	}
	u, err := d.inner.FindByTelegramID(ctx, tx, tgID)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	if tx != nil {
		metrics.IncCacheRequest("user", "bypass")
		return d.inner.FindByID(ctx, tx, id)
	}
	if u := d.lookup(ctx, userIDKey(id)); u != nil {
		return u, nil
	}
	u, err := d.inner.FindByID(ctx, tx, id)
	if err != nil {
		return nil, err
	}
	d.store(ctx, u)
	return u, nil
}

func (d *userRepoCacheDecorator) lookup(ctx context.Context, key string) *model.User {
	val, err := d.cache.Get(ctx, key)
	if err == nil {
		var user model.User
		if json.Unmarshal([]byte(val), &user) == nil {
			metrics.IncCacheRequest("user", "hit")
			return &user
		}
	} else if !errors.Is(err, red.Nil) {
		d.log.Warn().Err(err).Str("key", key).Msg("user cache read failed")
	}
	metrics.IncCacheRequest("user", "miss")
	return nil
}

// store warms both keys so either lookup hits next time.
func (d *userRepoCacheDecorator) store(ctx context.Context, u *model.User) {
	if u == nil {
		return
	}
	b, err := json.Marshal(u)
	if err != nil {
		return
	}
	_ = d.cache.Set(ctx, userIDKey(u.ID), b, d.ttl)
	_ = d.cache.Set(ctx, userTgIDKey(u.TelegramID), b, d.ttl)
}
