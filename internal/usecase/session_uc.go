package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
	"telegram-invoicing-bot/internal/infra/logging"
)

// Compile-time check
var _ SessionUseCase = (*sessionUC)(nil)

// SessionUseCase owns the lifecycle of conversational sessions.
type SessionUseCase interface {
	// WithSession runs fn with the session of key while holding its lock.
	// The session is saved when fn returns nil and changed it; an idle session is deleted.
	// fn's context expires before the lock does.
	WithSession(ctx context.Context, key model.SessionKey, fn func(ctx context.Context, s *model.Session) error) error
	// WithSessionWait is WithSession for updates that must not be dropped as busy:
	// it polls for the lock until the current holder's lease has run out.
	WithSessionWait(ctx context.Context, key model.SessionKey, fn func(ctx context.Context, s *model.Session) error) error

	Get(ctx context.Context, key model.SessionKey, name string) (string, bool, error)
	Set(ctx context.Context, key model.SessionKey, name, value string) error
	Clear(ctx context.Context, key model.SessionKey, name string) error
	ClearAll(ctx context.Context, key model.SessionKey) error
}

type sessionUC struct {
	repo    repository.SessionRepository
	locker  repository.Locker
	lockTTL time.Duration
	log     *zerolog.Logger
}

func NewSessionUseCase(repo repository.SessionRepository, locker repository.Locker, lockTTL time.Duration, logger *zerolog.Logger) *sessionUC {
	if lockTTL <= 0 {
		lockTTL = 30 * time.Second
	}
	return &sessionUC{repo: repo, locker: locker, lockTTL: lockTTL, log: logger}
}

func lockKey(key model.SessionKey) string { return "session_lock:" + key.String() }

const (
	lockPollMin = 50 * time.Millisecond
	lockPollMax = 500 * time.Millisecond
)

// handlerBudget leaves a fifth of the lease for saving the session and releasing the lock.
func (u *sessionUC) handlerBudget() time.Duration { return u.lockTTL - u.lockTTL/5 }

func (u *sessionUC) WithSession(ctx context.Context, key model.SessionKey, fn func(ctx context.Context, s *model.Session) error) error {
	defer logging.TraceDuration(u.log, "SessionUC.WithSession")()

	token, err := u.locker.TryLock(ctx, lockKey(key), u.lockTTL)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return err
		}
		return fmt.Errorf("lock session %s: %w", key, err)
	}
	return u.run(ctx, key, token, fn)
}

func (u *sessionUC) WithSessionWait(ctx context.Context, key model.SessionKey, fn func(ctx context.Context, s *model.Session) error) error {
	defer logging.TraceDuration(u.log, "SessionUC.WithSessionWait")()

	token, err := u.waitLock(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrLockNotAcquired) {
			return err
		}
		return fmt.Errorf("lock session %s: %w", key, err)
	}
	return u.run(ctx, key, token, fn)
}

func (u *sessionUC) waitLock(ctx context.Context, key model.SessionKey) (string, error) {
	wctx, cancel := context.WithTimeout(ctx, u.lockTTL+lockPollMax)
	defer cancel()

	delay := lockPollMin
	for {
		token, err := u.locker.TryLock(wctx, lockKey(key), u.lockTTL)
		switch {
		case err == nil:
			return token, nil
		case ctx.Err() != nil:
			return "", ctx.Err()
		case wctx.Err() != nil:
			return "", domain.ErrLockNotAcquired
		case !errors.Is(err, domain.ErrLockNotAcquired):
			return "", err
		}
		select {
		case <-wctx.Done():
		case <-time.After(delay):
		}
		delay = min(2*delay, lockPollMax)
	}
}

func (u *sessionUC) run(ctx context.Context, key model.SessionKey, token string, fn func(ctx context.Context, s *model.Session) error) error {
	defer func() {
		// the request context may already be done; release on a fresh one
		uctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
		defer cancel()
		if err := u.locker.Unlock(uctx, lockKey(key), token); err != nil {
			u.log.Warn().Err(err).Str("session", key.String()).Msg("failed to release session lock")
		}
	}()

	s, err := u.repo.Load(ctx, key)
	if errors.Is(err, domain.ErrStateCorruption) {
		// unreadable state is dropped so the next update starts idle
		if derr := u.repo.Delete(ctx, key); derr != nil {
			u.log.Error().Err(derr).Str("session", key.String()).Msg("failed to drop corrupt session")
		}
	}
	if err != nil {
		return fmt.Errorf("load session %s: %w", key, err)
	}
	s.MarkClean()

	fctx, cancel := context.WithTimeout(ctx, u.handlerBudget())
	defer cancel()
	if err := fn(fctx, s); err != nil {
		return err
	}
	// a handler that ignored its deadline may no longer own the lock
	if errors.Is(fctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("session %s: handler overran its lock: %w", key, context.DeadlineExceeded)
	}
	return u.persist(ctx, key, s)
}

func (u *sessionUC) persist(ctx context.Context, key model.SessionKey, s *model.Session) error {
	if !s.Dirty() {
		return nil
	}
	var err error
	if s.IsIdle() {
		err = u.repo.Delete(ctx, key)
	} else {
		err = u.repo.Save(ctx, key, s)
	}
	if err != nil {
		return fmt.Errorf("save session %s: %w", key, err)
	}
	s.MarkClean()
	return nil
}

func (u *sessionUC) Get(ctx context.Context, key model.SessionKey, name string) (string, bool, error) {
	s, err := u.repo.Load(ctx, key)
	if err != nil {
		return "", false, err
	}
	v, ok := s.Get(name)
	return v, ok, nil
}

func (u *sessionUC) Set(ctx context.Context, key model.SessionKey, name, value string) error {
	return u.WithSession(ctx, key, func(_ context.Context, s *model.Session) error {
		s.Set(name, value)
		return nil
	})
}

func (u *sessionUC) Clear(ctx context.Context, key model.SessionKey, name string) error {
	return u.WithSession(ctx, key, func(_ context.Context, s *model.Session) error {
		s.Clear(name)
		return nil
	})
}

func (u *sessionUC) ClearAll(ctx context.Context, key model.SessionKey) error {
	return u.WithSession(ctx, key, func(_ context.Context, s *model.Session) error {
		s.ClearAll()
		return nil
	})
}
