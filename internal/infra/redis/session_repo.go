package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

// Sealer encrypts session payloads at rest.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(data []byte) ([]byte, error)
}

// SessionRepo stores one JSON document per (chat, user); every write renews the TTL.
type SessionRepo struct {
	client RedisClient
	ttl    time.Duration
	sealer Sealer
}

// NewSessionRepo keeps sessions for ttl after the last write; 0 keeps them forever.
// sealer may be nil.
func NewSessionRepo(client RedisClient, ttl time.Duration, sealer Sealer) *SessionRepo {
	return &SessionRepo{client: client, ttl: ttl, sealer: sealer}
}

func (s *SessionRepo) sessionKey(key model.SessionKey) string {
	return fmt.Sprintf("session:%d:%d", key.ChatID, key.UserID)
}

func (s *SessionRepo) Load(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	data, err := s.client.Get(ctx, s.sessionKey(key))
	if errors.Is(err, Nil) {
		return model.NewSession(), nil
	}
	if err != nil {
		return nil, err
	}

	raw := []byte(data)
	if s.sealer != nil {
		if raw, err = s.sealer.Open(raw); err != nil {
			return nil, fmt.Errorf("open session: %v: %w", err, domain.ErrStateCorruption)
		}
	}

	sess := model.NewSession()
	if err := json.Unmarshal(raw, sess); err != nil {
		return nil, fmt.Errorf("decode session: %v: %w", err, domain.ErrStateCorruption)
	}
	if sess.Scratch == nil {
		sess.Scratch = map[string]string{}
	}
	return sess, nil
}

func (s *SessionRepo) Save(ctx context.Context, key model.SessionKey, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	if s.sealer != nil {
		if data, err = s.sealer.Seal(data); err != nil {
			return err
		}
	}
	return s.client.Set(ctx, s.sessionKey(key), data, s.ttl)
}

func (s *SessionRepo) Delete(ctx context.Context, key model.SessionKey) error {
	return s.client.Del(ctx, s.sessionKey(key))
}
