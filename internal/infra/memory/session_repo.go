package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
)

var _ repository.SessionRepository = (*SessionRepo)(nil)

type entry struct {
	data      []byte
	updatedAt time.Time
}

// SessionRepo keeps sessions in process memory for single-instance deployments.
// Entries are stored encoded so callers never share a *model.Session.
type SessionRepo struct {
	mu   sync.Mutex
	data map[model.SessionKey]entry
	ttl  time.Duration
	now  func() time.Time
}

// NewSessionRepo expires entries idle for longer than ttl; 0 disables expiry.
func NewSessionRepo(ttl time.Duration) *SessionRepo {
	return &SessionRepo{data: map[model.SessionKey]entry{}, ttl: ttl, now: time.Now}
}

// WithClock replaces the time source, for tests.
func (r *SessionRepo) WithClock(now func() time.Time) *SessionRepo {
	r.now = now
	return r
}

func (r *SessionRepo) expired(e entry) bool {
	return r.ttl > 0 && r.now().Sub(e.updatedAt) > r.ttl
}

func (r *SessionRepo) Load(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	r.mu.Lock()
	e, ok := r.data[key]
	if ok && r.expired(e) {
		delete(r.data, key)
		ok = false
	}
	r.mu.Unlock()

	if !ok {
		return model.NewSession(), nil
	}
	sess := model.NewSession()
	if err := json.Unmarshal(e.data, sess); err != nil {
		return nil, fmt.Errorf("decode session: %v: %w", err, domain.ErrStateCorruption)
	}
	if sess.Scratch == nil {
		sess.Scratch = map[string]string{}
	}
	return sess, nil
}

func (r *SessionRepo) Save(ctx context.Context, key model.SessionKey, sess *model.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.data[key] = entry{data: data, updatedAt: r.now()}
	r.mu.Unlock()
	return nil
}

func (r *SessionRepo) Delete(ctx context.Context, key model.SessionKey) error {
	r.mu.Lock()
	delete(r.data, key)
	r.mu.Unlock()
	return nil
}

// SweepExpired drops every entry idle past the TTL and reports how many went.
func (r *SessionRepo) SweepExpired(ctx context.Context) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for k, e := range r.data {
		if r.expired(e) {
			delete(r.data, k)
			n++
		}
	}
	return n, nil
}

// Len is the number of stored sessions, expired or not.
func (r *SessionRepo) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.data)
}
