//go:build !integration

package usecase_test

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/repository"
	"telegram-invoicing-bot/internal/usecase"
)

// newTestLogger creates a silent zerolog.Logger for use in tests.
func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// =============================
// In-memory store with rollback
// =============================

// memStore backs every mock repository. MockTxManager snapshots it before a
// transaction and restores it when the transaction function fails.
type memStore struct {
	mu sync.Mutex

	nextID    int64
	users     map[int64]model.User // by id
	companies map[int64]model.Company
	clients   map[int64]model.Client
	articles  map[int64]model.Article
	movements []model.Movement
	payments  map[string]model.PaymentRecord
}

func newMemStore() *memStore {
	return &memStore{
		users:     map[int64]model.User{},
		companies: map[int64]model.Company{},
		clients:   map[int64]model.Client{},
		articles:  map[int64]model.Article{},
		payments:  map[string]model.PaymentRecord{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) snapshot() *memStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := newMemStore()
	cp.nextID = s.nextID
	for k, v := range s.users {
		cp.users[k] = v
	}
	for k, v := range s.companies {
		cp.companies[k] = v
	}
	for k, v := range s.clients {
		cp.clients[k] = v
	}
	for k, v := range s.articles {
		cp.articles[k] = v
	}
	cp.movements = append(cp.movements, s.movements...)
	for k, v := range s.payments {
		cp.payments[k] = v
	}
	return cp
}

func (s *memStore) restore(from *memStore) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = from.nextID
	s.users = from.users
	s.companies = from.companies
	s.clients = from.clients
	s.articles = from.articles
	s.movements = from.movements
	s.payments = from.payments
}

func (s *memStore) repositories() usecase.Repositories {
	return usecase.Repositories{
		Users:     &mockUserRepo{s: s},
		Companies: &mockCompanyRepo{s: s},
		Clients:   &mockClientRepo{s: s},
		Articles:  &mockArticleRepo{s: s},
		Movements: &mockMovementRepo{s: s},
		Payments:  &mockPaymentRepo{s: s},
	}
}

func (s *memStore) articleMovements(articleID int64) []model.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Movement
	for _, m := range s.movements {
		if m.ArticleID == articleID {
			out = append(out, m)
		}
	}
	return out
}

// ---- Mock TransactionManager ----

type MockTxManager struct {
	store      *memStore
	WithTxFunc func(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error
}

var _ repository.TransactionManager = (*MockTxManager)(nil)

func NewMockTxManager(store *memStore) *MockTxManager {
	return &MockTxManager{store: store}
}

func (m *MockTxManager) WithTx(ctx context.Context, txOpt pgx.TxOptions, fn func(ctx context.Context, tx repository.Tx) error) error {
	if m.WithTxFunc != nil {
		return m.WithTxFunc(ctx, txOpt, fn)
	}
	if m.store == nil {
		return fn(ctx, repository.NoTX)
	}
	snap := m.store.snapshot()
	if err := fn(ctx, "mock-tx"); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// =============================
// Repositories
// =============================

type mockUserRepo struct{ s *memStore }

func (r *mockUserRepo) Save(ctx context.Context, tx repository.Tx, u *model.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if u.ID == 0 {
		u.ID = r.s.id()
	}
	r.s.users[u.ID] = *u
	return nil
}

func (r *mockUserRepo) FindByTelegramID(ctx context.Context, tx repository.Tx, tgID int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.TelegramID == tgID {
			cp := u
			return &cp, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (r *mockUserRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &u, nil
}

type mockCompanyRepo struct{ s *memStore }

func (r *mockCompanyRepo) Save(ctx context.Context, tx repository.Tx, c *model.Company) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.s.id()
	}
	r.s.companies[c.ID] = *c
	return nil
}

func (r *mockCompanyRepo) FindByID(ctx context.Context, tx repository.Tx, id int64) (*model.Company, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *mockCompanyRepo) ExistsByEmail(ctx context.Context, tx repository.Tx, email string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.companies {
		if strings.EqualFold(c.Email, email) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockCompanyRepo) AddClientCount(ctx context.Context, tx repository.Tx, id int64, delta int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.companies[id]
	if !ok {
		return domain.ErrNotFound
	}
	c.ClientCount += delta
	r.s.companies[id] = c
	return nil
}

type mockClientRepo struct{ s *memStore }

func (r *mockClientRepo) Save(ctx context.Context, tx repository.Tx, c *model.Client) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if c.ID == 0 {
		c.ID = r.s.id()
	}
	r.s.clients[c.ID] = *c
	return nil
}

func (r *mockClientRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id int64) (*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.clients[id]
	if !ok || c.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return &c, nil
}

func (r *mockClientRepo) ExistsByName(ctx context.Context, tx repository.Tx, companyID int64, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, c := range r.s.clients {
		if c.CompanyID == companyID && c.ID != excludeID && strings.EqualFold(c.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockClientRepo) List(ctx context.Context, tx repository.Tx, companyID int64, limit int) ([]*model.Client, error) {
	return r.Search(ctx, tx, companyID, "", limit)
}

func (r *mockClientRepo) Search(ctx context.Context, tx repository.Tx, companyID int64, query string, limit int) ([]*model.Client, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Client
	for _, c := range r.s.clients {
		cp := c
		if c.CompanyID == companyID && (query == "" || cp.Matches(query)) {
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockClientRepo) Delete(ctx context.Context, tx repository.Tx, companyID, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.clients, id)
	return nil
}

type mockArticleRepo struct{ s *memStore }

func (r *mockArticleRepo) Save(ctx context.Context, tx repository.Tx, a *model.Article) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if a.ID == 0 {
		a.ID = r.s.id()
	}
	r.s.articles[a.ID] = *a
	return nil
}

func (r *mockArticleRepo) FindByID(ctx context.Context, tx repository.Tx, companyID, id int64) (*model.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	a, ok := r.s.articles[id]
	if !ok || a.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	return &a, nil
}

func (r *mockArticleRepo) ExistsByName(ctx context.Context, tx repository.Tx, companyID int64, name string, excludeID int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, a := range r.s.articles {
		if a.CompanyID == companyID && a.ID != excludeID && strings.EqualFold(a.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (r *mockArticleRepo) List(ctx context.Context, tx repository.Tx, companyID int64, limit int) ([]*model.Article, error) {
	return r.Search(ctx, tx, companyID, "", limit)
}

func (r *mockArticleRepo) Search(ctx context.Context, tx repository.Tx, companyID int64, query string, limit int) ([]*model.Article, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var out []*model.Article
	for _, a := range r.s.articles {
		cp := a
		if a.CompanyID == companyID && (query == "" || cp.Matches(query)) {
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockArticleRepo) Delete(ctx context.Context, tx repository.Tx, companyID, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	delete(r.s.articles, id)
	return nil
}

type mockMovementRepo struct {
	s        *memStore
	SaveFunc func(ctx context.Context, tx repository.Tx, m *model.Movement) error
}

func (r *mockMovementRepo) Save(ctx context.Context, tx repository.Tx, m *model.Movement) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, tx, m)
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.id()
	r.s.movements = append(r.s.movements, *m)
	return nil
}

func (r *mockMovementRepo) ListByArticle(ctx context.Context, tx repository.Tx, articleID int64, limit int) ([]*model.Movement, error) {
	var out []*model.Movement
	for _, m := range r.s.articleMovements(articleID) {
		cp := m
		out = append([]*model.Movement{&cp}, out...)
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *mockMovementRepo) DeleteByArticle(ctx context.Context, tx repository.Tx, articleID int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	kept := r.s.movements[:0:0]
	for _, m := range r.s.movements {
		if m.ArticleID != articleID {
			kept = append(kept, m)
		}
	}
	r.s.movements = kept
	return nil
}

type mockPaymentRepo struct{ s *memStore }

func (r *mockPaymentRepo) Save(ctx context.Context, tx repository.Tx, p *model.PaymentRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.payments[p.ID] = *p
	return nil
}

func (r *mockPaymentRepo) FindByID(ctx context.Context, tx repository.Tx, id string) (*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &p, nil
}

func (r *mockPaymentRepo) FindLatestPending(ctx context.Context, tx repository.Tx, companyID int64) (*model.PaymentRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var latest *model.PaymentRecord
	for _, p := range r.s.payments {
		cp := p
		if p.Submission.CompanyID == companyID && p.Status == model.PaymentStatusPendingReview &&
			(latest == nil || p.SubmittedAt.After(latest.SubmittedAt)) {
			latest = &cp
		}
	}
	if latest == nil {
		return nil, domain.ErrNotFound
	}
	return latest, nil
}

func (r *mockPaymentRepo) UpdateStatus(ctx context.Context, tx repository.Tx, id string, status model.PaymentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.payments[id]
	if !ok {
		return domain.ErrNotFound
	}
	p.Status = status
	r.s.payments[id] = p
	return nil
}

// =============================
// Sessions
// =============================

type mockSessionRepo struct {
	mu    sync.Mutex
	store map[model.SessionKey]model.Session

	LoadFunc func(ctx context.Context, key model.SessionKey) (*model.Session, error)
	SaveFunc func(ctx context.Context, key model.SessionKey, s *model.Session) error
	saves    int
	deletes  int
}

func newMockSessionRepo() *mockSessionRepo {
	return &mockSessionRepo{store: map[model.SessionKey]model.Session{}}
}

func (r *mockSessionRepo) Load(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	if r.LoadFunc != nil {
		return r.LoadFunc(ctx, key)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.store[key]
	if !ok {
		return model.NewSession(), nil
	}
	scratch := make(map[string]string, len(s.Scratch))
	for k, v := range s.Scratch {
		scratch[k] = v
	}
	s.Scratch = scratch
	return &s, nil
}

func (r *mockSessionRepo) Save(ctx context.Context, key model.SessionKey, s *model.Session) error {
	if r.SaveFunc != nil {
		return r.SaveFunc(ctx, key, s)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves++
	r.store[key] = *s
	return nil
}

func (r *mockSessionRepo) Delete(ctx context.Context, key model.SessionKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.deletes++
	delete(r.store, key)
	return nil
}

// ---- In-memory Locker ----

type MockLocker struct {
	mu    sync.Mutex
	held  map[string]string
	ErrOn map[string]error
}

func NewMockLocker() *MockLocker {
	return &MockLocker{held: map[string]string{}, ErrOn: map[string]error{}}
}

func (l *MockLocker) TryLock(ctx context.Context, key string, ttl time.Duration) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if err, bad := l.ErrOn[key]; bad {
		return "", err
	}
	if tok, ok := l.held[key]; ok && tok != "" {
		return "", domain.ErrLockNotAcquired
	}
	tok := uuid.NewString()
	l.held[key] = tok
	return tok, nil
}

func (l *MockLocker) Unlock(ctx context.Context, key, token string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.held[key] == token {
		delete(l.held, key)
		return nil
	}
	return errors.New("unlock token mismatch")
}

func (l *MockLocker) isHeld(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.held[key]
	return ok
}
