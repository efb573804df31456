//go:build !integration

package application_test

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/application"
	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/memory"
	"telegram-invoicing-bot/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// keyTranslator renders "key|arg1|arg2" so tests can assert on message keys.
type keyTranslator struct{}

func (keyTranslator) T(key string, args ...interface{}) string {
	parts := []string{key}
	for _, a := range args {
		parts = append(parts, fmt.Sprint(a))
	}
	return strings.Join(parts, "|")
}

// =============================
// Bot & notifier
// =============================

type mockBot struct {
	mu      sync.Mutex
	sent    []adapter.SendMessageParams
	edited  []adapter.EditMessageParams
	answers []adapter.CallbackAnswer
	// history keeps sent and edited messages in order
	history []adapter.SendMessageParams

	EditMessageFunc func(p adapter.EditMessageParams) error
}

func (b *mockBot) SendMessage(_ context.Context, p adapter.SendMessageParams) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent = append(b.sent, p)
	b.history = append(b.history, p)
	return len(b.sent), nil
}

func (b *mockBot) EditMessage(_ context.Context, p adapter.EditMessageParams) error {
	if b.EditMessageFunc != nil {
		if err := b.EditMessageFunc(p); err != nil {
			return err
		}
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.edited = append(b.edited, p)
	b.history = append(b.history, adapter.SendMessageParams{ChatID: p.ChatID, Text: p.Text, ParseMode: p.ParseMode, Rows: p.Rows})
	return nil
}

func (b *mockBot) AnswerCallback(_ context.Context, a adapter.CallbackAnswer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.answers = append(b.answers, a)
	return nil
}

func (b *mockBot) last() adapter.SendMessageParams {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.history) == 0 {
		return adapter.SendMessageParams{}
	}
	return b.history[len(b.history)-1]
}

func (b *mockBot) lastText() string { return b.last().Text }

func (b *mockBot) lastRows() [][]adapter.InlineButton { return b.last().Rows }

func (b *mockBot) lastAnswer() adapter.CallbackAnswer {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.answers) == 0 {
		return adapter.CallbackAnswer{}
	}
	return b.answers[len(b.answers)-1]
}

func (b *mockBot) reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.sent, b.edited, b.answers, b.history = nil, nil, nil, nil
}

type mockNotifier struct {
	mu    sync.Mutex
	texts []string
	files []*adapter.AdminAttachment
}

func (n *mockNotifier) NotifyAdmins(_ context.Context, text string, file *adapter.AdminAttachment) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.texts = append(n.texts, text)
	n.files = append(n.files, file)
	return nil
}

// =============================
// Business API
// =============================

// mockAPI is an in-memory BusinessAPI. Fail injects an error per method name;
// PanicOn makes a method panic. BeforeFunc runs first in every checked call.
type mockAPI struct {
	mu sync.Mutex

	nextID    int64
	users     map[int64]*model.User // by telegram id
	companies map[int64]*model.Company
	clients   map[int64]*model.Client
	articles  map[int64]*model.Article
	movements []*model.Movement
	payments  []*model.PaymentRecord
	prices    map[model.PlanTier]int64

	Fail       map[string]error
	PanicOn    string
	BeforeFunc func(op string)
}

func newMockAPI() *mockAPI {
	return &mockAPI{
		users:     map[int64]*model.User{},
		companies: map[int64]*model.Company{},
		clients:   map[int64]*model.Client{},
		articles:  map[int64]*model.Article{},
		prices:    map[model.PlanTier]int64{model.PlanPremium: 15000, model.PlanEnterprise: 45000},
		Fail:      map[string]error{},
	}
}

func (m *mockAPI) check(op string) error {
	if m.BeforeFunc != nil {
		m.BeforeFunc(op)
	}
	if m.PanicOn == op {
		panic("boom in " + op)
	}
	return m.Fail[op]
}

func (m *mockAPI) id() int64 {
	m.nextID++
	return m.nextID
}

// seedCompany registers an owner with a company on plan.
func (m *mockAPI) seedCompany(tgID int64, plan model.PlanTier) (*model.User, *model.Company) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Company{ID: m.id(), Name: "Sodiba", Email: "contact@sodiba.tg", Plan: plan, PlanStatus: model.PlanStatusActive, IsActive: true, OwnerTelegramID: tgID}
	m.companies[c.ID] = c
	u := &model.User{ID: m.id(), CompanyID: c.ID, Role: model.RoleAdmin, TelegramID: tgID, Name: "Awa"}
	m.users[tgID] = u
	return u, c
}

func (m *mockAPI) seedClient(companyID int64, name string) *model.Client {
	m.mu.Lock()
	defer m.mu.Unlock()
	c := &model.Client{ID: m.id(), CompanyID: companyID, Reference: fmt.Sprintf("CLI-%04d", m.nextID), Name: name, Phone: "+22890000000"}
	m.clients[c.ID] = c
	m.companies[companyID].ClientCount++
	return c
}

func (m *mockAPI) seedArticle(companyID int64, name string, stock int64) *model.Article {
	m.mu.Lock()
	defer m.mu.Unlock()
	a := &model.Article{ID: m.id(), CompanyID: companyID, Reference: fmt.Sprintf("ART-%04d", m.nextID), Name: name, Price: 5000, Stock: stock, Unit: "sac"}
	m.articles[a.ID] = a
	return a
}

func (m *mockAPI) FindUserByPlatformID(_ context.Context, tgID int64) (*model.User, error) {
	if err := m.check("FindUserByPlatformID"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[tgID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *mockAPI) GetCompany(_ context.Context, id int64) (*model.Company, error) {
	if err := m.check("GetCompany"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockAPI) CreateCompany(_ context.Context, d model.CompanyDraft) (*model.Company, error) {
	if err := m.check("CreateCompany"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if u, ok := m.users[d.OwnerTelegramID]; ok && u.HasCompany() {
		return nil, domain.ErrCompanyExists
	}
	for _, c := range m.companies {
		if strings.EqualFold(c.Email, d.Email) {
			return nil, domain.ErrAlreadyExists
		}
	}
	c := &model.Company{
		ID: m.id(), Name: d.Name, Email: d.Email, Description: d.Description, Phone: d.Phone, Website: d.Website,
		Address: d.Address, Plan: d.Plan, PlanStatus: d.PlanStatus, IsActive: d.IsActive,
		PlanStart: d.PlanStart, PlanEnd: d.PlanEnd, OwnerTelegramID: d.OwnerTelegramID,
	}
	m.companies[c.ID] = c
	m.users[d.OwnerTelegramID] = &model.User{ID: m.id(), CompanyID: c.ID, Role: model.RoleAdmin, TelegramID: d.OwnerTelegramID, Name: d.OwnerUsername}
	cp := *c
	return &cp, nil
}

func (m *mockAPI) ActivateCompany(_ context.Context, id int64) (*model.Company, error) {
	return nil, domain.ErrInvalidArgument
}

func (m *mockAPI) CreateClient(_ context.Context, companyID, userID int64, d model.ClientDraft) (*model.Client, error) {
	if err := m.check("CreateClient"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	co := m.companies[companyID]
	if !co.Plan.Limits().AllowsClient(co.ClientCount) {
		return nil, domain.ErrLimitExceeded
	}
	for _, c := range m.clients {
		if c.CompanyID == companyID && strings.EqualFold(c.Name, d.Name) {
			return nil, domain.ErrAlreadyExists
		}
	}
	c := &model.Client{ID: m.id(), CompanyID: companyID, UserID: userID, Reference: fmt.Sprintf("CLI-%04d", m.nextID),
		Name: d.Name, Phone: d.Phone, Email: d.Email, Address: d.Address, CreatedAt: time.Now()}
	m.clients[c.ID] = c
	co.ClientCount++
	cp := *c
	return &cp, nil
}

func (m *mockAPI) GetClient(_ context.Context, companyID, id int64) (*model.Client, error) {
	if err := m.check("GetClient"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (m *mockAPI) ListClients(_ context.Context, companyID int64, limit int) ([]*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Client
	for _, c := range m.clients {
		if c.CompanyID == companyID && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockAPI) SearchClients(_ context.Context, companyID int64, q string, limit int) ([]*model.Client, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Client
	for _, c := range m.clients {
		if c.CompanyID == companyID && c.Matches(q) && len(out) < limit {
			out = append(out, c)
		}
	}
	return out, nil
}

func (m *mockAPI) UpdateClientField(_ context.Context, companyID, id int64, field, value string) (*model.Client, error) {
	if err := m.check("UpdateClientField"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	c.SetField(field, value)
	cp := *c
	return &cp, nil
}

func (m *mockAPI) DeleteClient(_ context.Context, companyID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.clients[id]
	if !ok || c.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(m.clients, id)
	m.companies[companyID].ClientCount--
	return nil
}

func (m *mockAPI) CreateArticle(_ context.Context, companyID, userID int64, d model.ArticleDraft) (*model.Article, error) {
	if err := m.check("CreateArticle"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, a := range m.articles {
		if a.CompanyID == companyID && strings.EqualFold(a.Name, d.Name) {
			return nil, domain.ErrAlreadyExists
		}
	}
	a := &model.Article{ID: m.id(), CompanyID: companyID, UserID: userID, Reference: fmt.Sprintf("ART-%04d", m.nextID),
		Name: d.Name, Price: d.Price, Stock: d.Stock, Unit: d.Unit, TVA: d.TVA, Source: d.Source}
	m.articles[a.ID] = a
	if a.Stock > 0 {
		m.movements = append(m.movements, &model.Movement{ID: m.id(), ArticleID: a.ID, UserID: userID, Type: model.MovementEntry, Quantity: a.Stock})
	}
	cp := *a
	return &cp, nil
}

func (m *mockAPI) GetArticle(_ context.Context, companyID, id int64) (*model.Article, error) {
	if err := m.check("GetArticle"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok || a.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockAPI) ListArticles(_ context.Context, companyID int64, limit int) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Article
	for _, a := range m.articles {
		if a.CompanyID == companyID && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAPI) SearchArticles(_ context.Context, companyID int64, q string, limit int) ([]*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Article
	for _, a := range m.articles {
		if a.CompanyID == companyID && a.Matches(q) && len(out) < limit {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockAPI) UpdateArticleField(_ context.Context, companyID, id int64, field, value string) (*model.Article, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok || a.CompanyID != companyID {
		return nil, domain.ErrNotFound
	}
	a.SetField(field, value)
	cp := *a
	return &cp, nil
}

func (m *mockAPI) AdjustArticleStock(_ context.Context, companyID, id, userID int64, op model.StockOp, qty int64) (*model.Article, model.StockChange, error) {
	if err := m.check("AdjustArticleStock"); err != nil {
		return nil, model.StockChange{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok || a.CompanyID != companyID {
		return nil, model.StockChange{}, domain.ErrNotFound
	}
	next, err := model.ApplyStockOp(a.Stock, op, qty)
	if err != nil {
		return nil, model.StockChange{}, err
	}
	mv := &model.Movement{ID: m.id(), ArticleID: id, UserID: userID, Type: op.MovementType(), Quantity: qty, Date: time.Now()}
	m.movements = append(m.movements, mv)
	change := model.StockChange{Old: a.Stock, New: next, Movement: *mv}
	a.Stock = next
	cp := *a
	return &cp, change, nil
}

func (m *mockAPI) RecordMovement(ctx context.Context, companyID, articleID, userID int64, t model.MovementType, qty int64) (*model.Movement, error) {
	op, err := model.StockOpFor(t)
	if err != nil {
		return nil, err
	}
	_, change, err := m.AdjustArticleStock(ctx, companyID, articleID, userID, op, qty)
	if err != nil {
		return nil, err
	}
	return &change.Movement, nil
}

func (m *mockAPI) ListMovements(_ context.Context, companyID, articleID int64, limit int) ([]*model.Movement, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.Movement
	for i := len(m.movements) - 1; i >= 0 && len(out) < limit; i-- {
		if m.movements[i].ArticleID == articleID {
			out = append(out, m.movements[i])
		}
	}
	return out, nil
}

func (m *mockAPI) DeleteArticle(_ context.Context, companyID, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.articles[id]
	if !ok || a.CompanyID != companyID {
		return domain.ErrNotFound
	}
	delete(m.articles, id)
	return nil
}

func (m *mockAPI) GetPlanPrice(_ context.Context, plan model.PlanTier) (int64, error) {
	if err := m.check("GetPlanPrice"); err != nil {
		return 0, err
	}
	return m.prices[plan], nil
}

func (m *mockAPI) SubmitPaymentProof(_ context.Context, s model.PaymentSubmission) (*model.PaymentRecord, error) {
	if err := m.check("SubmitPaymentProof"); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.companies[s.CompanyID]
	if !ok {
		return nil, domain.ErrNotFound
	}
	c.PlanStatus = model.PlanStatusPendingReview
	r := &model.PaymentRecord{ID: fmt.Sprintf("pay-%d", m.id()), Submission: s, Status: model.PaymentStatusPendingReview}
	m.payments = append(m.payments, r)
	return r, nil
}

// =============================
// Harness
// =============================

const (
	testChat = int64(-100)
	testUser = int64(7)
)

type harness struct {
	t        *testing.T
	api      *mockAPI
	bot      *mockBot
	notifier *mockNotifier
	repo     *memory.SessionRepo
	unread   *unreadableRepo
	locker   *memory.Locker
	d        *application.Dispatcher
}

// unreadableRepo fails the next Load with a decode error when broken is set.
type unreadableRepo struct {
	*memory.SessionRepo
	mu     sync.Mutex
	broken bool
}

func (r *unreadableRepo) Load(ctx context.Context, key model.SessionKey) (*model.Session, error) {
	r.mu.Lock()
	broken := r.broken
	r.broken = false
	r.mu.Unlock()
	if broken {
		return nil, fmt.Errorf("decode session: unexpected end of JSON input: %w", domain.ErrStateCorruption)
	}
	return r.SessionRepo.Load(ctx, key)
}

func (r *unreadableRepo) breakNext() {
	r.mu.Lock()
	r.broken = true
	r.mu.Unlock()
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	logger := newTestLogger()
	h := &harness{
		t:        t,
		api:      newMockAPI(),
		bot:      &mockBot{},
		notifier: &mockNotifier{},
		repo:     memory.NewSessionRepo(0),
		locker:   memory.NewLocker(50 * time.Millisecond),
	}
	h.unread = &unreadableRepo{SessionRepo: h.repo}
	sessions := usecase.NewSessionUseCase(h.unread, h.locker, time.Minute, logger)
	p := application.NewPresenter(h.bot, keyTranslator{}, "XOF", logger)
	loc := time.FixedZone("GMT", 0)
	h.d = application.NewDispatcher(sessions, h.api, h.notifier, p, application.Options{
		Currency:     "XOF",
		Location:     loc,
		SupportURL:   "https://support.example.com",
		MobileMoney:  "Flooz 90 00 00 00",
		BankTransfer: "IBAN TG00 0000",
	}, logger).WithClock(func() time.Time { return time.Date(2026, time.March, 14, 10, 0, 0, 0, loc) })
	return h
}

func (h *harness) text(text string) error {
	return h.d.Handle(context.Background(), application.Update{ChatID: testChat, UserID: testUser, Username: "awa", Text: text})
}

func (h *harness) press(data string) error {
	return h.d.Handle(context.Background(), application.Update{ChatID: testChat, UserID: testUser, Username: "awa", CallbackID: "cb-1", CallbackData: data, MessageID: 42})
}

func (h *harness) file(fileID string) error {
	return h.d.Handle(context.Background(), application.Update{ChatID: testChat, UserID: testUser, Username: "awa",
		File: &model.Proof{Kind: model.ProofFile, FileID: fileID, FileKind: "photo"}})
}

func (h *harness) session() *model.Session {
	h.t.Helper()
	s, err := h.repo.Load(context.Background(), model.SessionKey{ChatID: testChat, UserID: testUser})
	if err != nil {
		h.t.Fatalf("load session: %v", err)
	}
	return s
}

func (h *harness) mustText(text string) {
	h.t.Helper()
	if err := h.text(text); err != nil {
		h.t.Fatalf("text %q: unexpected error %v", text, err)
	}
}

func (h *harness) mustPress(data string) {
	h.t.Helper()
	if err := h.press(data); err != nil {
		h.t.Fatalf("callback %q: unexpected error %v", data, err)
	}
}

func (h *harness) expectKey(key string) {
	h.t.Helper()
	if got := h.bot.lastText(); !strings.Contains(got, key) {
		h.t.Fatalf("expected last message to contain %q, got %q", key, got)
	}
}

func (h *harness) expectAwaiting(kind model.AwaitingKind) {
	h.t.Helper()
	if got := h.session().Awaiting.Kind; got != kind {
		h.t.Fatalf("expected awaiting %q, got %q", kind, got)
	}
}
