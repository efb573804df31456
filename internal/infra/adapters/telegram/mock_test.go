//go:build !integration

package telegram

import (
	"context"
	"io"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/application"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// --- Bot API ---

type mockAPI struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
	raw      map[string]tgbotapi.Params
	updates  chan tgbotapi.Update
	stopped  bool

	SendFunc    func(c tgbotapi.Chattable) error
	RequestFunc func(c tgbotapi.Chattable) error
}

func newMockAPI() *mockAPI {
	return &mockAPI{raw: map[string]tgbotapi.Params{}, updates: make(chan tgbotapi.Update, 8)}
}

func (m *mockAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.SendFunc != nil {
		if err := m.SendFunc(c); err != nil {
			return tgbotapi.Message{}, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *mockAPI) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if m.RequestFunc != nil {
		if err := m.RequestFunc(c); err != nil {
			return nil, err
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.raw[endpoint] = params
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (m *mockAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel { return m.updates }

func (m *mockAPI) StopReceivingUpdates() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopped = true
}

// --- Handler, limiter and outbound fakes ---

type mockHandler struct {
	mu      sync.Mutex
	updates []application.Update
	done    chan struct{}

	HandleFunc func(u application.Update) error
}

func newMockHandler() *mockHandler { return &mockHandler{done: make(chan struct{}, 64)} }

func (h *mockHandler) Handle(_ context.Context, u application.Update) error {
	h.mu.Lock()
	h.updates = append(h.updates, u)
	h.mu.Unlock()
	defer func() { h.done <- struct{}{} }()
	if h.HandleFunc != nil {
		return h.HandleFunc(u)
	}
	return nil
}

func (h *mockHandler) handled() []application.Update {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]application.Update(nil), h.updates...)
}

type mockLimiter struct {
	mu     sync.Mutex
	counts map[string]int
	err    error
}

func (l *mockLimiter) Allow(_ context.Context, key string, limit int, _ time.Duration) (bool, error) {
	if l.err != nil {
		return false, l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.counts == nil {
		l.counts = map[string]int{}
	}
	l.counts[key]++
	return l.counts[key] <= limit, nil
}

type mockSender struct {
	mu      sync.Mutex
	texts   map[int64][]string
	files   map[int64][]adapter.AdminAttachment
	answers []adapter.CallbackAnswer

	SendMessageFunc func(p adapter.SendMessageParams) error
}

func newMockSender() *mockSender {
	return &mockSender{texts: map[int64][]string{}, files: map[int64][]adapter.AdminAttachment{}}
}

func (s *mockSender) SendMessage(_ context.Context, p adapter.SendMessageParams) (int, error) {
	if s.SendMessageFunc != nil {
		if err := s.SendMessageFunc(p); err != nil {
			return 0, err
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts[p.ChatID] = append(s.texts[p.ChatID], p.Text)
	return 1, nil
}

func (s *mockSender) EditMessage(context.Context, adapter.EditMessageParams) error { return nil }

func (s *mockSender) AnswerCallback(_ context.Context, a adapter.CallbackAnswer) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers = append(s.answers, a)
	return nil
}

func (s *mockSender) SendFile(_ context.Context, chatID int64, file adapter.AdminAttachment, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[chatID] = append(s.files[chatID], file)
	return nil
}
