package telegram

import (
	"context"
	"errors"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/application"
	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/model"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/metrics"
	red "telegram-invoicing-bot/internal/infra/redis"
)

// Handler consumes transport-neutral updates.
type Handler interface {
	Handle(ctx context.Context, u application.Update) error
}

// Limiter is a per-key counter such as the redis fixed-window limiter.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type ReceiverOptions struct {
	Workers int
	// RateLimit is the number of updates a user may send per minute; 0 disables it.
	RateLimit   int
	LimitedText string
}

// ErrReceiverStopped is returned by Enqueue once Stop was called.
var ErrReceiverStopped = errors.New("receiver stopped")

// Receiver feeds updates from polling or the webhook into per-user shards so a
// user's updates are handled in order while different users run in parallel.
type Receiver struct {
	handler Handler
	bot     adapter.TelegramBotAdapter
	limiter Limiter
	opts    ReceiverOptions
	log     *zerolog.Logger

	mu      sync.RWMutex
	stopped bool
	shards  []chan tgbotapi.Update
	wg      sync.WaitGroup
}

func NewReceiver(handler Handler, bot adapter.TelegramBotAdapter, limiter Limiter, opts ReceiverOptions, logger *zerolog.Logger) *Receiver {
	if opts.Workers <= 0 {
		opts.Workers = 5
	}
	shards := make([]chan tgbotapi.Update, opts.Workers)
	for i := range shards {
		shards[i] = make(chan tgbotapi.Update, 32)
	}
	return &Receiver{handler: handler, bot: bot, limiter: limiter, opts: opts, log: logger, shards: shards}
}

// Start launches one worker per shard; they run until Stop or ctx is done.
func (r *Receiver) Start(ctx context.Context) {
	for i, ch := range r.shards {
		r.wg.Add(1)
		go func(id int, ch <-chan tgbotapi.Update) {
			defer r.wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case up, ok := <-ch:
					if !ok {
						return
					}
					r.process(ctx, up)
				}
			}
		}(i, ch)
	}
}

// Stop closes the shards and waits until queued updates are handled.
func (r *Receiver) Stop() {
	r.mu.Lock()
	if !r.stopped {
		r.stopped = true
		for _, ch := range r.shards {
			close(ch)
		}
	}
	r.mu.Unlock()
	r.wg.Wait()
}

// Enqueue routes up to its user's shard, blocking while the shard is full.
func (r *Receiver) Enqueue(ctx context.Context, up tgbotapi.Update) error {
	u, ok := ToUpdate(up)
	if !ok {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.stopped {
		return ErrReceiverStopped
	}
	select {
	case r.shards[shard(u.UserID, len(r.shards))] <- up:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Poll long-polls getUpdates until ctx is cancelled.
func (r *Receiver) Poll(ctx context.Context, api API) error {
	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = 60
	cfg.AllowedUpdates = []string{"message", "callback_query"}
	updates := api.GetUpdatesChan(cfg)
	defer api.StopReceivingUpdates()

	r.log.Info().Int("workers", len(r.shards)).Msg("telegram polling started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			if err := r.Enqueue(ctx, up); err != nil {
				return err
			}
		}
	}
}

func (r *Receiver) process(ctx context.Context, up tgbotapi.Update) {
	u, ok := ToUpdate(up)
	if !ok {
		return
	}
	if !r.allow(ctx, u) {
		return
	}
	if err := r.handler.Handle(ctx, u); err != nil && !errors.Is(err, domain.ErrLockNotAcquired) {
		r.log.Debug().Err(err).Int("update_id", up.UpdateID).Msg("update handled with error")
	}
}

// allow applies the per-user rate limit. Limiter failures and /cancel go through.
func (r *Receiver) allow(ctx context.Context, u application.Update) bool {
	if r.limiter == nil || r.opts.RateLimit <= 0 || u.IsCancel() {
		return true
	}
	ok, err := r.limiter.Allow(ctx, red.UserCommandKey(u.UserID, "update"), r.opts.RateLimit, time.Minute)
	if err != nil {
		r.log.Warn().Err(err).Msg("rate limiter unavailable")
		return true
	}
	if ok {
		return true
	}
	metrics.IncRateLimitTriggered()
	if u.CallbackID != "" {
		_ = r.bot.AnswerCallback(ctx, adapter.CallbackAnswer{CallbackID: u.CallbackID, Text: r.opts.LimitedText, Alert: true})
		return false
	}
	if _, err := r.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: u.ChatID, Text: r.opts.LimitedText}); err != nil {
		r.log.Debug().Err(err).Msg("rate limit notice failed")
	}
	return false
}

func shard(userID int64, n int) int {
	if userID < 0 {
		userID = -userID
	}
	return int(userID % int64(n))
}

// ToUpdate converts a Bot API update; false means the update is not for the bot.
func ToUpdate(up tgbotapi.Update) (application.Update, bool) {
	if q := up.CallbackQuery; q != nil {
		if q.From == nil {
			return application.Update{}, false
		}
		u := application.Update{
			ChatID:       q.From.ID,
			UserID:       q.From.ID,
			Username:     q.From.UserName,
			CallbackID:   q.ID,
			CallbackData: q.Data,
		}
		if q.Message != nil {
			u.MessageID = q.Message.MessageID
			if q.Message.Chat != nil {
				u.ChatID = q.Message.Chat.ID
			}
		}
		return u, true
	}

	m := up.Message
	if m == nil || m.From == nil || m.From.IsBot || m.Chat == nil {
		return application.Update{}, false
	}
	u := application.Update{
		ChatID:   m.Chat.ID,
		UserID:   m.From.ID,
		Username: m.From.UserName,
		Text:     m.Text,
	}
	switch {
	case len(m.Photo) > 0:
		// the last size is the largest
		u.File = &model.Proof{Kind: model.ProofFile, FileID: m.Photo[len(m.Photo)-1].FileID, FileKind: "photo"}
		u.Text = m.Caption
	case m.Document != nil:
		u.File = &model.Proof{Kind: model.ProofFile, FileID: m.Document.FileID, FileKind: "document"}
		u.Text = m.Caption
	case m.Text == "":
		return application.Update{}, false
	}
	return u, true
}
