package telegram

import (
	"context"
	"sync/atomic"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain/ports/adapter"
)

var (
	_ adapter.TelegramBotAdapter = (*NoopBot)(nil)
	_ adapter.AdminNotifier      = (*NoopBot)(nil)
)

// NoopBot logs outbound calls instead of sending them; used in dev mode without a token.
type NoopBot struct {
	log    *zerolog.Logger
	nextID int64
}

func NewNoopBot(logger *zerolog.Logger) *NoopBot {
	return &NoopBot{log: logger}
}

func (b *NoopBot) SendMessage(ctx context.Context, p adapter.SendMessageParams) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	b.log.Info().Int64("chat_id", p.ChatID).Int("keyboard_rows", len(p.Rows)).Str("text", p.Text).Msg("[noop-telegram] send")
	return int(atomic.AddInt64(&b.nextID, 1)), nil
}

func (b *NoopBot) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	b.log.Info().Int64("chat_id", p.ChatID).Int("message_id", p.MessageID).Str("text", p.Text).Msg("[noop-telegram] edit")
	return ctx.Err()
}

func (b *NoopBot) AnswerCallback(ctx context.Context, a adapter.CallbackAnswer) error {
	if a.Text != "" {
		b.log.Info().Str("callback_id", a.CallbackID).Bool("alert", a.Alert).Str("text", a.Text).Msg("[noop-telegram] answer")
	}
	return ctx.Err()
}

func (b *NoopBot) SendFile(ctx context.Context, chatID int64, file adapter.AdminAttachment, caption string) error {
	b.log.Info().Int64("chat_id", chatID).Str("file_id", file.FileID).Str("kind", file.Kind).Msg("[noop-telegram] file")
	return ctx.Err()
}

func (b *NoopBot) NotifyAdmins(ctx context.Context, text string, file *adapter.AdminAttachment) error {
	b.log.Info().Str("text", text).Bool("attachment", file != nil).Msg("[noop-telegram] admin notification")
	return ctx.Err()
}
