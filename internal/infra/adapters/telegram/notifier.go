package telegram

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/metrics"
	"telegram-invoicing-bot/internal/infra/worker"
)

var _ adapter.AdminNotifier = (*AdminNotifier)(nil)

// FileSender is implemented by Bot; the notifier uses it to forward proofs.
type FileSender interface {
	adapter.TelegramBotAdapter
	SendFile(ctx context.Context, chatID int64, file adapter.AdminAttachment, caption string) error
}

// AdminNotifier delivers one message per admin chat on the worker pool, so a slow or
// blocked admin chat never delays the user's reply.
type AdminNotifier struct {
	bot    FileSender
	pool   *worker.Pool
	admins []int64
	log    *zerolog.Logger
}

func NewAdminNotifier(bot FileSender, pool *worker.Pool, admins []int64, logger *zerolog.Logger) *AdminNotifier {
	return &AdminNotifier{bot: bot, pool: pool, admins: admins, log: logger}
}

// NotifyAdmins queues the deliveries; it fails only when nothing could be queued.
func (n *AdminNotifier) NotifyAdmins(ctx context.Context, text string, file *adapter.AdminAttachment) error {
	if len(n.admins) == 0 {
		n.log.Warn().Msg("no admin chat configured, notification dropped")
		return nil
	}
	var errs []error
	for _, chatID := range n.admins {
		chatID := chatID
		err := n.pool.Submit(func(ctx context.Context) error {
			err := n.deliver(ctx, chatID, text, file)
			metrics.IncAdminNotification(err == nil)
			if err != nil {
				return fmt.Errorf("notify admin %d: %w", chatID, err)
			}
			return nil
		})
		if err != nil {
			metrics.IncAdminNotification(false)
			errs = append(errs, fmt.Errorf("queue admin %d: %w", chatID, err))
		}
	}
	if len(errs) == len(n.admins) {
		return errors.Join(errs...)
	}
	for _, err := range errs {
		n.log.Warn().Err(err).Msg("admin notification skipped")
	}
	return nil
}

func (n *AdminNotifier) deliver(ctx context.Context, chatID int64, text string, file *adapter.AdminAttachment) error {
	if _, err := n.bot.SendMessage(ctx, adapter.SendMessageParams{ChatID: chatID, Text: text, ParseMode: adapter.ParseModeHTML}); err != nil {
		return err
	}
	if file == nil || file.FileID == "" {
		return nil
	}
	return n.bot.SendFile(ctx, chatID, *file, "")
}
