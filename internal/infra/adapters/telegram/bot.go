package telegram

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"telegram-invoicing-bot/internal/domain"
	"telegram-invoicing-bot/internal/domain/ports/adapter"
	"telegram-invoicing-bot/internal/infra/metrics"
)

var _ adapter.TelegramBotAdapter = (*Bot)(nil)

// API is the subset of *tgbotapi.BotAPI the adapter uses.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot sends messages through the Bot API. Outbound calls share one token bucket
// so bursts stay under Telegram's global limit.
type Bot struct {
	api      API
	throttle *rate.Limiter
	log      *zerolog.Logger
}

// DefaultSendRate stays below the documented 30 messages per second.
const DefaultSendRate = 25

func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("bot token is empty")
	}
	return tgbotapi.NewBotAPI(token)
}

func NewBot(api API, sendRate float64, logger *zerolog.Logger) *Bot {
	if sendRate <= 0 {
		sendRate = DefaultSendRate
	}
	return &Bot{
		api:      api,
		throttle: rate.NewLimiter(rate.Limit(sendRate), int(sendRate)),
		log:      logger,
	}
}

func (b *Bot) SendMessage(ctx context.Context, p adapter.SendMessageParams) (int, error) {
	msg := tgbotapi.NewMessage(p.ChatID, p.Text)
	msg.ParseMode = p.ParseMode
	msg.DisableWebPagePreview = true
	if kb, ok := keyboard(p.Rows); ok {
		msg.ReplyMarkup = kb
	}
	var sent tgbotapi.Message
	err := b.call(ctx, "sendMessage", func() (err error) {
		sent, err = b.api.Send(msg)
		return err
	})
	if err != nil {
		return 0, err
	}
	return sent.MessageID, nil
}

func (b *Bot) EditMessage(ctx context.Context, p adapter.EditMessageParams) error {
	edit := tgbotapi.NewEditMessageText(p.ChatID, p.MessageID, p.Text)
	edit.ParseMode = p.ParseMode
	edit.DisableWebPagePreview = true
	if kb, ok := keyboard(p.Rows); ok {
		edit.ReplyMarkup = &kb
	}
	err := b.call(ctx, "editMessageText", func() error {
		_, err := b.api.Request(edit)
		return err
	})
	if isNotModified(err) {
		return nil
	}
	return err
}

func (b *Bot) AnswerCallback(ctx context.Context, a adapter.CallbackAnswer) error {
	cfg := tgbotapi.NewCallback(a.CallbackID, a.Text)
	cfg.ShowAlert = a.Alert
	return b.call(ctx, "answerCallbackQuery", func() error {
		_, err := b.api.Request(cfg)
		return err
	})
}

// SendFile forwards a photo or document already stored on Telegram.
func (b *Bot) SendFile(ctx context.Context, chatID int64, file adapter.AdminAttachment, caption string) error {
	var c tgbotapi.Chattable
	switch file.Kind {
	case "photo":
		photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(file.FileID))
		photo.Caption = caption
		c = photo
	default:
		doc := tgbotapi.NewDocument(chatID, tgbotapi.FileID(file.FileID))
		doc.Caption = caption
		c = doc
	}
	return b.call(ctx, "send_"+file.Kind, func() error {
		_, err := b.api.Send(c)
		return err
	})
}

// Command is one entry of the menu shown by Telegram clients.
type Command struct {
	Name        string
	Description string
}

// SetCommands publishes the bot's command menu.
func (b *Bot) SetCommands(ctx context.Context, commands []Command) error {
	list := make([]tgbotapi.BotCommand, 0, len(commands))
	for _, c := range commands {
		list = append(list, tgbotapi.BotCommand{Command: c.Name, Description: c.Description})
	}
	return b.call(ctx, "setMyCommands", func() error {
		_, err := b.api.Request(tgbotapi.NewSetMyCommands(list...))
		return err
	})
}

// SetWebhook registers url with a secret Telegram echoes in X-Telegram-Bot-Api-Secret-Token.
func (b *Bot) SetWebhook(ctx context.Context, url, secret string) error {
	params := tgbotapi.Params{"url": url, "drop_pending_updates": "false"}
	params.AddNonEmpty("secret_token", secret)
	return b.call(ctx, "setWebhook", func() error {
		_, err := b.api.MakeRequest("setWebhook", params)
		return err
	})
}

func (b *Bot) DeleteWebhook(ctx context.Context) error {
	return b.call(ctx, "deleteWebhook", func() error {
		_, err := b.api.Request(tgbotapi.DeleteWebhookConfig{})
		return err
	})
}

// call waits for a send token, runs fn and retries once when Telegram asks to back off.
func (b *Bot) call(ctx context.Context, method string, fn func() error) error {
	for attempt := 0; ; attempt++ {
		if err := b.throttle.Wait(ctx); err != nil {
			return err
		}
		err := fn()
		if err == nil || isNotModified(err) {
			metrics.IncTelegramSend(method, true)
			return err
		}
		if wait, ok := retryAfter(err); ok && attempt == 0 {
			b.log.Warn().Str("method", method).Dur("retry_after", wait).Msg("telegram flood control")
			select {
			case <-time.After(wait):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		metrics.IncTelegramSend(method, false)
		return fmt.Errorf("telegram %s: %v: %w", method, err, domain.ErrTransport)
	}
}

func keyboard(rows [][]adapter.InlineButton) (tgbotapi.InlineKeyboardMarkup, bool) {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			}
		}
		if len(r) > 0 {
			kbRows = append(kbRows, r)
		}
	}
	if len(kbRows) == 0 {
		return tgbotapi.InlineKeyboardMarkup{}, false
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...), true
}

func retryAfter(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if errors.As(err, &tgErr) && tgErr.Code == 429 && tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second, true
	}
	return 0, false
}

func isNotModified(err error) bool {
	return err != nil && strings.Contains(err.Error(), "message is not modified")
}
