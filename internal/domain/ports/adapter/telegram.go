package adapter

import "context"

// ParseMode values understood by the bot API.
const (
	ParseModeHTML = "HTML"
)

type InlineButton struct {
	Text string
	Data string
	URL  string
}

// SendMessageParams describes an outgoing message; Rows renders as an inline keyboard.
type SendMessageParams struct {
	ChatID    int64
	Text      string
	ParseMode string
	Rows      [][]InlineButton
}

// EditMessageParams replaces the text and keyboard of a message the bot sent earlier.
type EditMessageParams struct {
	ChatID    int64
	MessageID int
	Text      string
	ParseMode string
	Rows      [][]InlineButton
}

// CallbackAnswer stops the client spinner; Alert shows Text as a modal.
type CallbackAnswer struct {
	CallbackID string
	Text       string
	Alert      bool
}

type TelegramBotAdapter interface {
	SendMessage(ctx context.Context, p SendMessageParams) (int, error)
	EditMessage(ctx context.Context, p EditMessageParams) error
	AnswerCallback(ctx context.Context, a CallbackAnswer) error
}

// AdminAttachment forwards a user-supplied file to admins.
type AdminAttachment struct {
	FileID string
	Kind   string // photo | document
}

// AdminNotifier fans a message out to every configured administrator chat.
type AdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string, file *AdminAttachment) error
}
