package application

import (
	"strings"

	"telegram-invoicing-bot/internal/domain/model"
)

// UpdateKind classifies an inbound update for routing and metrics.
type UpdateKind string

const (
	KindCommand  UpdateKind = "command"
	KindText     UpdateKind = "text"
	KindCallback UpdateKind = "callback"
	KindFile     UpdateKind = "file"
)

// Update is the transport-neutral form of one Telegram update.
type Update struct {
	ChatID   int64
	UserID   int64
	Username string

	Text string

	// Callback fields; MessageID is the message carrying the pressed keyboard.
	CallbackID   string
	CallbackData string
	MessageID    int

	// File is set for photo or document uploads.
	File *model.Proof
}

func (u Update) Kind() UpdateKind {
	switch {
	case u.CallbackID != "":
		return KindCallback
	case u.File != nil:
		return KindFile
	case strings.HasPrefix(strings.TrimSpace(u.Text), "/"):
		return KindCommand
	default:
		return KindText
	}
}

func (u Update) Key() model.SessionKey {
	return model.SessionKey{ChatID: u.ChatID, UserID: u.UserID}
}

// IsCancel reports a /cancel command, which is never refused as busy or rate limited.
func (u Update) IsCancel() bool {
	name, _ := u.Command()
	return u.CallbackID == "" && name == "cancel"
}

// Command splits "/cmd@bot args" into "cmd" and "args".
func (u Update) Command() (name, args string) {
	text := strings.TrimSpace(u.Text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text[1:], " ")
	if at := strings.IndexByte(head, '@'); at >= 0 {
		head = head[:at]
	}
	return strings.ToLower(head), strings.TrimSpace(rest)
}
