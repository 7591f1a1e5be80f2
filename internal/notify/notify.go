// Package notify pushes run summaries and review notices to the
// operator's Telegram chat. Notifications are best-effort: the pipeline
// never fails because a message did not go out.
package notify

import (
	"fmt"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Notifier delivers a short operator-facing message.
type Notifier interface {
	Send(text string) error
}

// Telegram sends messages through a bot to one chat.
type Telegram struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram builds a Telegram notifier from the bot token and chat id.
func NewTelegram(token, chatID string) (*Telegram, error) {
	id, err := strconv.ParseInt(chatID, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("telegram chat id %q: %w", chatID, err)
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("init telegram bot: %w", err)
	}
	return &Telegram{bot: bot, chatID: id}, nil
}

// Send delivers one message. HTML mode, so callers can bold the headline.
func (t *Telegram) Send(text string) error {
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"
	_, err := t.bot.Send(msg)
	return err
}

// Nop is the notifier used when Telegram is not configured.
type Nop struct{}

// Send discards the message.
func (Nop) Send(string) error { return nil }
