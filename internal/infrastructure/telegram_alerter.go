package infrastructure

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

// telegramSender is the slice of *tgbotapi.BotAPI the alerter needs.
type telegramSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramAlerter posts operator alerts (dead letters, device logouts) to a
// single Telegram chat.
type TelegramAlerter struct {
	bot    telegramSender
	chatID int64
	name   string
	mu     sync.Mutex
}

func NewTelegramAlerter(token string, chatID int64) (*TelegramAlerter, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("invalid telegram token: %w", err)
	}
	log.Info().Str("bot", bot.Self.UserName).Int64("chat_id", chatID).Msg("telegram alerts enabled")
	return &TelegramAlerter{bot: bot, chatID: chatID, name: bot.Self.UserName}, nil
}

func (t *TelegramAlerter) Alert(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(text) > 4000 {
		text = text[:4000]
	}
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.DisableWebPagePreview = true

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

// BotName is the @username of the alert bot, used by the health check.
func (t *TelegramAlerter) BotName() string {
	return t.name
}
