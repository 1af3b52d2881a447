package infrastructure

import (
	"context"
	"errors"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTelegram struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeTelegram) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, m)
	}
	return tgbotapi.Message{}, f.err
}

func TestTelegramAlert(t *testing.T) {
	fake := &fakeTelegram{}
	a := &TelegramAlerter{bot: fake, chatID: -100123}

	require.NoError(t, a.Alert(context.Background(), "dead letter #4"))
	require.Len(t, fake.sent, 1)
	assert.Equal(t, int64(-100123), fake.sent[0].ChatID)
	assert.Equal(t, "dead letter #4", fake.sent[0].Text)

	require.NoError(t, a.Alert(context.Background(), strings.Repeat("x", 5000)))
	assert.Len(t, fake.sent[1].Text, 4000)
}

func TestTelegramAlertErrors(t *testing.T) {
	a := &TelegramAlerter{bot: &fakeTelegram{err: errors.New("chat not found")}, chatID: 1}
	assert.ErrorContains(t, a.Alert(context.Background(), "x"), "chat not found")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, a.Alert(ctx, "x"), context.Canceled)
}
