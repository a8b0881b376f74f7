package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

// Telegram sends callback queries without a Message once the originating
// message is older than 48 hours. Tapping such a stale keyboard must not take
// down the update loop.
func TestCallbackWithoutMessageIsIgnored(t *testing.T) {
	b := &Bot{log: zerolog.Nop()}

	assert.NotPanics(t, func() {
		b.handleCallback(&tgbotapi.CallbackQuery{ID: "stale", Data: "eta_never"})
	})
}
