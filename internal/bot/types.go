package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/config"
	"surveybot/internal/export"
	"surveybot/internal/storage"
)

// telegramAPI is the slice of the Telegram client the bot uses. Tests
// substitute a recording fake.
type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// Bot wires the Telegram client to storage, the exporter and the captcha
// gate, and owns all conversation state.
type Bot struct {
	api      telegramAPI
	username string
	cfg      *config.Config
	db       storage.Storage
	exporter *export.Sink
	states   *stateStore
	captcha  *captchaGate
	logger   *zap.Logger
}
