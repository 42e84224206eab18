package bot

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/config"
	"surveybot/internal/export"
	"surveybot/internal/storage"
)

// New connects to Telegram and builds a Bot around the given storage.
func New(cfg *config.Config, db storage.Storage, exporter *export.Sink, logger *zap.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot api: %w", err)
	}
	logger.Info("Authorized on Telegram", zap.String("username", api.Self.UserName))
	return newBot(api, api.Self.UserName, cfg, db, exporter, logger), nil
}

// newBot is the injectable constructor used by New and by tests.
func newBot(api telegramAPI, username string, cfg *config.Config, db storage.Storage, exporter *export.Sink, logger *zap.Logger) *Bot {
	b := &Bot{
		api:      api,
		username: username,
		cfg:      cfg,
		db:       db,
		exporter: exporter,
		states:   newStateStore(),
		logger:   logger,
	}
	b.captcha = newCaptchaGate(b, cfg.CaptchaTimeout, logger)
	return b
}

// Username returns the bot's Telegram username, used to build deep links.
func (b *Bot) Username() string {
	return b.username
}
