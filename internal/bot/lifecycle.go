package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Start runs the long-polling loop until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started")
	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot stopping")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.HandleUpdate(ctx, update)
		}
	}
}

// Stop shuts down polling and cancels outstanding captcha timers.
func (b *Bot) Stop() {
	b.api.StopReceivingUpdates()
	b.captcha.Shutdown()
}

// SetCommands publishes the bot's command menu to Telegram.
func (b *Bot) SetCommands(commands []tgbotapi.BotCommand) error {
	cfg := tgbotapi.NewSetMyCommands(commands...)
	_, err := b.api.Request(cfg)
	return err
}
