package bot

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"surveybot/internal/plugin"
)

// The bot's features are registered as modules so the command menu and
// startup order live in one place.

type surveyModule struct{ bot *Bot }

func NewSurveyModule(b *Bot) plugin.Module { return &surveyModule{bot: b} }

func (m *surveyModule) Name() string { return "surveys" }

func (m *surveyModule) Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "start", Description: "Take a survey"},
		{Command: "cancel", Description: "Cancel the current conversation"},
		{Command: "help", Description: "How to use this bot"},
	}
}

func (m *surveyModule) OnLoad() error   { return nil }
func (m *surveyModule) OnUnload() error { return nil }

type adminModule struct{ bot *Bot }

func NewAdminModule(b *Bot) plugin.Module { return &adminModule{bot: b} }

func (m *adminModule) Name() string { return "admin" }

func (m *adminModule) Commands() []tgbotapi.BotCommand {
	return []tgbotapi.BotCommand{
		{Command: "admin", Description: "Open the admin menu"},
	}
}

func (m *adminModule) OnLoad() error   { return nil }
func (m *adminModule) OnUnload() error { return nil }

type captchaModule struct{ bot *Bot }

func NewCaptchaModule(b *Bot) plugin.Module { return &captchaModule{bot: b} }

func (m *captchaModule) Name() string { return "captcha" }

func (m *captchaModule) Commands() []tgbotapi.BotCommand { return nil }

func (m *captchaModule) OnLoad() error { return nil }

func (m *captchaModule) OnUnload() error {
	m.bot.captcha.Shutdown()
	return nil
}
