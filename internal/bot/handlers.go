package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

// HandleUpdate routes a single Telegram update. A panic in a handler is
// recovered and logged so one bad update cannot take the bot down.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Recovered from panic in update handler",
				zap.Any("panic", r), zap.Int("update_id", update.UpdateID))
		}
	}()

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.MyChatMember != nil:
		b.handleMyChatMember(ctx, update.MyChatMember)
	case update.Message != nil:
		b.handleMessage(ctx, update.Message)
	}
}

// handleMyChatMember tracks the bot's own membership so the group list
// stays current without any manual registration step.
func (b *Bot) handleMyChatMember(ctx context.Context, upd *tgbotapi.ChatMemberUpdated) {
	if !isGroupChat(upd.Chat.Type) {
		return
	}
	switch upd.NewChatMember.Status {
	case "member", "administrator":
		if err := b.db.UpsertGroup(ctx, upd.Chat.ID, upd.Chat.Title); err != nil {
			b.logger.Error("Failed to register group", zap.Int64("group_id", upd.Chat.ID), zap.Error(err))
			return
		}
		b.logger.Info("Joined group", zap.Int64("group_id", upd.Chat.ID), zap.String("title", upd.Chat.Title))
	case "left", "kicked":
		if err := b.db.RemoveGroup(ctx, upd.Chat.ID); err != nil {
			b.logger.Error("Failed to remove group", zap.Int64("group_id", upd.Chat.ID), zap.Error(err))
			return
		}
		b.logger.Info("Left group", zap.Int64("group_id", upd.Chat.ID))
	}
}

func isGroupChat(chatType string) bool {
	return chatType == "group" || chatType == "supergroup"
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) {
	if msg.From == nil {
		return
	}
	if err := b.db.TouchUser(ctx, msg.From.ID, msg.From.UserName); err != nil {
		b.logger.Debug("Failed to record user activity", zap.Error(err))
	}

	if isGroupChat(msg.Chat.Type) {
		b.handleGroupMessage(ctx, msg)
		return
	}

	if msg.IsCommand() {
		b.handleCommand(ctx, msg)
		return
	}

	state, ok := b.states.get(msg.From.ID)
	if !ok {
		b.sendText(msg.Chat.ID, "Use /start to take a survey, or /admin if you manage this bot.")
		return
	}
	switch state.Flow {
	case flowWizard:
		b.handleWizardText(ctx, msg, state.Wizard)
	case flowTake:
		b.handleTakeText(ctx, msg, state.Take)
	}
}

func (b *Bot) handleGroupMessage(ctx context.Context, msg *tgbotapi.Message) {
	if len(msg.NewChatMembers) > 0 {
		b.handleNewMembers(ctx, msg)
		return
	}

	// Keep the group row fresh; titles change.
	if err := b.db.UpsertGroup(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
		b.logger.Debug("Failed to refresh group", zap.Int64("group_id", msg.Chat.ID), zap.Error(err))
	}

	// Users who have not passed the captcha may not talk yet.
	pending, err := b.db.IsPendingCaptcha(ctx, msg.From.ID, msg.Chat.ID)
	if err != nil {
		b.logger.Error("Failed to check pending captcha", zap.Error(err))
		return
	}
	if pending {
		b.deleteMessage(msg.Chat.ID, msg.MessageID)
		b.sendText(msg.Chat.ID, fmt.Sprintf("%s, solve the captcha first.", displayName(msg.From)))
	}
}

func (b *Bot) handleNewMembers(ctx context.Context, msg *tgbotapi.Message) {
	if err := b.db.UpsertGroup(ctx, msg.Chat.ID, msg.Chat.Title); err != nil {
		b.logger.Error("Failed to register group", zap.Int64("group_id", msg.Chat.ID), zap.Error(err))
	}

	for i := range msg.NewChatMembers {
		user := &msg.NewChatMembers[i]
		if user.IsBot {
			continue
		}
		if b.cfg.CaptchaEnabled {
			if err := b.captcha.Issue(ctx, user, msg.Chat.ID); err != nil {
				b.logger.Error("Failed to issue captcha",
					zap.Int64("user_id", user.ID), zap.Int64("chat_id", msg.Chat.ID), zap.Error(err))
			}
			continue
		}
		b.greetVerifiedMember(ctx, user, msg.Chat.ID)
	}
}

// greetVerifiedMember welcomes a member who passed the gate (or joined a
// group without one) and offers the group's join survey if configured.
func (b *Bot) greetVerifiedMember(ctx context.Context, user *tgbotapi.User, chatID int64) {
	welcome, err := b.db.GetSetting(ctx, storage.SettingWelcomeMessage)
	if err != nil {
		b.logger.Warn("Failed to read welcome message", zap.Error(err))
	}
	if welcome != "" {
		b.sendText(chatID, strings.ReplaceAll(welcome, "{username}", displayName(user)))
	}

	var survey *models.Survey
	surveyID, err := b.db.GetJoinSurvey(ctx, chatID)
	switch {
	case err == nil:
		survey, err = b.db.GetSurvey(ctx, surveyID)
	case errors.Is(err, storage.ErrNotFound):
		// Groups without an explicit join survey get the onboarding one.
		survey, err = b.db.GetSurveyByName(ctx, models.DefaultSurveyName)
	default:
		b.logger.Error("Failed to read join survey", zap.Int64("chat_id", chatID), zap.Error(err))
		return
	}
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			b.logger.Error("Failed to load join survey", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return
	}
	link := surveyDeepLink(b.username, survey.ID, chatID)
	b.sendText(chatID, fmt.Sprintf("%s, please take our %q survey: %s", displayName(user), survey.Name, link))
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	// Commands always win over an in-progress conversation.
	b.states.clear(msg.From.ID)

	switch msg.Command() {
	case "start":
		payload := msg.CommandArguments()
		if payload == "" {
			b.sendText(msg.Chat.ID, "Hi! Open a survey link from one of your groups to get started.")
			return
		}
		surveyID, groupID, ok := parseSurveyPayload(payload)
		if !ok {
			b.sendText(msg.Chat.ID, "That link does not look right.")
			return
		}
		b.startSurvey(ctx, msg.From, msg.Chat.ID, surveyID, groupID)

	case "admin":
		if !b.cfg.IsAdmin(msg.From.ID) {
			b.sendText(msg.Chat.ID, "This command is for administrators only.")
			return
		}
		b.showAdminMenu(msg.From.ID, msg.Chat.ID)

	case "cancel":
		b.sendRemoveKeyboard(msg.Chat.ID, "Cancelled.")

	case "help":
		b.sendText(msg.Chat.ID, "Open a survey link from a group to take a survey. Admins: /admin.")

	default:
		b.sendText(msg.Chat.ID, "Unknown command. Try /help.")
	}
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) {
	if cb.Message == nil || cb.From == nil {
		return
	}
	cd, err := parseCallback(cb.Data)
	if err != nil {
		b.answerCallback(cb.ID, "This button has expired.")
		return
	}

	if cd.Action == actionCaptcha {
		b.handleCaptchaCallback(ctx, cb, cd)
		return
	}

	state, ok := b.states.get(cb.From.ID)
	if !ok || state.Flow != flowTake {
		b.answerCallback(cb.ID, "This survey session has ended.")
		return
	}
	b.handleTakeCallback(ctx, cb, cd, state.Take)
}

func (b *Bot) handleCaptchaCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData) {
	chatID := cb.Message.Chat.ID
	passed, live := b.captcha.Solve(ctx, cb.From.ID, chatID, cd.ChallengeID, cd.Token)
	if !live {
		// Someone else's captcha, or an already resolved one.
		b.answerCallback(cb.ID, "This captcha is not for you.")
		return
	}
	if !passed {
		b.answerCallback(cb.ID, "Wrong code, try again.")
		return
	}
	b.answerCallback(cb.ID, "Verified!")
	b.deleteMessage(chatID, cb.Message.MessageID)
	b.greetVerifiedMember(ctx, cb.From, chatID)
}
