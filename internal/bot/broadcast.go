package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

// BroadcastSurvey sends the survey's deep link invite to every known
// group. A failed group does not stop the others; the invite message is
// pinned unless the survey is the default intake one. In test mode the
// broadcast is logged instead of sent.
func (b *Bot) BroadcastSurvey(ctx context.Context, surveyID int64) error {
	survey, err := b.db.GetSurvey(ctx, surveyID)
	if err != nil {
		return fmt.Errorf("failed to load survey %d: %w", surveyID, err)
	}
	groups, err := b.db.ListGroups(ctx)
	if err != nil {
		return fmt.Errorf("failed to list groups: %w", err)
	}

	testMode, err := b.db.GetSetting(ctx, storage.SettingTestMode)
	if err != nil {
		b.logger.Warn("Failed to read test mode, assuming off", zap.Error(err))
	}
	if testMode == "1" {
		for _, g := range groups {
			b.logger.Info("Test mode: broadcast suppressed",
				zap.String("survey", survey.Name), zap.Int64("group_id", g.GroupID), zap.String("group", g.Title))
		}
		return nil
	}

	var failed int
	for _, g := range groups {
		link := surveyDeepLink(b.username, survey.ID, g.GroupID)
		text := fmt.Sprintf("New survey: %s\nTap to take it: %s", survey.Name, link)
		sent, err := b.api.Send(tgbotapi.NewMessage(g.GroupID, text))
		if err != nil {
			failed++
			b.logger.Error("Failed to send survey to group",
				zap.String("survey", survey.Name), zap.Int64("group_id", g.GroupID), zap.Error(err))
			continue
		}
		if survey.Name != models.DefaultSurveyName {
			pin := tgbotapi.PinChatMessageConfig{
				ChatID:              g.GroupID,
				MessageID:           sent.MessageID,
				DisableNotification: true,
			}
			if _, err := b.api.Request(pin); err != nil {
				b.logger.Warn("Failed to pin survey message",
					zap.Int64("group_id", g.GroupID), zap.Error(err))
			}
		}
	}
	b.logger.Info("Survey broadcast finished",
		zap.String("survey", survey.Name), zap.Int("groups", len(groups)), zap.Int("failed", failed))
	return nil
}
