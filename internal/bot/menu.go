package bot

import (
	"context"
	"fmt"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/export"
	"surveybot/internal/storage"
)

// Admin menu button labels. The menu is a reply keyboard, so these strings
// come back as plain message text and are matched verbatim.
const (
	menuCreateSurvey  = "Create survey"
	menuEditSurvey    = "Edit survey"
	menuListSurveys   = "List surveys"
	menuDeleteSurvey  = "Delete survey"
	menuSendResults   = "Send results"
	menuResendSurvey  = "Resend survey"
	menuScheduled     = "Scheduled surveys"
	menuFilterSurveys = "Filter by tag"
	menuWelcome       = "Welcome message"
	menuTestMode      = "Test mode"
	menuAnalytics     = "Analytics"
	menuJoinSurvey    = "Join survey"
	menuExit          = "Exit"
)

func adminMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuCreateSurvey),
			tgbotapi.NewKeyboardButton(menuEditSurvey),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuListSurveys),
			tgbotapi.NewKeyboardButton(menuDeleteSurvey),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuSendResults),
			tgbotapi.NewKeyboardButton(menuResendSurvey),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuScheduled),
			tgbotapi.NewKeyboardButton(menuFilterSurveys),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuWelcome),
			tgbotapi.NewKeyboardButton(menuTestMode),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuAnalytics),
			tgbotapi.NewKeyboardButton(menuJoinSurvey),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuExit),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func (b *Bot) showAdminMenu(userID, chatID int64) {
	b.states.setWizard(userID, &wizardData{Step: stepMenu})
	b.sendReplyKeyboard(chatID, "Admin menu:", adminMenuKeyboard())
}

// handleMenuChoice dispatches a menu button press. Prompt-only items move
// the wizard to the matching step; report items answer in place.
func (b *Bot) handleMenuChoice(ctx context.Context, userID, chatID int64, choice string, w *wizardData) {
	switch choice {
	case menuCreateSurvey:
		w.Step = stepSurveyName
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter a name for the new survey:")

	case menuEditSurvey:
		if !b.promptSurveyList(ctx, chatID, "Which survey do you want to edit?") {
			return
		}
		w.Step = stepEditChooseSurvey
		b.states.setWizard(userID, w)

	case menuListSurveys:
		b.reportSurveys(ctx, chatID)

	case menuDeleteSurvey:
		if !b.promptSurveyList(ctx, chatID, "Which survey do you want to delete?") {
			return
		}
		w.Step = stepDeleteSurvey
		b.states.setWizard(userID, w)

	case menuSendResults:
		if !b.promptSurveyList(ctx, chatID, "Results of which survey?") {
			return
		}
		w.Step = stepSendResults
		b.states.setWizard(userID, w)

	case menuResendSurvey:
		if !b.promptSurveyList(ctx, chatID, "Which survey do you want to send?") {
			return
		}
		w.Step = stepResend
		b.states.setWizard(userID, w)

	case menuScheduled:
		b.reportScheduled(ctx, chatID)

	case menuFilterSurveys:
		w.Step = stepFilter
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter a tag to filter by:")

	case menuWelcome:
		current, err := b.db.GetSetting(ctx, storage.SettingWelcomeMessage)
		if err != nil {
			b.logger.Error("Failed to read welcome message", zap.Error(err))
		}
		w.Step = stepWelcome
		b.states.setWizard(userID, w)
		b.sendText(chatID, fmt.Sprintf("Current welcome message:\n%s\n\nSend a new one ({username} is substituted):", current))

	case menuTestMode:
		b.toggleTestMode(ctx, chatID)

	case menuAnalytics:
		b.reportAnalytics(ctx, chatID)

	case menuJoinSurvey:
		if !b.promptGroupList(ctx, chatID) {
			return
		}
		w.Step = stepJoinChooseGroup
		b.states.setWizard(userID, w)

	case menuExit:
		b.states.clear(userID)
		b.sendRemoveKeyboard(chatID, "Menu closed.")

	default:
		b.sendText(chatID, "Please pick an item from the menu.")
	}
}

// promptSurveyList shows the survey names and returns false when there is
// nothing to pick from.
func (b *Bot) promptSurveyList(ctx context.Context, chatID int64, prompt string) bool {
	surveys, err := b.db.ListSurveys(ctx)
	if err != nil {
		b.logger.Error("Failed to list surveys", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return false
	}
	if len(surveys) == 0 {
		b.sendText(chatID, "There are no surveys yet.")
		return false
	}
	var sb strings.Builder
	sb.WriteString(prompt)
	sb.WriteString(" Send the name.\n")
	for _, s := range surveys {
		sb.WriteString("- " + s.Name + "\n")
	}
	b.sendText(chatID, sb.String())
	return true
}

func (b *Bot) promptGroupList(ctx context.Context, chatID int64) bool {
	groups, err := b.db.ListGroups(ctx)
	if err != nil {
		b.logger.Error("Failed to list groups", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return false
	}
	if len(groups) == 0 {
		b.sendText(chatID, "The bot is not in any groups yet.")
		return false
	}
	var sb strings.Builder
	sb.WriteString("Which group should get a join survey? Send the group ID.\n")
	for _, g := range groups {
		fmt.Fprintf(&sb, "%d: %s\n", g.GroupID, g.Title)
	}
	b.sendText(chatID, sb.String())
	return true
}

func (b *Bot) reportSurveys(ctx context.Context, chatID int64) {
	surveys, err := b.db.ListSurveys(ctx)
	if err != nil {
		b.logger.Error("Failed to list surveys", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if len(surveys) == 0 {
		b.sendText(chatID, "There are no surveys yet.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Surveys:\n")
	for _, s := range surveys {
		fmt.Fprintf(&sb, "- %s", s.Name)
		if s.Anonymous {
			sb.WriteString(" (anonymous)")
		}
		if s.TimeLimit != nil {
			fmt.Fprintf(&sb, ", closes %s", s.TimeLimit.Format(export.DateLayout))
		}
		tags, err := b.db.GetSurveyTags(ctx, s.ID)
		if err == nil && len(tags) > 0 {
			fmt.Fprintf(&sb, " [%s]", strings.Join(tags, ", "))
		}
		sb.WriteString("\n")
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) reportScheduled(ctx context.Context, chatID int64) {
	surveys, err := b.db.ListScheduled(ctx)
	if err != nil {
		b.logger.Error("Failed to list scheduled surveys", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if len(surveys) == 0 {
		b.sendText(chatID, "No surveys are scheduled.")
		return
	}
	var sb strings.Builder
	sb.WriteString("Scheduled surveys:\n")
	for _, s := range surveys {
		fmt.Fprintf(&sb, "- %s at %s\n", s.Name, s.ScheduledTime.Format(export.DateLayout))
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) toggleTestMode(ctx context.Context, chatID int64) {
	current, err := b.db.GetSetting(ctx, storage.SettingTestMode)
	if err != nil {
		b.logger.Error("Failed to read test mode", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	next := "1"
	label := "on"
	if current == "1" {
		next = "0"
		label = "off"
	}
	if err := b.db.SetSetting(ctx, storage.SettingTestMode, next); err != nil {
		b.logger.Error("Failed to set test mode", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	b.sendText(chatID, "Test mode is now "+label+". In test mode broadcasts are logged, not sent.")
}

func (b *Bot) reportAnalytics(ctx context.Context, chatID int64) {
	since := time.Now().AddDate(0, 0, -30)
	active, err := b.db.CountActiveUsers(ctx, since)
	if err != nil {
		b.logger.Error("Failed to count active users", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	groups, err := b.db.ListGroups(ctx)
	if err != nil {
		b.logger.Error("Failed to list groups", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	b.sendText(chatID, fmt.Sprintf("Active users (30 days): %d\nGroups: %d", active, len(groups)))
}
