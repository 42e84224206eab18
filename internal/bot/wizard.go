package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/export"
	"surveybot/internal/models"
	"surveybot/internal/storage"
)

const (
	typeSingleChoice   = "Single choice"
	typeMultipleChoice = "Multiple choice"
	typeText           = "Text answer"
	typeDone           = "Done"

	settingAnonymous = "Toggle anonymous"
	settingTimeLimit = "Time limit"
	settingTags      = "Tags"
	settingSchedule  = "Schedule"
	settingSendNow   = "Send now"
	settingDone      = "Finish"

	editActionText    = "Edit text"
	editActionOptions = "Edit options"
	editActionDelete  = "Delete question"
	editActionRename  = "Rename survey"
)

func questionTypeKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(typeSingleChoice),
			tgbotapi.NewKeyboardButton(typeMultipleChoice),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(typeText),
			tgbotapi.NewKeyboardButton(typeDone),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

func settingsKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(settingAnonymous),
			tgbotapi.NewKeyboardButton(settingTimeLimit),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(settingTags),
			tgbotapi.NewKeyboardButton(settingSchedule),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(settingSendNow),
			tgbotapi.NewKeyboardButton(settingDone),
		),
	)
	kb.ResizeKeyboard = true
	return kb
}

// handleWizardText advances the admin wizard with the next text message.
func (b *Bot) handleWizardText(ctx context.Context, msg *tgbotapi.Message, w *wizardData) {
	userID := msg.From.ID
	chatID := msg.Chat.ID
	text := strings.TrimSpace(msg.Text)

	switch w.Step {
	case stepMenu:
		b.handleMenuChoice(ctx, userID, chatID, text, w)

	case stepSurveyName:
		b.wizardSurveyName(ctx, userID, chatID, text, w)

	case stepQuestionType:
		b.wizardQuestionType(ctx, userID, chatID, text, w)

	case stepQuestionText:
		if text == "" {
			b.sendText(chatID, "The question text cannot be empty.")
			return
		}
		w.PendingQuestionText = text
		if w.PendingQuestionType == models.TextAnswer {
			b.wizardPersistQuestion(ctx, userID, chatID, w, nil)
			return
		}
		w.Step = stepQuestionOptions
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter the options, separated by commas:")

	case stepQuestionOptions:
		options := splitOptions(text)
		if len(options) < 2 {
			b.sendText(chatID, "Enter at least two options, separated by commas.")
			return
		}
		b.wizardPersistQuestion(ctx, userID, chatID, w, options)

	case stepSettings:
		b.wizardSettings(ctx, userID, chatID, text, w)

	case stepTimeLimit:
		hours, err := strconv.Atoi(text)
		if err != nil || hours <= 0 {
			b.sendText(chatID, "Enter the time limit as a whole number of hours.")
			return
		}
		limit := time.Now().Add(time.Duration(hours) * time.Hour)
		if err := b.db.SetSurveyTimeLimit(ctx, w.SurveyID, &limit); err != nil {
			b.logger.Error("Failed to set time limit", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		w.Step = stepSettings
		b.states.setWizard(userID, w)
		b.sendReplyKeyboard(chatID, fmt.Sprintf("The survey closes at %s.", limit.Format(export.DateLayout)), settingsKeyboard())

	case stepTags:
		tags := splitOptions(text)
		if len(tags) == 0 {
			b.sendText(chatID, "Enter one or more tags, separated by commas.")
			return
		}
		for _, tag := range tags {
			if err := b.db.AddSurveyTag(ctx, w.SurveyID, tag); err != nil {
				b.logger.Error("Failed to add tag", zap.String("tag", tag), zap.Error(err))
			}
		}
		w.Step = stepSettings
		b.states.setWizard(userID, w)
		b.sendReplyKeyboard(chatID, "Tags saved.", settingsKeyboard())

	case stepSchedule:
		when, err := time.ParseInLocation(export.DateLayout, text, time.Local)
		if err != nil {
			b.sendText(chatID, "Use the format DD.MM.YYYY HH:MM, for example 02.09.2026 14:30.")
			return
		}
		if err := b.db.ScheduleSurvey(ctx, w.SurveyID, &when); err != nil {
			b.logger.Error("Failed to schedule survey", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		w.Step = stepSettings
		b.states.setWizard(userID, w)
		b.sendReplyKeyboard(chatID, fmt.Sprintf("Scheduled for %s.", when.Format(export.DateLayout)), settingsKeyboard())

	case stepWelcome:
		if err := b.db.SetSetting(ctx, storage.SettingWelcomeMessage, text); err != nil {
			b.logger.Error("Failed to set welcome message", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		b.showAdminMenu(userID, chatID)
		b.sendText(chatID, "Welcome message updated.")

	case stepFilter:
		b.wizardFilter(ctx, userID, chatID, text)

	case stepDeleteSurvey:
		b.wizardDeleteSurvey(ctx, userID, chatID, text)

	case stepSendResults:
		b.wizardSendResults(ctx, userID, chatID, text)

	case stepResend:
		b.wizardResend(ctx, userID, chatID, text)

	case stepEditChooseSurvey:
		b.wizardEditChooseSurvey(ctx, userID, chatID, text, w)

	case stepEditChooseQuestion:
		b.wizardEditChooseQuestion(ctx, userID, chatID, text, w)

	case stepEditChooseAction:
		b.wizardEditChooseAction(ctx, userID, chatID, text, w)

	case stepEditQuestionText:
		if err := b.db.UpdateQuestionText(ctx, w.EditQuestionID, text); err != nil {
			b.logger.Error("Failed to update question", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		b.showAdminMenu(userID, chatID)
		b.sendText(chatID, "Question text updated.")

	case stepEditQuestionOptions:
		options := splitOptions(text)
		if len(options) < 2 {
			b.sendText(chatID, "Enter at least two options, separated by commas.")
			return
		}
		if err := b.db.UpdateQuestionOptions(ctx, w.EditQuestionID, options); err != nil {
			b.logger.Error("Failed to update options", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		b.showAdminMenu(userID, chatID)
		b.sendText(chatID, "Options updated.")

	case stepRenameSurvey:
		b.wizardRenameSurvey(ctx, userID, chatID, text, w)

	case stepJoinChooseGroup:
		gid, err := strconv.ParseInt(text, 10, 64)
		if err != nil {
			b.sendText(chatID, "Send the numeric group ID from the list.")
			return
		}
		groups, err := b.db.ListGroups(ctx)
		if err != nil {
			b.logger.Error("Failed to list groups", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		known := false
		for _, g := range groups {
			if g.GroupID == gid {
				known = true
				break
			}
		}
		if !known {
			b.sendText(chatID, "The bot is not in a group with that ID. Pick one from the list.")
			return
		}
		w.JoinGroupID = gid
		w.Step = stepJoinChooseSurvey
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Which survey should new members of this group get? Send the name.")

	case stepJoinChooseSurvey:
		b.wizardJoinChooseSurvey(ctx, userID, chatID, text, w)

	default:
		// Unknown step means the state is stale. Drop back to the menu.
		b.logger.Warn("Unknown wizard step", zap.Int("step", int(w.Step)), zap.Int64("user_id", userID))
		b.showAdminMenu(userID, chatID)
	}
}

func splitOptions(text string) []string {
	parts := strings.Split(text, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (b *Bot) wizardSurveyName(ctx context.Context, userID, chatID int64, name string, w *wizardData) {
	if name == "" {
		b.sendText(chatID, "The survey name cannot be empty.")
		return
	}
	exists, err := b.db.SurveyExists(ctx, name)
	if err != nil {
		b.logger.Error("Failed to check survey name", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if exists {
		b.sendText(chatID, "A survey with that name already exists. Pick another name:")
		return
	}
	id, err := b.db.CreateSurvey(ctx, name)
	if err != nil {
		b.logger.Error("Failed to create survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	w.SurveyID = id
	w.SurveyName = name
	w.Step = stepQuestionType
	b.states.setWizard(userID, w)
	b.sendReplyKeyboard(chatID, "Survey created. Pick the type of the first question:", questionTypeKeyboard())
}

func (b *Bot) wizardQuestionType(ctx context.Context, userID, chatID int64, text string, w *wizardData) {
	switch text {
	case typeSingleChoice:
		w.PendingQuestionType = models.SingleChoice
	case typeMultipleChoice:
		w.PendingQuestionType = models.MultipleChoice
	case typeText:
		w.PendingQuestionType = models.TextAnswer
	case typeDone:
		questions, err := b.db.ListQuestions(ctx, w.SurveyID)
		if err == nil && len(questions) == 0 {
			b.sendText(chatID, "Add at least one question before finishing.")
			return
		}
		w.Step = stepSettings
		b.states.setWizard(userID, w)
		b.sendReplyKeyboard(chatID, "Survey settings:", settingsKeyboard())
		return
	default:
		b.sendText(chatID, "Pick a question type from the keyboard.")
		return
	}
	w.Step = stepQuestionText
	b.states.setWizard(userID, w)
	b.sendText(chatID, "Enter the question text:")
}

// wizardPersistQuestion writes the pending question and loops back to the
// type step. Questions are saved as they are entered, so an abandoned
// wizard leaves the ones already added in place.
func (b *Bot) wizardPersistQuestion(ctx context.Context, userID, chatID int64, w *wizardData, options []string) {
	_, err := b.db.AddQuestion(ctx, w.SurveyID, w.PendingQuestionText, w.PendingQuestionType, options)
	if err != nil {
		b.logger.Error("Failed to add question", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	w.PendingQuestionText = ""
	w.Step = stepQuestionType
	b.states.setWizard(userID, w)
	b.sendReplyKeyboard(chatID, "Question added. Next question type, or Done:", questionTypeKeyboard())
}

func (b *Bot) wizardSettings(ctx context.Context, userID, chatID int64, text string, w *wizardData) {
	switch text {
	case settingAnonymous:
		survey, err := b.db.GetSurvey(ctx, w.SurveyID)
		if err != nil {
			b.logger.Error("Failed to load survey", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		if err := b.db.SetSurveyAnonymous(ctx, w.SurveyID, !survey.Anonymous); err != nil {
			b.logger.Error("Failed to toggle anonymous", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		if survey.Anonymous {
			b.sendText(chatID, "Responses will include the respondent's identity.")
		} else {
			b.sendText(chatID, "The survey is now anonymous.")
		}
	case settingTimeLimit:
		w.Step = stepTimeLimit
		b.states.setWizard(userID, w)
		b.sendText(chatID, "In how many hours should the survey close? Send a number.")
	case settingTags:
		w.Step = stepTags
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter tags, separated by commas:")
	case settingSchedule:
		w.Step = stepSchedule
		b.states.setWizard(userID, w)
		b.sendText(chatID, "When should the survey be sent? Use DD.MM.YYYY HH:MM.")
	case settingSendNow:
		if err := b.BroadcastSurvey(ctx, w.SurveyID); err != nil {
			b.logger.Error("Broadcast failed", zap.Int64("survey_id", w.SurveyID), zap.Error(err))
			b.sendText(chatID, "Broadcast failed, see the logs.")
			return
		}
		b.sendText(chatID, "Survey sent to all groups.")
	case settingDone:
		b.showAdminMenu(userID, chatID)
		b.sendText(chatID, fmt.Sprintf("Survey %q saved.", w.SurveyName))
	default:
		b.sendText(chatID, "Pick a setting from the keyboard.")
	}
}

func (b *Bot) wizardFilter(ctx context.Context, userID, chatID int64, tag string) {
	surveys, err := b.db.FilterSurveys(ctx, tag)
	if err != nil {
		b.logger.Error("Failed to filter surveys", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if len(surveys) == 0 {
		b.sendText(chatID, fmt.Sprintf("No surveys tagged %q.", tag))
	} else {
		var sb strings.Builder
		fmt.Fprintf(&sb, "Surveys tagged %q:\n", tag)
		for _, s := range surveys {
			sb.WriteString("- " + s.Name + "\n")
		}
		b.sendText(chatID, sb.String())
	}
	b.showAdminMenu(userID, chatID)
}

func (b *Bot) wizardDeleteSurvey(ctx context.Context, userID, chatID int64, name string) {
	survey, err := b.db.GetSurveyByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "No survey with that name. Send another name.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if survey.Name == models.DefaultSurveyName {
		b.sendText(chatID, "The default survey cannot be deleted.")
		b.showAdminMenu(userID, chatID)
		return
	}
	if err := b.db.DeleteSurvey(ctx, survey.ID); err != nil {
		b.logger.Error("Failed to delete survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	b.showAdminMenu(userID, chatID)
	b.sendText(chatID, fmt.Sprintf("Survey %q deleted. Its results file, if any, is kept.", survey.Name))
}

func (b *Bot) wizardSendResults(ctx context.Context, userID, chatID int64, name string) {
	survey, err := b.db.GetSurveyByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "No survey with that name. Send another name.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	path, exists := b.exporter.FilePath(survey.Name)
	if !exists {
		b.sendText(chatID, "No one has completed this survey yet.")
		b.showAdminMenu(userID, chatID)
		return
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FilePath(path))
	if _, err := b.api.Send(doc); err != nil {
		b.logger.Error("Failed to send results file", zap.String("path", path), zap.Error(err))
		b.sendText(chatID, "Could not send the results file.")
		return
	}
	b.showAdminMenu(userID, chatID)
}

func (b *Bot) wizardResend(ctx context.Context, userID, chatID int64, name string) {
	survey, err := b.db.GetSurveyByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "No survey with that name. Send another name.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if err := b.BroadcastSurvey(ctx, survey.ID); err != nil {
		b.logger.Error("Broadcast failed", zap.Int64("survey_id", survey.ID), zap.Error(err))
		b.sendText(chatID, "Broadcast failed, see the logs.")
		return
	}
	b.showAdminMenu(userID, chatID)
	b.sendText(chatID, fmt.Sprintf("Survey %q sent to all groups.", survey.Name))
}

func (b *Bot) wizardEditChooseSurvey(ctx context.Context, userID, chatID int64, name string, w *wizardData) {
	survey, err := b.db.GetSurveyByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "No survey with that name. Send another name.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	questions, err := b.db.ListQuestions(ctx, survey.ID)
	if err != nil {
		b.logger.Error("Failed to load questions", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	w.EditSurveyID = survey.ID
	w.SurveyName = survey.Name
	w.Step = stepEditChooseQuestion
	b.states.setWizard(userID, w)

	var sb strings.Builder
	sb.WriteString("Send the number of the question to edit, or \"" + editActionRename + "\".\n")
	for i, q := range questions {
		fmt.Fprintf(&sb, "%d. [%s] %s\n", i+1, q.Type, q.Text)
	}
	b.sendText(chatID, sb.String())
}

func (b *Bot) wizardEditChooseQuestion(ctx context.Context, userID, chatID int64, text string, w *wizardData) {
	if text == editActionRename {
		w.Step = stepRenameSurvey
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter the new survey name:")
		return
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		b.sendText(chatID, "Send a question number or \""+editActionRename+"\".")
		return
	}
	questions, err := b.db.ListQuestions(ctx, w.EditSurveyID)
	if err != nil {
		b.logger.Error("Failed to load questions", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if n < 1 || n > len(questions) {
		b.sendText(chatID, "No question with that number.")
		return
	}
	w.EditQuestionID = questions[n-1].ID
	w.Step = stepEditChooseAction
	b.states.setWizard(userID, w)
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(editActionText),
			tgbotapi.NewKeyboardButton(editActionOptions),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(editActionDelete),
		),
	)
	kb.ResizeKeyboard = true
	b.sendReplyKeyboard(chatID, "What do you want to change?", kb)
}

func (b *Bot) wizardEditChooseAction(ctx context.Context, userID, chatID int64, text string, w *wizardData) {
	switch text {
	case editActionText:
		w.Step = stepEditQuestionText
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter the new question text:")
	case editActionOptions:
		w.Step = stepEditQuestionOptions
		b.states.setWizard(userID, w)
		b.sendText(chatID, "Enter the new options, separated by commas:")
	case editActionDelete:
		if err := b.db.DeleteQuestion(ctx, w.EditQuestionID); err != nil {
			b.logger.Error("Failed to delete question", zap.Error(err))
			b.sendText(chatID, "Something went wrong, please try again later.")
			return
		}
		b.showAdminMenu(userID, chatID)
		b.sendText(chatID, "Question deleted.")
	default:
		b.sendText(chatID, "Pick an action from the keyboard.")
	}
}

func (b *Bot) wizardRenameSurvey(ctx context.Context, userID, chatID int64, newName string, w *wizardData) {
	if newName == "" {
		b.sendText(chatID, "The survey name cannot be empty.")
		return
	}
	if w.SurveyName == models.DefaultSurveyName {
		b.sendText(chatID, "The default survey cannot be renamed.")
		b.showAdminMenu(userID, chatID)
		return
	}
	exists, err := b.db.SurveyExists(ctx, newName)
	if err != nil {
		b.logger.Error("Failed to check survey name", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if exists {
		b.sendText(chatID, "A survey with that name already exists. Pick another name:")
		return
	}
	oldName := w.SurveyName
	if err := b.db.RenameSurvey(ctx, w.EditSurveyID, newName); err != nil {
		b.logger.Error("Failed to rename survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	// Keep the results file in step with the survey name.
	if err := b.exporter.Rename(oldName, newName); err != nil {
		b.logger.Error("Failed to rename results file",
			zap.String("old", oldName), zap.String("new", newName), zap.Error(err))
	}
	b.showAdminMenu(userID, chatID)
	b.sendText(chatID, fmt.Sprintf("Survey renamed to %q.", newName))
}

func (b *Bot) wizardJoinChooseSurvey(ctx context.Context, userID, chatID int64, name string, w *wizardData) {
	survey, err := b.db.GetSurveyByName(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "No survey with that name. Send another name.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if err := b.db.SetJoinSurvey(ctx, w.JoinGroupID, survey.ID); err != nil {
		b.logger.Error("Failed to set join survey", zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	b.showAdminMenu(userID, chatID)
	b.sendText(chatID, fmt.Sprintf("New members of the group will now get the %q survey.", survey.Name))
}
