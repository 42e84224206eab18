package bot

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

// startSurvey begins a survey-taking session in the user's private chat.
// groupID attributes the responses to the group the invite came from; it
// is zero when the survey was started outside any group context.
func (b *Bot) startSurvey(ctx context.Context, user *tgbotapi.User, chatID, surveyID, groupID int64) {
	// Unverified members cannot sidestep the gate through the deep link.
	if groupID != 0 {
		pendingChats, err := b.db.PendingChatsForUser(ctx, user.ID)
		if err != nil {
			b.logger.Error("Failed to check pending captchas", zap.Int64("user_id", user.ID), zap.Error(err))
		}
		for _, pending := range pendingChats {
			if pending == groupID {
				b.sendText(chatID, "Please solve the captcha in the group first.")
				return
			}
		}
	}

	survey, err := b.db.GetSurvey(ctx, surveyID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			b.sendText(chatID, "This survey no longer exists.")
			return
		}
		b.logger.Error("Failed to load survey", zap.Int64("survey_id", surveyID), zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if survey.Expired(time.Now()) {
		b.sendText(chatID, "This survey is closed.")
		return
	}
	questions, err := b.db.ListQuestions(ctx, surveyID)
	if err != nil {
		b.logger.Error("Failed to load questions", zap.Int64("survey_id", surveyID), zap.Error(err))
		b.sendText(chatID, "Something went wrong, please try again later.")
		return
	}
	if len(questions) == 0 {
		b.sendText(chatID, "This survey has no questions yet.")
		return
	}

	groupName := ""
	if groupID != 0 {
		groups, err := b.db.ListGroups(ctx)
		if err == nil {
			for _, g := range groups {
				if g.GroupID == groupID {
					groupName = g.Title
					break
				}
			}
		}
	}

	t := &takeData{
		Survey:    *survey,
		Questions: questions,
		GroupID:   groupID,
		GroupName: groupName,
		Selected:  make(map[int]bool),
	}
	b.states.setTake(user.ID, t)
	b.sendText(chatID, fmt.Sprintf("Survey: %s. %d question(s).", survey.Name, len(questions)))
	b.sendCurrentQuestion(chatID, t)
}

func (b *Bot) sendCurrentQuestion(chatID int64, t *takeData) {
	q := t.Questions[t.Index]
	switch q.Type {
	case models.TextAnswer:
		b.sendText(chatID, q.Text)
	case models.SingleChoice:
		rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options))
		for i, opt := range q.Options {
			rows = append(rows, tgbotapi.NewInlineKeyboardRow(
				tgbotapi.NewInlineKeyboardButtonData(opt, encodeAnswer(q.ID, i)),
			))
		}
		b.sendWithKeyboard(chatID, q.Text, tgbotapi.NewInlineKeyboardMarkup(rows...))
	case models.MultipleChoice:
		b.sendWithKeyboard(chatID, q.Text, multiChoiceKeyboard(q, t.Selected))
	}
}

func multiChoiceKeyboard(q models.Question, selected map[int]bool) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(q.Options)+1)
	for i, opt := range q.Options {
		label := opt
		if selected[i] {
			label = "✅ " + opt
		}
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(label, encodeToggle(q.ID, i)),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("Confirm", encodeConfirm(q.ID)),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// handleTakeText consumes a free-text answer for the current question.
func (b *Bot) handleTakeText(ctx context.Context, msg *tgbotapi.Message, t *takeData) {
	q := t.Questions[t.Index]
	if q.Type != models.TextAnswer {
		b.sendText(msg.Chat.ID, "Please answer using the buttons above.")
		return
	}
	b.recordAnswer(ctx, msg.From, msg.Chat.ID, t, q, msg.Text)
}

// handleTakeCallback consumes answer/toggle/confirm presses.
func (b *Bot) handleTakeCallback(ctx context.Context, cb *tgbotapi.CallbackQuery, cd callbackData, t *takeData) {
	chatID := cb.Message.Chat.ID
	q := t.Questions[t.Index]
	if cd.QuestionID != q.ID {
		b.answerCallback(cb.ID, "That question is no longer active.")
		return
	}

	switch cd.Action {
	case actionAnswer:
		if q.Type != models.SingleChoice {
			b.answerCallback(cb.ID, "")
			return
		}
		if cd.OptionIndex < 0 || cd.OptionIndex >= len(q.Options) {
			b.answerCallback(cb.ID, "Option not found.")
			return
		}
		b.answerCallback(cb.ID, "")
		b.recordAnswer(ctx, cb.From, chatID, t, q, q.Options[cd.OptionIndex])

	case actionToggle:
		if q.Type != models.MultipleChoice {
			b.answerCallback(cb.ID, "")
			return
		}
		if cd.OptionIndex < 0 || cd.OptionIndex >= len(q.Options) {
			b.answerCallback(cb.ID, "Option not found.")
			return
		}
		t.Selected[cd.OptionIndex] = !t.Selected[cd.OptionIndex]
		b.answerCallback(cb.ID, "")
		edit := tgbotapi.NewEditMessageReplyMarkup(chatID, cb.Message.MessageID, multiChoiceKeyboard(q, t.Selected))
		if _, err := b.api.Send(edit); err != nil {
			b.logger.Debug("Failed to update keyboard", zap.Error(err))
		}

	case actionConfirm:
		if q.Type != models.MultipleChoice {
			b.answerCallback(cb.ID, "")
			return
		}
		var picked []int
		for i, on := range t.Selected {
			if on {
				picked = append(picked, i)
			}
		}
		if len(picked) == 0 {
			b.answerCallback(cb.ID, "Select at least one option.")
			return
		}
		sort.Ints(picked)
		parts := make([]string, 0, len(picked))
		for _, i := range picked {
			parts = append(parts, q.Options[i])
		}
		b.answerCallback(cb.ID, "")
		b.recordAnswer(ctx, cb.From, chatID, t, q, strings.Join(parts, ", "))
	}
}

// recordAnswer stores the answer and advances the session, finishing the
// survey when the last question was answered.
func (b *Bot) recordAnswer(ctx context.Context, user *tgbotapi.User, chatID int64, t *takeData, q models.Question, answer string) {
	t.Answers = append(t.Answers, models.Response{Question: q.Text, Answer: answer})
	t.Index++
	t.Selected = make(map[int]bool)
	if t.Index < len(t.Questions) {
		b.sendCurrentQuestion(chatID, t)
		return
	}
	b.finishSurvey(ctx, user, chatID, t)
}

func (b *Bot) finishSurvey(ctx context.Context, user *tgbotapi.User, chatID int64, t *takeData) {
	b.states.clear(user.ID)

	groupID, groupName := "private", "private"
	if t.GroupID != 0 {
		groupID = strconv.FormatInt(t.GroupID, 10)
		groupName = t.GroupName
	}
	respondent := models.Respondent{
		UserID:    user.ID,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Username:  user.UserName,
		GroupID:   groupID,
		GroupName: groupName,
	}
	if err := b.exporter.Append(t.Survey.Name, respondent, t.Survey.Anonymous, time.Now(), t.Answers); err != nil {
		b.logger.Error("Failed to write survey results",
			zap.String("survey", t.Survey.Name), zap.Int64("user_id", user.ID), zap.Error(err))
		b.sendText(chatID, "Your answers could not be saved, please try again later.")
		return
	}
	if err := b.db.TouchUser(ctx, user.ID, user.UserName); err != nil {
		b.logger.Warn("Failed to record user activity", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	b.sendText(chatID, "Thank you, your answers have been recorded!")
	b.logger.Info("Survey completed",
		zap.String("survey", t.Survey.Name), zap.Int64("user_id", user.ID), zap.Int("answers", len(t.Answers)))
}
