package bot

import (
	"context"
	"fmt"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveybot/internal/models"
)

func memberUpdate(chatID int64, title, status string) tgbotapi.Update {
	return tgbotapi.Update{
		MyChatMember: &tgbotapi.ChatMemberUpdated{
			Chat: tgbotapi.Chat{ID: chatID, Type: "supergroup", Title: title},
			NewChatMember: tgbotapi.ChatMember{
				Status: status,
				User:   &tgbotapi.User{ID: 1, IsBot: true, UserName: "surveybot_test_bot"},
			},
		},
	}
}

func TestGroupMembershipTracking(t *testing.T) {
	b, _, db := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, memberUpdate(-200, "Ops", "member"))
	groups, err := db.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, models.Group{GroupID: -200, Title: "Ops"}, groups[0])

	b.HandleUpdate(ctx, memberUpdate(-200, "Ops", "kicked"))
	groups, err = db.ListGroups(ctx)
	require.NoError(t, err)
	assert.Empty(t, groups)
}

func TestGroupMessageRefreshesTitle(t *testing.T) {
	b, _, db := newTestBot(t)
	ctx := context.Background()
	require.NoError(t, db.UpsertGroup(ctx, -300, "Old Title"))

	msg := makeMessage(testUserID, -300, "chatter")
	msg.Chat.Type = "group"
	msg.Chat.Title = "New Title"
	b.HandleUpdate(ctx, tgbotapi.Update{Message: msg})

	groups, err := db.ListGroups(ctx)
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "New Title", groups[0].Title)
}

func TestNewMemberGetsJoinSurveyWithoutCaptcha(t *testing.T) {
	b, api, db := newTestBot(t)
	b.cfg.CaptchaEnabled = false
	ctx := context.Background()

	surveyID := createSurvey(t, db, "newcomers",
		testQuestion{text: "Q", qType: models.TextAnswer},
	)
	require.NoError(t, db.UpsertGroup(ctx, -400, "Open Group"))
	require.NoError(t, db.SetJoinSurvey(ctx, -400, surveyID))

	user := tgbotapi.User{ID: testUserID, FirstName: "New", UserName: "newbie"}
	b.HandleUpdate(ctx, joinUpdate(user, -400))

	msgs := api.messagesTo(-400)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Welcome, @newbie!", msgs[0])
	assert.Contains(t, msgs[1], "newcomers")
	assert.Contains(t, msgs[1], "start=survey_")
}

func TestNewMemberGetsDefaultSurveyWhenNoneConfigured(t *testing.T) {
	b, api, db := newTestBot(t)
	b.cfg.CaptchaEnabled = false
	ctx := context.Background()

	intakeID := createSurvey(t, db, models.DefaultSurveyName,
		testQuestion{text: "Who are you?", qType: models.TextAnswer},
	)
	require.NoError(t, db.UpsertGroup(ctx, -401, "Plain Group"))

	user := tgbotapi.User{ID: testUserID, FirstName: "New", UserName: "newbie"}
	b.HandleUpdate(ctx, joinUpdate(user, -401))

	msgs := api.messagesTo(-401)
	require.Len(t, msgs, 2)
	assert.Equal(t, "Welcome, @newbie!", msgs[0])
	assert.Contains(t, msgs[1], models.DefaultSurveyName)
	assert.Contains(t, msgs[1], fmt.Sprintf("start=survey_%d_", intakeID))
}

func TestBotMembersAreNotChallenged(t *testing.T) {
	b, api, db := newTestBot(t)
	ctx := context.Background()

	other := tgbotapi.User{ID: 500, IsBot: true, UserName: "other_bot"}
	b.HandleUpdate(ctx, joinUpdate(other, -400))

	pending, err := db.IsPendingCaptcha(ctx, 500, -400)
	require.NoError(t, err)
	assert.False(t, pending)
	assert.Empty(t, api.messagesTo(-400))
}

func TestStartWithoutPayload(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, tgbotapi.Update{Message: makeCommand(testUserID, testUserID, "/start")})

	_, ok := b.states.get(testUserID)
	assert.False(t, ok)
	msgs := api.messagesTo(testUserID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "survey link")
}

func TestStartWithGarbagePayload(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	b.HandleUpdate(ctx, tgbotapi.Update{Message: makeCommand(testUserID, testUserID, "/start banana")})

	_, ok := b.states.get(testUserID)
	assert.False(t, ok)
	msgs := api.messagesTo(testUserID)
	require.Len(t, msgs, 1)
	assert.Contains(t, msgs[0], "does not look right")
}

func TestStaleCallbackAnswered(t *testing.T) {
	b, api, _ := newTestBot(t)
	ctx := context.Background()

	// No conversation is active, the keyboard is left over.
	b.HandleUpdate(ctx, tgbotapi.Update{
		CallbackQuery: makeCallback(testUserID, testUserID, 3, encodeAnswer(1, 0)),
	})

	answered := api.countRequests(func(c tgbotapi.Chattable) bool {
		cb, ok := c.(tgbotapi.CallbackConfig)
		return ok && cb.Text == "This survey session has ended."
	})
	assert.Equal(t, 1, answered)
}

func TestPanicInHandlerIsRecovered(t *testing.T) {
	b, _, _ := newTestBot(t)

	// A callback update with no From would panic inside the handlers if
	// it were not filtered; either way HandleUpdate must not crash.
	assert.NotPanics(t, func() {
		b.HandleUpdate(context.Background(), tgbotapi.Update{
			CallbackQuery: &tgbotapi.CallbackQuery{ID: "x", Data: "v1|answer|1|0"},
		})
	})
}
