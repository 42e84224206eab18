package bot

import (
	"context"
	"fmt"
	"strings"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

func countPins(api *fakeAPI) int {
	return api.countRequests(func(c tgbotapi.Chattable) bool {
		_, ok := c.(tgbotapi.PinChatMessageConfig)
		return ok
	})
}

func TestBroadcastSendsToAllGroupsAndPins(t *testing.T) {
	b, api, db := newTestBot(t)
	ctx := context.Background()

	surveyID := createSurvey(t, db, "launch",
		testQuestion{text: "Q", qType: models.TextAnswer},
	)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, db.UpsertGroup(ctx, -i, fmt.Sprintf("Group %d", i)))
	}

	require.NoError(t, b.BroadcastSurvey(ctx, surveyID))

	for i := int64(1); i <= 3; i++ {
		msgs := api.messagesTo(-i)
		require.Len(t, msgs, 1)
		assert.Contains(t, msgs[0], "launch")
		assert.Contains(t, msgs[0], fmt.Sprintf("https://t.me/surveybot_test_bot?start=survey_%d_%d", surveyID, -i))
	}
	assert.Equal(t, 3, countPins(api))
}

func TestBroadcastOneFailureDoesNotStopOthers(t *testing.T) {
	b, api, db := newTestBot(t)
	ctx := context.Background()

	surveyID := createSurvey(t, db, "partial",
		testQuestion{text: "Q", qType: models.TextAnswer},
	)
	for i := int64(1); i <= 3; i++ {
		require.NoError(t, db.UpsertGroup(ctx, -i, fmt.Sprintf("Group %d", i)))
	}
	// The second group's send fails.
	api.failSendOn[2] = true

	require.NoError(t, b.BroadcastSurvey(ctx, surveyID))

	delivered := 0
	for i := int64(1); i <= 3; i++ {
		delivered += len(api.messagesTo(-i))
	}
	assert.Equal(t, 2, delivered, "the two healthy groups still get the survey")
	assert.Equal(t, 2, countPins(api), "failed sends are not pinned")
}

func TestBroadcastDefaultSurveyNotPinned(t *testing.T) {
	b, api, db := newTestBot(t)
	ctx := context.Background()

	surveyID := createSurvey(t, db, models.DefaultSurveyName,
		testQuestion{text: "Q", qType: models.TextAnswer},
	)
	require.NoError(t, db.UpsertGroup(ctx, -1, "Group"))

	require.NoError(t, b.BroadcastSurvey(ctx, surveyID))

	require.Len(t, api.messagesTo(-1), 1)
	assert.Zero(t, countPins(api), "the default survey is never pinned")
}

func TestBroadcastTestModeSuppressed(t *testing.T) {
	b, api, db := newTestBot(t)
	ctx := context.Background()

	surveyID := createSurvey(t, db, "dry run",
		testQuestion{text: "Q", qType: models.TextAnswer},
	)
	require.NoError(t, db.UpsertGroup(ctx, -1, "Group"))
	require.NoError(t, db.SetSetting(ctx, storage.SettingTestMode, "1"))

	require.NoError(t, b.BroadcastSurvey(ctx, surveyID))

	assert.Empty(t, api.messagesTo(-1), "test mode must not send anything")
}

func TestBroadcastUnknownSurvey(t *testing.T) {
	b, _, _ := newTestBot(t)
	err := b.BroadcastSurvey(context.Background(), 12345)
	require.Error(t, err)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.True(t, strings.Contains(err.Error(), "12345"))
}
