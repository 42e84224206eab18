package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCallback(t *testing.T) {
	testCases := []struct {
		name    string
		data    string
		want    callbackData
		wantErr bool
	}{
		{
			name: "answer",
			data: encodeAnswer(7, 2),
			want: callbackData{Action: actionAnswer, QuestionID: 7, OptionIndex: 2},
		},
		{
			name: "toggle",
			data: encodeToggle(12, 0),
			want: callbackData{Action: actionToggle, QuestionID: 12, OptionIndex: 0},
		},
		{
			name: "confirm",
			data: encodeConfirm(3),
			want: callbackData{Action: actionConfirm, QuestionID: 3},
		},
		{
			name: "captcha",
			data: encodeCaptcha("abc-123", "XK2P9"),
			want: callbackData{Action: actionCaptcha, ChallengeID: "abc-123", Token: "XK2P9"},
		},
		{name: "empty", data: "", wantErr: true},
		{name: "wrong version", data: "v0|answer|1|2", wantErr: true},
		{name: "unknown action", data: "v1|explode|1", wantErr: true},
		{name: "answer missing index", data: "v1|answer|1", wantErr: true},
		{name: "answer bad question id", data: "v1|answer|x|2", wantErr: true},
		{name: "confirm extra field", data: "v1|confirm|1|2", wantErr: true},
		{name: "captcha empty token", data: "v1|captcha|abc|", wantErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := parseCallback(tc.data)
			if tc.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestParseSurveyPayload(t *testing.T) {
	testCases := []struct {
		name     string
		payload  string
		surveyID int64
		groupID  int64
		ok       bool
	}{
		{name: "valid", payload: "survey_5_100", surveyID: 5, groupID: 100, ok: true},
		{name: "negative group", payload: "survey_5_-1001234", surveyID: 5, groupID: -1001234, ok: true},
		{name: "wrong prefix", payload: "poll_5_100", ok: false},
		{name: "missing group", payload: "survey_5", ok: false},
		{name: "bad survey id", payload: "survey_x_100", ok: false},
		{name: "bad group id", payload: "survey_5_y", ok: false},
		{name: "empty", payload: "", ok: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			surveyID, groupID, ok := parseSurveyPayload(tc.payload)
			assert.Equal(t, tc.ok, ok)
			if tc.ok {
				assert.Equal(t, tc.surveyID, surveyID)
				assert.Equal(t, tc.groupID, groupID)
			}
		})
	}
}

func TestSurveyDeepLinkRoundTrip(t *testing.T) {
	link := surveyDeepLink("my_bot", 9, -100555)
	assert.Equal(t, "https://t.me/my_bot?start=survey_9_-100555", link)

	surveyID, groupID, ok := parseSurveyPayload("survey_9_-100555")
	require.True(t, ok)
	assert.Equal(t, int64(9), surveyID)
	assert.Equal(t, int64(-100555), groupID)
}
