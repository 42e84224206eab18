package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Callback data travels as "v1|action|field|field...". The version prefix
// lets old inline keyboards be rejected cleanly after a format change
// instead of being misparsed.
const callbackVersion = "v1"

type callbackAction string

const (
	actionAnswer  callbackAction = "answer"  // single-choice pick
	actionToggle  callbackAction = "toggle"  // multiple-choice toggle
	actionConfirm callbackAction = "confirm" // multiple-choice submit
	actionCaptcha callbackAction = "captcha" // captcha token pressed
)

var errBadCallback = errors.New("malformed callback data")

// callbackData is the decoded form of an inline keyboard payload.
// OptionIndex is meaningful for answer and toggle; Token for captcha.
type callbackData struct {
	Action      callbackAction
	QuestionID  int64
	OptionIndex int
	ChallengeID string
	Token       string
}

func encodeAnswer(questionID int64, index int) string {
	return fmt.Sprintf("%s|%s|%d|%d", callbackVersion, actionAnswer, questionID, index)
}

func encodeToggle(questionID int64, index int) string {
	return fmt.Sprintf("%s|%s|%d|%d", callbackVersion, actionToggle, questionID, index)
}

func encodeConfirm(questionID int64) string {
	return fmt.Sprintf("%s|%s|%d", callbackVersion, actionConfirm, questionID)
}

func encodeCaptcha(challengeID, token string) string {
	return fmt.Sprintf("%s|%s|%s|%s", callbackVersion, actionCaptcha, challengeID, token)
}

func parseCallback(data string) (callbackData, error) {
	parts := strings.Split(data, "|")
	if len(parts) < 2 || parts[0] != callbackVersion {
		return callbackData{}, errBadCallback
	}
	cd := callbackData{Action: callbackAction(parts[1])}
	switch cd.Action {
	case actionAnswer, actionToggle:
		if len(parts) != 4 {
			return callbackData{}, errBadCallback
		}
		qid, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return callbackData{}, errBadCallback
		}
		idx, err := strconv.Atoi(parts[3])
		if err != nil {
			return callbackData{}, errBadCallback
		}
		cd.QuestionID = qid
		cd.OptionIndex = idx
	case actionConfirm:
		if len(parts) != 3 {
			return callbackData{}, errBadCallback
		}
		qid, err := strconv.ParseInt(parts[2], 10, 64)
		if err != nil {
			return callbackData{}, errBadCallback
		}
		cd.QuestionID = qid
	case actionCaptcha:
		if len(parts) != 4 || parts[2] == "" || parts[3] == "" {
			return callbackData{}, errBadCallback
		}
		cd.ChallengeID = parts[2]
		cd.Token = parts[3]
	default:
		return callbackData{}, errBadCallback
	}
	return cd, nil
}

// parseSurveyPayload decodes a /start deep link payload of the form
// "survey_<surveyID>_<groupID>". The group ID is the chat the broadcast
// went to, so completed responses can be attributed to it.
func parseSurveyPayload(payload string) (surveyID, groupID int64, ok bool) {
	rest, found := strings.CutPrefix(payload, "survey_")
	if !found {
		return 0, 0, false
	}
	parts := strings.SplitN(rest, "_", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	surveyID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	groupID, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	return surveyID, groupID, true
}

func surveyDeepLink(botUsername string, surveyID, groupID int64) string {
	return fmt.Sprintf("https://t.me/%s?start=survey_%d_%d", botUsername, surveyID, groupID)
}
