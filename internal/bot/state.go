package bot

import (
	"sync"

	"surveybot/internal/models"
)

// conversationFlow tags which kind of conversation a user is in. The
// per-flow payload lives in exactly one of the data pointers below, so a
// handler can never read wizard fields while the user is taking a survey.
type conversationFlow int

const (
	flowNone conversationFlow = iota
	flowWizard
	flowTake
)

type wizardStep int

const (
	stepMenu wizardStep = iota
	stepSurveyName
	stepQuestionType
	stepQuestionText
	stepQuestionOptions
	stepSettings
	stepTimeLimit
	stepTags
	stepSchedule
	stepWelcome
	stepFilter
	stepEditChooseSurvey
	stepEditChooseQuestion
	stepEditChooseAction
	stepEditQuestionText
	stepEditQuestionOptions
	stepRenameSurvey
	stepJoinChooseGroup
	stepJoinChooseSurvey
	stepDeleteSurvey
	stepSendResults
	stepResend
)

// wizardData carries the admin wizard's in-progress state. SurveyID is set
// as soon as the survey row exists; pending question fields hold a question
// between the type/text steps and its persist.
type wizardData struct {
	Step wizardStep

	SurveyID   int64
	SurveyName string

	PendingQuestionType models.QuestionType
	PendingQuestionText string

	// Edit flow targets.
	EditSurveyID   int64
	EditQuestionID int64

	// Join-survey flow: group picked, waiting for survey.
	JoinGroupID int64
}

// takeData carries a survey-taking session. Selected holds the toggled
// option indexes of the current multiple-choice question.
type takeData struct {
	Survey    models.Survey
	Questions []models.Question
	Index     int
	GroupID   int64
	GroupName string
	Answers   []models.Response
	Selected  map[int]bool
}

type conversationState struct {
	Flow   conversationFlow
	Wizard *wizardData
	Take   *takeData
}

// stateStore holds per-user conversation state. Conversations are
// per-user, not per-chat: an admin mid-wizard in private chat stays
// mid-wizard regardless of group traffic.
type stateStore struct {
	mu     sync.RWMutex
	states map[int64]conversationState
}

func newStateStore() *stateStore {
	return &stateStore{states: make(map[int64]conversationState)}
}

func (s *stateStore) get(userID int64) (conversationState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.states[userID]
	return st, ok
}

func (s *stateStore) setWizard(userID int64, w *wizardData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = conversationState{Flow: flowWizard, Wizard: w}
}

func (s *stateStore) setTake(userID int64, t *takeData) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.states[userID] = conversationState{Flow: flowTake, Take: t}
}

func (s *stateStore) clear(userID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.states, userID)
}
