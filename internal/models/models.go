package models

import "time"

// QuestionType enumerates the supported answer modes for a question.
type QuestionType string

const (
	SingleChoice   QuestionType = "single_choice"
	MultipleChoice QuestionType = "multiple_choice"
	TextAnswer     QuestionType = "text"
)

// DefaultSurveyName is the onboarding survey seeded at first run.
// It is sent to members joining a group that has no explicit join survey,
// and its broadcast messages are never pinned.
const DefaultSurveyName = "intake"

// Survey is a named ordered set of questions deliverable to groups.
type Survey struct {
	ID            int64
	Name          string
	Anonymous     bool
	TimeLimit     *time.Time
	ScheduledTime *time.Time
	CreatedAt     time.Time
}

// Expired reports whether the survey's time limit has passed.
func (s *Survey) Expired(now time.Time) bool {
	return s.TimeLimit != nil && now.After(*s.TimeLimit)
}

// Question belongs to a survey. Options is empty for text questions.
// Question order within a survey is insertion order (id ascending).
type Question struct {
	ID       int64
	SurveyID int64
	Text     string
	Type     QuestionType
	Options  []string
}

// Group is a chat the bot has observed activity in.
type Group struct {
	GroupID int64
	Title   string
}

// PendingCaptcha marks a user restricted in a chat until verified.
type PendingCaptcha struct {
	UserID int64
	ChatID int64
}

// Response is one answered question, accumulated in conversation state
// during a take-survey flow and flushed to the export sink on completion.
type Response struct {
	Question string
	Answer   string
}

// Respondent carries the metadata written alongside exported responses.
// GroupID and GroupName are "private" when the survey was started outside
// a group context.
type Respondent struct {
	UserID    int64
	FirstName string
	LastName  string
	Username  string
	GroupID   string
	GroupName string
}
