package storage

import (
	"context"
	"errors"
	"time"

	"surveybot/internal/models"
)

// ErrNotFound is returned when a survey, question or group no longer exists.
var ErrNotFound = errors.New("not found")

// Setting keys stored in the settings table.
const (
	SettingWelcomeMessage = "welcome_message"
	SettingTestMode       = "test_mode"
)

// Storage defines the interface for data storage operations
type Storage interface {
	// Survey operations
	CreateSurvey(ctx context.Context, name string) (int64, error)
	SurveyExists(ctx context.Context, name string) (bool, error)
	GetSurvey(ctx context.Context, id int64) (*models.Survey, error)
	GetSurveyByName(ctx context.Context, name string) (*models.Survey, error)
	ListSurveys(ctx context.Context) ([]models.Survey, error)
	RenameSurvey(ctx context.Context, id int64, newName string) error
	DeleteSurvey(ctx context.Context, id int64) error
	SetSurveyAnonymous(ctx context.Context, id int64, anonymous bool) error
	SetSurveyTimeLimit(ctx context.Context, id int64, limit *time.Time) error
	ScheduleSurvey(ctx context.Context, id int64, at *time.Time) error

	// ListDueScheduled returns surveys whose scheduled time has arrived.
	ListDueScheduled(ctx context.Context, now time.Time) ([]models.Survey, error)
	ListScheduled(ctx context.Context) ([]models.Survey, error)

	// FilterSurveys matches surveys whose name or any tag contains keyword.
	FilterSurveys(ctx context.Context, keyword string) ([]models.Survey, error)
	AddSurveyTag(ctx context.Context, id int64, tag string) error
	GetSurveyTags(ctx context.Context, id int64) ([]string, error)

	// Question operations. Questions keep insertion order (id ascending).
	AddQuestion(ctx context.Context, surveyID int64, text string, qType models.QuestionType, options []string) (int64, error)
	ListQuestions(ctx context.Context, surveyID int64) ([]models.Question, error)
	UpdateQuestionText(ctx context.Context, questionID int64, text string) error
	UpdateQuestionOptions(ctx context.Context, questionID int64, options []string) error
	DeleteQuestion(ctx context.Context, questionID int64) error

	// Group operations
	UpsertGroup(ctx context.Context, groupID int64, title string) error
	ListGroups(ctx context.Context) ([]models.Group, error)
	RemoveGroup(ctx context.Context, groupID int64) error
	SetJoinSurvey(ctx context.Context, groupID, surveyID int64) error
	GetJoinSurvey(ctx context.Context, groupID int64) (int64, error)

	// Captcha gate bookkeeping
	AddPendingCaptcha(ctx context.Context, userID, chatID int64) error
	IsPendingCaptcha(ctx context.Context, userID, chatID int64) (bool, error)
	RemovePendingCaptcha(ctx context.Context, userID, chatID int64) error
	PendingChatsForUser(ctx context.Context, userID int64) ([]int64, error)

	// User activity and settings
	TouchUser(ctx context.Context, userID int64, username string) error
	CountActiveUsers(ctx context.Context, since time.Time) (int, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}
