package stubs

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

var _ storage.Storage = (*MockDB)(nil)

// MockDB is an in-memory implementation of the Storage interface for testing
type MockDB struct {
	mu           sync.RWMutex
	nextSurveyID int64
	nextQuestion int64
	surveys      map[int64]models.Survey
	questions    map[int64]models.Question
	tags         map[int64][]string
	groups       map[int64]string
	joinSurveys  map[int64]int64
	pending      map[models.PendingCaptcha]struct{}
	users        map[int64]time.Time
	settings     map[string]string
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		nextSurveyID: 1,
		nextQuestion: 1,
		surveys:      make(map[int64]models.Survey),
		questions:    make(map[int64]models.Question),
		tags:         make(map[int64][]string),
		groups:       make(map[int64]string),
		joinSurveys:  make(map[int64]int64),
		pending:      make(map[models.PendingCaptcha]struct{}),
		users:        make(map[int64]time.Time),
		settings:     make(map[string]string),
	}
}

// Initialize seeds default settings the way the sqlite schema does
func (m *MockDB) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.settings[storage.SettingTestMode]; !ok {
		m.settings[storage.SettingTestMode] = "0"
	}
	if _, ok := m.settings[storage.SettingWelcomeMessage]; !ok {
		m.settings[storage.SettingWelcomeMessage] = "Welcome, {username}!"
	}
	return nil
}

func (m *MockDB) Close() error { return nil }

// ---------- surveys ---------------------------------------------------------

func (m *MockDB) CreateSurvey(ctx context.Context, name string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextSurveyID
	m.nextSurveyID++
	m.surveys[id] = models.Survey{ID: id, Name: name, CreatedAt: time.Now()}
	return id, nil
}

func (m *MockDB) SurveyExists(ctx context.Context, name string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surveys {
		if s.Name == name {
			return true, nil
		}
	}
	return false, nil
}

func (m *MockDB) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.surveys[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return &s, nil
}

func (m *MockDB) GetSurveyByName(ctx context.Context, name string) (*models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.surveys {
		if s.Name == name {
			s := s
			return &s, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *MockDB) listLocked(filter func(models.Survey) bool) []models.Survey {
	var res []models.Survey
	for _, s := range m.surveys {
		if filter == nil || filter(s) {
			res = append(res, s)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (m *MockDB) ListSurveys(ctx context.Context) ([]models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(nil), nil
}

func (m *MockDB) RenameSurvey(ctx context.Context, id int64, newName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.Name = newName
	m.surveys[id] = s
	return nil
}

func (m *MockDB) DeleteSurvey(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.surveys[id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.surveys, id)
	delete(m.tags, id)
	for qid, q := range m.questions {
		if q.SurveyID == id {
			delete(m.questions, qid)
		}
	}
	return nil
}

func (m *MockDB) SetSurveyAnonymous(ctx context.Context, id int64, anonymous bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.Anonymous = anonymous
	m.surveys[id] = s
	return nil
}

func (m *MockDB) SetSurveyTimeLimit(ctx context.Context, id int64, limit *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.TimeLimit = limit
	m.surveys[id] = s
	return nil
}

func (m *MockDB) ScheduleSurvey(ctx context.Context, id int64, at *time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.surveys[id]
	if !ok {
		return storage.ErrNotFound
	}
	s.ScheduledTime = at
	m.surveys[id] = s
	return nil
}

func (m *MockDB) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(s models.Survey) bool {
		return s.ScheduledTime != nil && !s.ScheduledTime.After(now)
	}), nil
}

func (m *MockDB) ListScheduled(ctx context.Context) ([]models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(s models.Survey) bool { return s.ScheduledTime != nil }), nil
}

func (m *MockDB) FilterSurveys(ctx context.Context, keyword string) ([]models.Survey, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listLocked(func(s models.Survey) bool {
		if strings.Contains(s.Name, keyword) {
			return true
		}
		for _, tag := range m.tags[s.ID] {
			if strings.Contains(tag, keyword) {
				return true
			}
		}
		return false
	}), nil
}

func (m *MockDB) AddSurveyTag(ctx context.Context, id int64, tag string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tags[id] = append(m.tags[id], tag)
	return nil
}

func (m *MockDB) GetSurveyTags(ctx context.Context, id int64) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]string(nil), m.tags[id]...), nil
}

// ---------- questions -------------------------------------------------------

func (m *MockDB) AddQuestion(ctx context.Context, surveyID int64, text string, qType models.QuestionType, options []string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextQuestion
	m.nextQuestion++
	m.questions[id] = models.Question{
		ID:       id,
		SurveyID: surveyID,
		Text:     text,
		Type:     qType,
		Options:  append([]string(nil), options...),
	}
	return id, nil
}

func (m *MockDB) ListQuestions(ctx context.Context, surveyID int64) ([]models.Question, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []models.Question
	for _, q := range m.questions {
		if q.SurveyID == surveyID {
			res = append(res, q)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res, nil
}

func (m *MockDB) UpdateQuestionText(ctx context.Context, questionID int64, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok {
		return storage.ErrNotFound
	}
	q.Text = text
	m.questions[questionID] = q
	return nil
}

func (m *MockDB) UpdateQuestionOptions(ctx context.Context, questionID int64, options []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.questions[questionID]
	if !ok {
		return storage.ErrNotFound
	}
	q.Options = append([]string(nil), options...)
	m.questions[questionID] = q
	return nil
}

func (m *MockDB) DeleteQuestion(ctx context.Context, questionID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.questions[questionID]; !ok {
		return storage.ErrNotFound
	}
	delete(m.questions, questionID)
	return nil
}

// ---------- groups ----------------------------------------------------------

func (m *MockDB) UpsertGroup(ctx context.Context, groupID int64, title string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.groups[groupID] = title
	return nil
}

func (m *MockDB) ListGroups(ctx context.Context) ([]models.Group, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var res []models.Group
	for id, title := range m.groups {
		res = append(res, models.Group{GroupID: id, Title: title})
	}
	sort.Slice(res, func(i, j int) bool { return res[i].GroupID < res[j].GroupID })
	return res, nil
}

func (m *MockDB) RemoveGroup(ctx context.Context, groupID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.groups, groupID)
	return nil
}

func (m *MockDB) SetJoinSurvey(ctx context.Context, groupID, surveyID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.joinSurveys[groupID] = surveyID
	return nil
}

func (m *MockDB) GetJoinSurvey(ctx context.Context, groupID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.joinSurveys[groupID]
	if !ok {
		return 0, storage.ErrNotFound
	}
	return id, nil
}

// ---------- captcha ---------------------------------------------------------

func (m *MockDB) AddPendingCaptcha(ctx context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending[models.PendingCaptcha{UserID: userID, ChatID: chatID}] = struct{}{}
	return nil
}

func (m *MockDB) IsPendingCaptcha(ctx context.Context, userID, chatID int64) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.pending[models.PendingCaptcha{UserID: userID, ChatID: chatID}]
	return ok, nil
}

func (m *MockDB) RemovePendingCaptcha(ctx context.Context, userID, chatID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.pending, models.PendingCaptcha{UserID: userID, ChatID: chatID})
	return nil
}

func (m *MockDB) PendingChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var chats []int64
	for p := range m.pending {
		if p.UserID == userID {
			chats = append(chats, p.ChatID)
		}
	}
	sort.Slice(chats, func(i, j int) bool { return chats[i] < chats[j] })
	return chats, nil
}

// ---------- users & settings ------------------------------------------------

func (m *MockDB) TouchUser(ctx context.Context, userID int64, username string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[userID] = time.Now()
	return nil
}

func (m *MockDB) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, last := range m.users {
		if !last.Before(since) {
			n++
		}
	}
	return n, nil
}

func (m *MockDB) GetSetting(ctx context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	value, ok := m.settings[key]
	if !ok {
		return "", storage.ErrNotFound
	}
	return value, nil
}

func (m *MockDB) SetSetting(ctx context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings[key] = value
	return nil
}
