package sqlite

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"surveybot/internal/models"
	"surveybot/internal/storage"
)

//go:embed schema.sql
var ddl embed.FS

// timeLayout is how DATETIME columns are stored.
const timeLayout = "2006-01-02 15:04:05"

var _ storage.Storage = (*DB)(nil)

// DB implements storage.Storage on top of a SQLite database file.
type DB struct {
	db *sql.DB
}

// New opens (or creates) the database at path.
func New(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path+"?_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	return &DB{db: db}, nil
}

// Initialize applies the embedded schema and seeds the default onboarding
// survey if it does not exist yet.
func (d *DB) Initialize(ctx context.Context) error {
	b, err := ddl.ReadFile("schema.sql")
	if err != nil {
		return err
	}
	if _, err := d.db.ExecContext(ctx, string(b)); err != nil {
		return fmt.Errorf("failed to apply schema: %w", err)
	}
	return d.seedDefaultSurvey(ctx)
}

func (d *DB) seedDefaultSurvey(ctx context.Context) error {
	exists, err := d.SurveyExists(ctx, models.DefaultSurveyName)
	if err != nil || exists {
		return err
	}
	id, err := d.CreateSurvey(ctx, models.DefaultSurveyName)
	if err != nil {
		return err
	}
	seed := []string{
		"Who are you? (self-employed, sole trader, employed, business owner)",
		"Where are you from? (region of activity)",
		"What do you hope to get from joining the community?",
		"What could you offer to other members?",
		"Anything else you would like to share?",
	}
	for _, text := range seed {
		if _, err := d.AddQuestion(ctx, id, text, models.TextAnswer, nil); err != nil {
			return err
		}
	}
	return nil
}

func (d *DB) Close() error {
	return d.db.Close()
}

// ---------- surveys ---------------------------------------------------------

func (d *DB) CreateSurvey(ctx context.Context, name string) (int64, error) {
	res, err := d.db.ExecContext(ctx, `INSERT INTO surveys (name) VALUES (?)`, name)
	if err != nil {
		return 0, fmt.Errorf("failed to create survey: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) SurveyExists(ctx context.Context, name string) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM surveys WHERE name = ?`, name).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func scanSurvey(row interface{ Scan(...any) error }) (*models.Survey, error) {
	var s models.Survey
	var timeLimit, scheduled, created sql.NullString
	err := row.Scan(&s.ID, &s.Name, &s.Anonymous, &timeLimit, &scheduled, &created)
	if err != nil {
		return nil, err
	}
	if t, ok := parseTime(timeLimit); ok {
		s.TimeLimit = &t
	}
	if t, ok := parseTime(scheduled); ok {
		s.ScheduledTime = &t
	}
	if t, ok := parseTime(created); ok {
		s.CreatedAt = t
	}
	return &s, nil
}

func parseTime(v sql.NullString) (time.Time, bool) {
	if !v.Valid || v.String == "" {
		return time.Time{}, false
	}
	t, err := time.ParseInLocation(timeLayout, v.String, time.UTC)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

const surveyColumns = `id, name, anonymous, time_limit, scheduled_time, created_at`

func (d *DB) GetSurvey(ctx context.Context, id int64) (*models.Survey, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE id = ?`, id)
	s, err := scanSurvey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return s, err
}

func (d *DB) GetSurveyByName(ctx context.Context, name string) (*models.Survey, error) {
	row := d.db.QueryRowContext(ctx, `SELECT `+surveyColumns+` FROM surveys WHERE name = ?`, name)
	s, err := scanSurvey(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	return s, err
}

func (d *DB) querySurveys(ctx context.Context, query string, args ...any) ([]models.Survey, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Survey
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, *s)
	}
	return res, rows.Err()
}

func (d *DB) ListSurveys(ctx context.Context) ([]models.Survey, error) {
	return d.querySurveys(ctx, `SELECT `+surveyColumns+` FROM surveys ORDER BY id`)
}

func (d *DB) RenameSurvey(ctx context.Context, id int64, newName string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE surveys SET name = ? WHERE id = ?`, newName, id)
	if err != nil {
		return fmt.Errorf("failed to rename survey: %w", err)
	}
	return requireAffected(res)
}

func (d *DB) DeleteSurvey(ctx context.Context, id int64) error {
	// Cascades to questions and survey_tags via foreign keys.
	res, err := d.db.ExecContext(ctx, `DELETE FROM surveys WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete survey: %w", err)
	}
	return requireAffected(res)
}

func (d *DB) SetSurveyAnonymous(ctx context.Context, id int64, anonymous bool) error {
	res, err := d.db.ExecContext(ctx, `UPDATE surveys SET anonymous = ? WHERE id = ?`, anonymous, id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (d *DB) SetSurveyTimeLimit(ctx context.Context, id int64, limit *time.Time) error {
	res, err := d.db.ExecContext(ctx, `UPDATE surveys SET time_limit = ? WHERE id = ?`, formatTime(limit), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (d *DB) ScheduleSurvey(ctx context.Context, id int64, at *time.Time) error {
	res, err := d.db.ExecContext(ctx, `UPDATE surveys SET scheduled_time = ? WHERE id = ?`, formatTime(at), id)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func formatTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(timeLayout)
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (d *DB) ListDueScheduled(ctx context.Context, now time.Time) ([]models.Survey, error) {
	return d.querySurveys(ctx,
		`SELECT `+surveyColumns+` FROM surveys WHERE scheduled_time IS NOT NULL AND scheduled_time <= ? ORDER BY id`,
		now.UTC().Format(timeLayout))
}

func (d *DB) ListScheduled(ctx context.Context) ([]models.Survey, error) {
	return d.querySurveys(ctx,
		`SELECT `+surveyColumns+` FROM surveys WHERE scheduled_time IS NOT NULL ORDER BY scheduled_time`)
}

func (d *DB) FilterSurveys(ctx context.Context, keyword string) ([]models.Survey, error) {
	pattern := "%" + keyword + "%"
	return d.querySurveys(ctx, `
        SELECT DISTINCT s.id, s.name, s.anonymous, s.time_limit, s.scheduled_time, s.created_at
        FROM surveys s
        LEFT JOIN survey_tags t ON s.id = t.survey_id
        WHERE s.name LIKE ? OR t.tag LIKE ?
        ORDER BY s.id`, pattern, pattern)
}

func (d *DB) AddSurveyTag(ctx context.Context, id int64, tag string) error {
	_, err := d.db.ExecContext(ctx, `INSERT INTO survey_tags (survey_id, tag) VALUES (?, ?)`, id, tag)
	return err
}

func (d *DB) GetSurveyTags(ctx context.Context, id int64) ([]string, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT tag FROM survey_tags WHERE survey_id = ? ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []string
	for rows.Next() {
		var tag string
		if err := rows.Scan(&tag); err != nil {
			return nil, err
		}
		tags = append(tags, tag)
	}
	return tags, rows.Err()
}

// ---------- questions -------------------------------------------------------

// Options are stored comma-joined; texts containing commas are not expected
// from the wizard, which itself splits operator input on commas.
func (d *DB) AddQuestion(ctx context.Context, surveyID int64, text string, qType models.QuestionType, options []string) (int64, error) {
	res, err := d.db.ExecContext(ctx,
		`INSERT INTO questions (survey_id, text, type, options) VALUES (?, ?, ?, ?)`,
		surveyID, text, string(qType), strings.Join(options, ","))
	if err != nil {
		return 0, fmt.Errorf("failed to add question: %w", err)
	}
	return res.LastInsertId()
}

func (d *DB) ListQuestions(ctx context.Context, surveyID int64) ([]models.Question, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT id, survey_id, text, type, options FROM questions WHERE survey_id = ? ORDER BY id`, surveyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Question
	for rows.Next() {
		var q models.Question
		var qType string
		var options sql.NullString
		if err := rows.Scan(&q.ID, &q.SurveyID, &q.Text, &qType, &options); err != nil {
			return nil, err
		}
		q.Type = models.QuestionType(qType)
		if options.Valid && options.String != "" {
			q.Options = strings.Split(options.String, ",")
		}
		res = append(res, q)
	}
	return res, rows.Err()
}

func (d *DB) UpdateQuestionText(ctx context.Context, questionID int64, text string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE questions SET text = ? WHERE id = ?`, text, questionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (d *DB) UpdateQuestionOptions(ctx context.Context, questionID int64, options []string) error {
	res, err := d.db.ExecContext(ctx, `UPDATE questions SET options = ? WHERE id = ?`,
		strings.Join(options, ","), questionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

func (d *DB) DeleteQuestion(ctx context.Context, questionID int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM questions WHERE id = ?`, questionID)
	if err != nil {
		return err
	}
	return requireAffected(res)
}

// ---------- groups ----------------------------------------------------------

func (d *DB) UpsertGroup(ctx context.Context, groupID int64, title string) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO groups (group_id, title) VALUES (?, ?)
        ON CONFLICT(group_id) DO UPDATE SET title = excluded.title`, groupID, title)
	return err
}

func (d *DB) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT group_id, title FROM groups ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []models.Group
	for rows.Next() {
		var g models.Group
		var title sql.NullString
		if err := rows.Scan(&g.GroupID, &title); err != nil {
			return nil, err
		}
		g.Title = title.String
		res = append(res, g)
	}
	return res, rows.Err()
}

func (d *DB) RemoveGroup(ctx context.Context, groupID int64) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM groups WHERE group_id = ?`, groupID)
	return err
}

func (d *DB) SetJoinSurvey(ctx context.Context, groupID, surveyID int64) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO group_settings (group_id, join_survey_id) VALUES (?, ?)
        ON CONFLICT(group_id) DO UPDATE SET join_survey_id = excluded.join_survey_id`,
		groupID, surveyID)
	return err
}

func (d *DB) GetJoinSurvey(ctx context.Context, groupID int64) (int64, error) {
	var id sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		`SELECT join_survey_id FROM group_settings WHERE group_id = ?`, groupID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !id.Valid) {
		return 0, storage.ErrNotFound
	}
	return id.Int64, err
}

// ---------- captcha ---------------------------------------------------------

func (d *DB) AddPendingCaptcha(ctx context.Context, userID, chatID int64) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO pending_captcha (user_id, chat_id) VALUES (?, ?)`, userID, chatID)
	return err
}

func (d *DB) IsPendingCaptcha(ctx context.Context, userID, chatID int64) (bool, error) {
	var one int
	err := d.db.QueryRowContext(ctx,
		`SELECT 1 FROM pending_captcha WHERE user_id = ? AND chat_id = ?`, userID, chatID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (d *DB) RemovePendingCaptcha(ctx context.Context, userID, chatID int64) error {
	_, err := d.db.ExecContext(ctx,
		`DELETE FROM pending_captcha WHERE user_id = ? AND chat_id = ?`, userID, chatID)
	return err
}

func (d *DB) PendingChatsForUser(ctx context.Context, userID int64) ([]int64, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT chat_id FROM pending_captcha WHERE user_id = ?`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var chats []int64
	for rows.Next() {
		var chatID int64
		if err := rows.Scan(&chatID); err != nil {
			return nil, err
		}
		chats = append(chats, chatID)
	}
	return chats, rows.Err()
}

// ---------- users & settings ------------------------------------------------

func (d *DB) TouchUser(ctx context.Context, userID int64, username string) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO users (user_id, username, last_activity) VALUES (?, ?, ?)
        ON CONFLICT(user_id) DO UPDATE SET last_activity = excluded.last_activity, username = excluded.username`,
		userID, username, time.Now().UTC().Format(timeLayout))
	return err
}

func (d *DB) CountActiveUsers(ctx context.Context, since time.Time) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM users WHERE last_activity >= ?`, since.UTC().Format(timeLayout)).Scan(&n)
	return n, err
}

func (d *DB) GetSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", storage.ErrNotFound
	}
	return value, err
}

func (d *DB) SetSetting(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx, `
        INSERT INTO settings (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}
