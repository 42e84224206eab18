// Package export appends completed survey responses to per-survey CSV
// result files. Results deliberately never touch the relational store.
package export

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"surveybot/internal/models"
)

// DateLayout is the submission-date format written into result rows.
const DateLayout = "02.01.2006 15:04"

var header = []string{
	"User ID", "First Name", "Last Name", "Username",
	"Group ID", "Group Name", "Survey Date", "Survey Name",
	"Question", "Answer",
}

// Sink writes survey results under a single directory, one file per survey.
type Sink struct {
	dir    string
	logger *zap.Logger
}

// NewSink creates the results directory if needed.
func NewSink(dir string, logger *zap.Logger) (*Sink, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create export directory: %w", err)
	}
	return &Sink{dir: dir, logger: logger}, nil
}

// SanitizeName maps a survey display name to its file-safe form.
func SanitizeName(name string) string {
	name = strings.ReplaceAll(name, " ", "_")
	name = strings.ReplaceAll(name, "/", "_")
	return strings.ReplaceAll(name, string(os.PathSeparator), "_")
}

// FilePath returns the result file path for a survey name and whether the
// file currently exists.
func (s *Sink) FilePath(surveyName string) (string, bool) {
	path := filepath.Join(s.dir, "survey_results_"+SanitizeName(surveyName)+".csv")
	_, err := os.Stat(path)
	return path, err == nil
}

// Append writes one row per response to the survey's result file, creating
// it (with a header) on first write. When anonymous is set the respondent
// identity columns are left blank.
func (s *Sink) Append(surveyName string, respondent models.Respondent, anonymous bool, submittedAt time.Time, responses []models.Response) error {
	path, exists := s.FilePath(surveyName)
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open result file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if !exists {
		if err := w.Write(header); err != nil {
			return err
		}
	}

	userID := strconv.FormatInt(respondent.UserID, 10)
	firstName, lastName, username := respondent.FirstName, respondent.LastName, respondent.Username
	if anonymous {
		userID, firstName, lastName, username = "", "", "", ""
	}
	date := submittedAt.Format(DateLayout)
	for _, r := range responses {
		row := []string{
			userID, firstName, lastName, username,
			respondent.GroupID, respondent.GroupName, date, surveyName,
			r.Question, r.Answer,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to write result rows: %w", err)
	}
	s.logger.Info("Survey responses exported",
		zap.String("survey", surveyName),
		zap.Int("rows", len(responses)),
	)
	return nil
}

// Rename keeps the name-to-file mapping intact when a survey is renamed.
// Missing source files are not an error: the survey may simply have no
// results yet.
func (s *Sink) Rename(oldName, newName string) error {
	oldPath, exists := s.FilePath(oldName)
	if !exists {
		return nil
	}
	newPath, _ := s.FilePath(newName)
	if err := os.Rename(oldPath, newPath); err != nil {
		return fmt.Errorf("failed to rename result file: %w", err)
	}
	return nil
}
