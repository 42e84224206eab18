package export

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"surveybot/internal/models"
)

func newTestSink(t *testing.T) *Sink {
	t.Helper()
	sink, err := NewSink(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return sink
}

func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	rows, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	return rows
}

var testRespondent = models.Respondent{
	UserID:    42,
	FirstName: "Ada",
	LastName:  "Lovelace",
	Username:  "ada",
	GroupID:   "777",
	GroupName: "Engineering",
}

func TestSanitizeName(t *testing.T) {
	testCases := []struct {
		name string
		in   string
		want string
	}{
		{name: "plain", in: "intake", want: "intake"},
		{name: "spaces", in: "team pulse check", want: "team_pulse_check"},
		{name: "slashes", in: "a/b survey", want: "a_b_survey"},
		{name: "mixed", in: "q3 / results", want: "q3___results"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, SanitizeName(tc.in))
		})
	}
}

func TestAppendCreatesFileWithHeader(t *testing.T) {
	sink := newTestSink(t)
	submitted := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)

	err := sink.Append("team pulse", testRespondent, false, submitted, []models.Response{
		{Question: "How was your week?", Answer: "Great"},
		{Question: "Anything to add?", Answer: "No"},
	})
	require.NoError(t, err)

	path, exists := sink.FilePath("team pulse")
	require.True(t, exists)
	assert.Equal(t, "survey_results_team_pulse.csv", filepath.Base(path))

	rows := readAll(t, path)
	require.Len(t, rows, 3)
	assert.Equal(t, header, rows[0])
	assert.Equal(t, []string{
		"42", "Ada", "Lovelace", "ada",
		"777", "Engineering", "31.08.2026 12:00", "team pulse",
		"How was your week?", "Great",
	}, rows[1])
	assert.Equal(t, "No", rows[2][9])
}

func TestAppendAccumulatesAcrossRespondents(t *testing.T) {
	sink := newTestSink(t)
	now := time.Now()

	require.NoError(t, sink.Append("s", testRespondent, false, now,
		[]models.Response{{Question: "Q", Answer: "first"}}))
	second := testRespondent
	second.UserID = 43
	require.NoError(t, sink.Append("s", second, false, now,
		[]models.Response{{Question: "Q", Answer: "second"}}))

	path, _ := sink.FilePath("s")
	rows := readAll(t, path)
	require.Len(t, rows, 3, "one header, then one row per completion")
	assert.Equal(t, "first", rows[1][9])
	assert.Equal(t, "second", rows[2][9])
}

func TestAppendAnonymousBlanksIdentity(t *testing.T) {
	sink := newTestSink(t)

	require.NoError(t, sink.Append("anon", testRespondent, true, time.Now(),
		[]models.Response{{Question: "Q", Answer: "A"}}))

	path, _ := sink.FilePath("anon")
	rows := readAll(t, path)
	require.Len(t, rows, 2)
	for col := 0; col < 4; col++ {
		assert.Empty(t, rows[1][col])
	}
	assert.Equal(t, "777", rows[1][4], "group attribution survives anonymity")
}

func TestRename(t *testing.T) {
	sink := newTestSink(t)

	require.NoError(t, sink.Append("before", testRespondent, false, time.Now(),
		[]models.Response{{Question: "Q", Answer: "A"}}))

	require.NoError(t, sink.Rename("before", "after"))
	_, exists := sink.FilePath("before")
	assert.False(t, exists)
	path, exists := sink.FilePath("after")
	require.True(t, exists)
	rows := readAll(t, path)
	assert.Len(t, rows, 2)
}

func TestRenameWithoutResultsIsNoop(t *testing.T) {
	sink := newTestSink(t)
	assert.NoError(t, sink.Rename("never existed", "still nothing"))
	_, exists := sink.FilePath("still nothing")
	assert.False(t, exists)
}
