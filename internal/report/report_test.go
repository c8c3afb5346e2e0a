package report

import (
	"bytes"
	"encoding/json"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/sepia/internal/model"
)

func TestFormatTableAlignsColumns(t *testing.T) {
	headers := []string{"Char", "Accuracy", "Correct"}
	rows := [][]string{
		{"a", "97.50%", "12"},
		{"<space>", "8.00%", "3"},
	}
	rightAlign := map[int]bool{1: true, 2: true}

	lines := FormatTable(headers, rows, rightAlign)
	require.Len(t, lines, 3)
	assert.Equal(t, "Char    Accuracy Correct", lines[0])
	assert.Equal(t, "a         97.50%      12", lines[1])
	assert.Equal(t, "<space>    8.00%       3", lines[2])
}

func TestFormatTableEmpty(t *testing.T) {
	assert.Nil(t, FormatTable(nil, nil, nil))
}

func TestTruncate(t *testing.T) {
	out := Truncate([]string{"abcdef", "ab"}, 4)
	assert.Equal(t, []string{"a...", "ab"}, out)
	assert.Equal(t, []string{"abcdef"}, Truncate([]string{"abcdef"}, 0))
}

func sampleReport() model.Report {
	return model.Report{
		PhaseID:   "p-1",
		StartedAt: time.Date(2024, 3, 2, 10, 0, 0, 0, time.Local),
		Duration:  5 * time.Minute,
		Arithmetic: model.ArithmeticResult{
			Tally:    model.Tally{Attempts: 8, Correct: 6},
			Problems: 10,
			ByOperator: map[model.Operator]model.Tally{
				model.OpAdd: {Attempts: 3, Correct: 3},
				model.OpDiv: {Attempts: 5, Correct: 3},
			},
		},
		Digits:  model.RecallResult{Answered: true, Submitted: "4920", Expected: "4921"},
		Targets: model.RecallResult{Expected: "6"},
	}
}

func TestRender(t *testing.T) {
	out := Render(sampleReport())
	for _, want := range []string{
		"Phase report · 2024-03-02 10:00 · 5m0s",
		"Arithmetic",
		"6/8",
		"75.0%",
		"10 shown",
		`wrong, answered "4920", expected 4921`,
		"not answered, expected 6",
		"÷",
		"3/5",
		"60.0%",
	} {
		assert.Contains(t, out, want)
	}
	assert.NotContains(t, out, "×", "operators without attempts are omitted")
}

func TestPercent(t *testing.T) {
	assert.Equal(t, "-", Percent(model.Tally{}))
	assert.Equal(t, "50.0%", Percent(model.Tally{Attempts: 2, Correct: 1}))
}

func TestHistory(t *testing.T) {
	r1 := sampleReport()
	r2 := sampleReport()
	r2.Digits = model.RecallResult{Answered: true, Submitted: "4921", Expected: "4921", Correct: true}
	lines := History([]model.Report{r1, r2})
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "Started"))
	assert.Contains(t, lines[1], "wrong")
	assert.Contains(t, lines[1], "not answered")
	assert.Contains(t, lines[2], "correct")
}

func TestColorHistoryTintsByRecallScore(t *testing.T) {
	r1 := sampleReport()
	r2 := sampleReport()
	r2.Digits = model.RecallResult{Answered: true, Submitted: "4921", Expected: "4921", Correct: true}
	reports := []model.Report{r1, r2}
	lines := History(reports)

	colored := ColorHistory(lines, reports)
	require.Len(t, colored, 3)
	assert.Equal(t, lines[0], colored[0])
	assert.Equal(t, colorRed+lines[1]+colorReset, colored[1])
	assert.Equal(t, colorYellow+lines[2]+colorReset, colored[2])

	assert.Equal(t, lines[:2], ColorHistory(lines[:2], reports), "mismatched rows are left alone")
}

func TestTerminalHelpersOnPlainWriters(t *testing.T) {
	t.Setenv("NO_COLOR", "")
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))
	assert.False(t, ShouldUseColor(&buf, false))
	assert.True(t, ShouldUseColor(&buf, true))

	t.Setenv("NO_COLOR", "1")
	assert.False(t, ShouldUseColor(&buf, true))

	f, err := os.CreateTemp(t.TempDir(), "out")
	require.NoError(t, err)
	defer f.Close()
	assert.False(t, IsTerminal(f))
	assert.Equal(t, terminalWidthBackup, TerminalWidth(f))
}

func TestExportFormats(t *testing.T) {
	r := sampleReport()
	var js bytes.Buffer
	require.NoError(t, Export(&js, []model.Report{r}, ExportJSON))
	var fromJSON []Record
	require.NoError(t, json.Unmarshal(js.Bytes(), &fromJSON))
	require.Len(t, fromJSON, 1)
	assert.Equal(t, r.PhaseID, fromJSON[0].ID)
	assert.Equal(t, TallyRecord{Attempts: 5, Correct: 3}, fromJSON[0].Arithmetic.ByOperator["÷"])

	var ym bytes.Buffer
	require.NoError(t, Export(&ym, []model.Report{r}, ExportYAML))
	assert.Contains(t, ym.String(), "id: "+r.PhaseID)
	var fromYAML []Record
	require.NoError(t, yaml.Unmarshal(ym.Bytes(), &fromYAML))
	require.Len(t, fromYAML, 1)
	assert.Equal(t, fromJSON[0].Digits, fromYAML[0].Digits)
	assert.Equal(t, "5m0s", fromYAML[0].Duration)

	var table bytes.Buffer
	require.NoError(t, Export(&table, []model.Report{r}, ExportTable))
	assert.Contains(t, table.String(), "Started")

	assert.Error(t, Export(&table, nil, "csv"))
}
