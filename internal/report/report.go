// Package report renders phase reports and the archived report history.
package report

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/verte-zerg/sepia/internal/model"
)

// Render formats a single phase report.
func Render(r model.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Phase report · %s · %s\n\n", r.StartedAt.Local().Format("2006-01-02 15:04"), r.Duration)

	rows := [][]string{
		{"Arithmetic", fmt.Sprintf("%d/%d", r.Arithmetic.Correct, r.Arithmetic.Attempts), Percent(r.Arithmetic.Tally), fmt.Sprintf("%d shown", r.Arithmetic.Problems)},
		recallRow("Digit sequence", r.Digits),
		recallRow("Target count", r.Targets),
	}
	for _, line := range FormatTable([]string{"Subtask", "Score", "Accuracy", "Detail"}, rows, map[int]bool{1: true, 2: true}) {
		b.WriteString(line)
		b.WriteByte('\n')
	}

	if ops := operatorRows(r.Arithmetic); len(ops) > 0 {
		b.WriteByte('\n')
		for _, line := range FormatTable([]string{"Op", "Correct", "Accuracy"}, ops, map[int]bool{1: true, 2: true}) {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// Percent formats a tally's accuracy, or "-" without attempts.
func Percent(t model.Tally) string {
	if t.Attempts == 0 {
		return "-"
	}
	return fmt.Sprintf("%.1f%%", t.Accuracy()*100)
}

// Mark renders a recall result as a short verdict.
func Mark(r model.RecallResult) string {
	switch {
	case !r.Answered:
		return "not answered"
	case r.Correct:
		return "correct"
	default:
		return "wrong"
	}
}

func recallRow(name string, r model.RecallResult) []string {
	if !r.Answered {
		return []string{name, "-", "", "not answered, expected " + r.Expected}
	}
	score := "0/1"
	if r.Correct {
		score = "1/1"
	}
	return []string{name, score, "", fmt.Sprintf("%s, answered %s, expected %s", Mark(r), strconv.Quote(r.Submitted), r.Expected)}
}

func operatorRows(r model.ArithmeticResult) [][]string {
	var rows [][]string
	for _, op := range model.Operators {
		t, ok := r.ByOperator[op]
		if !ok || t.Attempts == 0 {
			continue
		}
		rows = append(rows, []string{op.Symbol(), fmt.Sprintf("%d/%d", t.Correct, t.Attempts), Percent(t)})
	}
	return rows
}
