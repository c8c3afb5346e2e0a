package report

import (
	"fmt"

	"github.com/verte-zerg/sepia/internal/model"
)

const (
	colorReset  = "\x1b[0m"
	colorGreen  = "\x1b[32m"
	colorYellow = "\x1b[33m"
	colorRed    = "\x1b[31m"
)

// History formats archived reports as table lines, oldest first.
func History(reports []model.Report) []string {
	rows := make([][]string, 0, len(reports))
	for _, r := range reports {
		rows = append(rows, []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Duration.String(),
			fmt.Sprintf("%d/%d", r.Arithmetic.Correct, r.Arithmetic.Attempts),
			Percent(r.Arithmetic.Tally),
			Mark(r.Digits),
			Mark(r.Targets),
		})
	}
	return FormatTable(
		[]string{"Started", "Length", "Arith", "Acc", "Digits", "Targets"},
		rows,
		map[int]bool{1: true, 2: true, 3: true},
	)
}

// ColorHistory tints each report row by its recall score. lines must be the
// output of History for the same reports, optionally truncated.
func ColorHistory(lines []string, reports []model.Report) []string {
	if len(lines) != len(reports)+1 {
		return lines
	}
	out := make([]string, len(lines))
	out[0] = lines[0]
	for i, r := range reports {
		out[i+1] = recallColor(r.RecallScore()) + lines[i+1] + colorReset
	}
	return out
}

func recallColor(score int) string {
	switch score {
	case 2:
		return colorGreen
	case 1:
		return colorYellow
	default:
		return colorRed
	}
}
