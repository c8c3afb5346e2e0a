package report

import (
	"encoding/json"
	"fmt"
	"io"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verte-zerg/sepia/internal/model"
)

// Export formats.
const (
	ExportTable = "table"
	ExportJSON  = "json"
	ExportYAML  = "yaml"
)

// Record is the flat export form of a report.
type Record struct {
	ID         string           `json:"id" yaml:"id"`
	StartedAt  time.Time        `json:"started_at" yaml:"started_at"`
	EndedAt    time.Time        `json:"ended_at" yaml:"ended_at"`
	Duration   string           `json:"duration" yaml:"duration"`
	Arithmetic ArithmeticRecord `json:"arithmetic" yaml:"arithmetic"`
	Digits     RecallRecord     `json:"digits" yaml:"digits"`
	Targets    RecallRecord     `json:"targets" yaml:"targets"`
}

// ArithmeticRecord is the exported arithmetic score.
type ArithmeticRecord struct {
	Attempts   int                    `json:"attempts" yaml:"attempts"`
	Correct    int                    `json:"correct" yaml:"correct"`
	Problems   int                    `json:"problems" yaml:"problems"`
	ByOperator map[string]TallyRecord `json:"by_operator,omitempty" yaml:"by_operator,omitempty"`
}

// TallyRecord is the exported score of one operator.
type TallyRecord struct {
	Attempts int `json:"attempts" yaml:"attempts"`
	Correct  int `json:"correct" yaml:"correct"`
}

// RecallRecord is the exported result of a recall subtask.
type RecallRecord struct {
	Answered  bool   `json:"answered" yaml:"answered"`
	Submitted string `json:"submitted,omitempty" yaml:"submitted,omitempty"`
	Expected  string `json:"expected" yaml:"expected"`
	Correct   bool   `json:"correct" yaml:"correct"`
}

// NewRecord flattens a report.
func NewRecord(r model.Report) Record {
	rec := Record{
		ID:        r.PhaseID,
		StartedAt: r.StartedAt,
		EndedAt:   r.EndedAt,
		Duration:  r.Duration.String(),
		Arithmetic: ArithmeticRecord{
			Attempts: r.Arithmetic.Attempts,
			Correct:  r.Arithmetic.Correct,
			Problems: r.Arithmetic.Problems,
		},
		Digits:  RecallRecord(r.Digits),
		Targets: RecallRecord(r.Targets),
	}
	for _, op := range model.Operators {
		t, ok := r.Arithmetic.ByOperator[op]
		if !ok {
			continue
		}
		if rec.Arithmetic.ByOperator == nil {
			rec.Arithmetic.ByOperator = map[string]TallyRecord{}
		}
		rec.Arithmetic.ByOperator[op.Symbol()] = TallyRecord(t)
	}
	return rec
}

// Export writes reports to w in the given format.
func Export(w io.Writer, reports []model.Report, format string) error {
	switch format {
	case ExportTable, "":
		for _, line := range History(reports) {
			if _, err := fmt.Fprintln(w, line); err != nil {
				return err
			}
		}
		return nil
	case ExportJSON, ExportYAML:
	default:
		return fmt.Errorf("unknown format %q (want %s, %s or %s)", format, ExportTable, ExportJSON, ExportYAML)
	}

	records := make([]Record, 0, len(reports))
	for _, r := range reports {
		records = append(records, NewRecord(r))
	}
	if format == ExportJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(records); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
