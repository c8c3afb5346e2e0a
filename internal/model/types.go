// Package model defines shared data structures.
package model

import (
	"strconv"
	"strings"
	"time"
)

// Config defines phase settings.
type Config struct {
	Duration         time.Duration
	ArithmeticPeriod time.Duration
	Seed             int64
	TelemetrySource  string
	TelemetryURL     string
	StaleAfter       time.Duration
	Record           bool
}

// HistoryFilter defines filters for the archived report listing.
type HistoryFilter struct {
	Since *time.Time
	Last  int
}

// Phase is one fixed-duration round of the workload test.
type Phase struct {
	ID        string
	Duration  time.Duration
	StartedAt time.Time
	Active    bool
}

// EndsAt returns the instant the phase becomes inactive.
func (p Phase) EndsAt() time.Time {
	return p.StartedAt.Add(p.Duration)
}

// Operator is an arithmetic operator.
type Operator int

const (
	OpAdd Operator = iota
	OpSub
	OpMul
	OpDiv
)

// Operators lists every operator in display order.
var Operators = []Operator{OpAdd, OpSub, OpMul, OpDiv}

// Symbol returns the printable operator.
func (o Operator) Symbol() string {
	switch o {
	case OpAdd:
		return "+"
	case OpSub:
		return "-"
	case OpMul:
		return "×"
	case OpDiv:
		return "÷"
	default:
		return "?"
	}
}

// ArithmeticProblem is one mental arithmetic question.
type ArithmeticProblem struct {
	A        int
	B        int
	Op       Operator
	Expected int
}

// String renders the question without the answer.
func (p ArithmeticProblem) String() string {
	return strconv.Itoa(p.A) + " " + p.Op.Symbol() + " " + strconv.Itoa(p.B) + " = ?"
}

// DigitSequence is the memorization payload of one phase.
// Reveals holds one offset from phase start per digit.
type DigitSequence struct {
	Digits  []int
	Reveals []time.Duration
}

// Expected returns the digits concatenated in order.
func (d DigitSequence) Expected() string {
	var b strings.Builder
	for _, digit := range d.Digits {
		b.WriteString(strconv.Itoa(digit))
	}
	return b.String()
}

// TargetEvent is one visual event of the counting subtask.
type TargetEvent struct {
	FiresAt  time.Duration
	IsTarget bool
}

// TargetSet is the full event schedule of one phase with its ground truth.
type TargetSet struct {
	Events      []TargetEvent
	TargetCount int
}

// Verdict is the outcome of one submission.
type Verdict int

const (
	VerdictInvalid Verdict = iota
	VerdictCorrect
	VerdictWrong
)

func (v Verdict) String() string {
	switch v {
	case VerdictCorrect:
		return "correct"
	case VerdictWrong:
		return "wrong"
	default:
		return "invalid"
	}
}

// Tally counts scored attempts.
type Tally struct {
	Attempts int
	Correct  int
}

// Accuracy returns Correct/Attempts, or 0 without attempts.
func (t Tally) Accuracy() float64 {
	if t.Attempts == 0 {
		return 0
	}
	return float64(t.Correct) / float64(t.Attempts)
}

// ArithmeticResult accumulates arithmetic answers across a whole phase.
type ArithmeticResult struct {
	Tally
	Problems   int
	ByOperator map[Operator]Tally
}

// RecallResult is the state of a delayed-recall answer.
type RecallResult struct {
	Answered  bool
	Submitted string
	Expected  string
	Correct   bool
}

// Report aggregates the results of one ended phase.
type Report struct {
	PhaseID    string
	StartedAt  time.Time
	EndedAt    time.Time
	Duration   time.Duration
	Arithmetic ArithmeticResult
	Digits     RecallResult
	Targets    RecallResult
}

// Clone returns a copy of the report that shares no maps with r.
func (r Report) Clone() Report {
	if r.Arithmetic.ByOperator != nil {
		ops := make(map[Operator]Tally, len(r.Arithmetic.ByOperator))
		for op, t := range r.Arithmetic.ByOperator {
			ops[op] = t
		}
		r.Arithmetic.ByOperator = ops
	}
	return r
}

// RecallScore counts the correct recall answers in the report.
func (r Report) RecallScore() int {
	score := 0
	if r.Digits.Correct {
		score++
	}
	if r.Targets.Correct {
		score++
	}
	return score
}
