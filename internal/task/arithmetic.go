package task

import (
	"fmt"
	"time"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/model"
)

const (
	// ProblemPeriod is the default interval between two arithmetic problems.
	ProblemPeriod = 30 * time.Second
	// FeedbackWindow is how long answer feedback stays visible.
	FeedbackWindow = 2 * time.Second
)

// problemSlot is the schedule descriptor of one arithmetic problem.
type problemSlot struct {
	index int
	at    time.Duration
}

// Arithmetic presents a new problem every period and scores answers at once.
type Arithmetic struct {
	env    *Env
	period time.Duration

	started  bool
	stopped  bool
	current  *model.ArithmeticProblem
	answered bool
	result   model.ArithmeticResult
	feedback transient
}

// NewArithmetic constructs the arithmetic subtask. A non-positive period
// falls back to ProblemPeriod.
func NewArithmetic(env *Env, period time.Duration) *Arithmetic {
	if period <= 0 {
		period = ProblemPeriod
	}
	return &Arithmetic{
		env:      env,
		period:   period,
		result:   model.ArithmeticResult{ByOperator: map[model.Operator]model.Tally{}},
		feedback: transient{ch: display.ChannelFeedback},
	}
}

// Slots returns the offsets from phase start at which problems appear.
func (a *Arithmetic) Slots() []time.Duration {
	var out []time.Duration
	for at := time.Duration(0); at < a.env.Phase.Duration; at += a.period {
		out = append(out, at)
	}
	return out
}

// Start schedules every problem of the phase.
func (a *Arithmetic) Start() {
	if a.started {
		return
	}
	a.started = true
	for i, at := range a.Slots() {
		slot := problemSlot{index: i, at: at}
		a.env.Sched.Schedule(slot.at, func() error {
			a.present(slot)
			return nil
		})
	}
}

// Stop ends problem generation and clears the displayed problem. An
// unanswered problem can no longer be scored.
func (a *Arithmetic) Stop() {
	a.stopped = true
	a.current = nil
	a.env.show(display.ChannelProblem, "", display.ToneNeutral)
}

// Current returns the problem awaiting an answer.
func (a *Arithmetic) Current() (model.ArithmeticProblem, bool) {
	if a.current == nil || a.answered {
		return model.ArithmeticProblem{}, false
	}
	return *a.current, true
}

// Submit scores raw against the current problem. Unparseable input is
// Invalid and does not count as an attempt.
func (a *Arithmetic) Submit(raw string) (model.Verdict, error) {
	if a.stopped || !a.env.active() {
		return model.VerdictInvalid, ErrNotRunning
	}
	p, ok := a.Current()
	if !ok {
		return model.VerdictInvalid, ErrNoProblem
	}
	n, err := ParseAnswer(raw)
	if err != nil {
		a.feedback.flash(a.env, "enter a whole number", display.ToneNegative, FeedbackWindow)
		return model.VerdictInvalid, nil
	}

	a.answered = true
	a.result.Attempts++
	tally := a.result.ByOperator[p.Op]
	tally.Attempts++
	verdict := model.VerdictWrong
	if n == p.Expected {
		verdict = model.VerdictCorrect
		a.result.Correct++
		tally.Correct++
	}
	a.result.ByOperator[p.Op] = tally

	if verdict == model.VerdictCorrect {
		a.feedback.flash(a.env, "✓ correct", display.TonePositive, FeedbackWindow)
	} else {
		a.feedback.flash(a.env, fmt.Sprintf("✗ %d %s %d = %d", p.A, p.Op.Symbol(), p.B, p.Expected), display.ToneNegative, FeedbackWindow)
	}
	a.env.show(display.ChannelProblem, "", display.ToneNeutral)
	return verdict, nil
}

// Result returns a copy of the cumulative score.
func (a *Arithmetic) Result() model.ArithmeticResult {
	out := a.result
	out.ByOperator = make(map[model.Operator]model.Tally, len(a.result.ByOperator))
	for op, t := range a.result.ByOperator {
		out.ByOperator[op] = t
	}
	return out
}

func (a *Arithmetic) present(slot problemSlot) {
	if a.stopped || !a.env.active() {
		return
	}
	p := a.env.Gen.Problem()
	a.setProblem(p)
	a.env.show(display.ChannelProblem, fmt.Sprintf("#%d  %s", slot.index+1, p), display.ToneNeutral)
}

func (a *Arithmetic) setProblem(p model.ArithmeticProblem) {
	a.current = &p
	a.answered = false
	a.result.Problems++
}
