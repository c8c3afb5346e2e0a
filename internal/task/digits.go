package task

import (
	"strconv"
	"time"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/model"
)

// RevealWindow is how long a revealed digit stays on screen.
const RevealWindow = time.Second

// reveal is the schedule descriptor of one digit.
type reveal struct {
	index int
	digit int
	at    time.Duration
}

// Digits reveals a digit sequence during the phase and scores its recall
// after the phase ends.
type Digits struct {
	env      *Env
	seq      model.DigitSequence
	started  bool
	revealed int
	unlocked bool
	result   model.RecallResult
	flash    transient
}

// NewDigits draws the sequence of this phase.
func NewDigits(env *Env) *Digits {
	return newDigits(env, env.Gen.DigitSequence())
}

func newDigits(env *Env, seq model.DigitSequence) *Digits {
	return &Digits{
		env:    env,
		seq:    seq,
		result: model.RecallResult{Expected: seq.Expected()},
		flash:  transient{ch: display.ChannelDigit},
	}
}

// Start schedules one reveal per digit.
func (d *Digits) Start() {
	if d.started {
		return
	}
	d.started = true
	for _, r := range d.reveals() {
		r := r
		d.env.Sched.Schedule(r.at, func() error {
			d.show(r)
			return nil
		})
	}
}

// Unlock allows recall submissions.
func (d *Digits) Unlock() {
	d.unlocked = true
}

// Sequence returns a copy of the generated sequence.
func (d *Digits) Sequence() model.DigitSequence {
	return model.DigitSequence{
		Digits:  append([]int(nil), d.seq.Digits...),
		Reveals: append([]time.Duration(nil), d.seq.Reveals...),
	}
}

// Revealed returns how many digits have been shown.
func (d *Digits) Revealed() int {
	return d.revealed
}

// Submit compares raw with the expected sequence. The comparison is exact;
// a later submission replaces an earlier one.
func (d *Digits) Submit(raw string) (model.Verdict, error) {
	if !d.unlocked {
		return model.VerdictInvalid, ErrRecallLocked
	}
	d.result.Answered = true
	d.result.Submitted = raw
	d.result.Correct = raw == d.result.Expected
	if d.result.Correct {
		return model.VerdictCorrect, nil
	}
	return model.VerdictWrong, nil
}

// Result returns the recall state.
func (d *Digits) Result() model.RecallResult {
	return d.result
}

func (d *Digits) reveals() []reveal {
	out := make([]reveal, len(d.seq.Digits))
	for i, digit := range d.seq.Digits {
		out[i] = reveal{index: i, digit: digit, at: d.seq.Reveals[i]}
	}
	return out
}

func (d *Digits) show(r reveal) {
	d.revealed++
	d.flash.flash(d.env, strconv.Itoa(r.digit), display.ToneNeutral, RevealWindow)
}
