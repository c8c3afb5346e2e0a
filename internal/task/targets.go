package task

import (
	"strconv"
	"time"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/model"
)

// MarkerWindow is how long a target or decoy marker stays visible.
const MarkerWindow = 500 * time.Millisecond

// Marker glyphs.
const (
	TargetGlyph = "◆"
	DecoyGlyph  = "◇"
)

// Targets flashes target and decoy markers during the phase and scores the
// recalled target count after it ends.
type Targets struct {
	env      *Env
	set      model.TargetSet
	started  bool
	fired    int
	unlocked bool
	result   model.RecallResult
	marker   transient
}

// NewTargets draws the event schedule of this phase.
func NewTargets(env *Env) *Targets {
	return newTargets(env, env.Gen.Targets(env.Phase.Duration))
}

func newTargets(env *Env, set model.TargetSet) *Targets {
	return &Targets{
		env:    env,
		set:    set,
		result: model.RecallResult{Expected: strconv.Itoa(set.TargetCount)},
		marker: transient{ch: display.ChannelMarker},
	}
}

// Start schedules every event.
func (t *Targets) Start() {
	if t.started {
		return
	}
	t.started = true
	for _, ev := range t.set.Events {
		ev := ev
		t.env.Sched.Schedule(ev.FiresAt, func() error {
			t.fire(ev)
			return nil
		})
	}
}

// Unlock allows recall submissions.
func (t *Targets) Unlock() {
	t.unlocked = true
}

// Set returns a copy of the event schedule and its ground truth.
func (t *Targets) Set() model.TargetSet {
	return model.TargetSet{
		Events:      append([]model.TargetEvent(nil), t.set.Events...),
		TargetCount: t.set.TargetCount,
	}
}

// Fired returns how many events have been displayed.
func (t *Targets) Fired() int {
	return t.fired
}

// Submit compares the recalled count with the ground truth.
func (t *Targets) Submit(raw string) (model.Verdict, error) {
	if !t.unlocked {
		return model.VerdictInvalid, ErrRecallLocked
	}
	n, err := ParseAnswer(raw)
	if err != nil {
		return model.VerdictInvalid, nil
	}
	t.result.Answered = true
	t.result.Submitted = strconv.Itoa(n)
	t.result.Correct = n == t.set.TargetCount
	if t.result.Correct {
		return model.VerdictCorrect, nil
	}
	return model.VerdictWrong, nil
}

// Result returns the recall state.
func (t *Targets) Result() model.RecallResult {
	return t.result
}

func (t *Targets) fire(ev model.TargetEvent) {
	t.fired++
	if ev.IsTarget {
		t.marker.flash(t.env, TargetGlyph, display.ToneTarget, MarkerWindow)
		return
	}
	t.marker.flash(t.env, DecoyGlyph, display.ToneDecoy, MarkerWindow)
}
