// Package task implements the three subtasks run during a phase: mental
// arithmetic, digit-sequence recall and target counting.
package task

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/generator"
	"github.com/verte-zerg/sepia/internal/model"
	"github.com/verte-zerg/sepia/internal/scheduler"
)

var (
	// ErrParse marks input that is not an integer.
	ErrParse = errors.New("not an integer")
	// ErrNoProblem is returned when no unanswered arithmetic problem is shown.
	ErrNoProblem = errors.New("no problem awaiting an answer")
	// ErrRecallLocked is returned for recall answers submitted before the phase ends.
	ErrRecallLocked = errors.New("recall answers unlock when the phase ends")
	// ErrNotRunning is returned for arithmetic answers outside an active phase.
	ErrNotRunning = errors.New("phase is not running")
)

// Scheduler is the part of scheduler.Scheduler the subtasks need.
type Scheduler interface {
	Schedule(delay time.Duration, fn scheduler.Func) scheduler.Handle
}

// Env is the per-phase context shared by the subtasks. The phase controller
// owns it and builds a new one on every reset.
type Env struct {
	Sched   Scheduler
	Display display.Display
	Gen     *generator.Generator
	Phase   *model.Phase
}

func (e *Env) show(ch display.Channel, text string, tone display.Tone) {
	if e.Display == nil {
		return
	}
	e.Display.Show(display.Update{Channel: ch, Text: text, Tone: tone})
}

func (e *Env) active() bool {
	return e.Phase != nil && e.Phase.Active
}

// ParseAnswer parses an integer answer, ignoring surrounding whitespace.
func ParseAnswer(raw string) (int, error) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrParse, raw)
	}
	return n, nil
}

// transient shows text on a channel and clears it after window, unless a
// newer update replaced it in the meantime.
type transient struct {
	ch  display.Channel
	gen int
}

func (t *transient) flash(env *Env, text string, tone display.Tone, window time.Duration) {
	t.gen++
	gen := t.gen
	env.show(t.ch, text, tone)
	env.Sched.Schedule(window, func() error {
		if gen == t.gen {
			env.show(t.ch, "", display.ToneNeutral)
		}
		return nil
	})
}
