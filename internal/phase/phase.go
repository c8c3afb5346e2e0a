// Package phase owns the phase lifecycle: it starts the subtasks and the
// telemetry poller, ends the phase on time, assembles the report and resets
// everything for a new phase.
package phase

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/generator"
	"github.com/verte-zerg/sepia/internal/model"
	"github.com/verte-zerg/sepia/internal/report"
	"github.com/verte-zerg/sepia/internal/scheduler"
	"github.com/verte-zerg/sepia/internal/task"
	"github.com/verte-zerg/sepia/internal/telemetry"
)

// DefaultDuration is the length of a phase when none is configured.
const DefaultDuration = 5 * time.Minute

// MinDuration leaves room for the target-event margins at both ends.
const MinDuration = 2*generator.TargetMargin + time.Second

var (
	ErrAlreadyStarted = errors.New("phase already started")
	ErrPhaseActive    = errors.New("phase is still running")
	ErrReported       = errors.New("phase already reported; reset to play again")
	ErrIdle           = errors.New("no phase started")
)

// State is a step of the phase lifecycle.
type State int

const (
	StateIdle State = iota
	StateRunning
	StateEnded
	StateReported
)

func (s State) String() string {
	switch s {
	case StateRunning:
		return "running"
	case StateEnded:
		return "ended"
	case StateReported:
		return "reported"
	default:
		return "idle"
	}
}

// Options configures an Engine.
type Options struct {
	Duration         time.Duration
	ArithmeticPeriod time.Duration
	// Seed fixes the random stream of every phase. Zero seeds from the clock.
	Seed     int64
	Display  display.Display
	Source   telemetry.Source
	Logger   *log.Logger
	OnReport func(model.Report)
}

// round holds everything that lives for exactly one phase.
type round struct {
	phase      model.Phase
	env        *task.Env
	arithmetic *task.Arithmetic
	digits     *task.Digits
	targets    *task.Targets
	report     *model.Report
}

// Engine is the phase controller. It is driven from a single goroutine and
// is not safe for concurrent use.
type Engine struct {
	opts   Options
	sched  *scheduler.Scheduler
	poller *telemetry.Poller
	logger *log.Logger

	state  State
	round  *round
	rounds int
	errs   []error
}

// New constructs an idle Engine.
func New(opts Options) *Engine {
	if opts.Duration <= 0 {
		opts.Duration = DefaultDuration
	}
	if opts.ArithmeticPeriod <= 0 {
		opts.ArithmeticPeriod = task.ProblemPeriod
	}
	if opts.Display == nil {
		opts.Display = display.Discard
	}
	if opts.Source == nil {
		opts.Source = telemetry.Unavailable
	}
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Engine{opts: opts, logger: opts.Logger}
}

// Validate checks that a duration can host a full phase.
func Validate(duration, period time.Duration) error {
	if duration < MinDuration {
		return fmt.Errorf("phase duration must be at least %s", MinDuration)
	}
	if period < time.Second {
		return fmt.Errorf("arithmetic period must be at least 1s")
	}
	return nil
}

// State returns the lifecycle state.
func (e *Engine) State() State {
	return e.state
}

// Phase returns the current phase.
func (e *Engine) Phase() (model.Phase, bool) {
	if e.round == nil {
		return model.Phase{}, false
	}
	return e.round.phase, true
}

// Remaining returns the time left in the running phase.
func (e *Engine) Remaining(now time.Time) time.Duration {
	if e.state != StateRunning || e.round == nil {
		return 0
	}
	left := e.round.phase.EndsAt().Sub(now)
	if left < 0 {
		return 0
	}
	return left
}

// Errors returns callback failures reported since the last reset.
func (e *Engine) Errors() []error {
	return append([]error(nil), e.errs...)
}

// Start begins the first phase.
func (e *Engine) Start(now time.Time) error {
	if e.state != StateIdle {
		return ErrAlreadyStarted
	}
	e.begin(now)
	return nil
}

// Reset cancels every pending callback, discards the current phase and
// starts a fresh one. It is valid in every state.
func (e *Engine) Reset(now time.Time) {
	if e.sched != nil {
		e.sched.CancelAll()
	}
	if e.poller != nil {
		e.poller.Stop()
	}
	e.round = nil
	e.poller = nil
	e.errs = nil
	e.state = StateIdle
	e.logger.Printf("phase reset")
	e.begin(now)
}

// Advance moves time forward and runs every due callback.
func (e *Engine) Advance(now time.Time) int {
	if e.sched == nil {
		return 0
	}
	return e.sched.Advance(now)
}

// Rounds returns how many phases have been started.
func (e *Engine) Rounds() int {
	return e.rounds
}

func (e *Engine) begin(now time.Time) {
	if e.sched == nil {
		e.sched = scheduler.New(now)
		e.sched.SetErrorHandler(e.callbackFailed)
	} else {
		e.sched.Advance(now)
	}
	now = e.sched.Now()
	e.rounds++

	seed := e.opts.Seed
	if seed == 0 {
		seed = now.UnixNano()
	}
	r := &round{phase: model.Phase{
		ID:        uuid.NewString(),
		Duration:  e.opts.Duration,
		StartedAt: now,
		Active:    true,
	}}
	r.env = &task.Env{
		Sched:   e.sched,
		Display: e.opts.Display,
		Gen:     generator.NewSeeded(seed),
		Phase:   &r.phase,
	}
	r.arithmetic = task.NewArithmetic(r.env, e.opts.ArithmeticPeriod)
	r.digits = task.NewDigits(r.env)
	r.targets = task.NewTargets(r.env)
	e.round = r

	for _, ch := range []display.Channel{display.ChannelProblem, display.ChannelFeedback, display.ChannelDigit, display.ChannelMarker, display.ChannelReport} {
		e.opts.Display.Show(display.Clear(ch))
	}

	e.poller = telemetry.NewPoller(e.sched, e.opts.Source, e.opts.Display)
	e.poller.Start()
	r.arithmetic.Start()
	r.digits.Start()
	r.targets.Start()
	e.sched.Schedule(r.phase.Duration, func() error {
		e.end(r)
		return nil
	})

	e.state = StateRunning
	e.status(fmt.Sprintf("phase running · %s", r.phase.Duration), display.ToneNeutral)
	e.logger.Printf("phase %s started (duration %s, seed %d)", r.phase.ID, r.phase.Duration, seed)
}

func (e *Engine) end(r *round) {
	if e.round != r || e.state != StateRunning {
		return
	}
	r.phase.Active = false
	r.arithmetic.Stop()
	r.digits.Unlock()
	r.targets.Unlock()
	e.state = StateEnded
	e.status("phase ended · enter the digit sequence and the target count", display.TonePositive)
	e.logger.Printf("phase %s ended", r.phase.ID)
}

func (e *Engine) callbackFailed(err error) {
	e.errs = append(e.errs, err)
	e.logger.Printf("scheduled callback failed: %v", err)
	e.status("internal error: "+err.Error(), display.ToneNegative)
}

func (e *Engine) status(text string, tone display.Tone) {
	e.opts.Display.Show(display.Update{Channel: display.ChannelStatus, Text: text, Tone: tone})
}

// SubmitArithmetic scores an answer to the displayed problem.
func (e *Engine) SubmitArithmetic(raw string) (model.Verdict, error) {
	if e.round == nil {
		return model.VerdictInvalid, ErrIdle
	}
	if e.state == StateReported {
		return model.VerdictInvalid, ErrReported
	}
	return e.round.arithmetic.Submit(raw)
}

// SubmitDigits scores the recalled digit sequence.
func (e *Engine) SubmitDigits(raw string) (model.Verdict, error) {
	if err := e.recallOpen(); err != nil {
		return model.VerdictInvalid, err
	}
	return e.round.digits.Submit(raw)
}

// SubmitTargets scores the recalled target count.
func (e *Engine) SubmitTargets(raw string) (model.Verdict, error) {
	if err := e.recallOpen(); err != nil {
		return model.VerdictInvalid, err
	}
	return e.round.targets.Submit(raw)
}

func (e *Engine) recallOpen() error {
	switch e.state {
	case StateIdle:
		return ErrIdle
	case StateReported:
		return ErrReported
	}
	return nil
}

// CurrentProblem returns the problem awaiting an answer.
func (e *Engine) CurrentProblem() (model.ArithmeticProblem, bool) {
	if e.round == nil {
		return model.ArithmeticProblem{}, false
	}
	return e.round.arithmetic.Current()
}

// Progress reports how many digits and events have been shown so far.
func (e *Engine) Progress() (digits, events int) {
	if e.round == nil {
		return 0, 0
	}
	return e.round.digits.Revealed(), e.round.targets.Fired()
}

// Report builds the phase report once the phase has ended. Later calls return
// the same report until the next reset.
func (e *Engine) Report() (model.Report, error) {
	switch e.state {
	case StateIdle:
		return model.Report{}, ErrIdle
	case StateRunning:
		return model.Report{}, ErrPhaseActive
	case StateReported:
		return e.round.report.Clone(), nil
	}
	r := e.round
	rep := model.Report{
		PhaseID:    r.phase.ID,
		StartedAt:  r.phase.StartedAt,
		EndedAt:    r.phase.EndsAt(),
		Duration:   r.phase.Duration,
		Arithmetic: r.arithmetic.Result(),
		Digits:     r.digits.Result(),
		Targets:    r.targets.Result(),
	}
	r.report = &rep
	e.state = StateReported
	e.opts.Display.Show(display.Update{Channel: display.ChannelReport, Text: report.Render(rep)})
	e.status("report ready · reset to start a new phase", display.ToneNeutral)
	e.logger.Printf("phase %s reported: arithmetic %d/%d, recall %d/2",
		rep.PhaseID, rep.Arithmetic.Correct, rep.Arithmetic.Attempts, rep.RecallScore())
	if e.opts.OnReport != nil {
		e.opts.OnReport(rep.Clone())
	}
	return rep.Clone(), nil
}
