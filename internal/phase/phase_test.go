package phase

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/generator"
	"github.com/verte-zerg/sepia/internal/model"
	"github.com/verte-zerg/sepia/internal/task"
	"github.com/verte-zerg/sepia/internal/telemetry"
)

var t0 = time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)

const testDuration = 2 * time.Minute

func newEngine(t *testing.T, opts Options) (*Engine, *display.Recorder) {
	t.Helper()
	rec := display.NewRecorder()
	if opts.Duration == 0 {
		opts.Duration = testDuration
	}
	if opts.Seed == 0 {
		opts.Seed = 11
	}
	opts.Display = rec
	return New(opts), rec
}

func TestLifecycle(t *testing.T) {
	e, rec := newEngine(t, Options{})
	assert.Equal(t, StateIdle, e.State())
	_, err := e.Report()
	assert.ErrorIs(t, err, ErrIdle)
	_, err = e.SubmitDigits("1234")
	assert.ErrorIs(t, err, ErrIdle)

	require.NoError(t, e.Start(t0))
	assert.ErrorIs(t, e.Start(t0), ErrAlreadyStarted)
	assert.Equal(t, StateRunning, e.State())
	assert.Equal(t, testDuration, e.Remaining(t0))

	_, err = e.Report()
	assert.ErrorIs(t, err, ErrPhaseActive)
	_, err = e.SubmitDigits("1234")
	assert.ErrorIs(t, err, task.ErrRecallLocked)

	e.Advance(t0.Add(testDuration - time.Millisecond))
	assert.Equal(t, StateRunning, e.State())
	ph, ok := e.Phase()
	require.True(t, ok)
	assert.True(t, ph.Active)

	e.Advance(t0.Add(testDuration))
	assert.Equal(t, StateEnded, e.State())
	ph, _ = e.Phase()
	assert.False(t, ph.Active)
	assert.Zero(t, e.Remaining(t0.Add(testDuration)))
	assert.Empty(t, rec.Text(display.ChannelProblem))
	assert.Contains(t, rec.Text(display.ChannelStatus), "phase ended")

	_, err = e.SubmitArithmetic("3")
	assert.ErrorIs(t, err, task.ErrNotRunning)

	rep, err := e.Report()
	require.NoError(t, err)
	assert.Equal(t, StateReported, e.State())
	assert.Equal(t, ph.ID, rep.PhaseID)
	assert.False(t, rep.Digits.Answered)
	assert.False(t, rep.Targets.Answered)
	assert.NotEmpty(t, rec.Text(display.ChannelReport))
}

func TestArithmeticDuringPhase(t *testing.T) {
	e, _ := newEngine(t, Options{ArithmeticPeriod: 30 * time.Second})
	require.NoError(t, e.Start(t0))
	e.Advance(t0)

	p, ok := e.CurrentProblem()
	require.True(t, ok)
	if p.Op == model.OpDiv {
		assert.Zero(t, p.A%p.B)
	}
	v, err := e.SubmitArithmetic("not a number")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictInvalid, v)

	v, err = e.SubmitArithmetic(strconv.Itoa(p.Expected))
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCorrect, v)

	e.Advance(t0.Add(30 * time.Second))
	p, ok = e.CurrentProblem()
	require.True(t, ok)
	v, err = e.SubmitArithmetic(strconv.Itoa(p.Expected + 1))
	require.NoError(t, err)
	assert.Equal(t, model.VerdictWrong, v)

	e.Advance(t0.Add(testDuration))
	rep, err := e.Report()
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Arithmetic.Attempts)
	assert.Equal(t, 1, rep.Arithmetic.Correct)
	assert.Equal(t, 4, rep.Arithmetic.Problems)
}

func TestRecallAfterEnd(t *testing.T) {
	e, _ := newEngine(t, Options{})
	require.NoError(t, e.Start(t0))
	e.Advance(t0.Add(testDuration))
	require.Equal(t, StateEnded, e.State())

	r := e.round
	expectedDigits := r.digits.Sequence().Expected()
	expectedCount := r.targets.Set().TargetCount

	v, err := e.SubmitDigits(expectedDigits + "9")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictWrong, v)
	v, err = e.SubmitDigits(expectedDigits)
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCorrect, v)

	v, err = e.SubmitTargets("many")
	require.NoError(t, err)
	assert.Equal(t, model.VerdictInvalid, v)
	v, err = e.SubmitTargets(strconv.Itoa(expectedCount))
	require.NoError(t, err)
	assert.Equal(t, model.VerdictCorrect, v)

	rep, err := e.Report()
	require.NoError(t, err)
	assert.True(t, rep.Digits.Correct)
	assert.Equal(t, expectedDigits, rep.Digits.Submitted)
	assert.True(t, rep.Targets.Correct)
	assert.Equal(t, 2, rep.RecallScore())

	_, err = e.SubmitDigits("0000")
	assert.ErrorIs(t, err, ErrReported)
	_, err = e.SubmitTargets("0")
	assert.ErrorIs(t, err, ErrReported)
	_, err = e.SubmitArithmetic("0")
	assert.ErrorIs(t, err, ErrReported)

	again, err := e.Report()
	require.NoError(t, err)
	assert.Equal(t, rep, again)

	require.NotNil(t, rep.Arithmetic.ByOperator)
	rep.Arithmetic.ByOperator[model.OpAdd] = model.Tally{Attempts: 99}
	cached, err := e.Report()
	require.NoError(t, err)
	assert.Equal(t, again, cached, "the cached report must not share maps with callers")
	assert.NotEqual(t, 99, cached.Arithmetic.ByOperator[model.OpAdd].Attempts)
}

func TestCallbackFailureIsReportedNotFatal(t *testing.T) {
	cases := map[string]func() error{
		"error": func() error { return errors.New("boom") },
		"panic": func() error { panic("boom") },
	}
	for name, fn := range cases {
		t.Run(name, func(t *testing.T) {
			e, rec := newEngine(t, Options{})
			require.NoError(t, e.Start(t0))
			e.sched.Schedule(10*time.Second, fn)

			e.Advance(t0.Add(10 * time.Second))
			require.Len(t, e.Errors(), 1)
			assert.Contains(t, e.Errors()[0].Error(), "boom")
			status, ok := rec.Current(display.ChannelStatus)
			require.True(t, ok)
			assert.Contains(t, status.Text, "internal error")
			assert.Equal(t, display.ToneNegative, status.Tone)
			assert.Equal(t, StateRunning, e.State())

			e.Advance(t0.Add(testDuration - time.Millisecond))
			assert.Equal(t, StateRunning, e.State())
			e.Advance(t0.Add(testDuration))
			assert.Equal(t, StateEnded, e.State())
			assert.Len(t, e.Errors(), 1)
		})
	}
}

func TestResetLeavesNoStaleCallbacks(t *testing.T) {
	e, rec := newEngine(t, Options{})
	require.NoError(t, e.Start(t0))
	first, _ := e.Phase()

	// Reset shortly before the first phase would have ended.
	resetAt := t0.Add(testDuration - 10*time.Second)
	e.Advance(resetAt)
	e.Reset(resetAt)
	second, _ := e.Phase()
	require.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, resetAt, second.StartedAt)
	markersBefore := len(rec.History(display.ChannelMarker))
	digitsBefore := len(rec.History(display.ChannelDigit))

	// The first phase's end timer would fire here.
	e.Advance(t0.Add(testDuration))
	assert.Equal(t, StateRunning, e.State())
	cur, _ := e.Phase()
	assert.Equal(t, second.ID, cur.ID)
	assert.True(t, cur.Active)

	// Only the new phase's end timer ends it.
	e.Advance(resetAt.Add(testDuration - time.Millisecond))
	assert.Equal(t, StateRunning, e.State())
	e.Advance(resetAt.Add(testDuration))
	assert.Equal(t, StateEnded, e.State())

	_, events := e.Progress()
	assert.Equal(t, generator.TargetEvents, events)
	assert.Len(t, rec.History(display.ChannelMarker), markersBefore+generator.TargetEvents)
	assert.LessOrEqual(t, len(rec.History(display.ChannelDigit))-digitsBefore, len(e.round.digits.Sequence().Digits))
	assert.Empty(t, e.Errors())
}

func TestResetFromEveryState(t *testing.T) {
	for _, st := range []State{StateIdle, StateRunning, StateEnded, StateReported} {
		t.Run(st.String(), func(t *testing.T) {
			e, _ := newEngine(t, Options{})
			now := t0
			if st != StateIdle {
				require.NoError(t, e.Start(now))
			}
			if st == StateEnded || st == StateReported {
				now = now.Add(testDuration)
				e.Advance(now)
			}
			if st == StateReported {
				_, err := e.Report()
				require.NoError(t, err)
			}
			require.Equal(t, st, e.State())

			e.Reset(now)
			assert.Equal(t, StateRunning, e.State())
			ph, ok := e.Phase()
			require.True(t, ok)
			assert.True(t, ph.Active)
			assert.Equal(t, now, ph.StartedAt)

			e.Advance(now.Add(testDuration))
			assert.Equal(t, StateEnded, e.State())
		})
	}
}

func TestSeededResetRestoresIdenticalContent(t *testing.T) {
	e, _ := newEngine(t, Options{Seed: 5})
	require.NoError(t, e.Start(t0))
	seq := e.round.digits.Sequence()
	set := e.round.targets.Set()

	later := t0.Add(time.Minute)
	e.Advance(later)
	e.Reset(later)
	assert.Equal(t, seq, e.round.digits.Sequence())
	assert.Equal(t, set, e.round.targets.Set())
	assert.Equal(t, 2, e.Rounds())
}

func TestResubmissionOverwrites(t *testing.T) {
	e, _ := newEngine(t, Options{})
	require.NoError(t, e.Start(t0))
	e.Advance(t0.Add(testDuration))
	expected := e.round.digits.Sequence().Expected()

	_, err := e.SubmitDigits(expected)
	require.NoError(t, err)
	_, err = e.SubmitDigits("x")
	require.NoError(t, err)

	rep, err := e.Report()
	require.NoError(t, err)
	assert.True(t, rep.Digits.Answered)
	assert.Equal(t, "x", rep.Digits.Submitted)
	assert.False(t, rep.Digits.Correct)
}

func TestTelemetryRunsAlongside(t *testing.T) {
	src := telemetry.SourceFunc(func(name string) (float64, error) {
		if name == telemetry.VarVerticalSpeed {
			return -200, nil
		}
		return 1000, nil
	})
	e, rec := newEngine(t, Options{Source: src})
	require.NoError(t, e.Start(t0))
	e.Advance(t0.Add(time.Second))
	assert.Contains(t, rec.Text(display.ChannelTelemetry), "descent")
	assert.Len(t, rec.History(display.ChannelTelemetry), 3)
}

func TestOnReportHook(t *testing.T) {
	var got []model.Report
	e, _ := newEngine(t, Options{OnReport: func(r model.Report) { got = append(got, r) }})
	require.NoError(t, e.Start(t0))
	e.Advance(t0.Add(testDuration))
	_, err := e.Report()
	require.NoError(t, err)
	_, err = e.Report()
	require.NoError(t, err)
	assert.Len(t, got, 1)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultDuration, task.ProblemPeriod))
	assert.Error(t, Validate(5*time.Second, task.ProblemPeriod))
	assert.Error(t, Validate(DefaultDuration, 0))
}
