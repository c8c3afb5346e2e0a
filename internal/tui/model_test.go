package tui

import (
	"strconv"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/phase"
)

var start = time.Date(2024, 7, 1, 12, 0, 0, 0, time.UTC)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newTestModel(t *testing.T) (*Model, *clock) {
	t.Helper()
	c := &clock{t: start}
	m := NewModel(phase.Options{Duration: time.Minute, Seed: 9}, c.now)
	m.Init()
	return m, c
}

func (c *clock) step(m *Model, d time.Duration) {
	c.t = c.t.Add(d)
	m.Update(frameMsg(c.t))
}

func typeText(m *Model, s string) {
	m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)})
}

func press(m *Model, k tea.KeyType) {
	m.Update(tea.KeyMsg{Type: k})
}

func TestArithmeticAnswerThroughInput(t *testing.T) {
	m, c := newTestModel(t)
	c.step(m, 0)

	p, ok := m.Engine().CurrentProblem()
	require.True(t, ok)
	assert.Contains(t, m.text(display.ChannelProblem), p.String())

	typeText(m, strconv.Itoa(p.Expected))
	press(m, tea.KeyEnter)
	assert.Contains(t, m.text(display.ChannelFeedback), "correct")
	assert.Empty(t, m.inputs[inputArithmetic].Value())
	assert.Empty(t, m.text(display.ChannelProblem))
}

func TestRecallLockedUntilPhaseEnds(t *testing.T) {
	m, c := newTestModel(t)
	m.Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	press(m, tea.KeyTab)
	assert.Equal(t, inputDigits, m.focus)
	typeText(m, "1234")
	press(m, tea.KeyEnter)
	assert.Contains(t, m.notice.Text, "recall opens")
	assert.Equal(t, "1234", m.inputs[inputDigits].Value())

	press(m, tea.KeyCtrlE)
	assert.Contains(t, m.notice.Text, "once the phase ends")

	c.step(m, time.Minute)
	assert.Equal(t, phase.StateEnded, m.Engine().State())
	assert.Equal(t, inputDigits, m.focus)

	press(m, tea.KeyEnter)
	assert.Equal(t, "digit sequence recorded", m.notice.Text)

	press(m, tea.KeyTab)
	typeText(m, "lots")
	press(m, tea.KeyEnter)
	assert.Equal(t, "enter a whole number", m.notice.Text)

	press(m, tea.KeyCtrlE)
	assert.Equal(t, phase.StateReported, m.Engine().State())
	assert.Contains(t, m.text(display.ChannelReport), "Phase report")
	assert.Contains(t, m.View(), "Digit sequence")
}

func TestResetKeyStartsFreshPhase(t *testing.T) {
	m, c := newTestModel(t)
	first, _ := m.Engine().Phase()
	c.step(m, 30*time.Second)
	press(m, tea.KeyCtrlR)

	second, _ := m.Engine().Phase()
	assert.NotEqual(t, first.ID, second.ID)
	assert.Equal(t, c.t, second.StartedAt)
	assert.Equal(t, inputArithmetic, m.focus)

	// The first phase would have ended here.
	c.step(m, 30*time.Second)
	assert.Equal(t, phase.StateRunning, m.Engine().State())
}

func TestRenderFooterFormats(t *testing.T) {
	m, c := newTestModel(t)
	c.step(m, 15*time.Second)
	out := m.renderFooter(c.t)
	for _, want := range []string{"Phase running", "Remaining 0:45", "Digits shown", "Events"} {
		assert.True(t, strings.Contains(out, want), "footer %q missing %q", out, want)
	}

	c.step(m, time.Minute)
	out = m.renderFooter(c.t)
	assert.Contains(t, out, "Phase ended")
	assert.NotContains(t, out, "Remaining")
}

func TestQuitKey(t *testing.T) {
	m, _ := newTestModel(t)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	require.NotNil(t, cmd)
	assert.Empty(t, m.View())
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "5:00", formatClock(5*time.Minute))
	assert.Equal(t, "0:09", formatClock(9400*time.Millisecond))
}
