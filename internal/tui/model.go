// Package tui provides the Bubble Tea workload interface.
package tui

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/sepia/internal/display"
	"github.com/verte-zerg/sepia/internal/model"
	"github.com/verte-zerg/sepia/internal/phase"
	"github.com/verte-zerg/sepia/internal/task"
)

// FrameInterval is how often the engine clock is advanced.
const FrameInterval = 50 * time.Millisecond

const (
	inputArithmetic = iota
	inputDigits
	inputTargets
)

var (
	neutralStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	positiveStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#52C41A"))
	negativeStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	targetStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	decoyStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	mutedStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	problemStyle  = neutralStyle.Copy().Bold(true)
	cardStyle     = lipgloss.NewStyle().
			Width(9).
			Align(lipgloss.Center).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	focusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	reportStyle    = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
)

type frameMsg time.Time

// Model implements the Bubble Tea workload UI. It is also the engine's
// display: updates arrive synchronously from Update.
type Model struct {
	engine *phase.Engine
	now    func() time.Time

	channels map[display.Channel]display.Update

	inputs []textinput.Model
	focus  int
	notice display.Update

	report   viewport.Model
	keys     keyMap
	help     help.Model
	quitting bool

	width  int
	height int
}

// NewModel constructs the UI and its engine. now defaults to time.Now.
func NewModel(opts phase.Options, now func() time.Time) *Model {
	if now == nil {
		now = time.Now
	}
	m := &Model{
		now:      now,
		channels: map[display.Channel]display.Update{},
		keys:     defaultKeys(),
		help:     help.New(),
		report:   viewport.New(0, 0),
	}
	opts.Display = m
	m.engine = phase.New(opts)
	m.inputs = []textinput.Model{
		newAnswerInput("Arithmetic: ", "answer"),
		newAnswerInput("Digits:     ", "locked until the phase ends"),
		newAnswerInput("Targets:    ", "locked until the phase ends"),
	}
	m.setFocus(inputArithmetic)
	return m
}

func newAnswerInput(prompt, placeholder string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.Placeholder = placeholder
	input.CharLimit = 16
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

// Engine exposes the phase controller.
func (m *Model) Engine() *phase.Engine {
	return m.engine
}

// Show implements display.Display.
func (m *Model) Show(u display.Update) {
	m.channels[u.Channel] = u
	if u.Channel == display.ChannelReport {
		m.report.SetContent(u.Text)
		m.report.GotoTop()
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	if err := m.engine.Start(m.now()); err != nil {
		m.setNotice(err.Error(), display.ToneNegative)
	}
	return tea.Batch(textinput.Blink, frame())
}

func frame() tea.Cmd {
	return tea.Tick(FrameInterval, func(t time.Time) tea.Msg {
		return frameMsg(t)
	})
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case frameMsg:
		m.advance(time.Time(msg))
		return m, frame()
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.help.Width = msg.Width
		m.updateLayout()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m *Model) advance(now time.Time) {
	before := m.engine.State()
	m.engine.Advance(now)
	if before == phase.StateRunning && m.engine.State() == phase.StateEnded {
		m.inputs[inputDigits].Placeholder = "e.g. 4921"
		m.inputs[inputTargets].Placeholder = "number of ◆ seen"
		m.setFocus(inputDigits)
	}
}

func (m *Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Quit):
		m.quitting = true
		return m, tea.Quit
	case key.Matches(msg, m.keys.Next):
		m.setFocus((m.focus + 1) % len(m.inputs))
		return m, nil
	case key.Matches(msg, m.keys.Prev):
		m.setFocus((m.focus + len(m.inputs) - 1) % len(m.inputs))
		return m, nil
	case key.Matches(msg, m.keys.Reset):
		m.resetPhase()
		return m, nil
	case key.Matches(msg, m.keys.Report):
		m.requestReport()
		return m, nil
	case key.Matches(msg, m.keys.Submit):
		m.submit()
		return m, nil
	case key.Matches(msg, m.keys.Scroll) && m.engine.State() == phase.StateReported:
		var cmd tea.Cmd
		m.report, cmd = m.report.Update(msg)
		return m, cmd
	}
	var cmd tea.Cmd
	m.inputs[m.focus], cmd = m.inputs[m.focus].Update(msg)
	return m, cmd
}

func (m *Model) setFocus(i int) {
	m.focus = i
	for j := range m.inputs {
		if j == i {
			m.inputs[j].Focus()
			m.inputs[j].PromptStyle = focusStyle
			continue
		}
		m.inputs[j].Blur()
		m.inputs[j].PromptStyle = mutedStyle
	}
}

func (m *Model) submit() {
	raw := m.inputs[m.focus].Value()
	var (
		verdict model.Verdict
		err     error
		what    string
	)
	switch m.focus {
	case inputArithmetic:
		verdict, err = m.engine.SubmitArithmetic(raw)
		what = "arithmetic"
	case inputDigits:
		verdict, err = m.engine.SubmitDigits(raw)
		what = "digit sequence"
	case inputTargets:
		verdict, err = m.engine.SubmitTargets(raw)
		what = "target count"
	}
	switch {
	case errors.Is(err, task.ErrRecallLocked):
		m.setNotice("recall opens when the phase ends", display.ToneNegative)
		return
	case err != nil:
		m.setNotice(err.Error(), display.ToneNegative)
		return
	}
	m.inputs[m.focus].SetValue("")
	switch {
	case verdict == model.VerdictInvalid && m.focus == inputTargets:
		m.setNotice("enter a whole number", display.ToneNegative)
	case m.focus == inputArithmetic:
		m.setNotice("", display.ToneNeutral)
	default:
		m.setNotice(what+" recorded", display.ToneNeutral)
	}
}

func (m *Model) requestReport() {
	_, err := m.engine.Report()
	switch {
	case errors.Is(err, phase.ErrPhaseActive):
		m.setNotice("the report is available once the phase ends", display.ToneNegative)
	case err != nil:
		m.setNotice(err.Error(), display.ToneNegative)
	default:
		m.setNotice("", display.ToneNeutral)
	}
}

func (m *Model) resetPhase() {
	m.engine.Reset(m.now())
	m.report.SetContent("")
	for i := range m.inputs {
		m.inputs[i].SetValue("")
	}
	m.inputs[inputDigits].Placeholder = "locked until the phase ends"
	m.inputs[inputTargets].Placeholder = "locked until the phase ends"
	m.setFocus(inputArithmetic)
	m.setNotice("", display.ToneNeutral)
}

func (m *Model) setNotice(text string, tone display.Tone) {
	m.notice = display.Update{Text: text, Tone: tone}
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	m.report.Width = m.width - 4
	m.report.Height = maxInt(3, m.height-16)
	for i := range m.inputs {
		m.inputs[i].Width = maxInt(1, m.width-lipgloss.Width(m.inputs[i].Prompt)-2)
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.quitting {
		return ""
	}
	sections := []string{
		m.line(display.ChannelTelemetry),
		m.line(display.ChannelStatus),
		"",
		problemStyle.Render(m.text(display.ChannelProblem)),
		m.line(display.ChannelFeedback),
		"",
		lipgloss.JoinHorizontal(lipgloss.Top,
			m.card("digit", display.ChannelDigit),
			" ",
			m.card("marker", display.ChannelMarker),
		),
		"",
	}
	for i := range m.inputs {
		sections = append(sections, m.inputs[i].View())
	}
	if m.notice.Text != "" {
		sections = append(sections, toneStyle(m.notice.Tone).Render(m.notice.Text))
	}
	if m.engine.State() == phase.StateReported {
		sections = append(sections, reportStyle.Render(m.report.View()))
	}
	sections = append(sections, "", m.renderFooter(m.now()), m.help.View(m.keys))

	content := strings.Join(sections, "\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Top, content)
}

func (m *Model) text(ch display.Channel) string {
	return m.channels[ch].Text
}

func (m *Model) line(ch display.Channel) string {
	u := m.channels[ch]
	return toneStyle(u.Tone).Render(u.Text)
}

func (m *Model) card(title string, ch display.Channel) string {
	u := m.channels[ch]
	body := toneStyle(u.Tone).Render(u.Text)
	return lipgloss.JoinVertical(lipgloss.Center, cardTitleStyle.Render(title), cardStyle.Render(body))
}

func (m *Model) renderFooter(now time.Time) string {
	state := m.engine.State()
	segments := []string{"Phase " + state.String()}
	if state == phase.StateRunning {
		segments = append(segments, "Remaining "+formatClock(m.engine.Remaining(now)))
	}
	digits, events := m.engine.Progress()
	segments = append(segments, fmt.Sprintf("Digits shown %d", digits), fmt.Sprintf("Events %d", events))
	if n := len(m.engine.Errors()); n > 0 {
		segments = append(segments, fmt.Sprintf("Errors %d", n))
	}
	return mutedStyle.Render(strings.Join(segments, "  "))
}

func formatClock(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}

func toneStyle(t display.Tone) lipgloss.Style {
	switch t {
	case display.TonePositive:
		return positiveStyle
	case display.ToneNegative:
		return negativeStyle
	case display.ToneTarget:
		return targetStyle
	case display.ToneDecoy:
		return decoyStyle
	default:
		return neutralStyle
	}
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
