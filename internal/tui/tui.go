// Package tui implements the live run view using Bubble Tea.
//
// The view fills a transcript viewport as steps resolve and keeps a status
// header with the run's progress. The run itself executes on the program's
// command goroutine; step results arrive through a buffered channel so the
// dispatcher never blocks on a slow terminal.
package tui

import (
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/wordwrap"

	harness "github.com/callwright/callwright/core"
)

// ErrInterrupted reports that the user quit the view before the run
// finished.
var ErrInterrupted = errors.New("run interrupted")

// RunFunc executes the run while reporting every recorded step through
// observe. It is called once, on the program's command goroutine.
type RunFunc func(observe func(harness.StepResult)) ([]harness.RunReport, error)

type stepMsg harness.StepResult

type runDoneMsg struct {
	reports []harness.RunReport
	err     error
}

type styles struct {
	title  lipgloss.Style
	status lipgloss.Style
	user   lipgloss.Style
	agent  lipgloss.Style
	note   lipgloss.Style
	failed lipgloss.Style
	help   lipgloss.Style
}

func newStyles() styles {
	return styles{
		title:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212")),
		status: lipgloss.NewStyle().Foreground(lipgloss.Color("111")),
		user:   lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("83")),
		agent:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("75")),
		note:   lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		failed: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("203")),
		help:   lipgloss.NewStyle().Foreground(lipgloss.Color("241")),
	}
}

// Model is the live run view.
type Model struct {
	title string
	total int

	run    RunFunc
	events chan harness.StepResult

	lines         []string
	conversations int
	steps         int

	reports []harness.RunReport
	runErr  error
	done    bool

	spinner  spinner.Model
	viewport viewport.Model
	width    int
	height   int
	styles   styles
}

// New builds the view for a run over total conversations. Init starts run.
func New(title string, total int, run RunFunc) Model {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("212"))

	return Model{
		title:    title,
		total:    total,
		run:      run,
		events:   make(chan harness.StepResult, 64),
		spinner:  sp,
		viewport: viewport.New(0, 0),
		width:    80,
		height:   24,
		styles:   newStyles(),
	}
}

// Reports returns the finished run's reports, nil while it is in flight.
func (m Model) Reports() []harness.RunReport { return m.reports }

func (m Model) Init() tea.Cmd {
	return tea.Batch(m.spinner.Tick, m.startRun(), m.nextEvent())
}

// startRun executes the run and closes the event channel when it returns,
// which ends the nextEvent chain.
func (m Model) startRun() tea.Cmd {
	events := m.events
	run := m.run
	return func() tea.Msg {
		reports, err := run(func(step harness.StepResult) {
			select {
			case events <- step:
			default:
			}
		})
		close(events)
		return runDoneMsg{reports: reports, err: err}
	}
}

func (m Model) nextEvent() tea.Cmd {
	events := m.events
	return func() tea.Msg {
		step, ok := <-events
		if !ok {
			return nil
		}
		return stepMsg(step)
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil
	case stepMsg:
		m.appendStep(harness.StepResult(msg))
		m.refreshTranscript()
		return m, m.nextEvent()
	case runDoneMsg:
		m.done = true
		m.reports = msg.reports
		m.runErr = msg.err
		return m, nil
	case spinner.TickMsg:
		if m.done {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *Model) appendStep(step harness.StepResult) {
	if step.Step == 1 {
		m.conversations++
		if len(m.lines) > 0 {
			m.lines = append(m.lines, "")
		}
		m.lines = append(m.lines, m.styles.note.Render(
			fmt.Sprintf("conversation %d of %d", m.conversations, m.total)))
	}
	m.steps++

	switch {
	case step.Utterance != "":
		m.lines = append(m.lines, m.styles.user.Render("You:")+" "+step.Utterance)
	case step.AudioBytes > 0:
		m.lines = append(m.lines, m.styles.user.Render("You:")+" "+
			m.styles.note.Render(fmt.Sprintf("(audio, %d bytes)", step.AudioBytes)))
	}

	if step.Err != nil {
		m.lines = append(m.lines, m.styles.failed.Render("step failed:")+" "+step.Err.Error())
		return
	}

	switch {
	case step.Outcome.Text != "":
		line := m.styles.agent.Render("Agent:") + " " + step.Outcome.Text
		if step.Outcome.Status == harness.StatusTimedOutPartial {
			line += " " + m.styles.note.Render("(partial)")
		}
		m.lines = append(m.lines, line)
	case step.Outcome.Status == harness.StatusSessionClosed:
		m.lines = append(m.lines, m.styles.note.Render("(session closed by server)"))
	default:
		m.lines = append(m.lines, m.styles.note.Render("(no response)"))
	}
}

func (m *Model) refreshTranscript() {
	content := strings.Join(m.lines, "\n")
	if m.viewport.Width > 0 {
		content = wordwrap.String(content, m.viewport.Width)
	}
	m.viewport.SetContent(content)
	m.viewport.GotoBottom()
}

func (m *Model) resize() {
	m.viewport.Width = max(20, m.width-2)
	m.viewport.Height = max(3, m.height-6)
	m.refreshTranscript()
}

func (m Model) View() string {
	header := m.styles.title.Render(m.title) + "\n" + m.statusLine()
	help := m.styles.help.Render("up/down scroll, q to quit")
	return lipgloss.JoinVertical(lipgloss.Left, header, "", m.viewport.View(), "", help)
}

func (m Model) statusLine() string {
	if !m.done {
		return m.spinner.View() + m.styles.status.Render(
			fmt.Sprintf(" conversation %d of %d, %d steps", m.conversations, m.total, m.steps))
	}
	if m.runErr != nil {
		return m.styles.failed.Render("run failed: " + m.runErr.Error())
	}
	passed, failed, errored := 0, 0, 0
	for _, report := range m.reports {
		switch report.Outcome {
		case harness.RunPassed:
			passed++
		case harness.RunFailed:
			failed++
		default:
			errored++
		}
	}
	return m.styles.status.Render(
		fmt.Sprintf("done: %d passed, %d failed, %d errored", passed, failed, errored))
}

// Run drives the view to completion and returns the run's reports. Quitting
// before the run finishes returns ErrInterrupted; the caller is expected to
// cancel the run's context.
func Run(model Model) ([]harness.RunReport, error) {
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithMouseCellMotion())
	final, err := p.Run()
	if err != nil {
		return nil, fmt.Errorf("failed to run live view: %w", err)
	}
	m, ok := final.(Model)
	if !ok {
		return nil, errors.New("unexpected final model")
	}
	if !m.done {
		return nil, ErrInterrupted
	}
	return m.reports, m.runErr
}
