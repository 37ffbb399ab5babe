package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/ormasoftchile/labguide/pkg/session"
)

// Model is the Bubble Tea model of a guide walkthrough. Narration is read
// from the Recorder the session was built with.
type Model struct {
	sess *session.Session
	narr *narrate.Recorder

	steps     stepsPanel
	narration viewport.Model
	ready     bool

	showSummary bool
	summaryText string
	status      string

	width  int
	height int
}

// New creates the model. The session should already have a guide loaded.
func New(sess *session.Session, narr *narrate.Recorder) Model {
	m := Model{sess: sess, narr: narr, steps: stepsPanel{current: -1}}
	m.sync()
	return m
}

// Run starts the walkthrough full-screen.
func Run(sess *session.Session, narr *narrate.Recorder) error {
	_, err := tea.NewProgram(New(sess, narr), tea.WithAltScreen()).Run()
	return err
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.layout()
		m.sync()
		return m, nil
	case tea.KeyMsg:
		return m.handleKey(msg)
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if key.Matches(msg, keys.Quit) {
		return m, tea.Quit
	}
	if m.showSummary {
		if key.Matches(msg, keys.Close) || key.Matches(msg, keys.Summary) {
			m.showSummary = false
		}
		return m, nil
	}

	switch {
	case key.Matches(msg, keys.Complete):
		if st, ok := m.sess.CompleteCurrent(); ok {
			m.status = "Completed " + st.ID
		}
	case key.Matches(msg, keys.Up):
		m.steps.CursorUp()
		return m, nil
	case key.Matches(msg, keys.Down):
		m.steps.CursorDown()
		return m, nil
	case key.Matches(msg, keys.Goto):
		m.status = errText(m.sess.ActivateStep(m.steps.cursor))
	case key.Matches(msg, keys.Back):
		m.status = errText(m.sess.RollbackOneStep())
	case key.Matches(msg, keys.Restart):
		m.status = errText(m.sess.RestartGuide())
	case key.Matches(msg, keys.Exam):
		if m.sess.ExamEnabled() {
			m.sess.DisableExam()
			m.status = "Exam mode off"
		} else {
			m.sess.EnableExam()
			m.status = "Exam mode on"
		}
	case key.Matches(msg, keys.Summary):
		m.summaryText = m.renderSummary()
		m.showSummary = true
		return m, nil
	default:
		return m, nil
	}
	m.sync()
	m.steps.Follow()
	return m, nil
}

func errText(err error) string {
	if err != nil {
		return err.Error()
	}
	return ""
}

// sync pulls session state into the panels.
func (m *Model) sync() {
	st := m.sess.State()
	m.steps.Sync(st.Steps, st.CurrentIndex)
	if m.ready {
		m.narration.SetContent(m.renderNarration(st))
	}
}

func (m Model) renderNarration(st session.State) string {
	if st.Finished {
		return "Guide finished. Press s for the summary."
	}
	if st.ExamMode {
		return "Exam mode: narration is hidden."
	}
	n, ok := m.narr.Last()
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString(panelTitle.Render(n.Heading()))
	b.WriteString("\n")
	if body := renderMarkdown(n.Body, m.narration.Width); body != "" {
		b.WriteString(body)
		b.WriteString("\n")
	}
	if n.Highlight != "" {
		b.WriteString(highlightStyle.Render("Look at: " + n.Highlight))
	}
	return b.String()
}

func (m Model) renderSummary() string {
	sum, err := m.sess.Summary()
	if err != nil {
		return failedStyle.Render(err.Error())
	}
	verdict := failedStyle.Render("FAIL")
	if sum.Passed {
		verdict = passedStyle.Render("PASS")
	}
	lines := []string{
		panelTitle.Render("Exam summary") + "  " + verdict,
		"",
		fmt.Sprintf("Completed  %d/%d", sum.Completed, sum.TotalSteps),
		fmt.Sprintf("Errors     %d", sum.TotalErrors),
		fmt.Sprintf("Rollbacks  %d", sum.TotalRollbacks),
		fmt.Sprintf("Elapsed    %s", sum.Elapsed.Round(time.Millisecond)),
		"",
	}
	ids := make([]string, 0, len(sum.StepDurations))
	for id := range sum.StepDurations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		lines = append(lines, fmt.Sprintf("  %-16s %s", id, sum.StepDurations[id].Round(time.Millisecond)))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) layout() {
	if m.width == 0 || m.height == 0 {
		return
	}
	mainH := m.height - 3 // header, status, key bar
	if mainH < 4 {
		mainH = 4
	}
	stepsW := m.width * 30 / 100
	if stepsW < 25 {
		stepsW = 25
	}
	if stepsW > 45 {
		stepsW = 45
	}
	m.steps.width = stepsW
	m.steps.height = mainH

	w, h := m.width-stepsW-4, mainH-2
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	if !m.ready {
		m.narration = viewport.New(w, h)
		m.ready = true
	} else {
		m.narration.Width = w
		m.narration.Height = h
	}
}

// View implements tea.Model.
func (m Model) View() string {
	st := m.sess.State()
	if m.showSummary {
		box := overlayBorder.Render(m.summaryText)
		if m.width == 0 {
			return box
		}
		return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, box) + "\n" + keyBarText(true, st.Finished)
	}

	mode := "tutorial"
	if st.ExamMode {
		mode = "exam"
	}
	done, total := m.steps.Progress()
	left := headerStyle.Render("labguide") + " " + modeBadgeStyle.Render(mode) + "  " + st.GuideTitle
	top := header(left, fmt.Sprintf("%d/%d", done, total), m.width)

	var main string
	if m.ready {
		main = lipgloss.JoinHorizontal(lipgloss.Top, m.steps.View(), panelBorder.Render(m.narration.View()))
	} else {
		main = m.steps.View() + "\n" + m.renderNarration(st)
	}
	return top + "\n" + main + "\n" + statusStyle.Render(m.status) + "\n" + keyBarText(false, st.Finished)
}
