package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
)

// stepsPanel renders the scrollable step list.
type stepsPanel struct {
	steps   []schema.Step
	current int
	cursor  int // browsing cursor
	offset  int // scroll offset
	width   int
	height  int
}

// Sync replaces the step list, following the current step with the cursor
// when it moved.
func (p *stepsPanel) Sync(steps []schema.Step, current int) {
	moved := current != p.current
	p.steps = steps
	p.current = current
	if moved && current >= 0 {
		p.cursor = current
	}
	if p.cursor >= len(steps) {
		p.cursor = len(steps) - 1
	}
	if p.cursor < 0 && len(steps) > 0 {
		p.cursor = 0
	}
	p.ensureVisible()
}

// Follow moves the cursor to the current step.
func (p *stepsPanel) Follow() {
	if p.current >= 0 {
		p.cursor = p.current
		p.ensureVisible()
	}
}

func (p *stepsPanel) CursorUp() {
	if p.cursor > 0 {
		p.cursor--
		p.ensureVisible()
	}
}

func (p *stepsPanel) CursorDown() {
	if p.cursor < len(p.steps)-1 {
		p.cursor++
		p.ensureVisible()
	}
}

func (p *stepsPanel) ensureVisible() {
	visible := p.height - 2
	if visible < 1 {
		visible = 1
	}
	if p.cursor < p.offset {
		p.offset = p.cursor
	}
	if p.cursor >= p.offset+visible {
		p.offset = p.cursor - visible + 1
	}
	if p.offset < 0 {
		p.offset = 0
	}
}

func (p *stepsPanel) View() string {
	if len(p.steps) == 0 {
		return panelBorder.Width(p.width).Height(p.height).Render("  No steps loaded")
	}

	visible := p.height - 2
	if visible < 1 {
		visible = len(p.steps)
	}
	end := p.offset + visible
	if end > len(p.steps) {
		end = len(p.steps)
	}

	var lines []string
	for i := p.offset; i < end; i++ {
		st := p.steps[i]

		glyph, style := GlyphPending, stepNormal
		switch {
		case i == p.current:
			glyph, style = GlyphCurrent, stepCurrent
		case st.Completed:
			glyph, style = GlyphComplete, stepComplete
		}

		title := st.Title
		if title == "" {
			title = st.ID
		}
		maxTitle := p.width - 8
		if maxTitle < 4 {
			maxTitle = 4
		}
		title = runewidth.Truncate(title, maxTitle, "…")

		line := fmt.Sprintf(" %s %d. %s", glyph, i+1, title)
		if i == p.cursor {
			line = style.Reverse(true).Render(line)
		} else {
			line = style.Render(line)
		}
		lines = append(lines, line)
	}
	for len(lines) < visible {
		lines = append(lines, "")
	}

	return panelBorder.Width(p.width).Height(p.height).Render(
		panelTitle.Render("Steps") + "\n" + strings.Join(lines, "\n"),
	)
}

// Progress returns completed and total counts.
func (p *stepsPanel) Progress() (done, total int) {
	for _, s := range p.steps {
		if s.Completed {
			done++
		}
	}
	return done, len(p.steps)
}

// header joins left and right with padding to width.
func header(left, right string, width int) string {
	pad := width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if pad < 1 {
		pad = 1
	}
	return left + strings.Repeat(" ", pad) + right
}
