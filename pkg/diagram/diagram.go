// Package diagram renders guides as flow diagrams.
// Supports Mermaid flowchart and ASCII formats.
package diagram

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/pkg/errors"
)

// Format represents the output diagram format.
type Format string

const (
	FormatMermaid Format = "mermaid"
	FormatASCII   Format = "ascii"
)

// Flow is what gets drawn: a titled, ordered list of steps. Completed flags
// and Current (-1 for none) mark progress.
type Flow struct {
	Title   string
	Steps   []schema.Step
	Current int
}

// FromGuide builds a Flow from a template, without progress.
func FromGuide(g *schema.Guide) Flow {
	title := g.Meta.Title
	if title == "" {
		title = g.ID()
	}
	return Flow{Title: title, Steps: g.Steps, Current: -1}
}

// Generate produces a diagram string.
func Generate(f Flow, format Format) (string, error) {
	switch format {
	case FormatMermaid:
		return generateMermaid(f), nil
	case FormatASCII:
		return generateASCII(f), nil
	default:
		return "", errors.Errorf("unsupported diagram format: %s", format)
	}
}

// --- Mermaid flowchart ---

func generateMermaid(f Flow) string {
	var b strings.Builder
	b.WriteString("flowchart TD\n")
	if len(f.Steps) == 0 {
		return b.String()
	}

	index := make(map[string]int, len(f.Steps))
	for i, s := range f.Steps {
		index[s.ID] = i
	}

	b.WriteString("    START([Start]) --> " + safeID(f.Steps[0].ID) + "\n")
	for i, s := range f.Steps {
		b.WriteString("    " + nodeDefinition(s) + "\n")
		if i < len(f.Steps)-1 {
			b.WriteString(fmt.Sprintf("    %s --> %s\n", safeID(s.ID), safeID(f.Steps[i+1].ID)))
		}
	}
	b.WriteString(fmt.Sprintf("    %s --> END([Done])\n", safeID(f.Steps[len(f.Steps)-1].ID)))

	// previous links that skip over steps
	for i, s := range f.Steps {
		if p, ok := index[s.Previous]; ok && p < i-1 {
			b.WriteString(fmt.Sprintf("    %s -.->|\"after\"| %s\n", safeID(s.Previous), safeID(s.ID)))
		}
	}

	for i, s := range f.Steps {
		if style := stateStyle(stepState(f, i)); style != "" {
			b.WriteString(fmt.Sprintf("    style %s %s\n", safeID(s.ID), style))
		}
	}
	return b.String()
}

type state int

const (
	statePending state = iota
	stateDone
	stateCurrent
)

func stepState(f Flow, i int) state {
	switch {
	case i == f.Current:
		return stateCurrent
	case f.Steps[i].Completed:
		return stateDone
	default:
		return statePending
	}
}

func stateStyle(st state) string {
	switch st {
	case stateDone:
		return "fill:#0d6,stroke:#0a5,color:#fff"
	case stateCurrent:
		return "fill:#e60,stroke:#c40,color:#fff"
	default:
		return ""
	}
}

func stateIcon(st state) string {
	switch st {
	case stateDone:
		return "✓"
	case stateCurrent:
		return "▸"
	default:
		return "○"
	}
}

// --- ASCII ---

func generateASCII(f Flow) string {
	var b strings.Builder

	name := f.Title
	if name == "" {
		name = "Guide"
	}
	if len(f.Steps) == 0 {
		b.WriteString(name + " (empty)\n")
		return b.String()
	}

	// Uniform box width so every box and connector aligns.
	const indent = 8
	boxWidth := computeUniformBoxWidth(f, name)
	connCol := indent + 1 + boxWidth/2 // +1 for the border character
	pad := strings.Repeat(" ", indent)
	connPad := strings.Repeat(" ", connCol)

	headerText := centerPad(name, boxWidth)
	mid := boxWidth / 2
	b.WriteString(pad + "╔" + strings.Repeat("═", boxWidth) + "╗\n")
	b.WriteString(pad + "║" + headerText + "║\n")
	b.WriteString(pad + "╚" + strings.Repeat("═", mid) + "╤" + strings.Repeat("═", boxWidth-mid-1) + "╝\n")
	b.WriteString(connPad + "│\n")

	for i, s := range f.Steps {
		writeASCIIStep(&b, s, stepState(f, i), indent, boxWidth)
		if i < len(f.Steps)-1 {
			b.WriteString(connPad + "│\n")
		}
	}
	return b.String()
}

// computeUniformBoxWidth returns the widest interior width needed across all
// steps and the header name.
func computeUniformBoxWidth(f Flow, name string) int {
	w := 22
	if nw := runewidth.StringWidth(name) + 4; nw > w {
		w = nw
	}
	for i, s := range f.Steps {
		if sw := stepContentWidth(s, stepState(f, i)); sw > w {
			w = sw
		}
	}
	return w
}

func stepLabel(s schema.Step, st state) string {
	label := s.Title
	if label == "" {
		label = s.ID
	}
	return fmt.Sprintf(" %s %s ", stateIcon(st), label)
}

// stepContentWidth returns the interior width a single step box needs.
func stepContentWidth(s schema.Step, st state) int {
	w := runewidth.StringWidth(stepLabel(s, st))
	if s.Highlight != "" {
		if hw := runewidth.StringWidth(" → " + s.Highlight); hw > w {
			w = hw
		}
	}
	return w
}

// centerPad centers s within width using spaces, based on display width.
func centerPad(s string, width int) string {
	sw := runewidth.StringWidth(s)
	if sw >= width {
		return s
	}
	total := width - sw
	left := total / 2
	return strings.Repeat(" ", left) + s + strings.Repeat(" ", total-left)
}

func writeASCIIStep(b *strings.Builder, s schema.Step, st state, indent, boxWidth int) {
	content := stepLabel(s, st)
	contentWidth := runewidth.StringWidth(content)

	pad := strings.Repeat(" ", indent)
	mid := boxWidth / 2

	b.WriteString(pad + "┌" + strings.Repeat("─", boxWidth) + "┐\n")
	b.WriteString(pad + "│" + content + strings.Repeat(" ", boxWidth-contentWidth) + "│\n")
	if s.Highlight != "" {
		hl := " → " + s.Highlight
		b.WriteString(pad + "│" + hl + strings.Repeat(" ", boxWidth-runewidth.StringWidth(hl)) + "│\n")
	}
	b.WriteString(pad + "└" + strings.Repeat("─", mid) + "┬" + strings.Repeat("─", boxWidth-mid-1) + "┘\n")
}

// --- string helpers ---

func nodeDefinition(s schema.Step) string {
	title := s.Title
	if title == "" {
		title = s.ID
	}
	suffix := ""
	if s.Highlight != "" {
		suffix = "<br/>→ " + escMermaid(s.Highlight)
	}
	return fmt.Sprintf(`%s["%s%s"]`, safeID(s.ID), escMermaid(title), suffix)
}

func safeID(id string) string {
	r := strings.NewReplacer("-", "_", " ", "_", ".", "_")
	return r.Replace(id)
}

func escMermaid(s string) string {
	s = strings.ReplaceAll(s, `"`, "#quot;")
	s = strings.ReplaceAll(s, `'`, "#apos;")
	return s
}
