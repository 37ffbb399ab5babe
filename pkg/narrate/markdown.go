package narrate

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/charmbracelet/glamour"
	"github.com/mattn/go-isatty"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// Markdown renders narration through glamour for terminals.
type Markdown struct {
	mu       sync.Mutex
	w        io.Writer
	renderer *glamour.TermRenderer
}

// NewMarkdown creates a glamour-backed narrator wrapping at width columns
// (0 disables wrapping).
func NewMarkdown(w io.Writer, width int) (*Markdown, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil, err
	}
	return &Markdown{w: w, renderer: r}, nil
}

// Narrate implements Narrator. Falls back to the raw markdown if rendering fails.
func (m *Markdown) Narrate(n Narration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	md := fmt.Sprintf("## %s\n\n%s\n", n.Heading(), n.Body)
	if n.Highlight != "" {
		md += fmt.Sprintf("\n> look at: `%s`\n", n.Highlight)
	}
	out, err := m.renderer.Render(md)
	if err != nil {
		out = md
	}
	fmt.Fprint(m.w, out)
}

// Auto picks the markdown narrator when f is a terminal and the plain one
// otherwise.
func Auto(f *os.File) Narrator {
	if isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd()) {
		if m, err := NewMarkdown(f, 80); err == nil {
			return m
		}
	}
	return NewPlain(f)
}

// PlainText flattens markdown to plain text: paragraphs and list items on
// their own lines, inline markup dropped.
func PlainText(md string) string {
	if strings.TrimSpace(md) == "" {
		return ""
	}
	source := []byte(md)
	doc := goldmark.DefaultParser().Parse(text.NewReader(source))

	var buf bytes.Buffer
	_ = ast.Walk(doc, func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		switch n := node.(type) {
		case *ast.Text:
			if entering {
				buf.Write(n.Segment.Value(source))
				if n.SoftLineBreak() || n.HardLineBreak() {
					buf.WriteByte(' ')
				}
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			if entering {
				lines := n.Lines()
				for i := 0; i < lines.Len(); i++ {
					seg := lines.At(i)
					buf.Write(seg.Value(source))
				}
				return ast.WalkSkipChildren, nil
			}
		case *ast.ListItem:
			if entering {
				buf.WriteString("- ")
			}
		case *ast.Paragraph, *ast.Heading, *ast.TextBlock:
			if !entering {
				buf.WriteByte('\n')
			}
		}
		return ast.WalkContinue, nil
	})
	return strings.TrimRight(buf.String(), "\n ")
}
