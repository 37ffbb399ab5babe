// Package narrate renders step narration (title and description) to the
// learner. Exam mode swaps narration for silence.
package narrate

import (
	"fmt"
	"io"
	"strings"
	"sync"
)

// Narration is what a sequencer hands a narrator when a step becomes current.
type Narration struct {
	GuideID    string
	GuideTitle string
	StepID     string
	Title      string
	Body       string // markdown
	Highlight  string
	Index      int
	Total      int
}

// Heading formats "Step i/n: Title".
func (n Narration) Heading() string {
	title := n.Title
	if title == "" {
		title = n.StepID
	}
	return fmt.Sprintf("Step %d/%d: %s", n.Index+1, n.Total, title)
}

// Narrator is an output channel for narration.
type Narrator interface {
	Narrate(n Narration)
}

// Silent discards narration.
type Silent struct{}

// Narrate implements Narrator.
func (Silent) Narrate(Narration) {}

// Plain writes narration as plain text, stripping markdown.
type Plain struct {
	mu sync.Mutex
	w  io.Writer
}

// NewPlain creates a plain-text narrator.
func NewPlain(w io.Writer) *Plain {
	return &Plain{w: w}
}

// Narrate implements Narrator.
func (p *Plain) Narrate(n Narration) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.w, "\n%s\n", n.Heading())
	if body := strings.TrimSpace(PlainText(n.Body)); body != "" {
		for _, line := range strings.Split(body, "\n") {
			fmt.Fprintf(p.w, "  %s\n", line)
		}
	}
	if n.Highlight != "" {
		fmt.Fprintf(p.w, "  (look at: %s)\n", n.Highlight)
	}
}

// Recorder keeps every narration in memory. Useful for drivers that render
// narration themselves and for tests.
type Recorder struct {
	mu    sync.Mutex
	items []Narration
}

// Narrate implements Narrator.
func (r *Recorder) Narrate(n Narration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

// All returns a copy of the recorded narrations.
func (r *Recorder) All() []Narration {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Narration, len(r.items))
	copy(out, r.items)
	return out
}

// Last returns the most recent narration.
func (r *Recorder) Last() (Narration, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.items) == 0 {
		return Narration{}, false
	}
	return r.items[len(r.items)-1], true
}
