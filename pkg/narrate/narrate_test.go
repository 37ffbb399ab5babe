package narrate

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeading(t *testing.T) {
	assert.Equal(t, "Step 1/3: Introduction", Narration{Title: "Introduction", Index: 0, Total: 3}.Heading())
	assert.Equal(t, "Step 3/3: finish", Narration{StepID: "finish", Index: 2, Total: 3}.Heading())
}

func TestPlainText(t *testing.T) {
	tests := []struct {
		name string
		md   string
		want string
	}{
		{"empty", "  \n", ""},
		{"emphasis", "Look around the **bench**.", "Look around the bench."},
		{"paragraphs", "First.\n\nSecond.", "First.\nSecond."},
		{"list", "Check:\n\n- burette\n- flask", "Check:\n- burette\n- flask"},
		{"code", "```\nrun it\n```", "run it"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PlainText(tt.md))
		})
	}
}

func TestPlainNarrator(t *testing.T) {
	var buf bytes.Buffer
	NewPlain(&buf).Narrate(Narration{
		StepID:    "fill",
		Title:     "Fill the burette",
		Body:      "Drain to **0.00 mL**.",
		Highlight: "burette",
		Index:     1,
		Total:     6,
	})
	assert.Equal(t, "\nStep 2/6: Fill the burette\n  Drain to 0.00 mL.\n  (look at: burette)\n", buf.String())
}

func TestRecorder(t *testing.T) {
	r := &Recorder{}
	_, ok := r.Last()
	assert.False(t, ok)

	r.Narrate(Narration{StepID: "a"})
	r.Narrate(Narration{StepID: "b"})
	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].StepID)

	all[0].StepID = "changed"
	last, ok := r.Last()
	require.True(t, ok)
	assert.Equal(t, "b", last.StepID)
	assert.Equal(t, "a", r.All()[0].StepID)
}

func TestMarkdownNarrator(t *testing.T) {
	var buf bytes.Buffer
	m, err := NewMarkdown(&buf, 80)
	require.NoError(t, err)
	m.Narrate(Narration{Title: "Intro", Body: "Look at the bench.", Index: 0, Total: 2})
	assert.Contains(t, buf.String(), "Intro")
	assert.Contains(t, buf.String(), "bench")
}

func TestAutoFallsBackToPlain(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "out.txt"))
	require.NoError(t, err)
	defer f.Close()
	_, ok := Auto(f).(*Plain)
	assert.True(t, ok)
}

func TestSilent(t *testing.T) {
	var n Narrator = Silent{}
	n.Narrate(Narration{Title: "nothing happens"})
}
