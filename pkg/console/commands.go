package console

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/ormasoftchile/labguide/pkg/diagram"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/pkg/errors"
)

func (c *Console) handleList() {
	ids := c.reg.IDs()
	if len(ids) == 0 {
		fmt.Fprintf(c.output, "No guides loaded.\n")
		return
	}
	for _, id := range ids {
		g, _ := c.reg.LookupGuideTemplate(id)
		fmt.Fprintf(c.output, "  %-20s %d steps  %s\n", id, len(g.Steps), g.Meta.Title)
	}
}

func (c *Console) handleLoad(parts []string) error {
	if len(parts) < 2 {
		fmt.Fprintf(c.output, "Usage: load <guide>\n")
		return nil
	}
	return c.sess.LoadGuide(parts[1])
}

// handleDone completes the current step, or the named one.
func (c *Console) handleDone(parts []string) {
	if len(parts) < 2 {
		if st, ok := c.sess.CompleteCurrent(); ok {
			fmt.Fprintf(c.output, "  ✓ %s\n", st.ID)
		} else {
			fmt.Fprintf(c.output, "Nothing to complete.\n")
		}
		return
	}
	if c.sess.CompleteStep(parts[1]) {
		fmt.Fprintf(c.output, "  ✓ %s\n", parts[1])
		return
	}
	// Rejections are only visible as exam errors.
	if !c.sess.ExamEnabled() {
		fmt.Fprintf(c.output, "  %s is not the current step.\n", parts[1])
	}
}

// handleGoto activates a step by 1-based number or id.
func (c *Console) handleGoto(parts []string) error {
	if len(parts) < 2 {
		fmt.Fprintf(c.output, "Usage: goto <n|step-id>\n")
		return nil
	}
	if n, err := strconv.Atoi(parts[1]); err == nil {
		return c.sess.ActivateStep(n - 1)
	}
	return c.sess.ActivateStepByID(parts[1])
}

func (c *Console) handleStatus() {
	st := c.sess.State()
	if st.GuideID == "" {
		fmt.Fprintf(c.output, "No guide loaded.\n")
		return
	}
	mode := "tutorial"
	if st.ExamMode {
		mode = "exam"
	}
	fmt.Fprintf(c.output, "%s (%s), mode=%s\n", st.GuideID, st.GuideTitle, mode)
	for i, s := range st.Steps {
		mark := " "
		switch {
		case i == st.CurrentIndex:
			mark = "▶"
		case s.Completed:
			mark = "✓"
		}
		if st.ExamMode {
			fmt.Fprintf(c.output, "  %s %d. %s\n", mark, i+1, s.ID)
			continue
		}
		fmt.Fprintf(c.output, "  %s %d. %-16s %s\n", mark, i+1, s.ID, s.Title)
	}
	if st.Finished {
		fmt.Fprintf(c.output, "Guide finished.\n")
	}
}

// handleDiagram draws the loaded guide with progress marks.
func (c *Console) handleDiagram(parts []string) error {
	st := c.sess.State()
	if st.GuideID == "" {
		fmt.Fprintf(c.output, "No guide loaded.\n")
		return nil
	}
	format := diagram.FormatASCII
	if len(parts) > 1 {
		format = diagram.Format(parts[1])
	}
	title := st.GuideTitle
	if title == "" {
		title = st.GuideID
	}
	steps := st.Steps
	if st.ExamMode {
		// Exam mode shows ids only.
		steps = make([]schema.Step, len(st.Steps))
		for i, s := range st.Steps {
			steps[i] = schema.Step{ID: s.ID, Completed: s.Completed}
		}
	}
	out, err := diagram.Generate(diagram.Flow{Title: title, Steps: steps, Current: st.CurrentIndex}, format)
	if err != nil {
		return err
	}
	fmt.Fprint(c.output, out)
	return nil
}

func (c *Console) handleExam(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(c.output, "exam mode: %v\n", c.sess.ExamEnabled())
		return
	}
	switch parts[1] {
	case "on":
		c.sess.EnableExam()
		fmt.Fprintf(c.output, "Exam mode on. Narration silenced.\n")
	case "off":
		c.sess.DisableExam()
		fmt.Fprintf(c.output, "Exam mode off.\n")
	case "reset":
		c.sess.ResetExam()
		fmt.Fprintf(c.output, "Exam counters reset.\n")
	default:
		fmt.Fprintf(c.output, "Usage: exam on|off|reset\n")
	}
}

func (c *Console) handleSummary() error {
	sum, err := c.sess.Summary()
	if err != nil {
		return err
	}
	verdict := "FAIL"
	if sum.Passed {
		verdict = "PASS"
	}
	fmt.Fprintf(c.output, "Completed %d/%d, errors %d, rollbacks %d, elapsed %s: %s\n",
		sum.Completed, sum.TotalSteps, sum.TotalErrors, sum.TotalRollbacks, sum.Elapsed.Round(time.Millisecond), verdict)

	ids := make([]string, 0, len(sum.StepDurations))
	for id := range sum.StepDurations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		fmt.Fprintf(c.output, "  %-16s %s\n", id, sum.StepDurations[id].Round(time.Millisecond))
	}
	for _, e := range sum.Errors {
		fmt.Fprintf(c.output, "  error at %s: %s\n", e.StepID, e.Reason)
	}
	return nil
}

func (c *Console) handleElapsed(parts []string) {
	if len(parts) < 2 {
		fmt.Fprintf(c.output, "Usage: elapsed <step-id>\n")
		return
	}
	fmt.Fprintf(c.output, "  %s: %s\n", parts[1], c.sess.StepElapsed(parts[1]).Round(time.Millisecond))
}

func (c *Console) handleQuiz(ctx context.Context, parts []string) error {
	if c.orch == nil {
		fmt.Fprintf(c.output, "No exam plan attached.\n")
		return nil
	}
	if len(parts) < 2 {
		fmt.Fprintf(c.output, "Usage: quiz <score>\n")
		return nil
	}
	score, err := strconv.ParseFloat(parts[1], 64)
	if err != nil {
		return errors.Wrapf(err, "score %q", parts[1])
	}
	return c.orch.SubmitQuiz(ctx, score)
}

func (c *Console) handleSection() {
	if c.orch == nil {
		fmt.Fprintf(c.output, "No exam plan attached.\n")
		return
	}
	for _, r := range c.orch.Results() {
		fmt.Fprintf(c.output, "  ✓ %s (%s) %s\n", r.SectionID, r.Kind, r.Elapsed.Round(time.Second))
	}
	if sec, i, ok := c.orch.Current(); ok {
		fmt.Fprintf(c.output, "  ▶ %d. %s (%s) %s\n", i+1, sec.ID, sec.Kind, sec.Title)
	} else {
		fmt.Fprintf(c.output, "Exam plan over.\n")
	}
}

func (c *Console) handleQueue(parts []string) {
	q := c.sess.Queue()
	if q == nil {
		fmt.Fprintf(c.output, "No request queue configured.\n")
		return
	}
	if len(parts) > 1 && parts[1] == "clear" {
		fmt.Fprintf(c.output, "Dropped %d pending requests.\n", q.ClearQueue())
		return
	}
	fmt.Fprintf(c.output, "%d requests pending.\n", q.Len())
}

func (c *Console) handleHelp() {
	fmt.Fprintf(c.output, `Commands:
  list              List available guides
  load <guide>      Start a guide from its first step
  done [step-id]    Complete the current (or named) step
  goto <n|step-id>  Jump to a step (earlier unfinished steps come first)
  back              Roll back one step
  restart           Restart the current guide
  status            Show steps and progress
  diagram [mermaid] Draw the guide with progress
  exam on|off|reset Toggle exam instrumentation
  summary           Show the exam summary
  elapsed <step-id> Time spent on a step
  quiz <score>      Submit the current quiz section score (plans only)
  section           Show exam plan progress (plans only)
  queue [clear]     Show or clear pending remote requests
  help              Show this help
  quit              Exit
`)
}
