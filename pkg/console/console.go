// Package console implements the interactive readline driver for a session.
package console

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/session"
	"github.com/pkg/errors"
)

// Console reads commands and drives a session.
type Console struct {
	sess   *session.Session
	reg    *registry.Registry
	orch   *session.Orchestrator
	output io.Writer
}

// New creates a console writing to stdout.
func New(sess *session.Session, reg *registry.Registry) *Console {
	return &Console{sess: sess, reg: reg, output: os.Stdout}
}

// SetOutput redirects command output.
func (c *Console) SetOutput(w io.Writer) { c.output = w }

// AttachPlan enables the plan commands (quiz, section).
func (c *Console) AttachPlan(o *session.Orchestrator) { c.orch = o }

var commands = []string{"list", "load", "done", "goto", "back", "restart", "status", "diagram",
	"exam on", "exam off", "summary", "elapsed", "quiz", "section", "queue", "help", "quit"}

// Run starts the REPL loop. It returns on quit, EOF, ^C or ctx cancellation.
func (c *Console) Run(ctx context.Context) error {
	completer := readline.NewPrefixCompleter()
	for _, cmd := range commands {
		completer.Children = append(completer.Children, readline.PcItem(cmd))
	}

	rl, err := readline.NewEx(&readline.Config{
		Prompt:          c.prompt(),
		AutoComplete:    completer,
		InterruptPrompt: "^C",
		EOFPrompt:       "quit",
		Stdout:          c.output,
	})
	if err != nil {
		return errors.Wrap(err, "init readline")
	}
	defer rl.Close()
	go func() {
		<-ctx.Done()
		rl.Close()
	}()

	fmt.Fprintf(c.output, "labguide console, session %s\n", c.sess.ID())
	fmt.Fprintf(c.output, "Type 'help' for available commands.\n\n")

	for {
		rl.SetPrompt(c.prompt())
		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt || err == io.EOF || ctx.Err() != nil {
				return nil
			}
			return err
		}
		if c.Execute(ctx, line) {
			return nil
		}
	}
}

// Execute runs one command line. It reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) (quit bool) {
	parts := strings.Fields(line)
	if len(parts) == 0 {
		return false
	}

	var err error
	switch parts[0] {
	case "list", "ls":
		c.handleList()
	case "load", "l":
		err = c.handleLoad(parts)
	case "done", "d":
		c.handleDone(parts)
	case "goto", "g":
		err = c.handleGoto(parts)
	case "back", "b":
		err = c.sess.RollbackOneStep()
	case "restart":
		err = c.sess.RestartGuide()
	case "status", "s":
		c.handleStatus()
	case "diagram":
		err = c.handleDiagram(parts)
	case "exam":
		c.handleExam(parts)
	case "summary":
		err = c.handleSummary()
	case "elapsed":
		c.handleElapsed(parts)
	case "quiz":
		err = c.handleQuiz(ctx, parts)
	case "section":
		c.handleSection()
	case "queue":
		c.handleQueue(parts)
	case "help", "?":
		c.handleHelp()
	case "quit", "q", "exit":
		fmt.Fprintf(c.output, "Bye.\n")
		return true
	default:
		fmt.Fprintf(c.output, "Unknown command: %q. Type 'help' for available commands.\n", parts[0])
	}
	if err != nil {
		fmt.Fprintf(c.output, "Error: %v\n", err)
	}
	return false
}

// prompt renders labguide[2/3 | setup]>
func (c *Console) prompt() string {
	st := c.sess.State()
	switch {
	case st.GuideID == "":
		return "labguide> "
	case st.Finished:
		return fmt.Sprintf("labguide[%s done]> ", st.GuideID)
	}
	cur, ok := st.Current()
	if !ok {
		return fmt.Sprintf("labguide[%s]> ", st.GuideID)
	}
	mode := ""
	if st.ExamMode {
		mode = " exam"
	}
	return fmt.Sprintf("labguide[%d/%d | %s%s]> ", st.CurrentIndex+1, len(st.Steps), cur.ID, mode)
}
