package main

import (
	"context"
	"fmt"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/ormasoftchile/labguide/pkg/console"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/guide/validate"
	lmcp "github.com/ormasoftchile/labguide/pkg/mcp"
	"github.com/ormasoftchile/labguide/pkg/narrate"
	"github.com/ormasoftchile/labguide/pkg/session"
	"github.com/ormasoftchile/labguide/pkg/tui"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// --- walk ---

var walkCmd = &cobra.Command{
	Use:   "walk [guide]",
	Short: "Walk through a guide in the terminal UI (tutorial mode)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		narr := &narrate.Recorder{}
		a, err := newApp(narr, "")
		if err != nil {
			return err
		}
		if err := a.sess.LoadGuide(args[0]); err != nil {
			a.close()
			return err
		}
		return a.run(cmd.Context(), func(ctx context.Context) error {
			return tui.Run(a.sess, narr)
		})
	},
}

// --- console ---

var (
	consoleExam bool
	consolePlan string
)

var consoleCmd = &cobra.Command{
	Use:   "console [guide]",
	Short: "Interactive console driving a guide session",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConsole,
}

func runConsole(cmd *cobra.Command, args []string) error {
	var plan *schema.Plan
	passRule := ""
	if consolePlan != "" {
		p, err := schema.LoadPlanFile(consolePlan)
		if err != nil {
			return err
		}
		plan = p
		passRule = p.Meta.PassRule
	}

	a, err := newApp(narrate.Auto(os.Stdout), passRule)
	if err != nil {
		return err
	}

	var orch *session.Orchestrator
	if plan != nil {
		if err := report(cmd.ErrOrStderr(), validate.ValidatePlan(plan, a.reg.Has)); err != nil {
			a.close()
			return err
		}
		if orch, err = session.NewOrchestrator(a.sess, plan); err != nil {
			a.close()
			return err
		}
	}
	if consoleExam {
		a.sess.EnableExam()
	}
	if len(args) == 1 && orch == nil {
		if err := a.sess.LoadGuide(args[0]); err != nil {
			a.close()
			return err
		}
	}

	con := console.New(a.sess, a.reg)
	con.SetOutput(cmd.OutOrStdout())
	if orch != nil {
		con.AttachPlan(orch)
	}

	return a.run(cmd.Context(), func(ctx context.Context) error {
		ctx, cancel := context.WithCancel(ctx)
		defer cancel()
		g, ctx := errgroup.WithContext(ctx)
		if orch != nil {
			g.Go(func() error {
				err := orch.Run(ctx)
				switch {
				case err == nil:
					fmt.Fprintln(cmd.OutOrStdout(), "\nExam plan complete. Type 'section' for results.")
				case errors.Is(err, session.ErrTimeUp):
					fmt.Fprintln(cmd.OutOrStdout(), "\nTime is up. Type 'section' for results.")
				case errors.Is(err, context.Canceled):
				default:
					log.Error().Err(err).Str("plan", plan.Meta.ID).Msg("Exam plan stopped")
				}
				return nil
			})
		}
		g.Go(func() error {
			defer cancel()
			return con.Run(ctx)
		})
		return g.Wait()
	})
}

// --- mcp ---

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve a guide session to AI agents over MCP (stdio)",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		// stdout carries the protocol, so the session never narrates.
		a, err := newApp(narrate.Silent{}, "")
		if err != nil {
			return err
		}
		s := lmcp.NewServer(version, lmcp.NewHandlers(a.sess, a.reg))
		return a.run(cmd.Context(), func(ctx context.Context) error {
			return server.ServeStdio(s)
		})
	},
}

func init() {
	consoleCmd.Flags().BoolVar(&consoleExam, "exam", false, "Enable exam instrumentation (silences narration, counts errors)")
	consoleCmd.Flags().StringVar(&consolePlan, "plan", "", "Run a plan/v1 exam plan")
}
