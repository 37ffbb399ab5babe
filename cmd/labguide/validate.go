package main

import (
	"fmt"
	"io"

	"github.com/ormasoftchile/labguide/pkg/guide/registry"
	"github.com/ormasoftchile/labguide/pkg/guide/schema"
	"github.com/ormasoftchile/labguide/pkg/guide/validate"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

// --- validate ---

var validatePlan bool

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a guide document, or an exam plan with --plan",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	if validatePlan {
		p, err := schema.LoadPlanFile(args[0])
		if err != nil {
			return err
		}
		reg, err := loadRegistry(cfg.GuidesDir)
		if err != nil {
			return err
		}
		if err := report(cmd.ErrOrStderr(), validate.ValidatePlan(p, reg.Has)); err != nil {
			return err
		}
		fmt.Fprintf(out, "✓ plan %s is valid (%d sections)\n", p.Meta.ID, len(p.Sections))
		return nil
	}

	g, errs := validate.ValidateFile(args[0])
	if err := report(cmd.ErrOrStderr(), errs); err != nil {
		return err
	}
	fmt.Fprintf(out, "✓ %s is valid (%d steps)\n", g.ID(), len(g.Steps))
	return nil
}

// report prints warnings and errors, and fails when any error is present.
func report(w io.Writer, errs []*validate.ValidationError) error {
	var failures []*validate.ValidationError
	for _, e := range errs {
		if e.Severity == "warning" {
			fmt.Fprintf(w, "  ⚠ [%s] %s\n", e.Phase, e.Message)
			if e.Path != "" {
				fmt.Fprintf(w, "    at: %s\n", e.Path)
			}
			continue
		}
		failures = append(failures, e)
	}
	if len(failures) == 0 {
		return nil
	}
	fmt.Fprintf(w, "Validation failed: %d error(s)\n\n", len(failures))
	for i, e := range failures {
		fmt.Fprintf(w, "  %d. [%s] %s\n", i+1, e.Phase, e.Message)
		if e.Path != "" {
			fmt.Fprintf(w, "     at: %s\n", e.Path)
		}
	}
	return errors.Errorf("validation failed with %d error(s)", len(failures))
}

// --- schema ---

var schemaCmd = &cobra.Command{
	Use:       "schema [guide|plan]",
	Short:     "Print the JSON Schema for guide or plan documents",
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"guide", "plan"},
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := "guide"
		if len(args) == 1 {
			kind = args[0]
		}
		var data []byte
		var err error
		switch kind {
		case "guide":
			data, err = schema.GenerateGuideJSONSchema()
		case "plan":
			data, err = schema.GeneratePlanJSONSchema()
		default:
			return errors.Errorf("unknown schema %q, use 'guide' or 'plan'", kind)
		}
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(data))
		return nil
	},
}

// --- list ---

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the guides found in the guides directory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		reg, err := loadRegistry(cfg.GuidesDir)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		ids := reg.IDs()
		if len(ids) == 0 {
			fmt.Fprintf(out, "no guides in %s\n", cfg.GuidesDir)
			return nil
		}
		for _, id := range ids {
			g, _ := reg.LookupGuideTemplate(id)
			fmt.Fprintf(out, "  %-20s %2d steps  %s\n", id, len(g.Steps), g.Meta.Title)
		}
		return nil
	},
}

func loadRegistry(dir string) (*registry.Registry, error) {
	reg := registry.New()
	if _, err := reg.LoadDir(dir); err != nil {
		return nil, errors.Wrapf(err, "load guides from %s", dir)
	}
	return reg, nil
}

func init() {
	validateCmd.Flags().BoolVar(&validatePlan, "plan", false, "Validate a plan/v1 exam plan instead of a guide")
}
