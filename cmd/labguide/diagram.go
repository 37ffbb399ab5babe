package main

import (
	"fmt"

	"github.com/ormasoftchile/labguide/pkg/diagram"
	"github.com/ormasoftchile/labguide/pkg/guide/validate"
	"github.com/spf13/cobra"
)

var diagramFormat string

var diagramCmd = &cobra.Command{
	Use:   "diagram [guide-file]",
	Short: "Draw a guide as a Mermaid flowchart or ASCII boxes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		g, errs := validate.ValidateFile(args[0])
		if err := report(cmd.ErrOrStderr(), errs); err != nil {
			return err
		}
		out, err := diagram.Generate(diagram.FromGuide(g), diagram.Format(diagramFormat))
		if err != nil {
			return err
		}
		fmt.Fprint(cmd.OutOrStdout(), out)
		return nil
	},
}

func init() {
	diagramCmd.Flags().StringVar(&diagramFormat, "format", "ascii", "Output format: ascii or mermaid")
	rootCmd.AddCommand(diagramCmd)
}
