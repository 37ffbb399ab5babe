package main

import (
	"fmt"

	"github.com/ormasoftchile/labguide/pkg/guide/trace"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var traceVerifyCmd = &cobra.Command{
	Use:   "verify [trace.jsonl]",
	Short: "Verify trace file integrity (hash chain)",
	Args:  cobra.ExactArgs(1),
	RunE:  runTraceVerify,
}

var traceCmd = &cobra.Command{
	Use:   "trace",
	Short: "Trace file operations",
}

func runTraceVerify(cmd *cobra.Command, args []string) error {
	result, err := trace.VerifyFile(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if !result.Valid {
		fmt.Fprintf(out, "✗ Chain broken at record %d\n", result.BrokenAt)
		if result.Error != "" {
			fmt.Fprintf(out, "  %s\n", result.Error)
		}
		return errors.New("chain verification failed")
	}
	fmt.Fprintf(out, "✓ Chain integrity: %d records, no breaks\n", len(result.Records))
	return nil
}

func init() {
	traceCmd.AddCommand(traceVerifyCmd)
}
