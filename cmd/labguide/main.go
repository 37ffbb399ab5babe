// Package main provides the labguide binary.
package main

import (
	"os"

	"github.com/ormasoftchile/labguide/pkg/config"
	"github.com/ormasoftchile/labguide/pkg/logging"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// Version is set at build time via ldflags.
var (
	version = "dev"
	commit  = "unknown"
)

var (
	cfgFile string
	cfg     *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "labguide",
	Short:        "Guided lab experiments and exams",
	Long:         "labguide walks learners through ordered lab steps, scores them in exam mode and reports results.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v := viper.New()
		if err := config.Init(v, cfgFile, cmd.Flags()); err != nil {
			return err
		}
		if f := cmd.Flags().Lookup("trace"); f != nil {
			if err := v.BindPFlag("trace-file", f); err != nil {
				return err
			}
		}
		c, err := config.Load(v)
		if err != nil {
			return err
		}
		cfg = c
		return logging.Init(cfg.Logging())
	},
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Printf("labguide %s (%s)\n", version, commit)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "Config file (default: labguide.yaml in ., $HOME/.labguide or the user config dir)")
	pf.String("guides-dir", "guides", "Directory holding *.guide.yaml and *.guide.toml files")
	pf.String("log-level", "info", "Log level: trace, debug, info, warn, error")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("log-file", "", "Also write logs to this rotating file")
	pf.String("trace", "", "Append a hash-chained JSONL trace of guide events to this file")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(schemaCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(walkCmd)
	rootCmd.AddCommand(consoleCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(traceCmd)
}
