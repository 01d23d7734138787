// Package commands implements the tally CLI.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/tally-dev/tally/internal/buildinfo"
)

// rootOptions holds flags shared by every subcommand.
type rootOptions struct {
	repo      string
	logLevel  string
	logFormat string
}

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Plain-file personal ledger with rule-based categorization",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&opts.repo, "repo", ".", "project directory")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "log level override (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&opts.logFormat, "log-format", "", "log format override (text, json)")

	rootCmd.AddCommand(
		newInitCommand(),
		newAccountsCommand(opts),
		newImportCommand(opts),
		newClassifyCommand(opts),
		newExplainCommand(opts),
		newRulesCommand(opts),
		newReportCommand(opts),
		newExportCommand(opts),
		newHistoryCommand(opts),
	)

	return rootCmd
}
