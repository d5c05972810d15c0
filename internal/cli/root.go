// Package cli implements the tocindex command line.
package cli

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgallion1/tocindex/internal/version"
)

// NewRootCmd builds the command tree. Each call returns fresh commands so
// flag state does not leak between runs.
func NewRootCmd() *cobra.Command {
	var verbose bool
	root := &cobra.Command{
		Use:   "tocindex",
		Short: "Index the section structure of long technical documents",
		Long: `tocindex reads the table of contents of a document, scans its body text for
numbered section headers, and reconciles the two into a navigable section index.`,
		SilenceUsage: true,
	}
	root.Version = version.Version
	root.SetVersionTemplate(fmt.Sprintf("tocindex %s\n", version.String()))
	root.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log progress to stderr")

	logger := func(cmd *cobra.Command) *slog.Logger {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelInfo
		}
		return slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))
	}

	root.AddCommand(
		newParseCmd(logger),
		newReconcileCmd(),
		newQueryCmd(),
		newVersionCmd(),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "tocindex %s\n", version.String())
		},
	}
}
