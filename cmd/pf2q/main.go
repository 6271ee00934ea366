package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	verbose bool
	logger  = zap.NewNop()
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "pf2q",
		Short: "Post-process fixed-boundary equilibria and re-estimate q profiles",
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			config := zap.NewProductionConfig()
			if verbose {
				config.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
			}
			l, err := config.Build()
			if err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			logger = l
			return nil
		},
		PersistentPostRun: func(_ *cobra.Command, _ []string) {
			_ = logger.Sync()
		},
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(validateCmd())
	rootCmd.AddCommand(inspectCmd())
	rootCmd.AddCommand(estimateCmd())
	rootCmd.AddCommand(exportCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func validateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate [case-path]",
		Short: "Validate a case file and its solver dataset",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runValidate(args[0])
		},
	}
}

func inspectCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "inspect [case-path]",
		Short: "Show the reference profiles and global quantities of a solution",
		Args:  cobra.ExactArgs(1),
		RunE: func(_ *cobra.Command, args []string) error {
			return runInspect(args[0], asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	return cmd
}

func estimateCmd() *cobra.Command {
	var (
		asJSON  bool
		workers int
	)

	cmd := &cobra.Command{
		Use:   "estimate [case-path]",
		Short: "Estimate q for every candidate and compare it with the reference",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEstimate(cmd.Context(), args[0], workers, asJSON)
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Write JSON instead of a table")
	cmd.Flags().IntVarP(&workers, "workers", "j", runtime.GOMAXPROCS(0), "Candidates estimated in parallel")
	return cmd
}

func exportCmd() *cobra.Command {
	var (
		output  string
		workers int
	)

	cmd := &cobra.Command{
		Use:   "export [case-path]",
		Short: "Write reference and estimated profiles to an Excel workbook",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExport(cmd.Context(), args[0], output, workers)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Workbook path (default: the case's output, or pf2q.xlsx)")
	cmd.Flags().IntVarP(&workers, "workers", "j", runtime.GOMAXPROCS(0), "Candidates estimated in parallel")
	return cmd
}
