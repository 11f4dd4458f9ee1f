package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/internal/report"
	"github.com/JonMunkholm/encounters/internal/sink"
)

// PrepareCmd writes a cleaned copy of the input.
var PrepareCmd = &cobra.Command{
	Use:   "prepare [csv]",
	Short: "Write a cleaned CSV plus rejects and summary",
	Long: `Write accepted rows, normalized, to CLEAN_OUTPUT. Rejected rows go to
REJECT_OUTPUT as JSON Lines and the summary to SUMMARY_OUTPUT.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPrepare,
}

func runPrepare(cmd *cobra.Command, args []string) error {
	clean, err := sink.CreateCSV(cfg.Reports.CleanOutput)
	if err != nil {
		return err
	}
	reports, err := report.Open(report.Paths{
		Rejects: cfg.Reports.RejectOutput,
		Summary: cfg.Reports.SummaryOutput,
	})
	if err != nil {
		clean.Close()
		return err
	}

	_, runErr := runPipeline(cmd.Context(), cmd.OutOrStdout(), inputPath(args), clean, reports,
		cfg.Pipeline.BatchSize, 1)
	if err := clean.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "close cleaned csv")
	}
	if err := reports.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "close reports")
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Cleaned rows written to %s\n", cfg.Reports.CleanOutput)
	fmt.Fprintf(cmd.OutOrStdout(), "Rejects written to %s (%d)\n", cfg.Reports.RejectOutput, reports.RejectCount())
	return nil
}
