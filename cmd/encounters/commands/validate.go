package commands

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/internal/report"
	"github.com/JonMunkholm/encounters/internal/sink"
)

// ValidateCmd checks a CSV without writing any documents.
var ValidateCmd = &cobra.Command{
	Use:   "validate [csv]",
	Short: "Validate a CSV and write the summary report",
	Long: `Run every row through schema, field and duplicate checks without
writing documents anywhere. The summary goes to SUMMARY_OUTPUT.

The input defaults to INGEST_INPUT.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runValidate,
}

func runValidate(cmd *cobra.Command, args []string) error {
	reports, err := report.Open(report.Paths{Summary: cfg.Reports.SummaryOutput})
	if err != nil {
		return err
	}

	discard := &sink.Discard{}
	_, runErr := runPipeline(cmd.Context(), cmd.OutOrStdout(), inputPath(args), discard, reports,
		cfg.Pipeline.BatchSize, 1)
	if err := reports.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "close reports")
	}
	if runErr != nil {
		return runErr
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Summary written to %s\n", cfg.Reports.SummaryOutput)
	return nil
}
