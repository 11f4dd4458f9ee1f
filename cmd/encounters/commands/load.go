package commands

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/internal/report"
)

var (
	loadParallel  int
	loadBatchSize int
)

// LoadCmd bulk-writes accepted rows to the configured sink.
var LoadCmd = &cobra.Command{
	Use:   "load [csv]",
	Short: "Validate a CSV and bulk-write accepted rows to the sink",
	Long: `Classify every row and write accepted encounters to MongoDB or Postgres
(SINK_KIND). Rejects and the summary are written as for prepare.

A failed batch does not stop the load; the remaining batches are written and
the failures are listed in the summary's sink_errors.

Examples:
  encounters load data/healthcare_dataset.csv
  encounters load --parallel 4 --batch-size 2000`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLoad,
}

func init() {
	LoadCmd.Flags().IntVar(&loadParallel, "parallel", 0, "concurrent batch writes (default PIPELINE_PARALLEL_WRITES)")
	LoadCmd.Flags().IntVar(&loadBatchSize, "batch-size", 0, "documents per batch (default PIPELINE_BATCH_SIZE)")
}

func runLoad(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	parallel := cfg.Pipeline.ParallelWrites
	if loadParallel > 0 {
		parallel = loadParallel
	}
	batchSize := cfg.Pipeline.BatchSize
	if loadBatchSize > 0 {
		batchSize = loadBatchSize
	}

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	reports, err := report.Open(report.Paths{
		Rejects: cfg.Reports.RejectOutput,
		Summary: cfg.Reports.SummaryOutput,
	})
	if err != nil {
		return err
	}

	_, runErr := runPipeline(ctx, cmd.OutOrStdout(), inputPath(args), store, reports, batchSize, parallel)
	if err := reports.Close(); err != nil && runErr == nil {
		runErr = errors.Wrap(err, "close reports")
	}
	return runErr
}
