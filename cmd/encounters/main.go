package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/cmd/encounters/commands"
)

var rootCmd = &cobra.Command{
	Use:   "encounters",
	Short: "Validate, clean and load healthcare encounter CSV files",
	Long: `encounters - pre-ingest validation and bulk load for encounter exports.

Every row is checked against the encounter schema, normalized, and checked
for duplicates within the file. Accepted rows go to the configured sink,
rejected rows to a JSON Lines log, and every run writes a summary report.

Available commands:
  validate - Check a CSV and write the summary report
  prepare  - Write a cleaned CSV plus rejects and summary
  load     - Bulk-write accepted rows to MongoDB or Postgres
  verify   - Ping the sink and print document counts
  export   - Stream the sink to JSON Lines
  serve    - Start the HTTP ingest API

Configuration is read from the environment (and .env if present).

Examples:
  encounters validate data/healthcare_dataset.csv
  encounters load --parallel 4 --batch-size 2000
  SINK_KIND=postgres encounters verify`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return commands.Init()
	},
}

func init() {
	rootCmd.AddCommand(commands.ValidateCmd)
	rootCmd.AddCommand(commands.PrepareCmd)
	rootCmd.AddCommand(commands.LoadCmd)
	rootCmd.AddCommand(commands.VerifyCmd)
	rootCmd.AddCommand(commands.ExportCmd)
	rootCmd.AddCommand(commands.ServeCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		commands.PrintError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
