package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/internal/sink"
)

var verifyJSON bool

// VerifyCmd checks the sink after a load.
var VerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Ping the sink and print document counts",
	Args:  cobra.NoArgs,
	RunE:  runVerify,
}

func init() {
	VerifyCmd.Flags().BoolVar(&verifyJSON, "json", false, "print counts as JSON")
}

func runVerify(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = store.Close(closeCtx)
	}()

	if err := store.Ping(ctx); err != nil {
		return err
	}

	counts, err := store.Count(ctx)
	if err != nil {
		return err
	}

	if verifyJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(counts)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Sink %s reachable\n", cfg.Sink.Kind)
	if m, ok := store.(*sink.Mongo); ok {
		names, err := m.Collections(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Collections: %v\n", names)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s: estimated=%d exact=%d\n", counts.Target, counts.Estimated, counts.Exact)
	return nil
}
