package commands

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"
)

var exportOut string

// ExportCmd streams the sink to a JSON Lines file.
var ExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Stream the sink to JSON Lines",
	Long: `Write every stored encounter as one JSON document per line.

The file defaults to EXPORT_OUT_FILE, or exports/<db>_<collection>.jsonl.
Use --out - to write to stdout.`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func init() {
	ExportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output file")
}

func runExport(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	path := exportOut
	if path == "" {
		path = cfg.ExportPath()
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

	if path == "-" {
		w := bufio.NewWriter(cmd.OutOrStdout())
		if _, err := store.Export(ctx, w, cfg.Export.BatchSize); err != nil {
			return err
		}
		return w.Flush()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Wrapf(err, "create %s", filepath.Dir(path))
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "create %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	n, err := store.Export(ctx, w, cfg.Export.BatchSize)
	if err != nil {
		return err
	}
	if err := w.Flush(); err != nil {
		return errors.Wrapf(err, "write %s", path)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Exported %d documents to %s\n", n, path)
	return nil
}
