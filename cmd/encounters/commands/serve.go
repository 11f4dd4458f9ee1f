package commands

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/encounters/internal/web"
)

// ServeCmd starts the HTTP ingest API.
var ServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP ingest API",
	Long: `Serve POST /api/validate, POST /api/ingest and GET /api/health on
SERVER_HOST:SERVER_PORT. Ingests write to the sink selected by SINK_KIND.

On SIGINT or SIGTERM the server stops accepting requests and waits up to
SERVER_SHUTDOWN_TIMEOUT for running ingests.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer func() {
		_ = store.Close(context.Background())
	}()

	slog.Info("configuration loaded",
		"addr", cfg.Server.Addr(),
		"sink", cfg.Sink.Kind,
		"ingest_max_concurrent", cfg.Server.MaxConcurrent,
	)

	server := web.NewServer(store, cfg)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return errors.Wrap(err, "server")
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, "shutdown")
	}
	slog.Info("server stopped")
	return nil
}
