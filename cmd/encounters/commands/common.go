// Package commands implements the encounters subcommands.
package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"

	"github.com/JonMunkholm/encounters/internal/config"
	"github.com/JonMunkholm/encounters/internal/core"
	"github.com/JonMunkholm/encounters/internal/logging"
	"github.com/JonMunkholm/encounters/internal/sink"
)

// cfg is loaded once by Init before any command runs.
var cfg *config.Config

// Init loads .env and the environment, then configures logging.
func Init() error {
	envErr := godotenv.Load()

	c, err := config.Load()
	if err != nil {
		return err
	}
	cfg = c

	logging.Setup(cfg.Logging.Level, cfg.Logging.Format, nil)
	if envErr != nil {
		slog.Debug("no .env file found, using environment variables")
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return nil
}

// PrintError writes err with its user message, any missing columns and hints.
func PrintError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)

	var se *core.SchemaError
	if errors.As(err, &se) {
		fmt.Fprintln(w, "Missing columns:")
		for _, col := range se.Missing {
			fmt.Fprintf(w, "  - %s\n", col)
		}
	}
	if core.IsUserFacing(err) {
		fmt.Fprintln(w, core.FormatUserError(err))
	}
	for _, hint := range errors.GetAllHints(err) {
		fmt.Fprintf(w, "Hint: %s\n", hint)
	}
}

// inputPath returns the CSV named on the command line, or INGEST_INPUT.
func inputPath(args []string) string {
	if len(args) > 0 && args[0] != "" {
		return args[0]
	}
	return cfg.Source.Input
}

// pooledPostgres closes the pool along with the sink.
type pooledPostgres struct {
	*sink.Postgres
	pool *pgxpool.Pool
}

func (p *pooledPostgres) Close(ctx context.Context) error {
	err := p.Postgres.Close(ctx)
	p.pool.Close()
	return err
}

// openStore connects to the sink selected by SINK_KIND.
func openStore(ctx context.Context) (sink.Store, error) {
	switch cfg.Sink.Kind {
	case config.SinkPostgres:
		poolCfg, err := pgxpool.ParseConfig(cfg.Postgres.URL)
		if err != nil {
			return nil, errors.Wrap(err, "parse database url")
		}
		poolCfg.MaxConns = int32(cfg.Postgres.MaxConns)
		poolCfg.MinConns = int32(cfg.Postgres.MinConns)

		pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
		if err != nil {
			return nil, errors.Wrap(err, "connect to postgres")
		}
		if err := pool.Ping(ctx); err != nil {
			pool.Close()
			return nil, errors.WithHint(errors.Wrap(err, "ping postgres"), "check DATABASE_URL")
		}

		pg, err := sink.NewPostgres(ctx, pool, cfg.Postgres.Table)
		if err != nil {
			pool.Close()
			return nil, err
		}
		return &pooledPostgres{Postgres: pg, pool: pool}, nil

	default:
		m, err := sink.Connect(ctx, sink.MongoConfig{
			URI:        cfg.Mongo.URI,
			Database:   cfg.Mongo.Database,
			Collection: cfg.Mongo.Collection,
			Timeout:    cfg.Mongo.Timeout,
		})
		if err != nil {
			return nil, err
		}
		return m, nil
	}
}

// runPipeline classifies input, sending accepted documents to docs and
// rejects plus the summary to reports. The summary is printed to out.
func runPipeline(ctx context.Context, out io.Writer, input string, docs core.DocumentSink, reports core.ReportSink, batchSize, parallel int) (*core.RunResult, error) {
	src, err := core.FileSource{Path: input}.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()

	pipeline := core.NewPipeline(docs, reports, core.Options{
		BatchSize:   batchSize,
		Parallelism: parallel,
		Progress:    logProgress,
	})

	result, err := pipeline.Run(ctx, src)
	if result != nil && result.Phase == core.PhasePartitioned {
		printSummary(out, result)
	}
	return result, err
}

func logProgress(p core.Progress) {
	slog.Debug("progress",
		"run_id", p.RunID,
		"phase", p.Phase,
		"rows", p.RowsRead,
		"batches", p.Batches,
		"bytes", p.BytesRead,
		"percent", p.Percent,
	)
}

func printSummary(w io.Writer, result *core.RunResult) {
	s := result.Summary
	fmt.Fprintf(w, "Run %s (%s)\n", s.RunID, s.SourceFile)
	fmt.Fprintf(w, "  rows:       %d\n", s.RowCount)
	fmt.Fprintf(w, "  accepted:   %d\n", s.AcceptedRows)
	fmt.Fprintf(w, "  rejected:   %d\n", s.RejectedRows)
	fmt.Fprintf(w, "  duplicates: %d\n", s.DuplicateRows)
	fmt.Fprintf(w, "  distinct:   %d\n", s.DistinctKeys)
	fmt.Fprintf(w, "  written:    %d\n", s.WrittenRows)
	for _, reason := range slices.Sorted(maps.Keys(s.InvalidByReason)) {
		if n := s.InvalidByReason[reason]; n > 0 {
			fmt.Fprintf(w, "  %-10s  %d\n", reason+":", n)
		}
	}
	if len(s.SinkErrors) > 0 {
		fmt.Fprintf(w, "  failed batches: %d\n", len(s.SinkErrors))
	}
	fmt.Fprintf(w, "  took %s\n", result.Duration.Round(time.Millisecond))
}
