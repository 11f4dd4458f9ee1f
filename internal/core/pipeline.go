package core

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
)

// DefaultBatchSize is the number of accepted documents per sink write.
const DefaultBatchSize = 5000

// ContextCheckInterval is how often (in rows) to check for context cancellation.
var ContextCheckInterval = 100

// Options configures a Pipeline.
type Options struct {
	BatchSize   int              // Documents per sink write (default DefaultBatchSize)
	Parallelism int              // Concurrent sink writes (default 1)
	RunID       string           // Generated when empty
	Specs       []FieldSpec      // Defaults to EncounterSchema
	Logger      *slog.Logger     // Defaults to slog.Default()
	Progress    ProgressCallback // Optional
	Now         func() time.Time // Defaults to time.Now
}

// Pipeline validates, deduplicates and partitions a record stream. A Pipeline
// holds no state between runs; each Run owns its own duplicate detector.
type Pipeline struct {
	sink    DocumentSink
	reports ReportSink
	opts    Options
}

// NewPipeline creates a pipeline writing accepted documents to sink and
// rejects plus the summary to reports. Either may be nil to drop output.
func NewPipeline(sink DocumentSink, reports ReportSink, opts Options) *Pipeline {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Parallelism <= 0 {
		opts.Parallelism = 1
	}
	if opts.Specs == nil {
		opts.Specs = EncounterSchema
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if sink == nil {
		sink = discardDocuments{}
	}
	if reports == nil {
		reports = discardReports{}
	}
	return &Pipeline{sink: sink, reports: reports, opts: opts}
}

// Run processes src to completion.
//
// A *SchemaError is returned before any row is read if the header lacks a
// required column. Sink failures do not stop the run; they are returned in
// RunResult.SinkErrors and, combined, as an error wrapping ErrPartialWrite
// after the summary has been written.
func (p *Pipeline) Run(ctx context.Context, src RecordSource) (*RunResult, error) {
	runID := p.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}
	logger := p.opts.Logger.With("run_id", runID, "source", src.Name())
	started := p.opts.Now()

	result := &RunResult{RunID: runID, Source: src.Name(), Phase: PhaseReading}
	progress := Progress{RunID: runID, Phase: PhaseReading, Source: src.Name()}
	p.notify(progress)

	header := src.Header()
	headerIdx, diff, err := CheckHeader(header, p.opts.Specs)
	if err != nil {
		result.Phase = PhaseFailed
		progress.Phase = PhaseFailed
		p.notify(progress)
		logger.Error("schema check failed", "error", err)
		return result, err
	}
	if len(diff.Extra) > 0 {
		logger.Info("source has extra columns", "columns", diff.Extra)
	}

	validator := NewRowValidator(p.opts.Specs, headerIdx, len(header))
	detector := NewDuplicateDetector()
	builder := NewReportBuilder(header, diff, p.opts.Specs)
	dispatcher := newBatchDispatcher(ctx, p.sink, p.opts.Parallelism, logger)

	result.Phase = PhaseValidating
	progress.Phase = PhaseValidating
	p.notify(progress)

	batch := make([]Encounter, 0, p.opts.BatchSize)
	flush := func() {
		if len(batch) == 0 {
			return
		}
		result.Batches++
		dispatcher.Submit(result.Batches, batch)
		batch = make([]Encounter, 0, p.opts.BatchSize)

		progress.Batches = result.Batches
		progress.BytesRead = src.BytesRead()
		progress.Percent = src.Percent()
		p.notify(progress)
	}

	for {
		if result.TotalRows%ContextCheckInterval == 0 && ctx.Err() != nil {
			dispatcher.Wait()
			result.Phase = PhaseFailed
			return result, errors.Wrap(ctx.Err(), "run cancelled")
		}

		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			dispatcher.Wait()
			result.Phase = PhaseFailed
			return result, err
		}

		verdict := p.classify(validator, detector, rec)

		var doc Encounter
		if verdict.Passed() {
			doc, err = BuildEncounter(verdict, Provenance{
				File:       src.Name(),
				RunID:      runID,
				Row:        rec.Row,
				IngestedAt: p.opts.Now().UTC(),
			})
			if err != nil {
				logger.Warn("accepted record could not be built", "row", rec.Row, "error", err)
				verdict.Reasons = verdict.Reasons.Add(ReasonUnknown)
			}
		}

		builder.Observe(rec, verdict.Reasons)
		result.TotalRows++
		progress.RowsRead = result.TotalRows

		if verdict.Passed() {
			result.Accepted++
			batch = append(batch, doc)
			if len(batch) >= p.opts.BatchSize {
				flush()
			}
			continue
		}

		result.Rejected++
		if err := p.reports.WriteReject(NewRejectRecord(rec, header, verdict)); err != nil {
			dispatcher.Wait()
			result.Phase = PhaseFailed
			return result, errors.Wrapf(err, "write reject for row %d", rec.Row)
		}
	}
	flush()

	written, failed := dispatcher.Wait()
	result.Written = written
	result.SinkErrors = failed
	result.Phase = PhasePartitioned

	summary := builder.Build(runID, src.Name(), src.Fingerprint())
	summary.WrittenRows = written
	summary.DistinctKeys = detector.Len()
	summary.StartedAt = started.UTC()
	summary.FinishedAt = p.opts.Now().UTC()
	for _, f := range failed {
		summary.SinkErrors = append(summary.SinkErrors, f.Error())
	}
	result.Summary = summary
	result.Duration = summary.FinishedAt.Sub(summary.StartedAt)

	progress.Phase = PhasePartitioned
	progress.Accepted = result.Accepted
	progress.Rejected = result.Rejected
	progress.BytesRead = src.BytesRead()
	progress.Percent = src.Percent()
	p.notify(progress)

	if err := p.reports.WriteSummary(summary); err != nil {
		return result, errors.Wrap(err, "write summary")
	}

	logger.Info("run complete",
		"rows", result.TotalRows,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
		"written", result.Written,
		"duplicates", summary.DuplicateRows,
		"batches", result.Batches,
		"failed_batches", len(failed),
	)

	return result, joinSinkErrors(failed)
}

// classify runs field validation, then the duplicate check, in that order.
// A record keeps its field reasons when it is also a duplicate.
func (p *Pipeline) classify(validator *RowValidator, detector *DuplicateDetector, rec RawRecord) Verdict {
	verdict := validator.Validate(rec)
	if verdict.Reasons.Has(ReasonMalformed) {
		return verdict
	}
	if first, dup := detector.Check(verdict.Key, rec.Row); dup {
		verdict.Reasons = verdict.Reasons.Add(ReasonDuplicate)
		verdict.Errors = append(verdict.Errors, ValidationError{
			Reason:  ReasonDuplicate,
			Value:   verdict.Key.String(),
			Message: "duplicate of row " + itoa32(int32(first)),
		})
	}
	return verdict
}

func (p *Pipeline) notify(progress Progress) {
	if p.opts.Progress != nil {
		p.opts.Progress(progress)
	}
}

type discardDocuments struct{}

func (discardDocuments) WriteBatch(_ context.Context, docs []Encounter) (int, error) {
	return len(docs), nil
}

type discardReports struct{}

func (discardReports) WriteReject(RejectRecord) error   { return nil }
func (discardReports) WriteSummary(SummaryReport) error { return nil }
