package core

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"
)

// batchDispatcher hands classified batches to the document sink. At most
// parallelism writes are in flight; Submit blocks when the limit is reached.
// Batches are classified before they are submitted, so the order in which
// writes complete carries no meaning.
type batchDispatcher struct {
	sink   DocumentSink
	logger *slog.Logger
	group  *errgroup.Group
	ctx    context.Context

	mu      sync.Mutex
	written int
	failed  []*SinkWriteError
}

func newBatchDispatcher(ctx context.Context, sink DocumentSink, parallelism int, logger *slog.Logger) *batchDispatcher {
	if parallelism <= 0 {
		parallelism = 1
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(parallelism)
	return &batchDispatcher{
		sink:   sink,
		logger: logger,
		group:  g,
		ctx:    gctx,
	}
}

// Submit queues one batch. It blocks while the parallelism limit is reached.
func (d *batchDispatcher) Submit(seq int, docs []Encounter) {
	if len(docs) == 0 {
		return
	}
	firstRow := docs[0].Src.Row
	d.group.Go(func() error {
		d.write(seq, firstRow, docs)
		// Failures are recorded, not returned, so other batches keep going.
		return nil
	})
}

func (d *batchDispatcher) write(seq, firstRow int, docs []Encounter) {
	n, err := d.sink.WriteBatch(d.ctx, docs)

	d.mu.Lock()
	defer d.mu.Unlock()

	d.written += n
	if err == nil && n == len(docs) {
		d.logger.Debug("batch written", "batch", seq, "docs", n)
		return
	}
	if err == nil {
		err = errors.Newf("sink accepted %d of %d documents", n, len(docs))
	}

	werr := &SinkWriteError{
		Batch:     seq,
		FirstRow:  firstRow,
		Attempted: len(docs),
		Written:   n,
		Err:       err,
	}
	d.failed = append(d.failed, werr)
	d.logger.Warn("batch write failed",
		"batch", seq,
		"first_row", firstRow,
		"attempted", len(docs),
		"written", n,
		"error", err,
	)
}

// Wait blocks until every submitted batch has finished.
func (d *batchDispatcher) Wait() (written int, failed []*SinkWriteError) {
	_ = d.group.Wait()
	d.mu.Lock()
	defer d.mu.Unlock()
	sort.Slice(d.failed, func(i, j int) bool {
		return d.failed[i].Batch < d.failed[j].Batch
	})
	return d.written, d.failed
}
