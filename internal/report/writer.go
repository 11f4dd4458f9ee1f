// Package report persists reject logs and summary reports as JSON.
package report

import (
	"bufio"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/encounters/internal/core"
)

// Writer implements core.ReportSink. Rejects are written as JSON Lines as
// they arrive; the summary is written once as an indented document.
type Writer struct {
	mu          sync.Mutex
	rejects     *bufio.Writer
	rejectsFile io.Closer
	rejectCount int

	summaryPath string
	summary     io.Writer
}

// Paths names the files a Writer creates. An empty path disables that output.
type Paths struct {
	Rejects string
	Summary string
}

// Open creates the report files, including parent directories.
func Open(paths Paths) (*Writer, error) {
	w := &Writer{summaryPath: paths.Summary}

	if paths.Rejects != "" {
		f, err := create(paths.Rejects)
		if err != nil {
			return nil, err
		}
		w.rejects = bufio.NewWriter(f)
		w.rejectsFile = f
	}
	return w, nil
}

// NewWriter writes rejects and the summary to the given writers. Either may
// be nil.
func NewWriter(rejects, summary io.Writer) *Writer {
	w := &Writer{summary: summary}
	if rejects != nil {
		w.rejects = bufio.NewWriter(rejects)
	}
	return w
}

func create(path string) (*os.File, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	return f, nil
}

// WriteReject appends one JSON line.
func (w *Writer) WriteReject(rec core.RejectRecord) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.rejectCount++
	if w.rejects == nil {
		return nil
	}
	line, err := json.Marshal(rec)
	if err != nil {
		return errors.Wrapf(err, "encode reject row %d", rec.Row)
	}
	if _, err := w.rejects.Write(append(line, '\n')); err != nil {
		return errors.Wrap(err, "write reject")
	}
	return nil
}

// WriteSummary flushes pending rejects and writes the summary document.
func (w *Writer) WriteSummary(s core.SummaryReport) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.rejects != nil {
		if err := w.rejects.Flush(); err != nil {
			return errors.Wrap(err, "flush rejects")
		}
	}

	out := w.summary
	if w.summaryPath != "" {
		f, err := create(w.summaryPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}
	if out == nil {
		return nil
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return errors.Wrap(enc.Encode(s), "write summary")
}

// RejectCount returns the number of rejects received.
func (w *Writer) RejectCount() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.rejectCount
}

// Close flushes and closes the reject log.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	var err error
	if w.rejects != nil {
		err = w.rejects.Flush()
	}
	if w.rejectsFile != nil {
		if cerr := w.rejectsFile.Close(); err == nil {
			err = cerr
		}
	}
	return err
}
