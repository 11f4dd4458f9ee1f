package core

import (
	"fmt"
	"strings"

	"github.com/cockroachdb/errors"
)

var (
	// ErrSchema marks a source whose header lacks required columns.
	ErrSchema = errors.New("schema mismatch")

	// ErrEmptySource is returned when the source has no header row.
	ErrEmptySource = errors.New("empty file")

	// ErrPartialWrite is returned by a run in which at least one sink batch failed.
	ErrPartialWrite = errors.New("sink write incomplete")
)

// SchemaError reports required columns absent from the source header.
// It is fatal: no row is processed.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("missing required column(s): %s", strings.Join(e.Missing, ", "))
}

// Unwrap lets errors.Is(err, ErrSchema) match.
func (e *SchemaError) Unwrap() error {
	return ErrSchema
}

// SinkWriteError reports a batch the document sink did not fully write.
// Batches written before it are kept.
type SinkWriteError struct {
	Batch     int // 1-based batch sequence number
	FirstRow  int // Row position of the first record in the batch
	Attempted int
	Written   int
	Err       error
}

func (e *SinkWriteError) Error() string {
	return fmt.Sprintf("sink write: batch %d (from row %d): wrote %d of %d: %v",
		e.Batch, e.FirstRow, e.Written, e.Attempted, e.Err)
}

func (e *SinkWriteError) Unwrap() error {
	return e.Err
}

// joinSinkErrors combines batch failures into one error wrapping ErrPartialWrite.
func joinSinkErrors(errs []*SinkWriteError) error {
	if len(errs) == 0 {
		return nil
	}
	wrapped := make([]error, 0, len(errs)+1)
	wrapped = append(wrapped, ErrPartialWrite)
	for _, e := range errs {
		wrapped = append(wrapped, e)
	}
	return errors.WithHint(
		errors.Join(wrapped...),
		"documents from failed batches were not retried; re-run the load or inspect the sink",
	)
}
