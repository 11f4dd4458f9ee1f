// Package core provides the business logic for encounter CSV validation and loading.
// This package has no transport dependencies and can be used by any frontend.
package core

import (
	"context"
	"time"
)

// FieldType represents the expected data type for a CSV field.
type FieldType int

const (
	FieldText FieldType = iota
	FieldEnum
	FieldDate
	FieldInteger
	FieldDecimal
)

// FieldSpec defines validation rules for a single CSV column.
type FieldSpec struct {
	Name       string              // Column header name
	Type       FieldType           // Expected data type
	Reason     ReasonCode          // Code recorded when the value fails normalization
	AllowEmpty bool                // Empty value is valid and normalizes to NULL
	Critical   bool                // Raw value must be non-blank regardless of type
	EnumValues []string            // Valid canonical values for FieldEnum
	Normalizer func(string) string // Canonicalization applied to the trimmed value
}

// HeaderIndex maps column names to their position in the CSV row. A trimmed
// exact match wins over a case-insensitive one; among equal names the first
// occurrence wins.
type HeaderIndex struct {
	exact  map[string]int
	folded map[string]int
}

// RawRecord is one data row as read from the source. It is never modified
// after it is read.
type RawRecord struct {
	Row       int      // 1-based data row position (header excluded)
	Line      int      // 1-based line in the source file
	Fields    []string // Cell values in header order
	Malformed bool     // Row could not be parsed as CSV
}

// Get returns the raw value of the named column, or "" if absent.
func (r RawRecord) Get(idx HeaderIndex, name string) string {
	pos, ok := idx.Lookup(name)
	if !ok || pos >= len(r.Fields) {
		return ""
	}
	return r.Fields[pos]
}

// Phase indicates the current stage of a pipeline run.
type Phase string

const (
	PhaseStarting    Phase = "starting"
	PhaseReading     Phase = "reading"
	PhaseValidating  Phase = "validating"
	PhasePartitioned Phase = "partitioned"
	PhaseFailed      Phase = "failed"
)

// Progress represents the current state of a pipeline run.
type Progress struct {
	RunID     string
	Phase     Phase
	Source    string
	RowsRead  int
	Accepted  int
	Rejected  int
	Batches   int
	BytesRead int64
	Percent   int // 0-100 of the source size, 0 when the size is unknown
}

// ProgressCallback is called after every dispatched batch and on phase changes.
type ProgressCallback func(Progress)

// DocumentSink receives accepted encounters. WriteBatch performs a
// best-effort, non-atomic insert and reports how many documents were written.
// A failure on one document must not stop the rest of the batch.
type DocumentSink interface {
	WriteBatch(ctx context.Context, docs []Encounter) (int, error)
}

// ReportSink persists rejected records and the final summary.
type ReportSink interface {
	WriteReject(rec RejectRecord) error
	WriteSummary(report SummaryReport) error
}

// RecordSource yields raw records lazily. Next returns io.EOF after the last
// record. Fingerprint is only meaningful once Next has returned io.EOF.
type RecordSource interface {
	Name() string
	Header() []string
	Next() (RawRecord, error)
	Fingerprint() string
	BytesRead() int64
	Percent() int
}

// RunResult contains the final result of a pipeline run.
type RunResult struct {
	RunID      string
	Source     string
	Phase      Phase
	TotalRows  int
	Accepted   int
	Rejected   int
	Written    int
	Batches    int
	SinkErrors []*SinkWriteError
	Summary    SummaryReport
	Duration   time.Duration
}
