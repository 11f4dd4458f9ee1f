package core

import (
	"strings"
	"time"
)

// RejectRecord is a rejected row as written to the reject log.
type RejectRecord struct {
	Row     int               `json:"row"`
	Line    int               `json:"line"`
	Reason  string            `json:"reasons"`
	Reasons ReasonSet         `json:"reason_codes"`
	Record  map[string]string `json:"record"`
	Extra   []string          `json:"extra_fields,omitempty"`
	Details []ValidationError `json:"details,omitempty"`
}

// NewRejectRecord pairs a raw record with its reason set. Fields beyond the
// header width are kept in Extra.
func NewRejectRecord(rec RawRecord, header []string, v Verdict) RejectRecord {
	record := make(map[string]string, len(header))
	for i, col := range header {
		if i < len(rec.Fields) {
			record[col] = rec.Fields[i]
		}
	}

	var extra []string
	if len(rec.Fields) > len(header) {
		extra = append(extra, rec.Fields[len(header):]...)
	}

	return RejectRecord{
		Row:     rec.Row,
		Line:    rec.Line,
		Reason:  v.Reasons.String(),
		Reasons: v.Reasons,
		Record:  record,
		Extra:   extra,
		Details: v.Errors,
	}
}

// SummaryReport describes one run over a source file.
type SummaryReport struct {
	RunID         string `json:"run_id"`
	SourceFile    string `json:"source_file"`
	SourceSHA256  string `json:"source_sha256"`
	RowCount      int    `json:"row_count"`
	AcceptedRows  int    `json:"accepted_rows"`
	RejectedRows  int    `json:"rejected_rows"`
	WrittenRows   int    `json:"written_rows"`
	DuplicateRows int    `json:"potential_duplicates"`
	DistinctKeys  int    `json:"distinct_natural_keys"`
	ColumnDiff
	InvalidByReason map[string]int `json:"invalid_by_reason"`
	MissingValues   map[string]int `json:"missing_values_by_column"`
	SinkErrors      []string       `json:"sink_errors,omitempty"`
	StartedAt       time.Time      `json:"started_at"`
	FinishedAt      time.Time      `json:"finished_at"`
}

// ReportBuilder accumulates statistics over a validated stream. Counts are
// derived from reason sets, never by validating again.
type ReportBuilder struct {
	header    []string
	headerIdx HeaderIndex
	diff      ColumnDiff
	specs     []FieldSpec

	rows     int
	accepted int
	rejected int
	byReason map[ReasonCode]int
	missing  map[string]int
}

// NewReportBuilder starts a report for a source with the given header.
func NewReportBuilder(header []string, diff ColumnDiff, specs []FieldSpec) *ReportBuilder {
	b := &ReportBuilder{
		header:    header,
		headerIdx: MakeHeaderIndex(header),
		diff:      diff,
		specs:     specs,
		byReason:  make(map[ReasonCode]int),
		missing:   make(map[string]int, len(specs)),
	}
	for _, spec := range specs {
		b.missing[spec.Name] = 0
	}
	return b
}

// Observe adds one classified record.
func (b *ReportBuilder) Observe(rec RawRecord, reasons ReasonSet) {
	b.rows++
	if reasons.Empty() {
		b.accepted++
	} else {
		b.rejected++
		for _, c := range reasons.Codes() {
			b.byReason[c]++
		}
	}

	if rec.Malformed {
		return
	}
	for _, spec := range b.specs {
		pos, ok := b.headerIdx.Lookup(spec.Name)
		if !ok || pos >= len(rec.Fields) {
			continue
		}
		if strings.TrimSpace(rec.Fields[pos]) == "" {
			b.missing[spec.Name]++
		}
	}
}

// Build produces the summary. Every reason code appears in InvalidByReason,
// with zero when unused.
func (b *ReportBuilder) Build(runID, source, fingerprint string) SummaryReport {
	byReason := make(map[string]int, int(reasonLimit))
	for c := ReasonMalformed; c < reasonLimit; c++ {
		byReason[c.String()] = b.byReason[c]
	}

	missing := make(map[string]int, len(b.missing))
	for k, v := range b.missing {
		missing[k] = v
	}

	return SummaryReport{
		RunID:           runID,
		SourceFile:      source,
		SourceSHA256:    fingerprint,
		RowCount:        b.rows,
		AcceptedRows:    b.accepted,
		RejectedRows:    b.rejected,
		DuplicateRows:   b.byReason[ReasonDuplicate],
		ColumnDiff:      b.diff,
		InvalidByReason: byReason,
		MissingValues:   missing,
	}
}
