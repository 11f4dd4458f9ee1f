package core

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// CSVSource streams raw records from a CSV reader. The first record is the
// header.
type CSVSource struct {
	name    string
	csv     *csv.Reader
	fp      *FingerprintReader
	counter *StreamingCountingReader
	closer  io.Closer
	header  []string
	row     int
}

// NewCSVSource reads the header from r and returns a source positioned at the
// first data row. size is the total byte size if known, for progress only.
func NewCSVSource(name string, r io.Reader, size int64) (*CSVSource, error) {
	decoded, fp, counter := WrapForStreaming(r, size)

	cr := csv.NewReader(decoded)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = false
	cr.ReuseRecord = false

	header, err := cr.Read()
	if err == io.EOF {
		return nil, ErrEmptySource
	}
	if err != nil {
		return nil, errors.Wrapf(err, "read header of %s", name)
	}

	return &CSVSource{
		name:    name,
		csv:     cr,
		fp:      fp,
		counter: counter,
		header:  header,
	}, nil
}

// Name returns the source name (usually the file path).
func (s *CSVSource) Name() string { return s.name }

// Header returns the column names as read from the first row.
func (s *CSVSource) Header() []string { return s.header }

// BytesRead returns the raw bytes consumed so far.
func (s *CSVSource) BytesRead() int64 { return s.counter.BytesRead() }

// Percent returns how much of the source has been read, 0-100.
func (s *CSVSource) Percent() int { return s.counter.Progress() }

// Next returns the next record, or io.EOF when the source is exhausted.
// A row that cannot be parsed is returned as a malformed record rather than
// an error.
func (s *CSVSource) Next() (RawRecord, error) {
	fields, err := s.csv.Read()
	if err == io.EOF {
		return RawRecord{}, io.EOF
	}

	s.row++
	if err != nil {
		var perr *csv.ParseError
		if errors.As(err, &perr) {
			return RawRecord{Row: s.row, Line: perr.StartLine, Fields: fields, Malformed: true}, nil
		}
		return RawRecord{}, errors.Wrapf(err, "read %s row %d", s.name, s.row)
	}

	var line int
	if len(fields) > 0 {
		line, _ = s.csv.FieldPos(0)
	}
	return RawRecord{Row: s.row, Line: line, Fields: fields}, nil
}

// Fingerprint returns the SHA-256 of the complete source bytes.
func (s *CSVSource) Fingerprint() string {
	sum, err := s.fp.Sum()
	if err != nil {
		return ""
	}
	return sum
}

// Close closes the underlying file when the source owns one.
func (s *CSVSource) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// FileSource locates a CSV file on disk. Every Open starts from the beginning
// of the file.
type FileSource struct {
	Path string
}

// Open opens the file and reads its header.
func (f FileSource) Open() (*CSVSource, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, errors.WithHint(
			errors.Wrapf(err, "open source %s", f.Path),
			"check the path passed on the command line or INGEST_INPUT",
		)
	}

	var size int64
	if info, err := file.Stat(); err == nil {
		size = info.Size()
	}

	src, err := NewCSVSource(filepath.Clean(f.Path), file, size)
	if err != nil {
		file.Close()
		return nil, err
	}
	src.closer = file
	return src, nil
}
