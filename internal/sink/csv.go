package sink

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/JonMunkholm/encounters/internal/core"
)

// CSV writes accepted encounters as normalized rows under the required
// header. It is the cleaned-file output of the prepare command.
type CSV struct {
	mu     sync.Mutex
	w      *csv.Writer
	closer io.Closer
}

// NewCSV writes the header to w immediately.
func NewCSV(w io.Writer) (*CSV, error) {
	cw := csv.NewWriter(w)
	if err := cw.Write(core.RequiredColumns(core.EncounterSchema)); err != nil {
		return nil, errors.Wrap(err, "write header")
	}
	return &CSV{w: cw}, nil
}

// CreateCSV creates path, including parent directories.
func CreateCSV(path string) (*CSV, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrapf(err, "create directory for %s", path)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.Wrapf(err, "create %s", path)
	}
	s, err := NewCSV(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	s.closer = f
	return s, nil
}

// WriteBatch appends one row per encounter. Batches may arrive out of order
// when writes run in parallel.
func (s *CSV) WriteBatch(_ context.Context, docs []core.Encounter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, doc := range docs {
		if err := s.w.Write(doc.Row()); err != nil {
			return i, errors.Wrapf(err, "write row %d", doc.Src.Row)
		}
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		return 0, errors.Wrap(err, "flush rows")
	}
	return len(docs), nil
}

// Close flushes and closes the underlying file, if any.
func (s *CSV) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.w.Flush()
	err := s.w.Error()
	if s.closer != nil {
		if cerr := s.closer.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

// Discard accepts everything and stores nothing. It counts what it was given.
type Discard struct {
	mu    sync.Mutex
	count int
}

func (d *Discard) WriteBatch(_ context.Context, docs []core.Encounter) (int, error) {
	d.mu.Lock()
	d.count += len(docs)
	d.mu.Unlock()
	return len(docs), nil
}

// Count returns the number of documents received.
func (d *Discard) Count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.count
}
