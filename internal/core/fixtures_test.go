package core

import (
	"bytes"
	"context"
	"encoding/csv"
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/require"
)

// baseRow is a fully valid encounter keyed by column name.
func baseRow() map[string]string {
	return map[string]string{
		ColName:          "John Smith",
		ColAge:           "30",
		ColGender:        "male",
		ColBloodType:     "a+",
		ColCondition:     "Cancer",
		ColAdmissionDate: "2020-01-01",
		ColDoctor:        "Dr. Jones",
		ColHospital:      "General",
		ColInsurer:       "Aetna",
		ColAmount:        "1000.50",
		ColRoom:          "101",
		ColAdmissionType: "Urgent",
		ColDischargeDate: "2020-01-05",
		ColMedication:    "Aspirin",
		ColTestResults:   "Normal",
	}
}

// row returns baseRow with overrides applied.
func row(overrides map[string]string) map[string]string {
	r := baseRow()
	for k, v := range overrides {
		r[k] = v
	}
	return r
}

// buildCSV renders rows under the full encounter header.
func buildCSV(t *testing.T, rows ...map[string]string) string {
	t.Helper()
	header := RequiredColumns(EncounterSchema)

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	require.NoError(t, w.Write(header))
	for _, r := range rows {
		fields := make([]string, len(header))
		for i, col := range header {
			fields[i] = r[col]
		}
		require.NoError(t, w.Write(fields))
	}
	w.Flush()
	require.NoError(t, w.Error())
	return buf.String()
}

func openCSV(t *testing.T, text string) *CSVSource {
	t.Helper()
	src, err := NewCSVSource("test.csv", strings.NewReader(text), int64(len(text)))
	require.NoError(t, err)
	return src
}

// memSink records every batch. Batches whose first row is in failRows are
// rejected outright.
type memSink struct {
	mu       sync.Mutex
	batches  [][]Encounter
	failRows map[int]bool
}

func (s *memSink) WriteBatch(_ context.Context, docs []Encounter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRows[docs[0].Src.Row] {
		return 0, errors.New("connection reset by peer")
	}
	cp := append([]Encounter(nil), docs...)
	s.batches = append(s.batches, cp)
	return len(docs), nil
}

func (s *memSink) rows() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []int
	for _, b := range s.batches {
		for _, d := range b {
			out = append(out, d.Src.Row)
		}
	}
	return out
}

type memReports struct {
	rejects []RejectRecord
	summary *SummaryReport
}

func (r *memReports) WriteReject(rec RejectRecord) error {
	r.rejects = append(r.rejects, rec)
	return nil
}

func (r *memReports) WriteSummary(s SummaryReport) error {
	r.summary = &s
	return nil
}

func (r *memReports) reasonsByRow() map[int]string {
	out := make(map[int]string, len(r.rejects))
	for _, rej := range r.rejects {
		out[rej.Row] = rej.Reason
	}
	return out
}
