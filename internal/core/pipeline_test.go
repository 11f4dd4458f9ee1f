package core

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

var fixedNow = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }

func runPipeline(t *testing.T, text string, opts Options, sink *memSink) (*RunResult, *memReports, error) {
	t.Helper()
	if opts.Now == nil {
		opts.Now = fixedNow
	}
	if opts.RunID == "" {
		opts.RunID = "run-1"
	}
	reports := &memReports{}
	result, err := NewPipeline(sink, reports, opts).Run(context.Background(), openCSV(t, text))
	return result, reports, err
}

func TestPipeline_Scenario(t *testing.T) {
	text := buildCSV(t,
		row(map[string]string{ColName: "John", ColAge: "30", ColHospital: "A"}),
		row(map[string]string{ColName: "john ", ColAge: "31", ColHospital: "a"}),
		row(map[string]string{
			ColName: "Eve", ColAge: "x", ColGender: "Unknown",
			ColBloodType: "Z", ColAdmissionDate: "bad-date",
		}),
	)

	sink := &memSink{}
	result, reports, err := runPipeline(t, text, Options{}, sink)
	require.NoError(t, err)

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 1, result.Written)
	assert.Equal(t, PhasePartitioned, result.Phase)
	assert.Equal(t, []int{1}, sink.rows())
	assert.Equal(t, 2, result.Summary.DistinctKeys)

	reasons := reports.reasonsByRow()
	assert.Equal(t, "DUPLICATE", reasons[2])
	for _, code := range []string{"AGE", "GENDER", "BLOOD", "ADM"} {
		assert.Contains(t, reasons[3], code)
	}

	doc := sink.batches[0][0]
	assert.Equal(t, "John", doc.Patient.Name)
	assert.Equal(t, int32(30), doc.Patient.Age)
	assert.Equal(t, "Male", doc.Patient.Gender)
	assert.Equal(t, "A+", doc.Patient.BloodType)
	assert.Equal(t, "1000.50", doc.Billing.Amount.String())
	assert.Equal(t, "run-1", doc.Src.RunID)
	assert.Equal(t, "JOHN|2020-01-01|A", doc.Src.NaturalKey)
}

func TestPipeline_DuplicateKeepsFieldReasons(t *testing.T) {
	text := buildCSV(t,
		baseRow(),
		row(map[string]string{ColAge: "old", ColAmount: "lots"}),
	)

	_, reports, err := runPipeline(t, text, Options{}, &memSink{})
	require.NoError(t, err)
	require.Len(t, reports.rejects, 1)
	assert.Equal(t, "AGE,AMOUNT,DUPLICATE", reports.rejects[0].Reason)
}

func TestPipeline_InvalidFirstOccurrenceStillClaimsKey(t *testing.T) {
	// The first row with a key is invalid, yet it still wins the key.
	text := buildCSV(t,
		row(map[string]string{ColAge: "x"}),
		baseRow(),
	)

	result, reports, err := runPipeline(t, text, Options{}, &memSink{})
	require.NoError(t, err)
	assert.Equal(t, 0, result.Accepted)
	assert.Equal(t, map[int]string{1: "AGE", 2: "DUPLICATE"}, reports.reasonsByRow())
}

func TestPipeline_MalformedRowsDoNotClaimKeys(t *testing.T) {
	header := strings.Join(RequiredColumns(EncounterSchema), ",")
	valid := buildCSV(t, baseRow())
	validLine := strings.SplitN(valid, "\n", 2)[1]

	text := header + "\n" + "John Smith,30\n" + validLine

	result, reports, err := runPipeline(t, text, Options{}, &memSink{})
	require.NoError(t, err)
	assert.Equal(t, 2, result.TotalRows)
	assert.Equal(t, 1, result.Accepted)
	require.Len(t, reports.rejects, 1)
	assert.Equal(t, "MALFORMED", reports.rejects[0].Reason)
	assert.Equal(t, 1, reports.rejects[0].Row)
}

func TestPipeline_ExactHeaderWins(t *testing.T) {
	header := append([]string{"name"}, RequiredColumns(EncounterSchema)...)
	fields := []string{"x"}
	base := baseRow()
	for _, col := range RequiredColumns(EncounterSchema) {
		fields = append(fields, base[col])
	}
	text := strings.Join(header, ",") + "\n" + strings.Join(fields, ",") + "\n"

	sink := &memSink{}
	result, _, err := runPipeline(t, text, Options{}, sink)
	require.NoError(t, err)
	require.Equal(t, 1, result.Accepted)
	assert.Equal(t, "John Smith", sink.batches[0][0].Patient.Name)
	assert.Equal(t, []string{"name"}, result.Summary.ColumnDiff.Extra)
}

func TestPipeline_SchemaErrorIsFatal(t *testing.T) {
	cols := RequiredColumns(EncounterSchema)
	text := strings.Join(cols[:len(cols)-1], ",") + "\n" + "a,b\n"

	sink := &memSink{}
	result, reports, err := runPipeline(t, text, Options{}, sink)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSchema))

	var se *SchemaError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, []string{ColTestResults}, se.Missing)

	assert.Equal(t, PhaseFailed, result.Phase)
	assert.Zero(t, result.TotalRows)
	assert.Empty(t, reports.rejects)
	assert.Nil(t, reports.summary)
	assert.Empty(t, sink.batches)
}

// mixedRows builds a stream with valid rows, field failures, duplicates and
// an empty discharge date.
func mixedRows(n int) []map[string]string {
	var rows []map[string]string
	for i := 0; i < n; i++ {
		r := row(map[string]string{ColName: fmt.Sprintf("Patient %d", i%7)})
		switch i % 5 {
		case 1:
			r[ColAge] = "n/a"
		case 2:
			r[ColDischargeDate] = ""
		case 3:
			r[ColBloodType] = "C+"
		}
		rows = append(rows, r)
	}
	return rows
}

func TestPipeline_PartitionsEveryRow(t *testing.T) {
	text := buildCSV(t, mixedRows(40)...)

	sink := &memSink{}
	result, reports, err := runPipeline(t, text, Options{BatchSize: 3}, sink)
	require.NoError(t, err)

	assert.Equal(t, 40, result.TotalRows)
	assert.Equal(t, result.TotalRows, result.Accepted+result.Rejected)
	assert.Len(t, reports.rejects, result.Rejected)
	assert.Len(t, sink.rows(), result.Accepted)

	seen := map[int]bool{}
	for _, r := range sink.rows() {
		seen[r] = true
	}
	for _, rej := range reports.rejects {
		assert.False(t, seen[rej.Row], "row %d both accepted and rejected", rej.Row)
		seen[rej.Row] = true
	}
	assert.Len(t, seen, 40)
}

func TestPipeline_BatchSizeDoesNotChangeOutcome(t *testing.T) {
	text := buildCSV(t, mixedRows(25)...)

	_, want, err := runPipeline(t, text, Options{BatchSize: 1000}, &memSink{})
	require.NoError(t, err)

	for _, size := range []int{1, 2, 7} {
		t.Run(fmt.Sprintf("batch_%d", size), func(t *testing.T) {
			sink := &memSink{}
			result, got, err := runPipeline(t, text, Options{BatchSize: size}, sink)
			require.NoError(t, err)
			assert.Equal(t, want.reasonsByRow(), got.reasonsByRow())
			assert.Equal(t, (result.Accepted+size-1)/size, result.Batches)
			for _, b := range sink.batches {
				assert.LessOrEqual(t, len(b), size)
			}
		})
	}
}

func TestPipeline_SummaryMatchesRejects(t *testing.T) {
	text := buildCSV(t, mixedRows(30)...)

	result, reports, err := runPipeline(t, text, Options{}, &memSink{})
	require.NoError(t, err)
	require.NotNil(t, reports.summary)

	tally := map[string]int{}
	for _, rej := range reports.rejects {
		for _, c := range rej.Reasons.Codes() {
			tally[c.String()]++
		}
	}
	for code, n := range reports.summary.InvalidByReason {
		assert.Equal(t, tally[code], n, "count for %s", code)
	}

	s := reports.summary
	assert.Equal(t, result.TotalRows, s.RowCount)
	assert.Equal(t, result.Accepted, s.AcceptedRows)
	assert.Equal(t, result.Rejected, s.RejectedRows)
	assert.Equal(t, tally["DUPLICATE"], s.DuplicateRows)
	assert.Equal(t, sha(text), s.SourceSHA256)
	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, 6, s.MissingValues[ColDischargeDate])
	assert.Equal(t, fixedNow(), s.FinishedAt)
}

func TestPipeline_SinkFailureIsPartial(t *testing.T) {
	rows := make([]map[string]string, 6)
	for i := range rows {
		rows[i] = row(map[string]string{ColName: fmt.Sprintf("P%d", i)})
	}
	text := buildCSV(t, rows...)

	// Batch 2 starts at row 3.
	sink := &memSink{failRows: map[int]bool{3: true}}
	result, reports, err := runPipeline(t, text, Options{BatchSize: 2}, sink)

	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrPartialWrite))
	assert.Equal(t, "SNK001", MapError(err).Code)

	assert.Equal(t, 6, result.Accepted)
	assert.Equal(t, 4, result.Written)
	require.Len(t, result.SinkErrors, 1)
	assert.Equal(t, 2, result.SinkErrors[0].Batch)
	assert.Equal(t, 3, result.SinkErrors[0].FirstRow)
	assert.Equal(t, 0, result.SinkErrors[0].Written)

	require.NotNil(t, reports.summary, "summary is written even when batches fail")
	assert.Equal(t, 4, reports.summary.WrittenRows)
	assert.Len(t, reports.summary.SinkErrors, 1)
	assert.ElementsMatch(t, []int{1, 2, 5, 6}, sink.rows())
}

func TestPipeline_ParallelWrites(t *testing.T) {
	defer goleak.VerifyNone(t)

	rows := make([]map[string]string, 50)
	for i := range rows {
		rows[i] = row(map[string]string{ColName: fmt.Sprintf("P%d", i)})
	}
	text := buildCSV(t, rows...)

	sink := &memSink{failRows: map[int]bool{11: true}}
	result, _, err := runPipeline(t, text, Options{BatchSize: 5, Parallelism: 4}, sink)
	require.ErrorIs(t, err, ErrPartialWrite)

	assert.Equal(t, 10, result.Batches)
	assert.Equal(t, 45, result.Written)
	require.Len(t, result.SinkErrors, 1)
	assert.Equal(t, 3, result.SinkErrors[0].Batch)
	assert.Len(t, sink.rows(), 45)
}

func TestPipeline_NilSinks(t *testing.T) {
	text := buildCSV(t, mixedRows(10)...)
	src := openCSV(t, text)

	result, err := NewPipeline(nil, nil, Options{}).Run(context.Background(), src)
	require.NoError(t, err)
	assert.Equal(t, result.Accepted, result.Written)
	assert.NotEmpty(t, result.RunID)
}

func TestPipeline_Cancelled(t *testing.T) {
	text := buildCSV(t, mixedRows(10)...)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := NewPipeline(&memSink{}, &memReports{}, Options{}).Run(ctx, openCSV(t, text))
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, PhaseFailed, result.Phase)
}

func TestPipeline_ProgressPhases(t *testing.T) {
	text := buildCSV(t, mixedRows(12)...)

	var phases []Phase
	var last Progress
	opts := Options{
		BatchSize: 4,
		Progress: func(p Progress) {
			if len(phases) == 0 || phases[len(phases)-1] != p.Phase {
				phases = append(phases, p.Phase)
			}
			last = p
		},
	}
	_, _, err := runPipeline(t, text, opts, &memSink{})
	require.NoError(t, err)
	assert.Equal(t, []Phase{PhaseReading, PhaseValidating, PhasePartitioned}, phases)
	assert.Equal(t, int64(len(text)), last.BytesRead)
	assert.Equal(t, 100, last.Percent)
}
