package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/encounters/internal/config"
	"github.com/JonMunkholm/encounters/internal/core"
	"github.com/JonMunkholm/encounters/internal/report"
	"github.com/JonMunkholm/encounters/internal/sink"
)

const sampleCSV = `Name,Age,Gender,Blood Type,Medical Condition,Date of Admission,Doctor,Hospital,Insurance Provider,Billing Amount,Room Number,Admission Type,Discharge Date,Medication,Test Results
John Smith,30,Male,A+,Cancer,2020-01-01,Dr. Jones,General,Aetna,1000.50,101,Urgent,2020-01-05,Aspirin,Normal
JOHN SMITH,31,Male,A+,Cancer,2020-01-01,Dr. Jones,general,Aetna,10.00,102,Urgent,2020-01-02,Aspirin,Normal
Jane Doe,abc,Female,O-,Asthma,2021-03-04,Dr. Who,City,Cigna,5.5,200,Elective,,Ibuprofen,Abnormal
`

func writeSample(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "encounters.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o644))
	return path
}

func TestInputPath(t *testing.T) {
	cfg = &config.Config{Source: config.SourceConfig{Input: "data/default.csv"}}
	assert.Equal(t, "data/default.csv", inputPath(nil))
	assert.Equal(t, "other.csv", inputPath([]string{"other.csv"}))
}

func TestRunPipeline_Prepare(t *testing.T) {
	dir := t.TempDir()
	clean, err := sink.CreateCSV(filepath.Join(dir, "clean", "out.csv"))
	require.NoError(t, err)
	reports, err := report.Open(report.Paths{
		Rejects: filepath.Join(dir, "reports", "rejects.jsonl"),
		Summary: filepath.Join(dir, "reports", "summary.json"),
	})
	require.NoError(t, err)

	var out bytes.Buffer
	result, err := runPipeline(context.Background(), &out, writeSample(t), clean, reports, 2, 1)
	require.NoError(t, err)
	require.NoError(t, clean.Close())
	require.NoError(t, reports.Close())

	assert.Equal(t, 3, result.TotalRows)
	assert.Equal(t, 1, result.Accepted)
	assert.Equal(t, 2, result.Rejected)
	assert.Equal(t, 2, reports.RejectCount())
	assert.Contains(t, out.String(), "duplicates: 1")
	assert.Contains(t, out.String(), "distinct:   2")
	assert.Contains(t, out.String(), "AGE:")

	cleaned, err := os.ReadFile(filepath.Join(dir, "clean", "out.csv"))
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(cleaned)), "\n")
	assert.Len(t, lines, 2)
	assert.FileExists(t, filepath.Join(dir, "reports", "summary.json"))
}

func TestRunPipeline_MissingFile(t *testing.T) {
	_, err := runPipeline(context.Background(), &bytes.Buffer{}, "does/not/exist.csv", &sink.Discard{}, nil, 10, 1)
	require.Error(t, err)
	assert.Equal(t, "SRC002", core.MapError(err).Code)
}

func TestPrintError_Schema(t *testing.T) {
	var buf bytes.Buffer
	err := errors.WithHint(&core.SchemaError{Missing: []string{"Age", "Hospital"}}, "export the full encounter sheet")
	PrintError(&buf, err)

	out := buf.String()
	assert.Contains(t, out, "Missing columns:")
	assert.Contains(t, out, "  - Hospital")
	assert.Contains(t, out, "SCH001")
	assert.Contains(t, out, "Hint: export the full encounter sheet")
}

func TestPrintError_Plain(t *testing.T) {
	var buf bytes.Buffer
	PrintError(&buf, errors.New("something odd"))
	assert.Equal(t, "Error: something odd\n", buf.String())
}
