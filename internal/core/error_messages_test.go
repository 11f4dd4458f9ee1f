package core

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
)

func TestMapError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode string
	}{
		{"nil", nil, ""},
		{"schema", &SchemaError{Missing: []string{"Age"}}, "SCH001"},
		{"wrapped schema", errors.Wrap(&SchemaError{Missing: []string{"Age"}}, "load"), "SCH001"},
		{"empty source", errors.Wrap(ErrEmptySource, "open"), "SRC001"},
		{"partial write", joinSinkErrors([]*SinkWriteError{{Batch: 1, Err: errors.New("boom")}}), "SNK001"},
		{"busy", ErrTooManyIngests, "UPL002"},
		{"open failure", errors.New("open source data/x.csv: no such file"), "SRC002"},
		{"sink refused", errors.New("dial tcp 127.0.0.1:27017: connection refused"), "SNK002"},
		{"mongo selection", errors.New("server selection error: timed out"), "SNK002"},
		{"config", errors.New("config validation failed: 1 error(s)"), "CFG001"},
		{"cancelled", errors.Wrap(context.Canceled, "run cancelled"), "UPL004"},
		{"unknown", errors.New("something odd"), "ERR000"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := MapError(tt.err)
			if got.Code != tt.wantCode {
				t.Errorf("MapError(%v).Code = %q, want %q", tt.err, got.Code, tt.wantCode)
			}
		})
	}
}

func TestFormatUserError(t *testing.T) {
	got := FormatUserError(ErrEmptySource)
	want := "The source file is empty (Code: SRC001). Provide a CSV file with a header row"
	if got != want {
		t.Errorf("got %q, want %q", got, want)
	}
	if FormatUserError(nil) != "" {
		t.Error("nil error should format as empty string")
	}
}

func TestIsUserFacing(t *testing.T) {
	if IsUserFacing(nil) {
		t.Error("nil should not be user facing")
	}
	if !IsUserFacing(ErrSchema) {
		t.Error("schema error should be user facing")
	}
	if IsUserFacing(errors.New("random")) {
		t.Error("unmatched error should not be user facing")
	}
}
